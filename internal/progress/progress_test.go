package progress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisabledIsNoop(t *testing.T) {
	p := New(&bytes.Buffer{}, false)
	assert.Nil(t, p)

	p.Update(1, 2, "AAA")
	p.Stop()
	assert.Equal(t, "", p.Status())
	assert.Nil(t, p.Writer())
}

func TestUpdate(t *testing.T) {
	p := New(&bytes.Buffer{}, true)
	defer p.Stop()

	p.Update(2, 3, "BBB")
	assert.Equal(t, " 2/3 BBB", p.Status())
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, true)
	assert.Same(t, &buf, p.Writer())
}
