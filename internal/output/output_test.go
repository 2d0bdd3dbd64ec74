package output

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"fundscrape/internal/scraper/scrapertest"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><head><title>TEFAS - Fon Analiz</title><script>var x = 1;</script></head>
<body>
<ul>
  <li>Kategorisi<span>Hisse Senedi Fonu</span></li>
  <li>Pazar Payı<span>%0,12</span></li>
</ul>
<table>
  <tr><th>Alan</th><th>Değer</th></tr>
  <tr><td>Fonun Risk Değeri</td><td>6</td></tr>
</table>
</body></html>`

var labels = []string{"Kategorisi", "Pazar Payı", "Yatırımcı Sayısı"}

func TestInspect(t *testing.T) {
	p, err := Inspect(page, labels)
	require.NoError(t, err)

	assert.Equal(t, "TEFAS - Fon Analiz", p.Title)
	assert.Equal(t, 2, p.Lists)
	assert.Equal(t, 2, p.Spans)
	assert.Equal(t, 2, p.Cells)
	assert.True(t, p.Labels["Kategorisi"])
	assert.Equal(t, []string{"Yatırımcı Sayısı"}, p.Missing(labels))
}

func TestMarkdownKeepsTables(t *testing.T) {
	out, err := Markdown(page)
	require.NoError(t, err)

	assert.Contains(t, out, "| Alan | Değer |")
	assert.Contains(t, out, "| Fonun Risk Değeri | 6 |")
	assert.Contains(t, out, "Hisse Senedi Fonu")
	assert.NotContains(t, out, "var x")
}

func TestFormat(t *testing.T) {
	out, err := Format("HTML", page)
	require.NoError(t, err)
	assert.Equal(t, page, out)

	_, err = Format("pdf", page)
	assert.Error(t, err)
}

func TestDumperPath(t *testing.T) {
	d := &Dumper{Dir: "dumps"}
	assert.Equal(t, filepath.Join("dumps", "AAK.md"), d.Path("AAK"))
	assert.Equal(t, filepath.Join("dumps", "A_B.md"), d.Path("A/B"))
	assert.Equal(t, filepath.Join("dumps", "_.md"), d.Path(".."))

	d.Format = "html"
	assert.Equal(t, filepath.Join("dumps", "AAK.html"), d.Path("AAK"))
}

func TestDump(t *testing.T) {
	d := &Dumper{Dir: filepath.Join(t.TempDir(), "dumps")}

	path, err := d.Dump("AAK", page)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Hisse Senedi Fonu")
}

func TestHook(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})
	dir := t.TempDir()

	sess := scrapertest.NewSession(nil)
	require.NoError(t, sess.Navigate(context.Background(), "AAK"))

	Hook(logger, labels, &Dumper{Dir: dir})(context.Background(), "AAK", sess)

	assert.Contains(t, buf.String(), "page structure")
	assert.FileExists(t, filepath.Join(dir, "AAK.md"))
}

func TestHookSkipsWhenQuiet(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.InfoLevel})

	sess := scrapertest.NewSession(nil)
	Hook(logger, labels, nil)(context.Background(), "AAK", sess)

	assert.Empty(t, buf.String())
}
