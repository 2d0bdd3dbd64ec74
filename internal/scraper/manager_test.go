package scraper_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"fundscrape/internal/extractor"
	"fundscrape/internal/scraper"
	"fundscrape/internal/scraper/scrapertest"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestManagerAcquireDisposesPrevious(t *testing.T) {
	f := &scrapertest.Factory{New: func() *scrapertest.Session { return scrapertest.NewSession(nil) }}
	m := scraper.NewManager(f.Func(), quietLogger())
	ctx := context.Background()

	first, err := m.Acquire(ctx)
	require.NoError(t, err)
	second, err := m.Acquire(ctx)
	require.NoError(t, err)

	assert.True(t, first.(*scrapertest.Session).Closed)
	assert.False(t, second.(*scrapertest.Session).Closed)
	assert.Equal(t, second, m.Current())
	assert.Equal(t, 2, m.Acquired())
	assert.Equal(t, 1, m.Disposed())
}

func TestManagerAcquireError(t *testing.T) {
	f := &scrapertest.Factory{Err: errors.New("no chrome")}
	m := scraper.NewManager(f.Func(), quietLogger())

	s, err := m.Acquire(context.Background())
	require.Error(t, err)
	assert.Nil(t, s)
	assert.Contains(t, err.Error(), "failed to create session")
	assert.Nil(t, m.Current())
	assert.False(t, m.Alive(context.Background()))
}

func TestManagerDisposeIsIdempotent(t *testing.T) {
	f := &scrapertest.Factory{New: func() *scrapertest.Session { return scrapertest.NewSession(nil) }}
	m := scraper.NewManager(f.Func(), quietLogger())

	m.Dispose()
	assert.Equal(t, 0, m.Disposed())

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)
	m.Dispose()
	m.Dispose()
	assert.Equal(t, 1, m.Disposed())
	assert.Nil(t, m.Current())
}

func TestManagerRecycle(t *testing.T) {
	f := &scrapertest.Factory{New: func() *scrapertest.Session { return scrapertest.NewSession(nil) }}
	m := scraper.NewManager(f.Func(), quietLogger())
	ctx := context.Background()

	_, err := m.Acquire(ctx)
	require.NoError(t, err)
	f.Sessions[0].Dead = true
	assert.False(t, m.Alive(ctx))

	_, err = m.Recycle(ctx)
	require.NoError(t, err)
	assert.True(t, m.Alive(ctx))
	assert.Equal(t, 2, f.Created())
	assert.True(t, f.Sessions[0].Closed)
}

type panickySession struct{ scrapertest.Session }

func (*panickySession) IsAlive(context.Context) bool { panic("target closed") }

func TestIsAliveRecoversPanic(t *testing.T) {
	assert.False(t, scraper.IsAlive(context.Background(), &panickySession{}))
	assert.False(t, scraper.IsAlive(context.Background(), nil))
}

type stubProfile struct{ name string }

func (p stubProfile) Name() string                  { return p.name }
func (stubProfile) PageURL(base, key string) string { return base + "/" + key }
func (stubProfile) Specs() []extractor.Spec         { return nil }
func (stubProfile) Labels() []string                { return nil }

func TestRegistryLookupIsCaseInsensitive(t *testing.T) {
	scraper.Register(stubProfile{name: "StubSite"})

	p, ok := scraper.Get("stubsite")
	require.True(t, ok)
	assert.Equal(t, "StubSite", p.Name())

	_, ok = scraper.Get("missing")
	assert.False(t, ok)
	assert.Contains(t, scraper.Names(), "stubsite")
}
