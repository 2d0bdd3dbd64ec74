package scraper

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
)

// Manager owns at most one Session at a time.
type Manager struct {
	factory Factory
	current Session
	logger  *log.Logger

	acquired int
	disposed int
}

// NewManager creates a Manager that builds sessions with factory.
func NewManager(factory Factory, logger *log.Logger) *Manager {
	return &Manager{factory: factory, logger: logger}
}

// Current returns the live session, or nil when none is held.
func (m *Manager) Current() Session {
	return m.current
}

// Acquire creates a new session. Any session still held is disposed first.
func (m *Manager) Acquire(ctx context.Context) (Session, error) {
	if m.current != nil {
		m.Dispose()
	}
	s, err := m.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	m.current = s
	m.acquired++
	return s, nil
}

// Dispose closes the held session. It is a no-op when nothing is held and
// never fails, even if the session already crashed.
func (m *Manager) Dispose() {
	if m.current == nil {
		return
	}
	if err := m.current.Close(); err != nil {
		m.logger.Debug("session close reported an error", "err", err)
	}
	m.current = nil
	m.disposed++
}

// Recycle disposes the held session and acquires a new one.
func (m *Manager) Recycle(ctx context.Context) (Session, error) {
	m.Dispose()
	return m.Acquire(ctx)
}

// Alive reports whether a session is held and passes the liveness check.
func (m *Manager) Alive(ctx context.Context) bool {
	return IsAlive(ctx, m.current)
}

// Acquired and Disposed count lifecycle events since creation.
func (m *Manager) Acquired() int { return m.acquired }
func (m *Manager) Disposed() int { return m.disposed }

// IsAlive checks s without panicking; a nil session is not alive.
func IsAlive(ctx context.Context, s Session) (alive bool) {
	if s == nil {
		return false
	}
	defer func() {
		if recover() != nil {
			alive = false
		}
	}()
	return s.IsAlive(ctx)
}
