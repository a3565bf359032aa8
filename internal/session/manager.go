package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/askdata/askdata/internal/nl2sql"
	"github.com/askdata/askdata/internal/observability"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrTooManySessions = errors.New("session limit reached")
)

// Opener creates the store for a new session.
type Opener func() (Store, error)

type ManagerOptions struct {
	// IdleTTL evicts sessions unused for longer; zero keeps them forever.
	IdleTTL time.Duration
	// MaxSessions bounds live sessions; zero means unbounded.
	MaxSessions int
	Session     Options
	Now         func() time.Time
}

type Manager struct {
	open      Opener
	completer nl2sql.Completer
	opts      ManagerOptions
	now       func() time.Time
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(open Opener, completer nl2sql.Completer, opts ManagerOptions) *Manager {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		open:      open,
		completer: completer,
		opts:      opts,
		now:       now,
		logger:    observability.OrDiscard(opts.Session.Logger),
		sessions:  map[string]*Session{},
	}
}

func (m *Manager) Create(_ context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.evictLocked()
	if m.opts.MaxSessions > 0 && len(m.sessions) >= m.opts.MaxSessions {
		return nil, ErrTooManySessions
	}

	st, err := m.open()
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	id := uuid.NewString()
	s := New(id, st, m.completer, m.opts.Session)
	s.touch(m.now())
	m.sessions[id] = s
	observability.SetActiveSessions(len(m.sessions))
	m.logger.Info("session created", "session_id", id, "engine", st.Dialect())
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.evictLocked()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	s.touch(m.now())
	return s, nil
}

func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		observability.SetActiveSessions(len(m.sessions))
	}
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	if err := s.Close(); err != nil {
		return fmt.Errorf("close session %s: %w", id, err)
	}
	m.logger.Info("session deleted", "session_id", id)
	return nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked()
	return len(m.sessions)
}

// Close drops every session and closes its store.
func (m *Manager) Close() error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = map[string]*Session{}
	observability.SetActiveSessions(0)
	m.mu.Unlock()

	var errs []error
	for id, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Sweep evicts idle sessions and returns how many were closed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evictLocked()
}

func (m *Manager) evictLocked() int {
	if m.opts.IdleTTL <= 0 {
		return 0
	}
	evicted := 0
	cutoff := m.now().Add(-m.opts.IdleTTL)
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			if err := s.Close(); err != nil {
				m.logger.Warn("failed to close expired session", "session_id", id, "error", err)
			}
			m.logger.Info("session expired", "session_id", id)
			evicted++
		}
	}
	observability.SetActiveSessions(len(m.sessions))
	return evicted
}
