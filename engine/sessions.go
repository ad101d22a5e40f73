package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Session is one running demux loop tracked by a Manager.
type Session struct {
	ID        uuid.UUID
	Key       string
	StartedAt time.Time

	runner *Runner
	cancel context.CancelFunc
	done   chan struct{}
}

// Runner returns the session's runner, for capability queries and counters.
func (s *Session) Runner() *Runner {
	return s.runner
}

// Done returns a channel closed when the session's demux loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Manager tracks running demux sessions by key and supervises their demux
// loops, giving each instance the dedicated goroutine the protocol requires.
type Manager struct {
	log *slog.Logger

	g  errgroup.Group
	mu sync.RWMutex

	sessions map[string]*Session
}

// NewManager creates a session manager. If log is nil, slog.Default() is used.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		log:      log.With("component", "engine"),
		sessions: make(map[string]*Session),
	}
}

// Start launches the runner's demux loop under the manager and registers it
// as a session. Returns nil and false when a session with this key already
// exists.
func (m *Manager) Start(ctx context.Context, key string, r *Runner) (*Session, bool) {
	m.mu.Lock()
	if _, ok := m.sessions[key]; ok {
		m.mu.Unlock()
		m.log.Warn("session already exists, rejecting duplicate", "key", key)
		return nil, false
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		ID:        uuid.New(),
		Key:       key,
		StartedAt: time.Now(),
		runner:    r,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	m.sessions[key] = s
	m.mu.Unlock()

	m.log.Info("session started", "key", key, "id", s.ID)

	m.g.Go(func() error {
		defer close(s.done)
		defer m.remove(key)

		err := r.Run(sctx)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		m.log.Info("session finished", "key", key, "id", s.ID, "units", r.Units(), "error", err)
		return err
	})

	return s, true
}

// Stop cancels the session with the given key, if any. The demux loop exits
// asynchronously; wait on Session.Done or Manager.Wait.
func (m *Manager) Stop(key string) {
	m.mu.RLock()
	s, ok := m.sessions[key]
	m.mu.RUnlock()
	if ok {
		s.cancel()
	}
}

// Get returns the session for key, or false if not found.
func (m *Manager) Get(key string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[key]
	return s, ok
}

// List returns all running sessions.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Wait blocks until every started session has finished and returns the
// first fatal demux error, if any.
func (m *Manager) Wait() error {
	return m.g.Wait()
}

func (m *Manager) remove(key string) {
	m.mu.Lock()
	delete(m.sessions, key)
	m.mu.Unlock()
}
