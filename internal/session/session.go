// Package session owns the per-operator state: a dataset store and a layer store, used by one
// request at a time.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"regiokaart/internal/apperr"
	"regiokaart/internal/dataset"
	"regiokaart/internal/layer"
	"regiokaart/internal/logger"
	"regiokaart/internal/metrics"
)

type Session struct {
	ID       string
	Datasets *dataset.Store
	Layers   *layer.Store

	// turn has weight one; whoever holds it may touch the stores.
	turn     *semaphore.Weighted
	lastUsed time.Time
}

func newSession(now time.Time) *Session {
	return &Session{
		ID:       uuid.NewString(),
		Datasets: dataset.NewStore(),
		Layers:   layer.NewStore(),
		turn:     semaphore.NewWeighted(1),
		lastUsed: now,
	}
}

type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	idleTTL  time.Duration
	now      func() time.Time
}

type Option func(*Manager)

// WithClock replaces time.Now; tests use it to age sessions.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager evicts sessions idle for longer than idleTTL when Reap runs. idleTTL <= 0 keeps sessions forever.
func NewManager(idleTTL time.Duration, opts ...Option) *Manager {
	m := &Manager{sessions: map[string]*Session{}, idleTTL: idleTTL, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Create starts an empty session.
func (m *Manager) Create() *Session {
	s := newSession(m.now())
	m.mu.Lock()
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()
	metrics.SessionsActive.Set(float64(n))
	logger.L().Info("session_created", "id", s.ID, "active", n)
	return s
}

func (m *Manager) lookup(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "session "+id+" not found")
	}
	return s, nil
}

// Do runs fn with exclusive access to the session. Calls for the same session queue up; waiting ends
// early when ctx is done.
func (m *Manager) Do(ctx context.Context, id string, fn func(*Session) error) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}
	if err := s.turn.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.turn.Release(1)
	if !m.touch(s) {
		return apperr.New(apperr.NotFound, "session "+id+" not found")
	}
	return fn(s)
}

// touch renews s and reports whether it is still registered; a waiter can outlive a Reap or Delete.
func (m *Manager) touch(s *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[s.ID] != s {
		return false
	}
	s.lastUsed = m.now()
	return true
}

func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return apperr.New(apperr.NotFound, "session "+id+" not found")
	}
	metrics.SessionsActive.Set(float64(n))
	logger.L().Info("session_deleted", "id", id, "active", n)
	return nil
}

// Reap drops idle sessions that nobody is using and returns how many went.
func (m *Manager) Reap() int {
	if m.idleTTL <= 0 {
		return 0
	}
	m.mu.Lock()
	cutoff := m.now().Add(-m.idleTTL)
	var gone int
	for id, s := range m.sessions {
		if !s.lastUsed.Before(cutoff) {
			continue
		}
		// busy sessions are renewed by their next touch
		if s.turn.TryAcquire(1) {
			delete(m.sessions, id)
			s.turn.Release(1)
			gone++
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()
	metrics.SessionsActive.Set(float64(n))
	if gone > 0 {
		logger.L().Info("sessions_reaped", "count", gone, "active", n)
	}
	return gone
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run calls Reap every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Reap()
		}
	}
}
