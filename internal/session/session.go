// Package session keeps one flow controller per client session.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nadzzz/roadman/internal/config"
	"github.com/nadzzz/roadman/internal/flow"
	"github.com/nadzzz/roadman/internal/metrics"
)

// Session is a client session and its controller.
type Session struct {
	ID         string
	Created    time.Time
	Controller *flow.Controller

	mu         sync.Mutex
	lastActive time.Time
}

// LastActive returns the time of the last lookup.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActive = now
	s.mu.Unlock()
}

// ControllerFactory builds the controller for a new session.
type ControllerFactory func(logger *slog.Logger) *flow.Controller

// Store is a goroutine-safe registry of sessions.
type Store struct {
	newController ControllerFactory
	idleTTL       time.Duration
	sweepInterval time.Duration
	metrics       *metrics.Metrics
	now           func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty store.
func NewStore(factory ControllerFactory, cfg config.SessionConfig, m *metrics.Metrics) *Store {
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	return &Store{
		newController: factory,
		idleTTL:       cfg.IdleTTL,
		sweepInterval: interval,
		metrics:       m,
		now:           time.Now,
		sessions:      make(map[string]*Session),
	}
}

// Create starts a new session.
func (s *Store) Create() *Session {
	id := uuid.NewString()
	now := s.now()
	sess := &Session{
		ID:         id,
		Created:    now,
		Controller: s.newController(slog.With("session_id", id)),
		lastActive: now,
	}

	s.mu.Lock()
	s.sessions[id] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SetActiveSessions(n)
	slog.Info("session created", "session_id", id)
	return sess
}

// Get looks up a session and marks it active.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if ok {
		sess.touch(s.now())
	}
	return sess, ok
}

// Delete removes a session and ends its state subscriptions. It reports
// whether the session existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()

	if ok {
		sess.Controller.Close()
		s.metrics.SetActiveSessions(n)
		slog.Info("session deleted", "session_id", id)
	}
	return ok
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions idle for longer than the TTL. A session with a
// cycle in progress is kept.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.sessions {
		if now.Sub(sess.LastActive()) <= s.idleTTL {
			continue
		}
		if sess.Controller.State().Phase.Busy() {
			continue
		}
		expired = append(expired, sess)
		delete(s.sessions, id)
	}
	n := len(s.sessions)
	s.mu.Unlock()

	for _, sess := range expired {
		sess.Controller.Close()
	}

	if len(expired) > 0 {
		s.metrics.RecordEvicted(len(expired))
		s.metrics.SetActiveSessions(n)
		slog.Info("evicted idle sessions", "count", len(expired), "remaining", n)
	}
	return len(expired)
}

// Run sweeps idle sessions until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	slog.Info("session sweeper started", "idle_ttl", s.idleTTL, "interval", s.sweepInterval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
