// Package session keeps per-user conversation sessions for the life of the process.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/odonto-agent/internal/dialogue"
	"github.com/wolfman30/odonto-agent/pkg/logging"
)

// MemoryStore is a process-wide map from user id to session.
//
// Sessions are never persisted. Without a TTL the map grows with every new
// sender; RunEviction bounds it by dropping sessions idle longer than the TTL.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]dialogue.Session
	locks    *keyedMutex
	ttl      time.Duration
	now      func() time.Time
	logger   *logging.Logger
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithTTL evicts sessions idle longer than ttl. Zero disables eviction.
func WithTTL(ttl time.Duration) Option {
	return func(s *MemoryStore) { s.ttl = ttl }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used by the eviction loop.
func WithLogger(logger *logging.Logger) Option {
	return func(s *MemoryStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]dialogue.Session),
		locks:    newKeyedMutex(),
		now:      time.Now,
		logger:   logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate returns the user's session, creating a menu session on first contact.
func (s *MemoryStore) GetOrCreate(userID string) dialogue.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = dialogue.NewSession(userID)
		sess.UpdatedAt = s.now()
		s.sessions[userID] = sess
	}
	return sess
}

// Save commits a session.
func (s *MemoryStore) Save(sess dialogue.Session) {
	sess.UpdatedAt = s.now()
	s.mu.Lock()
	s.sessions[sess.UserID] = sess
	s.mu.Unlock()
}

// Reset overwrites the user's session with a fresh menu session.
func (s *MemoryStore) Reset(userID string) dialogue.Session {
	sess := dialogue.NewSession(userID)
	s.Save(sess)
	return s.GetOrCreate(userID)
}

// Update runs fn on the user's session and commits its result. Calls for the
// same user are serialized; different users proceed in parallel.
func (s *MemoryStore) Update(userID string, fn func(dialogue.Session) dialogue.Session) dialogue.Session {
	unlock := s.locks.Lock(userID)
	defer unlock()

	next := fn(s.GetOrCreate(userID))
	next.UserID = userID
	s.Save(next)
	return next
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions idle longer than the TTL and reports how many were dropped.
func (s *MemoryStore) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// RunEviction sweeps every interval until ctx is done. It returns immediately
// when no TTL is configured.
func (s *MemoryStore) RunEviction(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("evicted idle sessions", "count", n, "remaining", s.Len())
			}
		}
	}
}
