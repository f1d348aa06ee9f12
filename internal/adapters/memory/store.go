// Package memory implements the session store in process memory. It backs
// the local simulator and tests; production deployments use Redis.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/sediba/edubot/internal/domain"
	"github.com/sediba/edubot/internal/ports"
)

type entry struct {
	session   *domain.Session
	expiresAt time.Time
}

// Store implements ports.SessionStore in memory. Safe for concurrent use.
// Entries expire after a sliding TTL; every Save refreshes the deadline.
// Expired entries are reaped lazily, on access.
type Store struct {
	mu   sync.Mutex
	data map[string]entry
	ttl  time.Duration
	now  func() time.Time
}

var _ ports.SessionStore = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithTTL sets the sliding expiry. Zero means entries never expire.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithClock overrides the time source, for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		data: make(map[string]entry),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save persists a clone of the session and refreshes its expiry.
func (s *Store) Save(ctx context.Context, sess *domain.Session) error {
	e := entry{session: sess.Clone()}
	if s.ttl > 0 {
		e.expiresAt = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sess.ID] = e
	return nil
}

// Load returns a clone of the stored session, or ErrSessionNotFound when
// the id is unknown or the entry has expired.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if s.expired(e) {
		delete(s.data, sessionID)
		return nil, domain.ErrSessionNotFound
	}
	return e.session.Clone(), nil
}

// Delete removes the session. Unknown ids are not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns the ids of live sessions, reaping expired entries.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.data))
	for id, e := range s.data {
		if s.expired(e) {
			delete(s.data, id)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) expired(e entry) bool {
	return !e.expiresAt.IsZero() && s.now().After(e.expiresAt)
}
