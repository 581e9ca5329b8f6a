package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/soyeahso/validade/internal/domain"
)

// SessionStore holds open sessions keyed by conversation id. With a
// non-zero idle window, a session not saved within it is dropped.
type SessionStore struct {
	cache *expirable.LRU[string, *domain.Session]
	now   func() time.Time

	removing sync.Map // keys being deleted explicitly
}

// SessionOption configures a SessionStore.
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	now      func() time.Time
	onExpire func(domain.Session)
}

// WithSessionClock overrides the clock used for session timestamps.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(o *sessionOptions) { o.now = now }
}

// OnExpire registers a callback for sessions dropped by idle eviction or
// by the size bound. It runs under the store lock and must not call back
// into the store.
func OnExpire(fn func(domain.Session)) SessionOption {
	return func(o *sessionOptions) { o.onExpire = fn }
}

// NewSessionStore creates a store bounded to size sessions (0 means
// unbounded) with the given idle window (0 means never).
func NewSessionStore(size int, idle time.Duration, opts ...SessionOption) *SessionStore {
	o := sessionOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	s := &SessionStore{now: o.now}

	var evict expirable.EvictCallback[string, *domain.Session]
	if o.onExpire != nil {
		evict = func(key string, sess *domain.Session) {
			if _, ok := s.removing.Load(key); ok {
				return
			}
			o.onExpire(*sess)
		}
	}
	s.cache = expirable.NewLRU[string, *domain.Session](size, evict, idle)
	return s
}

// Get returns the open session for key.
func (s *SessionStore) Get(key string) (*domain.Session, bool) {
	return s.cache.Get(key)
}

// GetOrCreate returns the open session for key, creating one in
// WAIT_IMAGE when none exists. created reports which happened.
func (s *SessionStore) GetOrCreate(key domain.ConversationKey) (sess *domain.Session, created bool) {
	if sess, ok := s.cache.Get(key.String()); ok {
		return sess, false
	}
	now := s.now()
	sess = &domain.Session{
		ID:        uuid.NewString(),
		Key:       key,
		State:     domain.StateWaitImage,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.cache.Add(key.String(), sess)
	return sess, true
}

// Save stores sess and restarts its idle window.
func (s *SessionStore) Save(sess *domain.Session) {
	sess.UpdatedAt = s.now()
	s.cache.Add(sess.Key.String(), sess)
}

// Delete ends the session for key. It reports whether one was open.
func (s *SessionStore) Delete(key string) bool {
	s.removing.Store(key, struct{}{})
	defer s.removing.Delete(key)
	return s.cache.Remove(key)
}

// Len returns the number of open sessions.
func (s *SessionStore) Len() int {
	return s.cache.Len()
}

// List returns a snapshot of the open sessions.
func (s *SessionStore) List() []domain.Session {
	vals := s.cache.Values()
	out := make([]domain.Session, 0, len(vals))
	for _, v := range vals {
		out = append(out, *v)
	}
	return out
}
