package service

import (
	"sync"

	"github.com/boddenberg/telecom-support-go/internal/domain"
	"github.com/boddenberg/telecom-support-go/internal/infra/observability"
	"github.com/boddenberg/telecom-support-go/internal/port"
)

// Sessions keeps conversation state between turns and serializes turns of
// the same session.
type Sessions struct {
	cache   port.Cache[*domain.ConversationState]
	ids     port.IDGenerator
	metrics *observability.Metrics

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewSessions creates a session registry backed by cache.
func NewSessions(cache port.Cache[*domain.ConversationState], ids port.IDGenerator, metrics *observability.Metrics) *Sessions {
	return &Sessions{
		cache:   cache,
		ids:     ids,
		metrics: metrics,
		locks:   make(map[string]*sessionLock),
	}
}

// Create starts a session with empty defaults.
func (s *Sessions) Create() *domain.ConversationState {
	state := domain.NewConversationState(s.ids.Next())
	s.cache.Set(state.SessionID, state)
	return state
}

// Get returns the state of a live session.
func (s *Sessions) Get(id string) (*domain.ConversationState, bool) {
	state, ok := s.cache.Get(id)
	if !ok {
		s.metrics.IncrCacheMiss("session")
		return nil, false
	}
	s.metrics.IncrCacheHit("session")
	return state, true
}

// Save stores state and restarts its TTL.
func (s *Sessions) Save(state *domain.ConversationState) {
	s.cache.Set(state.SessionID, state)
}

// End destroys a session.
func (s *Sessions) End(id string) {
	s.cache.Delete(id)
}

// Lock serializes turns on one session. The returned func releases it.
func (s *Sessions) Lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}
