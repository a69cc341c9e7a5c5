// Package accounts holds the authoritative customer collection adapters:
// an in-process store and a Redis-backed store shared across instances.
package accounts

import (
	"context"
	"sync"

	"github.com/boddenberg/telecom-support-go/internal/domain"
)

// MemoryStore keeps the authoritative collection in process and notifies
// watchers synchronously on every Save.
type MemoryStore struct {
	mu       sync.Mutex
	current  []domain.CustomerRecord
	watchers map[int]func([]domain.CustomerRecord)
	nextID   int
}

// NewMemoryStore seeds the store with initial.
func NewMemoryStore(initial []domain.CustomerRecord) *MemoryStore {
	return &MemoryStore{
		current:  domain.CloneCustomers(initial),
		watchers: make(map[int]func([]domain.CustomerRecord)),
	}
}

// Load returns a copy of the current collection.
func (s *MemoryStore) Load(_ context.Context) ([]domain.CustomerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneCustomers(s.current), nil
}

// Save replaces the collection and echoes it to every watcher.
func (s *MemoryStore) Save(_ context.Context, customers []domain.CustomerRecord) error {
	s.mu.Lock()
	s.current = domain.CloneCustomers(customers)
	fns := make([]func([]domain.CustomerRecord), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	snapshot := s.current
	s.mu.Unlock()

	for _, fn := range fns {
		fn(domain.CloneCustomers(snapshot))
	}
	return nil
}

// Watch registers fn until ctx is done. It blocks.
func (s *MemoryStore) Watch(ctx context.Context, fn func([]domain.CustomerRecord)) error {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.mu.Unlock()

	<-ctx.Done()

	s.mu.Lock()
	delete(s.watchers, id)
	s.mu.Unlock()
	return nil
}
