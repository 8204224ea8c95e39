package expression

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store].
// It is suitable for single-process use and testing.
type MemStore struct {
	mu        sync.RWMutex
	overrides map[string]Override

	// now is swappable for tests.
	now func() time.Time
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		overrides: make(map[string]Override),
		now:       time.Now,
	}
}

// Get implements [Store.Get].
func (s *MemStore) Get(ctx context.Context, name string) (Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.overrides[strings.ToLower(name)]
	if !ok {
		return Override{}, ErrNotFound
	}
	return o, nil
}

// Set implements [Store.Set].
func (s *MemStore) Set(ctx context.Context, name, expr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(name)
	o := s.overrides[key]
	o.Name = name
	o.Expression = expr
	o.UpdatedAt = s.now()
	s.overrides[key] = o
	return nil
}

// SetLocked implements [Store.SetLocked].
func (s *MemStore) SetLocked(ctx context.Context, name string, locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(name)
	o, ok := s.overrides[key]
	if !ok {
		return ErrNotFound
	}
	o.Locked = locked
	o.UpdatedAt = s.now()
	s.overrides[key] = o
	return nil
}

// Delete implements [Store.Delete].
func (s *MemStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(name)
	if _, ok := s.overrides[key]; !ok {
		return ErrNotFound
	}
	delete(s.overrides, key)
	return nil
}

// List implements [Store.List].
func (s *MemStore) List(ctx context.Context) ([]Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Override, 0, len(s.overrides))
	for _, o := range s.overrides {
		result = append(result, o)
	}
	return result, nil
}
