package pending

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-memory Store, safe for concurrent use.
// Data is lost on restart; use FirestoreStore when the bot runs on more
// than one instance or scales to zero.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

// Put stores a copy of value until ttl elapses.
func (s *MemoryStore) Put(ctx context.Context, key Key, value []byte, ttl time.Duration) error {
	if key.ID == "" {
		return fmt.Errorf("MemoryStore.Put: key ID is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("MemoryStore.Put: ttl must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.purgeLocked(now)

	// Create a copy to avoid external modifications
	valueCopy := append([]byte(nil), value...)
	s.items[key.String()] = memoryItem{value: valueCopy, expiresAt: now.Add(ttl)}
	return nil
}

// Get returns a copy of the value, or ErrNotFound once it has expired.
func (s *MemoryStore) Get(ctx context.Context, key Key) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[key.String()]
	if !ok || !s.now().Before(item.expiresAt) {
		return nil, ErrNotFound
	}
	return append([]byte(nil), item.value...), nil
}

// Remove deletes key. Removing an absent key is not an error.
func (s *MemoryStore) Remove(ctx context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key.String())
	return nil
}

// Len reports the number of unexpired items.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	n := 0
	for _, item := range s.items {
		if now.Before(item.expiresAt) {
			n++
		}
	}
	return n
}

func (s *MemoryStore) purgeLocked(now time.Time) {
	for k, item := range s.items {
		if !now.Before(item.expiresAt) {
			delete(s.items, k)
		}
	}
}
