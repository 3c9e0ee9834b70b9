package memory

import (
	"context"
	"sync"
)

// Store is an in-memory implementation of kvstore.KVStore
// Suitable for tests and one-shot builds that only write the trie file
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New creates a new in-memory KVStore
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Put stores a copy of value under key
func (s *Store) Put(ctx context.Context, key []byte, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[string(key)] = append([]byte{}, value...)
	return nil
}

// Get retrieves a value by key
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.data[string(key)]
	if !ok {
		return nil, nil
	}
	return append([]byte{}, val...), nil
}

// Delete removes a key-value pair
func (s *Store) Delete(ctx context.Context, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, string(key))
	return nil
}

// Len returns the number of stored keys
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data)
}

// Close releases any resources
func (s *Store) Close() error {
	return nil
}
