package store

import (
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is a non-durable Store used when no database path is
// configured, and in tests.
type MemoryStore struct {
	notifier
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(key string, out any) (bool, error) {
	s.mu.RLock()
	value, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(value, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *MemoryStore) Set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	s.mu.Lock()
	s.data[key] = data
	s.mu.Unlock()

	s.publish(Change{Key: key})
	return nil
}

func (s *MemoryStore) Remove(key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()

	s.publish(Change{Key: key, Removed: true})
	return nil
}

func (s *MemoryStore) Close() error {
	s.closeAll()
	return nil
}
