package session

import (
	"sync"
)

// Storage is a durable string key/value capability, the equivalent of
// browser local storage. SetItems and RemoveItems apply all keys or none.
type Storage interface {
	GetItem(key string) (value string, ok bool, err error)
	SetItems(items map[string]string) error
	RemoveItems(keys ...string) error
	Close() error
}

// MemoryStorage keeps items in process memory.
type MemoryStorage struct {
	mu    sync.Mutex
	items map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

func (m *MemoryStorage) GetItem(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MemoryStorage) SetItems(items map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range items {
		m.items[k] = v
	}
	return nil
}

func (m *MemoryStorage) RemoveItems(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

func (m *MemoryStorage) Close() error { return nil }
