// Package memory implements the ability to read and write chain data to
// memory using a map.
package memory

import (
	"sync"

	"github.com/utxolabs/blockchain/foundation/blockchain/storage"
)

// Memory represents the storage implementation for keeping chain data in
// memory. This implements the storage.Store interface.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New constructs a Memory value for use.
func New() (*Memory, error) {
	return &Memory{
		data: make(map[string][]byte),
	}, nil
}

// Get returns the value stored under the specified key.
func (m *Memory) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, exists := m.data[key]
	if !exists {
		return nil, storage.ErrNotFound
	}

	// Hand back a copy so callers can't mutate the stored bytes.
	data := make([]byte, len(value))
	copy(data, value)

	return data, nil
}

// Put stores the value under the specified key, replacing any existing value.
func (m *Memory) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data := make([]byte, len(value))
	copy(data, value)
	m.data[key] = data

	return nil
}

// Flush in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Flush() error {
	return nil
}

// Reset will clear out all the stored chain data.
func (m *Memory) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = make(map[string][]byte)
	return nil
}

// Close in this implementation has nothing to do.
func (m *Memory) Close() error {
	return nil
}
