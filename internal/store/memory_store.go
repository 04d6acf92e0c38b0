package store

import (
	"context"
	"sync"

	"hq-entitlements/internal/model"
)

// memoryStore holds the serialised document in process memory. It goes
// through the same codec as the durable backends so copies never alias.
type memoryStore struct {
	mu       sync.RWMutex
	document []byte
}

// NewMemoryStore creates a store that forgets everything on restart.
func NewMemoryStore() Store {
	return &memoryStore{}
}

func (s *memoryStore) Backend() string {
	return BackendMemory
}

func (s *memoryStore) LoadAll(ctx context.Context) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders, err := decodeDocument(s.document)
	if err != nil {
		return nil, fail(OpLoad, BackendMemory, err, "parse order document")
	}
	return orders, nil
}

func (s *memoryStore) SaveAll(ctx context.Context, orders []model.Order) error {
	data, err := encodeDocument(orders)
	if err != nil {
		return fail(OpSave, BackendMemory, err, "marshal order document")
	}

	s.mu.Lock()
	s.document = data
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Close() error {
	return nil
}
