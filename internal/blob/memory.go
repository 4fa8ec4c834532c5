package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryStore holds named in-memory objects. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Put stores a copy of data under name.
func (m *MemoryStore) Put(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = bytes.Clone(data)
}

// Open returns the object stored under name.
func (m *MemoryStore) Open(name string) (Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[name]
	if !ok {
		return nil, fmt.Errorf("open mem://%s: %w", name, ErrNotFound)
	}
	return NewMemory(data), nil
}

// Memory is an Object backed by a byte slice.
type Memory struct {
	data []byte
}

// NewMemory returns an Object over data. data must not be modified afterwards.
func NewMemory(data []byte) *Memory {
	return &Memory{data: data}
}

func (m *Memory) NewRangeReader(_ context.Context, offset, length int64) (io.ReadCloser, error) {
	end := clampRange(offset, length, int64(len(m.data)))
	if end < 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	return io.NopCloser(bytes.NewReader(m.data[offset : end+1])), nil
}

func (m *Memory) Size(context.Context) (int64, error) {
	return int64(len(m.data)), nil
}

func (m *Memory) Close() error {
	return nil
}
