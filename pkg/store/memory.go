package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is a process-local store implementing KV and MetaStore. It is safe
// for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	options map[string]any
	meta    map[string]map[string]any
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		options: make(map[string]any),
		meta:    make(map[string]map[string]any),
	}
}

func (m *Memory) Get(ctx context.Context, key string) (any, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.options[key]
	return value, ok, nil
}

func (m *Memory) Set(ctx context.Context, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.options[key] = value
	m.mu.Unlock()
	return nil
}

func (m *Memory) GetMeta(ctx context.Context, entityID, key string) (any, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.meta[entityID][key]
	return value, ok, nil
}

func (m *Memory) SetMeta(ctx context.Context, entityID, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.meta[entityID]
	if !ok {
		bucket = make(map[string]any)
		m.meta[entityID] = bucket
	}
	bucket[key] = value
	return nil
}

// Keys returns the stored option keys, sorted.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.options))
	for key := range m.options {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
