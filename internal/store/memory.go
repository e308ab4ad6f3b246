package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Adapter. Used by tests and the "memory" driver.
type Memory struct {
	mu   sync.Mutex
	docs map[string]Document
}

var (
	_ Adapter    = (*Memory)(nil)
	_ Revisioner = (*Memory)(nil)
)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]Document)}
}

// Get returns a copy of the document stored under key.
func (m *Memory) Get(ctx context.Context, key string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.docs[key]
	if !ok {
		return Document{}, ErrNotFound
	}
	d.Value = append([]byte(nil), d.Value...)
	return d, nil
}

// Revision returns the stored revision of key, 0 when absent.
func (m *Memory) Revision(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[key].Revision, nil
}

// CompareAndSwap writes value if the stored revision equals expected.
func (m *Memory) CompareAndSwap(ctx context.Context, key string, expected int64, value []byte, meta WriteMeta) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.docs[key]
	if cur.Revision != expected {
		return false, nil
	}
	m.docs[key] = Document{
		Key:       key,
		Value:     append([]byte(nil), value...),
		Revision:  expected + 1,
		UpdatedAt: time.Now().UTC(),
		UpdatedBy: meta.User,
		Origin:    meta.Origin,
	}
	return true, nil
}
