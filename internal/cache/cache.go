// Package cache remembers which local recordings were already uploaded to
// the model provider so repeated analyses of the same file skip the upload.
package cache

import (
	"context"
	"sync"
	"time"
)

type Entry struct {
	Name     string    `json:"name"`
	URI      string    `json:"uri"`
	MIMEType string    `json:"mime_type"`
	StoredAt time.Time `json:"stored_at"`
}

type Store interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Put(ctx context.Context, key string, entry Entry, ttl time.Duration) error
}

type Nop struct{}

func (Nop) Get(context.Context, string) (*Entry, bool, error) {
	return nil, false, nil
}

func (Nop) Put(context.Context, string, Entry, time.Duration) error {
	return nil
}

type memoryItem struct {
	entry     Entry
	expiresAt time.Time
}

type Memory struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) (*Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	if !item.expiresAt.IsZero() && !m.now().Before(item.expiresAt) {
		delete(m.items, key)
		return nil, false, nil
	}
	entry := item.entry
	return &entry, true, nil
}

func (m *Memory) Put(_ context.Context, key string, entry Entry, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.StoredAt.IsZero() {
		entry.StoredAt = m.now()
	}
	item := memoryItem{entry: entry}
	if ttl > 0 {
		item.expiresAt = m.now().Add(ttl)
	}
	m.items[key] = item
	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
