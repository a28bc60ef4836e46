package session

import (
	"context"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
)

type memoryEntry struct {
	data      Data
	expiresAt time.Time
}

// MemoryBackend keeps sessions in a bounded LRU. Single-instance only.
type MemoryBackend struct {
	mu    sync.Mutex
	cache *lru.Cache
	now   func() time.Time
}

// NewMemoryBackend creates a backend holding at most maxEntries sessions;
// the least recently used session is evicted first.
func NewMemoryBackend(maxEntries int) *MemoryBackend {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &MemoryBackend{cache: lru.New(maxEntries), now: time.Now}
}

func (b *MemoryBackend) Save(ctx context.Context, id string, data Data, ttl time.Duration) error {
	b.mu.Lock()
	b.cache.Add(id, memoryEntry{data: data, expiresAt: b.now().Add(ttl)})
	b.mu.Unlock()
	return nil
}

func (b *MemoryBackend) Load(ctx context.Context, id string) (*Data, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.cache.Get(id)
	if !ok {
		return nil, ErrNoSession
	}
	entry := v.(memoryEntry)
	if b.now().After(entry.expiresAt) {
		b.cache.Remove(id)
		return nil, ErrNoSession
	}
	data := entry.data
	return &data, nil
}

func (b *MemoryBackend) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	b.cache.Remove(id)
	b.mu.Unlock()
	return nil
}
