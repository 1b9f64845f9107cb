package cache

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// Deleter removes keys.
type Deleter interface {
	Delete(ctx context.Context, keys ...string) error
}

// Store is the key-value substrate for persisted submission markers,
// session locks and in-progress markers. A zero ttl means no expiry.
type Store interface {
	Deleter
	GetString(ctx context.Context, key string) (string, error)
	SetString(ctx context.Context, key string, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
}

var (
	_ Store = (*CacheHelper)(nil)
	_ Store = (*MemoryStore)(nil)
)

// NewStore returns the Redis-backed helper when it has a client, and an
// in-process store otherwise.
func NewStore(helper *CacheHelper) Store {
	if helper.Available() {
		return helper
	}
	return NewMemoryStore()
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is a single-process Store. Expired entries are dropped lazily.
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (m *MemoryStore) lookup(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if e.expired(m.now()) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (m *MemoryStore) entry(value string, ttl time.Duration) memoryEntry {
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	return e
}

func (m *MemoryStore) GetString(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok {
		return "", ErrCacheNotFound
	}
	return e.value, nil
}

func (m *MemoryStore) SetString(_ context.Context, key string, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = m.entry(value, ttl)
	return nil
}

func (m *MemoryStore) SetNX(_ context.Context, key string, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lookup(key); ok {
		return false, nil
	}
	m.entries[key] = m.entry(value, ttl)
	return true, nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.lookup(key)
	return ok, nil
}

// ScanKeys matches keys with Redis-style globs (*, ?, [...]).
func (m *MemoryStore) ScanKeys(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for k := range m.entries {
		if _, ok := m.lookup(k); !ok {
			continue
		}
		if globMatch(pattern, k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// globMatch treats '/' as an ordinary character, unlike path.Match.
func globMatch(pattern, key string) bool {
	const sep = "\x00"
	ok, err := path.Match(strings.ReplaceAll(pattern, "/", sep), strings.ReplaceAll(key, "/", sep))
	return err == nil && ok
}
