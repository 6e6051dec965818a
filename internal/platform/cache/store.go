// Package cache holds the cache collaborator used around the nutrition core:
// a key/value Store with in-memory and Redis backends, and the Invalidator
// signal emitted when cached views go stale.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrMiss is returned by Store.Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is a byte-oriented cache backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Key joins parts into a namespaced cache key.
func Key(parts ...string) string {
	return "ayurdiet:" + strings.Join(parts, ":")
}

// GetJSON reads key and decodes it into a T.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, error) {
	var out T
	data, err := s.Get(ctx, key)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, err
	}
	return out, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, data, ttl)
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is a thread-safe in-memory Store with lazy expiration. It is
// used when no Redis URL is configured and in tests.
type MemoryStore struct {
	entries map[string]*memoryEntry
	mu      sync.RWMutex
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// Get returns ErrMiss for absent keys and deletes expired ones.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrMiss
	}
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, ErrMiss
	}
	out := make([]byte, len(entry.data))
	copy(out, entry.data)
	return out, nil
}

// Set stores value; a non-positive ttl never expires.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	data := make([]byte, len(value))
	copy(data, value)
	entry := &memoryEntry{data: data}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.entries, k)
	}
	return nil
}

// Len reports the number of stored entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// StartCleanup runs a background goroutine that periodically removes expired
// entries. It stops when the context is cancelled.
func (s *MemoryStore) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, v := range s.entries {
		if !v.expiresAt.IsZero() && now.After(v.expiresAt) {
			delete(s.entries, k)
		}
	}
}
