package persistence

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
)

// SlotStore is a durable string-keyed value store, one value per key.
type SlotStore interface {
	// Get returns the value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// NewSlotStore prefers Redis and falls back to process memory.
func NewSlotStore(r *Redis, prefix string) SlotStore {
	if r.Enabled() {
		return &RedisSlots{client: r.Client, prefix: prefix}
	}
	return NewMemorySlots()
}

// RedisSlots stores slots as plain Redis strings.
type RedisSlots struct {
	client *redis.Client
	prefix string
}

func (s *RedisSlots) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisSlots) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, s.prefix+key, value, 0).Err()
}

func (s *RedisSlots) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// MemorySlots keeps slots in process memory.
type MemorySlots struct {
	mu    sync.Mutex
	slots map[string]string
}

// NewMemorySlots builds an empty in-memory store.
func NewMemorySlots() *MemorySlots {
	return &MemorySlots{slots: make(map[string]string)}
}

func (s *MemorySlots) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.slots[key]
	return val, ok, nil
}

func (s *MemorySlots) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[key] = value
	return nil
}

func (s *MemorySlots) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, key)
	return nil
}
