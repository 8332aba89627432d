package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "medsage:session:"

// RedisStore keeps sessions in Redis with a TTL so they are shared
// across instances and expire server-side.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Data, error) {
	raw, err := s.rdb.Get(ctx, redisKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session get: %w", err)
	}
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("session decode: %w", err)
	}
	return &d, nil
}

func (s *RedisStore) Set(ctx context.Context, id string, d *Data, ttl time.Duration) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("session encode: %w", err)
	}
	if err := s.rdb.Set(ctx, redisKeyPrefix+id, raw, ttl).Err(); err != nil {
		return fmt.Errorf("session set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, redisKeyPrefix+id).Err()
}

// MemoryStore is the single-instance fallback when Redis is not
// configured. Expired entries are dropped lazily on read.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
}

type memoryEntry struct {
	data    Data
	expires time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expires) {
		delete(s.sessions, id)
		return nil, nil
	}
	d := entry.data
	return &d, nil
}

func (s *MemoryStore) Set(_ context.Context, id string, d *Data, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = memoryEntry{data: *d, expires: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
