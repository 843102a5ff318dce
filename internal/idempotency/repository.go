// Package idempotency stores responses keyed by the client's Idempotency-Key
// header so a retried request replays the first outcome.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix   = "idempotency:"
	claimPrefix = "idempotency:claim:"
)

type CachedResponse struct {
	StatusCode int    `json:"status_code"`
	Body       []byte `json:"body"`
}

type Repository interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, key string) (*CachedResponse, error)
	Save(ctx context.Context, key string, response CachedResponse, ttl time.Duration) error
	// Claim marks key as in flight. It reports false when another request
	// holds the claim. Claims expire after ttl.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type RedisRepository struct {
	client *redis.Client
}

func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

func (r *RedisRepository) Get(ctx context.Context, key string) (*CachedResponse, error) {
	val, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency key: %w", err)
	}

	var resp CachedResponse
	if err := json.Unmarshal(val, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached response: %w", err)
	}
	return &resp, nil
}

func (r *RedisRepository) Save(ctx context.Context, key string, response CachedResponse, ttl time.Duration) error {
	b, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	return r.client.Set(ctx, keyPrefix+key, b, ttl).Err()
}

func (r *RedisRepository) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, claimPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	return ok, nil
}

func (r *RedisRepository) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, claimPrefix+key).Err()
}

// MemoryRepository is a process-local Repository for single-instance
// deployments without Redis.
type MemoryRepository struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	claims  map[string]time.Time
	now     func() time.Time
}

type memoryEntry struct {
	response  CachedResponse
	expiresAt time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		entries: make(map[string]memoryEntry),
		claims:  make(map[string]time.Time),
		now:     time.Now,
	}
}

func (r *MemoryRepository) Get(ctx context.Context, key string) (*CachedResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		return nil, nil
	}
	if r.now().After(e.expiresAt) {
		delete(r.entries, key)
		return nil, nil
	}
	resp := e.response
	return &resp, nil
}

func (r *MemoryRepository) Save(ctx context.Context, key string, response CachedResponse, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = memoryEntry{response: response, expiresAt: r.now().Add(ttl)}
	return nil
}

func (r *MemoryRepository) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if until, ok := r.claims[key]; ok && now.Before(until) {
		return false, nil
	}
	r.claims[key] = now.Add(ttl)
	return true, nil
}

func (r *MemoryRepository) Release(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.claims, key)
	return nil
}
