package regen

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Versioner stamps regeneration requests so a pass can tell when a newer
// request for the same business has arrived.
type Versioner interface {
	// Next issues a new, strictly greater stamp for the business.
	Next(ctx context.Context, businessID int64) (int64, error)
	// Current returns the latest issued stamp.
	Current(ctx context.Context, businessID int64) (int64, error)
}

// LocalVersioner keeps stamps in memory; enough for a single instance.
type LocalVersioner struct {
	mu       sync.Mutex
	versions map[int64]int64
}

func NewLocalVersioner() *LocalVersioner {
	return &LocalVersioner{versions: make(map[int64]int64)}
}

func (v *LocalVersioner) Next(_ context.Context, businessID int64) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.versions[businessID]++
	return v.versions[businessID], nil
}

func (v *LocalVersioner) Current(_ context.Context, businessID int64) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.versions[businessID], nil
}

// RedisVersioner shares stamps between instances through INCR.
type RedisVersioner struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisVersioner(client redis.UniversalClient, prefix string) *RedisVersioner {
	if prefix == "" {
		prefix = "reservo:regen:version"
	}
	return &RedisVersioner{client: client, prefix: prefix}
}

func (v *RedisVersioner) key(businessID int64) string {
	return fmt.Sprintf("%s:%d", v.prefix, businessID)
}

func (v *RedisVersioner) Next(ctx context.Context, businessID int64) (int64, error) {
	n, err := v.client.Incr(ctx, v.key(businessID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}
	return n, nil
}

func (v *RedisVersioner) Current(ctx context.Context, businessID int64) (int64, error) {
	n, err := v.client.Get(ctx, v.key(businessID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get: %w", err)
	}
	return n, nil
}
