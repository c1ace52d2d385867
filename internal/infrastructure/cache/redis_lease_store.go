package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mxsuite/backend/internal/domain/sat"
)

// RedisJobLeaseStore implements the job lease port on Redis. Leases are
// SETNX keys with a TTL, so they work across instances and a crashed
// worker can never lock a request for longer than the TTL.
type RedisJobLeaseStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisJobLeaseStore creates a lease store with its own Redis client
func NewRedisJobLeaseStore(addr, password string, db int) (*RedisJobLeaseStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisJobLeaseStoreWithClient(client, ""), nil
}

// NewRedisJobLeaseStoreWithClient creates a store on an existing client.
// Useful for testing or when sharing a client across components.
func NewRedisJobLeaseStoreWithClient(client *redis.Client, keyPrefix string) *RedisJobLeaseStore {
	if keyPrefix == "" {
		keyPrefix = "sat:sync:lease:"
	}
	return &RedisJobLeaseStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Acquire implements sat.JobLeaseStore. The lease value records which
// action holds it, which helps when inspecting stuck requests by hand.
func (s *RedisJobLeaseStore) Acquire(ctx context.Context, requestID uuid.UUID, action sat.TriggerAction, ttl time.Duration) (bool, error) {
	acquired, err := s.client.SetNX(ctx, s.key(requestID), string(action), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire job lease: %w", err)
	}
	return acquired, nil
}

// Release implements sat.JobLeaseStore
func (s *RedisJobLeaseStore) Release(ctx context.Context, requestID uuid.UUID) error {
	if err := s.client.Del(ctx, s.key(requestID)).Err(); err != nil {
		return fmt.Errorf("failed to release job lease: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisJobLeaseStore) Close() error {
	return s.client.Close()
}

func (s *RedisJobLeaseStore) key(requestID uuid.UUID) string {
	return s.keyPrefix + requestID.String()
}

// Ensure RedisJobLeaseStore implements JobLeaseStore
var _ sat.JobLeaseStore = (*RedisJobLeaseStore)(nil)
