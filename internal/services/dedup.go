package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RefRegistry is the process-wide set of transaction references with a
// verification in progress or accepted. Claim is the critical section
// of the verifier: for a given reference, exactly one caller gets
// claimed=true. The registry is a fast-path guard with a TTL; the
// durable guard is the unique tx_ref on ledger_transactions.
type RefRegistry interface {
	Claim(ctx context.Context, ref string) (bool, error)
	Release(ctx context.Context, ref string) error
}

const (
	refKeyPrefix = "engine:tx:"
	refKeyTTL    = 7 * 24 * time.Hour
)

type RedisRefRegistry struct {
	client *redis.Client
}

func NewRedisRefRegistry(client *redis.Client) *RedisRefRegistry {
	return &RedisRefRegistry{client: client}
}

func (r *RedisRefRegistry) Claim(ctx context.Context, ref string) (bool, error) {
	return r.client.SetNX(ctx, refKeyPrefix+ref, "1", refKeyTTL).Result()
}

func (r *RedisRefRegistry) Release(ctx context.Context, ref string) error {
	return r.client.Del(ctx, refKeyPrefix+ref).Err()
}
