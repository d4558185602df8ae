// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package verifier

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces ledger keys in a shared Redis.
const DefaultRedisKeyPrefix = "apbridge:nonce:"

// RedisLedger is a NonceLedger shared by several verifier instances.
// Expiry is delegated to Redis key TTLs.
type RedisLedger struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLedger wraps client. An empty prefix selects DefaultRedisKeyPrefix.
func NewRedisLedger(client redis.UniversalClient, prefix string) *RedisLedger {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisLedger{client: client, prefix: prefix}
}

func (r *RedisLedger) key(signer, nonce string) string {
	return r.prefix + signer + ":" + nonce
}

func (r *RedisLedger) Seen(ctx context.Context, signer, nonce string, _ time.Time) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(signer, nonce)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisLedger) Reserve(ctx context.Context, signer, nonce string, now, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(now)
	if ttl < time.Second {
		ttl = time.Second
	}
	ok, err := r.client.SetNX(ctx, r.key(signer, nonce), expiresAt.Unix(), ttl).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	return ok, nil
}

// Sweep is a no-op; Redis expires keys itself.
func (r *RedisLedger) Sweep(context.Context, time.Time) (int, error) { return 0, nil }

func (r *RedisLedger) Close() error { return r.client.Close() }

var _ NonceLedger = (*RedisLedger)(nil)
