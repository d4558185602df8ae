// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aplane-algo/apbridge/internal/fsutil"
	"github.com/aplane-algo/apbridge/internal/util"
	"github.com/aplane-algo/apbridge/internal/verifier"

	"github.com/redis/go-redis/v9"
)

// openLedger opens the nonce ledger named by cfg.Backend.
func openLedger(ctx context.Context, cfg util.LedgerConfig) (verifier.NonceLedger, error) {
	switch cfg.Backend {
	case "", "memory":
		return verifier.NewMemoryLedger(), nil

	case "leveldb":
		if err := fsutil.MkdirAll(cfg.Path); err != nil {
			return nil, err
		}
		return verifier.OpenLevelDBLedger(cfg.Path)

	case "redis":
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		return verifier.NewRedisLedger(client, cfg.RedisPrefix), nil

	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}
