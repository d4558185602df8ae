// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package verifier

import (
	"context"
	"sync"
	"time"
)

// NonceLedger records accepted nonces per signer until they can no longer
// pass the freshness check.
type NonceLedger interface {
	// Seen reports whether nonce has been reserved for signer and has not
	// expired as of now.
	Seen(ctx context.Context, signer, nonce string, now time.Time) (bool, error)

	// Reserve atomically records nonce for signer until expiresAt. It returns
	// false if the nonce was already reserved.
	Reserve(ctx context.Context, signer, nonce string, now, expiresAt time.Time) (bool, error)

	// Sweep removes entries that expired before now and returns how many.
	Sweep(ctx context.Context, now time.Time) (int, error)

	// Close releases the ledger's resources.
	Close() error
}

type ledgerKey struct {
	signer string
	nonce  string
}

// MemoryLedger is an in-process NonceLedger. Its contents are lost on
// restart, so a restarted verifier accepts replays for up to one window.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[ledgerKey]time.Time
}

// NewMemoryLedger returns an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[ledgerKey]time.Time)}
}

func (m *MemoryLedger) Seen(_ context.Context, signer, nonce string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.entries[ledgerKey{signer, nonce}]
	return ok && now.Before(exp), nil
}

func (m *MemoryLedger) Reserve(_ context.Context, signer, nonce string, now, expiresAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ledgerKey{signer, nonce}
	if exp, ok := m.entries[key]; ok && now.Before(exp) {
		return false, nil
	}
	m.entries[key] = expiresAt
	return true, nil
}

func (m *MemoryLedger) Sweep(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, exp := range m.entries {
		if !now.Before(exp) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryLedger) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryLedger) Close() error { return nil }

var _ NonceLedger = (*MemoryLedger)(nil)
