// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package request

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NonceSource produces per-signer unique nonces.
type NonceSource interface {
	Next() (string, error)
}

// UUIDNonces issues random version 4 UUIDs.
type UUIDNonces struct{}

func (UUIDNonces) Next() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ULIDNonces issues monotonic ULIDs. Nonces from one source are strictly
// increasing even when requested within the same millisecond.
type ULIDNonces struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// NewULIDNonces returns a monotonic ULID source seeded from crypto/rand.
func NewULIDNonces() *ULIDNonces {
	return &ULIDNonces{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

func (s *ULIDNonces) Next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(s.now()), s.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Compile-time interface checks
var (
	_ NonceSource = UUIDNonces{}
	_ NonceSource = (*ULIDNonces)(nil)
)
