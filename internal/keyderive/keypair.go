// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package keyderive

import (
	"crypto/ed25519"
	"errors"
	"runtime"
	"sync"

	"github.com/aplane-algo/apbridge/internal/crypto"
)

// ErrKeypairDestroyed is returned when a destroyed keypair is used.
var ErrKeypairDestroyed = errors.New("keypair destroyed")

// Keypair is a transient Ed25519 keypair derived from a vault.
// It must be destroyed once the signing operation completes. If the caller
// forgets, the secret is zeroed when the Keypair is garbage collected.
type Keypair struct {
	mu     sync.RWMutex
	secret ed25519.PrivateKey
	public ed25519.PublicKey
}

func newKeypair(seed []byte) *Keypair {
	secret := ed25519.NewKeyFromSeed(seed)
	kp := &Keypair{
		secret: secret,
		public: append(ed25519.PublicKey(nil), secret[ed25519.SeedSize:]...),
	}
	runtime.AddCleanup(kp, crypto.ZeroBytes, []byte(secret))
	return kp
}

// PublicKey returns a copy of the 32-byte public key.
// It remains available after Destroy.
func (k *Keypair) PublicKey() ed25519.PublicKey {
	return append(ed25519.PublicKey(nil), k.public...)
}

// WithSecret runs fn with the 64-byte secret key. The slice must not be
// retained after fn returns.
func (k *Keypair) WithSecret(fn func(ed25519.PrivateKey) error) error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.secret == nil {
		return ErrKeypairDestroyed
	}
	return fn(k.secret)
}

// Destroy zeroes the secret key. Calling it more than once is safe.
func (k *Keypair) Destroy() {
	k.mu.Lock()
	defer k.mu.Unlock()
	crypto.ZeroBytes(k.secret)
	k.secret = nil
}

// Destroyed reports whether Destroy has been called.
func (k *Keypair) Destroyed() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.secret == nil
}
