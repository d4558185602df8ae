// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package keyderive recovers an Ed25519 keypair from a vault and a password.
//
// Every failure between key stretching and seed decoding is reported as the
// single ErrDecryptionFailed so callers cannot distinguish a wrong password
// from a corrupted blob. Structural vault problems are reported by package
// vault before any key stretching happens.
package keyderive

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/aplane-algo/apbridge/internal/crypto"
	"github.com/aplane-algo/apbridge/internal/vault"

	"golang.org/x/crypto/pbkdf2"
)

var (
	// ErrDecryptionFailed is the generic failure for a wrong password,
	// a tampered vault, or a seed of the wrong shape.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrNoAuthSalt is returned by AuthKey for vaults without an auth salt.
	ErrNoAuthSalt = errors.New("vault has no auth salt")
)

// AuthKeyLen is the size of the login proof returned by AuthKey.
const AuthKeyLen = 32

// Deriver turns vault + password into a keypair.
type Deriver struct {
	params vault.Params
}

// Option configures a Deriver.
type Option func(*Deriver)

// WithParams replaces all KDF parameters.
func WithParams(p vault.Params) Option {
	return func(d *Deriver) { d.params = p }
}

// WithPBKDF2Iterations lowers or raises the PBKDF2 cost. Only tests and
// vaults sealed with the same override should use this.
func WithPBKDF2Iterations(n int) Option {
	return func(d *Deriver) { d.params.PBKDF2Iterations = n }
}

// New returns a Deriver using the production parameters unless overridden.
func New(opts ...Option) *Deriver {
	d := &Deriver{params: vault.DefaultParams()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Params returns the KDF parameters in use.
func (d *Deriver) Params() vault.Params { return d.params }

// Derive stretches password with the vault salt, opens the blob and builds
// the keypair. The caller must Destroy the result.
func (d *Deriver) Derive(v *vault.Vault, password []byte) (*Keypair, error) {
	if err := v.Check(); err != nil {
		return nil, err
	}
	suite, err := v.Suite(d.params)
	if err != nil {
		return nil, err
	}

	key := suite.DeriveKey(password, v.VaultSalt)
	defer crypto.ZeroBytes(key)

	plaintext, err := suite.Open(key, v.Nonce, v.EncryptedBlob)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	defer crypto.ZeroBytes(plaintext)

	seed, err := decodeSeed(plaintext)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	defer crypto.ZeroBytes(seed)

	return newKeypair(seed), nil
}

// decodeSeed accepts 32 raw bytes or 64 hex characters.
func decodeSeed(plaintext []byte) ([]byte, error) {
	switch len(plaintext) {
	case ed25519.SeedSize:
		return append([]byte(nil), plaintext...), nil
	case hex.EncodedLen(ed25519.SeedSize):
		seed := make([]byte, ed25519.SeedSize)
		if _, err := hex.Decode(seed, plaintext); err != nil {
			crypto.ZeroBytes(seed)
			return nil, err
		}
		return seed, nil
	default:
		return nil, fmt.Errorf("seed plaintext is %d bytes", len(plaintext))
	}
}

// DeriveContext runs Derive on its own goroutine so a slow KDF does not
// block the caller past ctx. If ctx ends first the late result is destroyed.
func (d *Deriver) DeriveContext(ctx context.Context, v *vault.Vault, password []byte) (*Keypair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		kp  *Keypair
		err error
	}

	pw := append([]byte(nil), password...)
	done := make(chan result, 1)
	go func() {
		defer crypto.ZeroBytes(pw)
		kp, err := d.Derive(v, pw)
		done <- result{kp, err}
	}()

	select {
	case r := <-done:
		return r.kp, r.err
	case <-ctx.Done():
		go func() {
			if r := <-done; r.kp != nil {
				r.kp.Destroy()
			}
		}()
		return nil, ctx.Err()
	}
}

// Check reports whether password opens the vault. The derived keypair is
// destroyed immediately.
func (d *Deriver) Check(v *vault.Vault, password []byte) error {
	kp, err := d.Derive(v, password)
	if err != nil {
		return err
	}
	kp.Destroy()
	return nil
}

// AuthKey derives the proof a client presents to the ledger service at
// login. It uses the auth salt, so it reveals nothing about the vault key.
func (d *Deriver) AuthKey(v *vault.Vault, password []byte) ([]byte, error) {
	if v == nil || len(v.AuthSalt) == 0 {
		return nil, ErrNoAuthSalt
	}
	iterations := d.params.PBKDF2Iterations
	if iterations <= 0 {
		iterations = crypto.PBKDF2Iterations
	}
	return pbkdf2.Key(password, v.AuthSalt, iterations, AuthKeyLen, sha256.New), nil
}
