// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package vault

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/aplane-algo/apbridge/internal/crypto"
)

// SealOption configures Seal.
type SealOption func(*sealConfig)

type sealConfig struct {
	version   int
	params    Params
	vaultSalt []byte
	hexSeed   bool
}

// WithVersion selects the vault format version (VersionPBKDF2 or VersionArgon2).
func WithVersion(version int) SealOption {
	return func(c *sealConfig) { c.version = version }
}

// WithParams overrides the KDF cost parameters. Vaults sealed with
// non-default parameters can only be opened with the same parameters.
func WithParams(p Params) SealOption {
	return func(c *sealConfig) { c.params = p }
}

// WithVaultSalt fixes the vault salt instead of generating a random one.
func WithVaultSalt(salt []byte) SealOption {
	return func(c *sealConfig) { c.vaultSalt = salt }
}

// WithHexSeed stores the seed as 64 hex characters instead of 32 raw bytes,
// the layout written by browser wallets.
func WithHexSeed() SealOption {
	return func(c *sealConfig) { c.hexSeed = true }
}

// Seal encrypts a 32-byte Ed25519 seed under password and returns a new vault
// with fresh auth salt and nonce.
func Seal(seed, password []byte, opts ...SealOption) (*Vault, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	if len(password) == 0 {
		return nil, fmt.Errorf("password must not be empty")
	}

	cfg := sealConfig{version: DefaultVersion, params: DefaultParams()}
	for _, opt := range opts {
		opt(&cfg)
	}

	v := &Vault{Version: cfg.version}
	suite, err := v.Suite(cfg.params)
	if err != nil {
		return nil, err
	}

	if cfg.vaultSalt != nil {
		v.VaultSalt = append([]byte(nil), cfg.vaultSalt...)
	} else if v.VaultSalt, err = crypto.RandomBytes(crypto.SaltLen); err != nil {
		return nil, err
	}
	if v.AuthSalt, err = crypto.RandomBytes(crypto.SaltLen); err != nil {
		return nil, err
	}
	if v.Nonce, err = crypto.RandomBytes(suite.NonceSize()); err != nil {
		return nil, err
	}

	plaintext := append([]byte(nil), seed...)
	if cfg.hexSeed {
		crypto.ZeroBytes(plaintext)
		plaintext = make([]byte, hex.EncodedLen(len(seed)))
		hex.Encode(plaintext, seed)
	}
	defer crypto.ZeroBytes(plaintext)

	key := suite.DeriveKey(password, v.VaultSalt)
	defer crypto.ZeroBytes(key)

	if v.EncryptedBlob, err = suite.Seal(key, v.Nonce, plaintext); err != nil {
		return nil, fmt.Errorf("failed to encrypt seed: %w", err)
	}
	return v, nil
}
