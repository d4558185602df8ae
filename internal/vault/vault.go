// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package vault loads, validates and exports password-encrypted wallet seeds.
//
// A vault never holds plaintext key material. The seed can only be recovered
// by stretching the user's password with VaultSalt and opening EncryptedBlob
// with the stored Nonce (see package keyderive). Vaults are immutable once
// written; replacing one is an explicit migration.
package vault

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aplane-algo/apbridge/internal/crypto"
)

// Vault format versions
const (
	// VersionLegacy vaults predate per-encryption nonces and are rejected.
	VersionLegacy = 1

	// VersionPBKDF2 vaults use PBKDF2-HMAC-SHA256 and AES-256-GCM.
	VersionPBKDF2 = 2

	// VersionArgon2 vaults use Argon2id and XChaCha20-Poly1305.
	VersionArgon2 = 3

	// DefaultVersion is the version written by Seal unless overridden.
	DefaultVersion = VersionPBKDF2
)

var (
	// ErrMalformedVault indicates a vault whose fields are missing,
	// undecodable, or of an unknown version.
	ErrMalformedVault = errors.New("malformed vault")

	// ErrLegacyVaultFormat indicates a vault without a stored nonce.
	// Such vaults cannot be decrypted safely and must be re-created.
	ErrLegacyVaultFormat = errors.New("legacy vault format: no stored nonce, re-create the vault")
)

// Vault is an encrypted wallet seed and the parameters needed to open it.
type Vault struct {
	EncryptedBlob []byte
	VaultSalt     []byte
	AuthSalt      []byte
	Nonce         []byte
	Version       int
}

// exportedVault is the persisted JSON form. Pointer fields distinguish an
// absent field from an empty one.
type exportedVault struct {
	EncryptedBlob *string `json:"encrypted_blob"`
	Nonce         *string `json:"nonce"`
	VaultSalt     *string `json:"vault_salt"`
	AuthSalt      *string `json:"auth_salt"`
	VaultVersion  *int    `json:"vault_version,omitempty"`
}

// Load parses an exported vault. It returns ErrMalformedVault for structural
// problems and ErrLegacyVaultFormat for vaults without a nonce. No decryption
// is attempted.
func Load(serialized []byte) (*Vault, error) {
	var raw exportedVault
	if err := json.Unmarshal(serialized, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedVault, err)
	}

	if raw.EncryptedBlob == nil || *raw.EncryptedBlob == "" {
		return nil, fmt.Errorf("%w: missing encrypted_blob", ErrMalformedVault)
	}
	if raw.VaultSalt == nil || *raw.VaultSalt == "" {
		return nil, fmt.Errorf("%w: missing vault_salt", ErrMalformedVault)
	}

	v := &Vault{}
	var err error
	if v.EncryptedBlob, err = base64.StdEncoding.DecodeString(*raw.EncryptedBlob); err != nil {
		return nil, fmt.Errorf("%w: encrypted_blob is not base64", ErrMalformedVault)
	}
	if v.VaultSalt, err = hex.DecodeString(*raw.VaultSalt); err != nil {
		return nil, fmt.Errorf("%w: vault_salt is not hex", ErrMalformedVault)
	}
	if raw.AuthSalt != nil && *raw.AuthSalt != "" {
		if v.AuthSalt, err = hex.DecodeString(*raw.AuthSalt); err != nil {
			return nil, fmt.Errorf("%w: auth_salt is not hex", ErrMalformedVault)
		}
	}
	if raw.Nonce != nil && *raw.Nonce != "" {
		if v.Nonce, err = hex.DecodeString(*raw.Nonce); err != nil {
			return nil, fmt.Errorf("%w: nonce is not hex", ErrMalformedVault)
		}
	}

	switch {
	case raw.VaultVersion != nil:
		v.Version = *raw.VaultVersion
	case len(v.Nonce) > 0:
		v.Version = VersionPBKDF2
	default:
		v.Version = VersionLegacy
	}

	if err := v.Check(); err != nil {
		return nil, err
	}
	return v, nil
}

// Check validates the vault's structure without decrypting it.
func (v *Vault) Check() error {
	if v == nil {
		return fmt.Errorf("%w: nil vault", ErrMalformedVault)
	}
	switch v.Version {
	case VersionLegacy:
		return ErrLegacyVaultFormat
	case VersionPBKDF2, VersionArgon2:
	default:
		return fmt.Errorf("%w: unknown vault_version %d", ErrMalformedVault, v.Version)
	}
	if len(v.EncryptedBlob) == 0 {
		return fmt.Errorf("%w: missing encrypted_blob", ErrMalformedVault)
	}
	if len(v.VaultSalt) == 0 {
		return fmt.Errorf("%w: missing vault_salt", ErrMalformedVault)
	}
	if len(v.Nonce) == 0 {
		return ErrLegacyVaultFormat
	}
	suite, _ := v.Suite(DefaultParams())
	if len(v.Nonce) != suite.NonceSize() {
		return fmt.Errorf("%w: nonce is %d bytes, version %d needs %d",
			ErrMalformedVault, len(v.Nonce), v.Version, suite.NonceSize())
	}
	return nil
}

// Export serializes the vault in its persisted JSON form.
func Export(v *Vault) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil vault", ErrMalformedVault)
	}
	blob := base64.StdEncoding.EncodeToString(v.EncryptedBlob)
	vaultSalt := hex.EncodeToString(v.VaultSalt)
	authSalt := hex.EncodeToString(v.AuthSalt)
	version := v.Version

	out := exportedVault{
		EncryptedBlob: &blob,
		VaultSalt:     &vaultSalt,
		AuthSalt:      &authSalt,
		VaultVersion:  &version,
	}
	if len(v.Nonce) > 0 {
		nonce := hex.EncodeToString(v.Nonce)
		out.Nonce = &nonce
	}
	return json.MarshalIndent(out, "", "  ")
}

// Params holds the KDF cost parameters used to open or seal a vault.
// Production code uses DefaultParams; tests lower the costs.
type Params struct {
	PBKDF2Iterations int
	Argon2           crypto.Argon2XChaCha
}

// DefaultParams returns the fixed production parameters for every version.
func DefaultParams() Params {
	return Params{
		PBKDF2Iterations: crypto.PBKDF2Iterations,
		Argon2:           crypto.NewArgon2XChaCha(),
	}
}

// Suite returns the cipher suite for the vault's version.
func (v *Vault) Suite(p Params) (crypto.Suite, error) {
	switch v.Version {
	case VersionPBKDF2:
		return crypto.PBKDF2AESGCM{Iterations: p.PBKDF2Iterations}, nil
	case VersionArgon2:
		return p.Argon2, nil
	case VersionLegacy:
		return nil, ErrLegacyVaultFormat
	default:
		return nil, fmt.Errorf("%w: unknown vault_version %d", ErrMalformedVault, v.Version)
	}
}

// Summary describes a vault for display. It never includes key material.
type Summary struct {
	Version   int    `json:"vault_version"`
	Suite     string `json:"suite"`
	BlobBytes int    `json:"blob_bytes"`
	SaltBytes int    `json:"salt_bytes"`
	HasAuth   bool   `json:"has_auth_salt"`
}

// Summarize returns display metadata for the vault.
func (v *Vault) Summarize() Summary {
	s := Summary{
		Version:   v.Version,
		BlobBytes: len(v.EncryptedBlob),
		SaltBytes: len(v.VaultSalt),
		HasAuth:   len(v.AuthSalt) > 0,
	}
	if suite, err := v.Suite(DefaultParams()); err == nil {
		s.Suite = suite.Name()
	}
	return s
}
