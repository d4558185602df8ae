// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeyLen is the size of every derived symmetric key (AES-256, XChaCha20).
	KeyLen = 32

	// SaltLen is the size of freshly generated vault and auth salts.
	SaltLen = 16

	// PBKDF2Iterations is the iteration count for version 2 vaults.
	PBKDF2Iterations = 100_000

	// Argon2id parameters for version 3 vaults
	argon2Time    = 2
	argon2Memory  = 64 * 1024 // 64 MiB
	argon2Threads = 1
)

// ErrOpenFailed is returned when an AEAD rejects a ciphertext.
// It carries no detail about which check failed.
var ErrOpenFailed = errors.New("authenticated decryption failed")

// Suite is a password KDF paired with an AEAD cipher.
// Vault versions map onto suites; see vault.Vault.Suite.
type Suite interface {
	// Name identifies the suite in logs and `vault inspect` output.
	Name() string

	// NonceSize is the AEAD nonce length in bytes.
	NonceSize() int

	// DeriveKey stretches password with salt into a KeyLen-byte key.
	// The caller zeroes the result.
	DeriveKey(password, salt []byte) []byte

	// Seal encrypts plaintext under key and nonce.
	Seal(key, nonce, plaintext []byte) ([]byte, error)

	// Open authenticates and decrypts ciphertext.
	Open(key, nonce, ciphertext []byte) ([]byte, error)
}

// PBKDF2AESGCM is PBKDF2-HMAC-SHA256 followed by AES-256-GCM (12-byte nonce).
type PBKDF2AESGCM struct {
	Iterations int
}

// NewPBKDF2AESGCM returns the suite with the production iteration count.
func NewPBKDF2AESGCM() PBKDF2AESGCM {
	return PBKDF2AESGCM{Iterations: PBKDF2Iterations}
}

func (s PBKDF2AESGCM) Name() string {
	return fmt.Sprintf("pbkdf2-sha256(%d)+aes-256-gcm", s.iterations())
}

func (PBKDF2AESGCM) NonceSize() int { return 12 }

func (s PBKDF2AESGCM) DeriveKey(password, salt []byte) []byte {
	return pbkdf2.Key(password, salt, s.iterations(), KeyLen, sha256.New)
}

func (s PBKDF2AESGCM) Seal(key, nonce, plaintext []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", aead.NonceSize(), len(nonce))
	}
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

func (s PBKDF2AESGCM) Open(key, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, ErrOpenFailed
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrOpenFailed
	}
	return plaintext, nil
}

func (s PBKDF2AESGCM) iterations() int {
	if s.Iterations <= 0 {
		return PBKDF2Iterations
	}
	return s.Iterations
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}

// Argon2XChaCha is Argon2id followed by XChaCha20-Poly1305 (24-byte nonce).
type Argon2XChaCha struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// NewArgon2XChaCha returns the suite with the production cost parameters.
func NewArgon2XChaCha() Argon2XChaCha {
	return Argon2XChaCha{Time: argon2Time, Memory: argon2Memory, Threads: argon2Threads}
}

func (s Argon2XChaCha) Name() string {
	return fmt.Sprintf("argon2id(t=%d,m=%dKiB,p=%d)+xchacha20-poly1305", s.Time, s.Memory, s.Threads)
}

func (Argon2XChaCha) NonceSize() int { return chacha20poly1305.NonceSizeX }

func (s Argon2XChaCha) DeriveKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, s.Time, s.Memory, s.Threads, KeyLen)
}

func (s Argon2XChaCha) Seal(key, nonce, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", aead.NonceSize(), len(nonce))
	}
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

func (s Argon2XChaCha) Open(key, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	if len(nonce) != aead.NonceSize() {
		return nil, ErrOpenFailed
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrOpenFailed
	}
	return plaintext, nil
}

// RandomBytes returns n bytes from crypto/rand.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return b, nil
}

// Compile-time interface checks
var (
	_ Suite = PBKDF2AESGCM{}
	_ Suite = Argon2XChaCha{}
)
