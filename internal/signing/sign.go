// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package signing

import (
	"crypto/ed25519"
	"errors"
	"fmt"
)

var (
	// ErrInvalidSecretKey indicates a secret key that is not 64 bytes.
	ErrInvalidSecretKey = errors.New("invalid Ed25519 secret key")

	// ErrInvalidChain indicates the reserved chain ID 0.
	ErrInvalidChain = errors.New("invalid chain ID")
)

// Sign signs chain || message with a 64-byte Ed25519 secret key and returns
// the 64-byte signature.
func Sign(secret ed25519.PrivateKey, message []byte, chain ChainID) ([]byte, error) {
	if len(secret) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSecretKey, ed25519.PrivateKeySize, len(secret))
	}
	if !chain.Valid() {
		return nil, ErrInvalidChain
	}
	return ed25519.Sign(secret, DomainMessage(chain, message)), nil
}

// Verify reports whether sig is a valid signature of chain || message by pub.
// Malformed keys and signatures verify as false.
func Verify(pub ed25519.PublicKey, message, sig []byte, chain ChainID) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize || !chain.Valid() {
		return false
	}
	return ed25519.Verify(pub, DomainMessage(chain, message), sig)
}
