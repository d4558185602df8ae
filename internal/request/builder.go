// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package request

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/aplane-algo/apbridge/internal/canonical"
	"github.com/aplane-algo/apbridge/internal/signing"
)

// Builder assembles and signs request envelopes.
type Builder struct {
	prefix string
	nonces NonceSource
	now    func() time.Time
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithAddressPrefix sets the network prefix for wallet addresses.
func WithAddressPrefix(prefix string) BuilderOption {
	return func(b *Builder) { b.prefix = prefix }
}

// WithNonceSource replaces the default UUID nonce source.
func WithNonceSource(src NonceSource) BuilderOption {
	return func(b *Builder) { b.nonces = src }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) { b.now = now }
}

// NewBuilder returns a Builder with the default prefix, UUID nonces and the
// wall clock unless overridden.
func NewBuilder(opts ...BuilderOption) (*Builder, error) {
	b := &Builder{
		prefix: signing.DefaultAddressPrefix,
		nonces: UUIDNonces{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if !signing.ValidPrefix(b.prefix) {
		return nil, fmt.Errorf("invalid address prefix %q", b.prefix)
	}
	return b, nil
}

// Build signs action and payload for chain with secret and returns the
// envelope. The secret is only read; the caller destroys it afterwards.
func (b *Builder) Build(action Action, payload canonical.Value, secret ed25519.PrivateKey, pub ed25519.PublicKey, chain signing.ChainID) (*SignedRequest, error) {
	if action == "" {
		return nil, fmt.Errorf("action is required")
	}
	if payload.Kind() != canonical.KindObject {
		return nil, fmt.Errorf("payload must be an object, got %s", payload.Kind())
	}
	if !chain.Valid() {
		return nil, signing.ErrInvalidChain
	}

	address, err := signing.DeriveAddress(b.prefix, pub)
	if err != nil {
		return nil, err
	}
	nonce, err := b.nonces.Next()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	req := &SignedRequest{
		Action:        action,
		WalletAddress: address,
		PublicKey:     hex.EncodeToString(pub),
		Payload:       canonical.Canonicalize(payload),
		Timestamp:     b.now().Unix(),
		Nonce:         nonce,
		ChainID:       uint8(chain),
	}

	sig, err := signing.Sign(secret, SignedMessage(req), chain)
	if err != nil {
		return nil, err
	}
	req.Signature = hex.EncodeToString(sig)
	return req, nil
}
