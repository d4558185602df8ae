// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package bridge ties the session gate, key derivation, request building and
// submission into the one call an application makes per action.
//
// For each Sign the flow is: decide whether a cached password may be used,
// derive the keypair from the vault, sign the canonical request, and destroy
// the keypair before returning. The secret key never outlives the call.
package bridge

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"

	"github.com/aplane-algo/apbridge/internal/canonical"
	"github.com/aplane-algo/apbridge/internal/crypto"
	"github.com/aplane-algo/apbridge/internal/keyderive"
	"github.com/aplane-algo/apbridge/internal/request"
	"github.com/aplane-algo/apbridge/internal/session"
	"github.com/aplane-algo/apbridge/internal/signing"
	"github.com/aplane-algo/apbridge/internal/transport"
	"github.com/aplane-algo/apbridge/internal/util"
	"github.com/aplane-algo/apbridge/internal/vault"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoVault is returned when signing before a vault is set.
	ErrNoVault = errors.New("no vault loaded")

	// ErrNoTransport is returned by Submit when no transport is configured.
	ErrNoTransport = errors.New("no transport configured")
)

// Client signs and submits actions for one vault.
type Client struct {
	mu    sync.RWMutex
	vault *vaultRef

	deriver   *keyderive.Deriver
	builder   *request.Builder
	session   *session.Manager
	transport transport.Transport
}

// vaultRef pairs the vault with its cached public key and address.
type vaultRef struct {
	v       *vault.Vault
	pub     ed25519.PublicKey
	address string
}

// Option configures a Client.
type Option func(*options)

type options struct {
	deriver     *keyderive.Deriver
	builder     *request.Builder
	transport   transport.Transport
	sessionOpts []session.Option
}

// WithDeriver replaces the default Deriver.
func WithDeriver(d *keyderive.Deriver) Option {
	return func(o *options) { o.deriver = d }
}

// WithBuilder replaces the default request Builder.
func WithBuilder(b *request.Builder) Option {
	return func(o *options) { o.builder = b }
}

// WithTransport sets where Submit posts requests.
func WithTransport(t transport.Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithSessionOptions passes options to the session Manager. The password
// checker is always the client's own vault check.
func WithSessionOptions(opts ...session.Option) Option {
	return func(o *options) { o.sessionOpts = append(o.sessionOpts, opts...) }
}

// New returns a Client with no vault. Call SetVault before signing.
func New(cfg session.Config, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.deriver == nil {
		o.deriver = keyderive.New()
	}
	if o.builder == nil {
		b, err := request.NewBuilder()
		if err != nil {
			return nil, err
		}
		o.builder = b
	}

	c := &Client{
		deriver:   o.deriver,
		builder:   o.builder,
		transport: o.transport,
	}

	sessOpts := append(o.sessionOpts, session.WithChecker(c.CheckPassword))
	sess, err := session.New(cfg, sessOpts...)
	if err != nil {
		return nil, err
	}
	c.session = sess
	return c, nil
}

// Session returns the session gate, for UI status and explicit logout.
func (c *Client) Session() *session.Manager { return c.session }

// SetVault replaces the vault. The session is logged out because the cached
// password belongs to the previous vault. The public key is not known until
// the first successful derive.
func (c *Client) SetVault(v *vault.Vault) {
	c.mu.Lock()
	if v == nil {
		c.vault = nil
	} else {
		c.vault = &vaultRef{v: v}
	}
	c.mu.Unlock()

	c.session.Logout()
	util.Logger.Debug("vault set")
}

// CheckPassword reports whether password opens the current vault.
func (c *Client) CheckPassword(password []byte) error {
	ref, err := c.current()
	if err != nil {
		return err
	}
	return c.deriver.Check(ref.v, password)
}

// Login checks password against the vault and starts a session.
func (c *Client) Login(password []byte) error {
	return c.session.Login(password)
}

// Address returns the wallet address learned from the last derive, or ""
// before the first one.
func (c *Client) Address() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vault == nil {
		return ""
	}
	return c.vault.address
}

// Sign builds a signed request for action. If password is nil the session's
// cached password is used, subject to its windows and the large-transaction
// threshold; a session error tells the caller to prompt and retry with the
// password. A non-nil password counts against the session's attempt
// throttle and re-authenticates the session on success.
func (c *Client) Sign(ctx context.Context, action request.Action, payload canonical.Value, amount decimal.Decimal, chain signing.ChainID, password []byte) (*request.SignedRequest, error) {
	ref, err := c.current()
	if err != nil {
		return nil, err
	}

	var pw *crypto.SecureString
	if password != nil {
		if err := c.session.Attempt(); err != nil {
			return nil, err
		}
		pw = crypto.NewSecureStringFromBytes(password)
	} else {
		pw, err = c.session.PasswordForAction(amount)
		if err != nil {
			return nil, err
		}
	}
	defer pw.Destroy()

	var kp *keyderive.Keypair
	err = pw.WithBytes(func(b []byte) error {
		var derr error
		kp, derr = c.deriver.DeriveContext(ctx, ref.v, b)
		return derr
	})
	if err != nil {
		return nil, err
	}
	defer kp.Destroy()

	var req *request.SignedRequest
	err = kp.WithSecret(func(secret ed25519.PrivateKey) error {
		var berr error
		req, berr = c.builder.Build(action, payload, secret, kp.PublicKey(), chain)
		return berr
	})
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", action, err)
	}

	c.remember(ref, kp.PublicKey(), req.WalletAddress)
	if password != nil {
		// The derive above already proved the password
		if err := pw.WithBytes(c.session.LoginVerified); err != nil {
			util.Logger.Debug("session not refreshed", "error", err)
		}
	} else {
		c.session.TrackActivity()
	}

	util.Logger.Debug("signed request", "action", action, "chain", chain, "address", req.WalletAddress, "nonce", req.Nonce)
	return req, nil
}

// Submit signs action and posts it through the configured transport.
func (c *Client) Submit(ctx context.Context, action request.Action, payload canonical.Value, amount decimal.Decimal, chain signing.ChainID, password []byte) (*request.SignedRequest, *transport.Receipt, error) {
	if c.transport == nil {
		return nil, nil, ErrNoTransport
	}
	req, err := c.Sign(ctx, action, payload, amount, chain, password)
	if err != nil {
		return nil, nil, err
	}
	receipt, err := c.transport.Submit(ctx, req)
	if err != nil {
		return req, nil, err
	}
	return req, receipt, nil
}

func (c *Client) current() (*vaultRef, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vault == nil {
		return nil, ErrNoVault
	}
	return c.vault, nil
}

func (c *Client) remember(ref *vaultRef, pub ed25519.PublicKey, address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vault == ref && ref.address == "" {
		ref.pub = append(ed25519.PublicKey(nil), pub...)
		ref.address = address
	}
}
