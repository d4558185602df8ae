// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package verifier implements the server-side acceptance check for signed
// requests.
//
// A request moves through Received, TimestampChecked, NonceChecked and
// SignatureChecked before it is Accepted. Any failure moves it straight to
// Rejected. Acceptance burns the nonce, so replaying an accepted request is
// rejected by the nonce check.
package verifier

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/aplane-algo/apbridge/internal/canonical"
	"github.com/aplane-algo/apbridge/internal/request"
	"github.com/aplane-algo/apbridge/internal/signing"
)

// DefaultWindow is the freshness window applied in both directions.
const DefaultWindow = 300 * time.Second

// State is a step of the verification state machine.
type State int

const (
	StateReceived State = iota
	StateTimestampChecked
	StateNonceChecked
	StateSignatureChecked
	StateAccepted
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateTimestampChecked:
		return "timestamp_checked"
	case StateNonceChecked:
		return "nonce_checked"
	case StateSignatureChecked:
		return "signature_checked"
	case StateAccepted:
		return "accepted"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is the outcome of one verification.
type Result struct {
	// Err is nil when the request was accepted.
	Err error

	// Address is the signer address derived from the public key, when the
	// key could be decoded.
	Address string

	// Trace lists the states reached, ending in Accepted or Rejected.
	Trace []State
}

// Accepted reports whether the request passed every check.
func (r *Result) Accepted() bool { return r.Err == nil }

// Code returns the wire code for the outcome.
func (r *Result) Code() Code { return CodeFor(r.Err) }

// Final returns the terminal state.
func (r *Result) Final() State {
	if len(r.Trace) == 0 {
		return StateReceived
	}
	return r.Trace[len(r.Trace)-1]
}

func (r *Result) step(s State) { r.Trace = append(r.Trace, s) }

func (r *Result) reject(err error) *Result {
	r.Err = err
	r.step(StateRejected)
	return r
}

// Verifier checks signed requests against a nonce ledger.
type Verifier struct {
	window  time.Duration
	prefix  string
	now     func() time.Time
	ledger  NonceLedger
	metrics *Metrics
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithWindow sets the freshness window. It must be at least one second.
func WithWindow(d time.Duration) Option {
	return func(v *Verifier) { v.window = d }
}

// WithAddressPrefix sets the expected network prefix of wallet addresses.
func WithAddressPrefix(prefix string) Option {
	return func(v *Verifier) { v.prefix = prefix }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// WithLedger replaces the default in-memory nonce ledger.
func WithLedger(l NonceLedger) Option {
	return func(v *Verifier) { v.ledger = l }
}

// WithMetrics records outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(v *Verifier) { v.metrics = m }
}

// New returns a Verifier with a 300 s window, the default address prefix and
// an in-memory ledger unless overridden.
func New(opts ...Option) (*Verifier, error) {
	v := &Verifier{
		window: DefaultWindow,
		prefix: signing.DefaultAddressPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.window < time.Second {
		return nil, fmt.Errorf("freshness window must be at least 1s, got %s", v.window)
	}
	if !signing.ValidPrefix(v.prefix) {
		return nil, fmt.Errorf("invalid address prefix %q", v.prefix)
	}
	if v.ledger == nil {
		v.ledger = NewMemoryLedger()
	}
	return v, nil
}

// Window returns the freshness window.
func (v *Verifier) Window() time.Duration { return v.window }

// Ledger returns the nonce ledger in use.
func (v *Verifier) Ledger() NonceLedger { return v.ledger }

// Verify runs the state machine for req. Ledger failures are returned in
// Result.Err wrapped with context and map to CodeInternal.
func (v *Verifier) Verify(ctx context.Context, req *request.SignedRequest) *Result {
	start := time.Now()
	res := v.verify(ctx, req)
	chain := "unknown"
	if req != nil {
		chain = req.Chain().String()
	}
	v.metrics.observe(res.Code(), chain, time.Since(start))
	return res
}

func (v *Verifier) verify(ctx context.Context, req *request.SignedRequest) *Result {
	res := &Result{}
	res.step(StateReceived)

	if req == nil {
		return res.reject(fmt.Errorf("%w: nil request", ErrMalformedRequest))
	}
	if err := req.Validate(); err != nil {
		return res.reject(fmt.Errorf("%w: %v", ErrMalformedRequest, err))
	}
	if !canonical.IsCanonical([]byte(req.Payload)) {
		return res.reject(fmt.Errorf("%w: payload is not canonical JSON", ErrMalformedRequest))
	}
	pub, err := hex.DecodeString(req.PublicKey)
	if err != nil {
		return res.reject(fmt.Errorf("%w: public_key is not hex", ErrMalformedRequest))
	}
	sig, err := hex.DecodeString(req.Signature)
	if err != nil {
		return res.reject(fmt.Errorf("%w: signature is not hex", ErrMalformedRequest))
	}
	signer, err := signing.DeriveAddress(v.prefix, pub)
	if err != nil {
		return res.reject(fmt.Errorf("%w: %v", ErrMalformedRequest, err))
	}
	res.Address = signer

	now := v.now()
	skew := now.Unix() - req.Timestamp
	if skew < 0 {
		skew = -skew
	}
	if skew > int64(v.window/time.Second) {
		return res.reject(fmt.Errorf("%w: %ds outside a %s window", ErrExpiredTimestamp, skew, v.window))
	}
	res.step(StateTimestampChecked)

	seen, err := v.ledger.Seen(ctx, signer, req.Nonce, now)
	if err != nil {
		return res.reject(fmt.Errorf("nonce ledger lookup: %w", err))
	}
	if seen {
		return res.reject(ErrReplayedNonce)
	}
	res.step(StateNonceChecked)

	if err := signing.ValidatePublicKey(pub); err != nil {
		return res.reject(fmt.Errorf("%w: %v", ErrInvalidSignature, err))
	}
	if !signing.Verify(ed25519.PublicKey(pub), request.SignedMessage(req), sig, req.Chain()) {
		return res.reject(ErrInvalidSignature)
	}
	res.step(StateSignatureChecked)

	if req.WalletAddress != signer {
		return res.reject(fmt.Errorf("%w: claimed %s, key derives %s", ErrAddressMismatch, req.WalletAddress, signer))
	}

	// Reserve last so rejected requests never burn a nonce. Losing the race
	// to a concurrent identical request is a replay.
	reserved, err := v.ledger.Reserve(ctx, signer, req.Nonce, now, v.retainUntil(now, req.Timestamp))
	if err != nil {
		return res.reject(fmt.Errorf("nonce ledger reserve: %w", err))
	}
	if !reserved {
		return res.reject(ErrReplayedNonce)
	}
	res.step(StateAccepted)
	return res
}

// retainUntil is the instant after which a request with timestamp ts can no
// longer pass the freshness check.
func (v *Verifier) retainUntil(now time.Time, ts int64) time.Time {
	base := now
	if t := time.Unix(ts, 0); t.After(base) {
		base = t
	}
	return base.Add(v.window + time.Second)
}

// Sweep removes expired nonces from the ledger.
func (v *Verifier) Sweep(ctx context.Context) (int, error) {
	n, err := v.ledger.Sweep(ctx, v.now())
	v.metrics.addSwept(n)
	return n, err
}

// RunSweeper calls Sweep every interval until ctx is cancelled. Errors are
// passed to onErr, which may be nil.
func (v *Verifier) RunSweeper(ctx context.Context, interval time.Duration, onErr func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := v.Sweep(ctx); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}
