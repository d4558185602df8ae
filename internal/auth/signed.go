// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/aplane-algo/apbridge/internal/request"
	"github.com/aplane-algo/apbridge/internal/verifier"
)

// SignedRequestMethod is the Method of SignedRequestAuthenticator.
const SignedRequestMethod = "signed-request"

// MaxEnvelopeBytes bounds the request body read by SignedRequestAuthenticator.
const MaxEnvelopeBytes = 64 << 10

// SignedRequestAuthenticator authenticates a request by verifying the signed
// envelope in its body. Success consumes the envelope's nonce.
type SignedRequestAuthenticator struct {
	verifier *verifier.Verifier
}

// NewSignedRequestAuthenticator returns an authenticator backed by v.
func NewSignedRequestAuthenticator(v *verifier.Verifier) *SignedRequestAuthenticator {
	return &SignedRequestAuthenticator{verifier: v}
}

// Verification is the full outcome of AuthenticateRequest.
type Verification struct {
	Identity *Identity
	Request  *request.SignedRequest
	Result   *verifier.Result
}

// AuthenticateRequest reads and verifies the envelope in r's body. The
// returned Verification is never nil; Request and Result are set as far as
// processing got. A body that does not decode is reported as
// verifier.ErrMalformedRequest.
func (a *SignedRequestAuthenticator) AuthenticateRequest(ctx context.Context, r *http.Request) (*Verification, error) {
	out := &Verification{}
	if r.Body == nil {
		return out, ErrNoCredentials
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxEnvelopeBytes+1))
	if err != nil {
		return out, fmt.Errorf("%w: read body: %v", verifier.ErrMalformedRequest, err)
	}
	if len(body) == 0 {
		return out, ErrNoCredentials
	}
	if len(body) > MaxEnvelopeBytes {
		return out, fmt.Errorf("%w: body exceeds %d bytes", verifier.ErrMalformedRequest, MaxEnvelopeBytes)
	}

	req, err := request.Decode(body)
	if err != nil {
		return out, fmt.Errorf("%w: %v", verifier.ErrMalformedRequest, err)
	}
	out.Request = req

	res := a.verifier.Verify(ctx, req)
	out.Result = res
	if res.Err != nil {
		return out, res.Err
	}

	out.Identity = &Identity{
		ID:     res.Address,
		Type:   IdentityWallet,
		Method: SignedRequestMethod,
		Metadata: map[string]string{
			"action":   string(req.Action),
			"chain":    req.Chain().String(),
			"chain_id": strconv.Itoa(int(req.ChainID)),
			"nonce":    req.Nonce,
		},
	}
	return out, nil
}

// Authenticate implements Authenticator. Rejections other than a missing
// body are returned unchanged so callers can map them with verifier.CodeFor.
func (a *SignedRequestAuthenticator) Authenticate(ctx context.Context, r *http.Request) (*Identity, error) {
	v, err := a.AuthenticateRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	return v.Identity, nil
}

// Method returns SignedRequestMethod.
func (a *SignedRequestAuthenticator) Method() string {
	return SignedRequestMethod
}

// IsRejection reports whether err is a verifier rejection rather than an
// internal failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrNoCredentials) || verifier.CodeFor(err) != verifier.CodeInternal
}

var _ Authenticator = (*SignedRequestAuthenticator)(nil)
