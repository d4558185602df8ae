// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package auth authenticates callers of the verifier daemon and decides
// what they may do.
//
// Two authenticators exist: SignedRequestAuthenticator, where the request
// body itself proves the caller owns a wallet, and TokenAuthenticator for
// the operator's admin API.
package auth

import (
	"context"
	"errors"
	"net/http"
)

var (
	// ErrNoCredentials is returned when a request carries nothing to authenticate.
	ErrNoCredentials = errors.New("no authentication credentials provided")

	// ErrInvalidCredentials is returned when credentials are present but wrong.
	ErrInvalidCredentials = errors.New("invalid authentication credentials")
)

// Identity types.
const (
	IdentityWallet  = "wallet"
	IdentityService = "service"
)

// Identity is an authenticated caller.
type Identity struct {
	// ID is the wallet address, or DefaultIdentityID for the operator.
	ID string

	// Type is IdentityWallet or IdentityService.
	Type string

	// Method names the authenticator that produced this identity.
	Method string

	// Metadata carries authenticator-specific details such as the chain.
	Metadata map[string]string
}

// Authenticator extracts an Identity from an HTTP request.
type Authenticator interface {
	// Authenticate returns the caller's identity or an error.
	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)

	// Method returns the authenticator's name for logs and audit records.
	Method() string
}
