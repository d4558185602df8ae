// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/aplane-algo/apbridge/internal/util"
)

// AuthScheme is the Authorization header scheme for admin tokens.
const AuthScheme = "apbridge"

// TokenMethod is the Method of TokenAuthenticator.
const TokenMethod = "apbridge-token"

// TokenAuthenticator accepts "Authorization: apbridge <token>".
type TokenAuthenticator struct {
	expectedToken string
}

// NewTokenAuthenticator returns an authenticator for expectedToken.
func NewTokenAuthenticator(expectedToken string) *TokenAuthenticator {
	return &TokenAuthenticator{
		expectedToken: expectedToken,
	}
}

// Authenticate checks the Authorization header in constant time.
func (a *TokenAuthenticator) Authenticate(_ context.Context, r *http.Request) (*Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrNoCredentials
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, AuthScheme) {
		return nil, ErrInvalidCredentials
	}
	token = strings.TrimSpace(token)
	if !util.ValidateToken(token, a.expectedToken) {
		return nil, ErrInvalidCredentials
	}
	return NewDefaultIdentity(TokenMethod), nil
}

// Method returns TokenMethod.
func (a *TokenAuthenticator) Method() string {
	return TokenMethod
}

var _ Authenticator = (*TokenAuthenticator)(nil)
