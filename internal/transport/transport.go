// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package transport submits signed requests to a verifier over HTTP.
package transport

import (
	"context"

	"github.com/aplane-algo/apbridge/internal/request"
)

// Receipt is the verifier's answer to an accepted request.
type Receipt struct {
	Accepted bool           `json:"accepted"`
	Address  string         `json:"address"`
	Action   request.Action `json:"action"`
	Nonce    string         `json:"nonce"`
}

// Transport delivers signed requests to a verifier.
type Transport interface {
	// Submit posts one request. A rejection is returned as *RejectedError.
	Submit(ctx context.Context, req *request.SignedRequest) (*Receipt, error)

	// Health checks that the verifier is reachable.
	Health(ctx context.Context) error
}

// Compile-time interface check
var _ Transport = (*Client)(nil)
