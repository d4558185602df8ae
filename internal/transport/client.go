// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aplane-algo/apbridge/internal/request"
	"github.com/aplane-algo/apbridge/internal/verifier"
	"github.com/aplane-algo/apbridge/internal/version"

	"github.com/go-resty/resty/v2"
)

// API paths served by apverifyd.
const (
	PathActions = "/v1/actions"
	PathHealth  = "/health"
	PathSweep   = "/v1/admin/sweep"
)

// AuthScheme is the Authorization scheme for the admin token.
const AuthScheme = "apbridge"

// DefaultTimeout bounds each HTTP round trip.
const DefaultTimeout = 30 * time.Second

// Client is a resty-backed Transport.
type Client struct {
	http *resty.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithToken sends token on admin calls.
func WithToken(token string) Option {
	return func(c *Client) {
		if token != "" {
			c.http.SetAuthScheme(AuthScheme).SetAuthToken(token)
		}
	}
}

// New returns a Client for the verifier at baseURL.
func New(baseURL string, opts ...Option) *Client {
	cl := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(DefaultTimeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", version.UserAgent())

	c := &Client{http: cl}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HTTPClient exposes the underlying client so tests can install mocks.
func (c *Client) HTTPClient() *http.Client {
	return c.http.GetClient()
}

// Submit posts req to the verifier exactly once. A request whose outcome is
// unknown must be rebuilt with a fresh nonce and timestamp, since the
// verifier may already have reserved the nonce.
func (c *Client) Submit(ctx context.Context, req *request.SignedRequest) (*Receipt, error) {
	var receipt Receipt
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&receipt).
		Post(PathActions)
	if err != nil {
		return nil, fmt.Errorf("submit request: %w", err)
	}
	if resp.IsError() {
		return nil, decodeError(resp)
	}
	return &receipt, nil
}

// Health checks that the verifier is reachable.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get(PathHealth)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	if resp.IsError() {
		return decodeError(resp)
	}
	return nil
}

// Sweep asks the verifier to drop expired nonces and returns how many
// were removed. It requires the admin token.
func (c *Client) Sweep(ctx context.Context) (int, error) {
	var out struct {
		Removed int `json:"removed"`
	}
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Post(PathSweep)
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}
	if resp.IsError() {
		return 0, decodeError(resp)
	}
	return out.Removed, nil
}

// decodeError maps an error response to a *RejectedError wrapping the
// matching sentinel.
func decodeError(resp *resty.Response) error {
	var body ErrorResponse
	_ = json.Unmarshal(resp.Body(), &body)

	rej := &RejectedError{
		Status:  resp.StatusCode(),
		Code:    body.Code,
		Message: body.Error,
	}
	if sentinel, ok := verifier.ErrorForCode(verifier.Code(body.Code)); ok {
		rej.err = sentinel
		return rej
	}
	switch {
	case body.Code == CodeForbidden || resp.StatusCode() == http.StatusForbidden:
		rej.err = ErrForbidden
	case body.Code == CodeRateLimited || resp.StatusCode() == http.StatusTooManyRequests:
		rej.err = ErrRateLimited
	case body.Code == CodeUnauthorized || resp.StatusCode() == http.StatusUnauthorized:
		rej.err = ErrUnauthorized
	}
	return rej
}
