// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package transport

import (
	"errors"
	"fmt"
)

// Sentinel errors for responses that carry no verifier rejection code.
var (
	// ErrUnauthorized is returned when the admin token is missing or wrong.
	ErrUnauthorized = errors.New("authentication failed - invalid API token")

	// ErrForbidden is returned when the action is not permitted on the chain.
	ErrForbidden = errors.New("action not permitted on this chain")

	// ErrRateLimited is returned when the verifier is throttling this client.
	ErrRateLimited = errors.New("rate limited by verifier")
)

// Wire codes that are not verifier rejection reasons.
const (
	CodeForbidden    = "forbidden"
	CodeRateLimited  = "rate_limited"
	CodeUnauthorized = "unauthorized"
)

// ErrorResponse is the JSON body of every non-2xx verifier response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// RejectedError is a request the verifier answered with an error status.
// It unwraps to the sentinel matching Code when one is known.
type RejectedError struct {
	Status  int
	Code    string
	Message string
	err     error
}

func (e *RejectedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("verifier rejected request (%d %s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("verifier rejected request (%d %s)", e.Status, e.Code)
}

func (e *RejectedError) Unwrap() error { return e.err }
