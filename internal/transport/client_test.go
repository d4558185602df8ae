// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aplane-algo/apbridge/internal/request"
	"github.com/aplane-algo/apbridge/internal/verifier"

	"github.com/jarcoal/httpmock"
)

const baseURL = "http://verifier.test"

func newMockClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	c := New(baseURL, opts...)
	httpmock.ActivateNonDefault(c.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func sampleRequest() *request.SignedRequest {
	return &request.SignedRequest{
		Action:        request.ActionWithdraw,
		WalletAddress: "LDG_21FE31DFA154A261626BF854046FD2271B7BED4B",
		PublicKey:     "d75a980182b10ab7d54bfed3c964073a0ee172f3daa62325af021a68f707511a",
		Payload:       `{"amount":"12.5","asset":"USDC"}`,
		Signature:     "00",
		Timestamp:     1767225600,
		Nonce:         "6f1c2d9e-4a7b-4c1e-9b0e-2f5d8a3c7e10",
		ChainID:       1,
	}
}

func TestSubmitAccepted(t *testing.T) {
	c := newMockClient(t)
	req := sampleRequest()

	httpmock.RegisterResponder(http.MethodPost, baseURL+PathActions,
		func(r *http.Request) (*http.Response, error) {
			var got request.SignedRequest
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
			}
			if got != *req {
				return httpmock.NewStringResponse(http.StatusBadRequest, "envelope changed in transit"), nil
			}
			return httpmock.NewJsonResponse(http.StatusAccepted, Receipt{
				Accepted: true,
				Address:  got.WalletAddress,
				Action:   got.Action,
				Nonce:    got.Nonce,
			})
		})

	receipt, err := c.Submit(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !receipt.Accepted || receipt.Nonce != req.Nonce || receipt.Action != request.ActionWithdraw {
		t.Errorf("receipt = %+v", receipt)
	}
}

func TestSubmitRejections(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		want   error
	}{
		{"expired", http.StatusUnauthorized, ErrorResponse{"expired timestamp", string(verifier.CodeExpiredTimestamp)}, verifier.ErrExpiredTimestamp},
		{"replay", http.StatusConflict, ErrorResponse{"replayed nonce", string(verifier.CodeReplayedNonce)}, verifier.ErrReplayedNonce},
		{"signature", http.StatusUnauthorized, ErrorResponse{"invalid signature", string(verifier.CodeInvalidSignature)}, verifier.ErrInvalidSignature},
		{"address", http.StatusUnauthorized, ErrorResponse{"address mismatch", string(verifier.CodeAddressMismatch)}, verifier.ErrAddressMismatch},
		{"malformed", http.StatusBadRequest, ErrorResponse{"malformed request", string(verifier.CodeMalformedRequest)}, verifier.ErrMalformedRequest},
		{"forbidden", http.StatusForbidden, ErrorResponse{"resolve not permitted on ledger", CodeForbidden}, ErrForbidden},
		{"rate limited without body", http.StatusTooManyRequests, nil, ErrRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newMockClient(t)
			var responder httpmock.Responder
			if tt.body == nil {
				responder = httpmock.NewStringResponder(tt.status, "")
			} else {
				responder = httpmock.NewJsonResponderOrPanic(tt.status, tt.body)
			}
			httpmock.RegisterResponder(http.MethodPost, baseURL+PathActions, responder)

			_, err := c.Submit(context.Background(), sampleRequest())
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var rej *RejectedError
			if !errors.As(err, &rej) || rej.Status != tt.status {
				t.Fatalf("err = %#v, want *RejectedError with status %d", err, tt.status)
			}
		})
	}
}

func TestSubmitUnknownCode(t *testing.T) {
	c := newMockClient(t)
	httpmock.RegisterResponder(http.MethodPost, baseURL+PathActions,
		httpmock.NewJsonResponderOrPanic(http.StatusInternalServerError, ErrorResponse{"ledger unavailable", "internal"}))

	_, err := c.Submit(context.Background(), sampleRequest())
	var rej *RejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("err = %v", err)
	}
	if rej.Unwrap() != nil {
		t.Errorf("unknown code unwrapped to %v", rej.Unwrap())
	}
	if rej.Message != "ledger unavailable" {
		t.Errorf("message = %q", rej.Message)
	}
}

func TestSubmitConnectionError(t *testing.T) {
	c := newMockClient(t)
	httpmock.RegisterResponder(http.MethodPost, baseURL+PathActions,
		httpmock.NewErrorResponder(errors.New("connection refused")))

	_, err := c.Submit(context.Background(), sampleRequest())
	if err == nil {
		t.Fatal("expected error")
	}
	var rej *RejectedError
	if errors.As(err, &rej) {
		t.Error("transport failure reported as a rejection")
	}
}

func TestSubmitNotRetried(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
	}{
		{"bad gateway", httpmock.NewStringResponder(http.StatusBadGateway, "")},
		{"connection reset", httpmock.NewErrorResponder(errors.New("connection reset by peer"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newMockClient(t)
			calls := 0
			httpmock.RegisterResponder(http.MethodPost, baseURL+PathActions,
				func(r *http.Request) (*http.Response, error) {
					calls++
					if calls > 1 {
						return httpmock.NewJsonResponse(http.StatusConflict,
							ErrorResponse{"replayed nonce", string(verifier.CodeReplayedNonce)})
					}
					return tt.responder(r)
				})

			_, err := c.Submit(context.Background(), sampleRequest())
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, verifier.ErrReplayedNonce) {
				t.Errorf("err = %v, request was resent", err)
			}
			if calls != 1 {
				t.Errorf("calls = %d, want 1", calls)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	c := newMockClient(t)
	httpmock.RegisterResponder(http.MethodGet, baseURL+PathHealth,
		httpmock.NewStringResponder(http.StatusOK, `{"status":"ok"}`))
	if err := c.Health(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestSweepSendsToken(t *testing.T) {
	c := newMockClient(t, WithToken("s3cret"))
	httpmock.RegisterResponder(http.MethodPost, baseURL+PathSweep,
		func(r *http.Request) (*http.Response, error) {
			if r.Header.Get("Authorization") != "apbridge s3cret" {
				return httpmock.NewJsonResponse(http.StatusUnauthorized, ErrorResponse{"no token", CodeUnauthorized})
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]int{"removed": 3})
		})

	n, err := c.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("removed = %d", n)
	}
}

func TestSweepWithoutToken(t *testing.T) {
	c := newMockClient(t)
	httpmock.RegisterResponder(http.MethodPost, baseURL+PathSweep,
		httpmock.NewJsonResponderOrPanic(http.StatusUnauthorized, ErrorResponse{"no token", CodeUnauthorized}))

	if _, err := c.Sweep(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}
