// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package request builds and decodes signed action envelopes.
//
// The signed bytes are chain_id || canonical({action, nonce, payload,
// timestamp}) where payload is the canonical JSON text of the action's
// fields. The envelope carries everything a verifier needs to rebuild them.
package request

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aplane-algo/apbridge/internal/canonical"
	"github.com/aplane-algo/apbridge/internal/signing"

	"github.com/go-playground/validator/v10"
)

// Action names the stateful operation a request authorizes.
type Action string

const (
	ActionBridgeTransfer Action = "bridge_transfer"
	ActionWithdraw       Action = "withdraw"
	ActionBet            Action = "bet"
	ActionResolve        Action = "resolve"
)

// KnownActions lists the actions this client knows how to build.
var KnownActions = []Action{ActionBridgeTransfer, ActionWithdraw, ActionBet, ActionResolve}

// ParseAction returns the known action named s.
func ParseAction(s string) (Action, error) {
	for _, a := range KnownActions {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// ErrInvalidEnvelope indicates a structurally invalid SignedRequest.
var ErrInvalidEnvelope = errors.New("invalid request envelope")

// SignedRequest is the wire envelope for one authorized action.
// It is single use: the nonce burns on first acceptance.
type SignedRequest struct {
	Action        Action `json:"action" validate:"required,max=64,printascii"`
	WalletAddress string `json:"wallet_address" validate:"required,len=44"`
	PublicKey     string `json:"public_key" validate:"required,len=64,hexadecimal"`
	Payload       string `json:"payload" validate:"required"`
	Signature     string `json:"signature" validate:"required,len=128,hexadecimal"`
	Timestamp     int64  `json:"timestamp" validate:"required,gt=0"`
	Nonce         string `json:"nonce" validate:"required,min=8,max=128,printascii"`
	ChainID       uint8  `json:"chain_id" validate:"required,min=1"`
}

var validate = validator.New()

// Validate checks field shapes. It does not verify the signature.
func (r *SignedRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	return nil
}

// Chain returns the request's domain tag.
func (r *SignedRequest) Chain() signing.ChainID { return signing.ChainID(r.ChainID) }

// PayloadValue parses the canonical payload text.
func (r *SignedRequest) PayloadValue() (canonical.Value, error) {
	return canonical.ParseString(r.Payload)
}

// Encode serializes the envelope as JSON.
func (r *SignedRequest) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// Decode parses an envelope and validates its fields.
func Decode(data []byte) (*SignedRequest, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var r SignedRequest
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrInvalidEnvelope)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// SignableObject is the object whose canonical form is signed.
func SignableObject(action Action, nonce, payload string, timestamp int64) canonical.Value {
	return canonical.Obj(map[string]canonical.Value{
		"action":    canonical.Str(string(action)),
		"nonce":     canonical.Str(nonce),
		"payload":   canonical.Str(payload),
		"timestamp": canonical.Int(timestamp),
	})
}

// SignedMessage rebuilds the canonical message covered by the signature,
// without the domain byte.
func SignedMessage(r *SignedRequest) []byte {
	return canonical.Bytes(SignableObject(r.Action, r.Nonce, r.Payload, r.Timestamp))
}
