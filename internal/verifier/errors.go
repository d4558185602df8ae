// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package verifier

import "errors"

// Rejection reasons. Each is terminal for the request; the client must
// build a fresh request with a new nonce and timestamp.
var (
	// ErrExpiredTimestamp indicates a timestamp outside the freshness window,
	// in either direction.
	ErrExpiredTimestamp = errors.New("expired timestamp")

	// ErrReplayedNonce indicates a nonce already accepted from this signer.
	ErrReplayedNonce = errors.New("replayed nonce")

	// ErrInvalidSignature indicates a signature that does not verify against
	// the supplied public key, or an unusable public key.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrAddressMismatch indicates a wallet address that is not derived from
	// the supplied public key.
	ErrAddressMismatch = errors.New("address mismatch")

	// ErrMalformedRequest indicates an envelope that fails structural checks
	// before any state transition.
	ErrMalformedRequest = errors.New("malformed request")
)

// Code is the stable machine-readable name of a rejection reason, used on
// the wire and as a metrics label.
type Code string

const (
	CodeAccepted         Code = "accepted"
	CodeExpiredTimestamp Code = "expired_timestamp"
	CodeReplayedNonce    Code = "replayed_nonce"
	CodeInvalidSignature Code = "invalid_signature"
	CodeAddressMismatch  Code = "address_mismatch"
	CodeMalformedRequest Code = "malformed_request"
	CodeInternal         Code = "internal"
)

var codeErrors = map[Code]error{
	CodeExpiredTimestamp: ErrExpiredTimestamp,
	CodeReplayedNonce:    ErrReplayedNonce,
	CodeInvalidSignature: ErrInvalidSignature,
	CodeAddressMismatch:  ErrAddressMismatch,
	CodeMalformedRequest: ErrMalformedRequest,
}

// CodeFor maps an error returned by Verify to its code.
func CodeFor(err error) Code {
	if err == nil {
		return CodeAccepted
	}
	for code, sentinel := range codeErrors {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeInternal
}

// ErrorForCode maps a wire code back to its sentinel error.
func ErrorForCode(code Code) (error, bool) {
	err, ok := codeErrors[code]
	return err, ok
}
