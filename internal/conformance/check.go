// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package conformance

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/aplane-algo/apbridge/internal/canonical"
	"github.com/aplane-algo/apbridge/internal/crypto"
	"github.com/aplane-algo/apbridge/internal/request"
	"github.com/aplane-algo/apbridge/internal/signing"
	"github.com/aplane-algo/apbridge/internal/verifier"
)

// Failure is one vector an implementation did not reproduce.
type Failure struct {
	Group string
	Name  string
	Got   string
	Want  string
	Err   error
}

func (f Failure) String() string {
	if f.Err != nil {
		return fmt.Sprintf("%s/%s: %v", f.Group, f.Name, f.Err)
	}
	return fmt.Sprintf("%s/%s: got %s, want %s", f.Group, f.Name, f.Got, f.Want)
}

// Check runs every vector against the Go packages.
func Check(v *Vectors) []Failure {
	var out []Failure
	out = append(out, checkCanonical(v)...)
	out = append(out, checkAddresses(v)...)
	out = append(out, checkSignatures(v)...)
	out = append(out, checkPBKDF2(v)...)
	return out
}

func checkCanonical(v *Vectors) []Failure {
	var out []Failure
	for _, tc := range v.Canonical {
		val, err := canonical.ParseString(tc.Input)
		if err != nil {
			out = append(out, Failure{Group: "canonical", Name: tc.Name, Err: err})
			continue
		}
		if got := canonical.Canonicalize(val); got != tc.Canonical {
			out = append(out, Failure{Group: "canonical", Name: tc.Name, Got: got, Want: tc.Canonical})
		}
		if !canonical.IsCanonical([]byte(tc.Canonical)) {
			out = append(out, Failure{Group: "canonical", Name: tc.Name, Err: fmt.Errorf("expected output not recognized as canonical")})
		}
	}
	for _, tc := range v.Invalid {
		if _, err := canonical.ParseString(tc.Input); err == nil {
			out = append(out, Failure{Group: "invalid", Name: tc.Name, Got: "accepted", Want: "rejected"})
		}
	}
	return out
}

func checkAddresses(v *Vectors) []Failure {
	var out []Failure
	for _, tc := range v.Addresses {
		name := tc.Prefix + "/" + tc.PublicKey[:8]
		pub, err := hex.DecodeString(tc.PublicKey)
		if err != nil {
			out = append(out, Failure{Group: "address", Name: name, Err: err})
			continue
		}
		got, err := signing.DeriveAddress(tc.Prefix, pub)
		if err != nil {
			out = append(out, Failure{Group: "address", Name: name, Err: err})
			continue
		}
		if got != tc.Address {
			out = append(out, Failure{Group: "address", Name: name, Got: got, Want: tc.Address})
		}
	}
	return out
}

func checkSignatures(v *Vectors) []Failure {
	var out []Failure
	for _, tc := range v.Signatures {
		if err := checkSignature(tc); err != nil {
			out = append(out, *err)
		}
	}
	return out
}

func checkSignature(tc SignatureVector) *Failure {
	fail := func(err error) *Failure { return &Failure{Group: "signature", Name: tc.Name, Err: err} }
	mismatch := func(what, got, want string) *Failure {
		return &Failure{Group: "signature", Name: tc.Name + " " + what, Got: got, Want: want}
	}

	seed, err := hex.DecodeString(tc.Seed)
	if err != nil || len(seed) != ed25519.SeedSize {
		return fail(fmt.Errorf("bad seed"))
	}
	sk := ed25519.NewKeyFromSeed(seed)
	defer crypto.ZeroBytes(sk)
	pub := sk.Public().(ed25519.PublicKey)
	if got := hex.EncodeToString(pub); got != tc.PublicKey {
		return mismatch("public key", got, tc.PublicKey)
	}

	chain := signing.ChainID(tc.ChainID)
	req := &request.SignedRequest{
		Action:        request.Action(tc.Action),
		WalletAddress: tc.WalletAddress,
		PublicKey:     tc.PublicKey,
		Payload:       tc.Payload,
		Timestamp:     tc.Timestamp,
		Nonce:         tc.Nonce,
		ChainID:       tc.ChainID,
		Signature:     tc.Signature,
	}
	msg := request.SignedMessage(req)
	if string(msg) != tc.Signable {
		return mismatch("signable", string(msg), tc.Signable)
	}

	sig, err := signing.Sign(sk, msg, chain)
	if err != nil {
		return fail(err)
	}
	if got := hex.EncodeToString(sig); got != tc.Signature {
		return mismatch("signature", got, tc.Signature)
	}
	if signing.Verify(pub, msg, sig, chain+1) {
		return fail(fmt.Errorf("signature also verifies on chain %d", chain+1))
	}

	// The verifier must accept the envelope at its own timestamp
	ver, err := verifier.New(verifier.WithClock(func() time.Time { return time.Unix(tc.Timestamp, 0) }))
	if err != nil {
		return fail(err)
	}
	if res := ver.Verify(context.Background(), req); !res.Accepted() {
		return fail(fmt.Errorf("verifier rejected vector: %w", res.Err))
	}
	return nil
}

func checkPBKDF2(v *Vectors) []Failure {
	var out []Failure
	for _, tc := range v.PBKDF2 {
		salt, err := hex.DecodeString(tc.Salt)
		if err != nil {
			out = append(out, Failure{Group: "pbkdf2", Name: tc.Salt, Err: err})
			continue
		}
		key := crypto.PBKDF2AESGCM{Iterations: tc.Iterations}.DeriveKey([]byte(tc.Password), salt)
		if got := hex.EncodeToString(key); got != tc.Key {
			out = append(out, Failure{Group: "pbkdf2", Name: tc.Salt, Got: got, Want: tc.Key})
		}
		crypto.ZeroBytes(key)
	}
	return out
}
