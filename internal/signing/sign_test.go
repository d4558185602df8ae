// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package signing

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

const (
	rfcSeedHex  = "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60"
	rfcPubHex   = "d75a980182b10ab7d54bfed3c964073a0ee172f3daa62325af021a68f707511a"
	otherPubHex = "3d4017c3e843895a92b70aa74d1b7ebc9c982ccf2ec4968cc0cd55f12af4660c"
)

func rfcKey(t *testing.T) ed25519.PrivateKey {
	t.Helper()
	seed, err := hex.DecodeString(rfcSeedHex)
	if err != nil {
		t.Fatal(err)
	}
	return ed25519.NewKeyFromSeed(seed)
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestSignVerifyRoundTrip(t *testing.T) {
	sk := rfcKey(t)
	pub := sk.Public().(ed25519.PublicKey)
	msg := []byte(`{"amount":100,"market_id":"btc-100k","option":"yes"}`)

	for _, chain := range []ChainID{ChainLedger, ChainMarket, 255} {
		sig, err := Sign(sk, msg, chain)
		if err != nil {
			t.Fatalf("Sign(%s): %v", chain, err)
		}
		if len(sig) != ed25519.SignatureSize {
			t.Fatalf("signature length = %d", len(sig))
		}
		if !Verify(pub, msg, sig, chain) {
			t.Errorf("Verify(%s) = false", chain)
		}
	}
}

func TestSignaturesAreChainBound(t *testing.T) {
	sk := rfcKey(t)
	pub := sk.Public().(ed25519.PublicKey)
	msg := []byte(`{"amount":1}`)

	sig, err := Sign(sk, msg, ChainLedger)
	if err != nil {
		t.Fatal(err)
	}
	if Verify(pub, msg, sig, ChainMarket) {
		t.Error("ledger signature verified on the market chain")
	}

	other, _ := Sign(sk, msg, ChainMarket)
	if bytes.Equal(sig, other) {
		t.Error("same signature for different chains")
	}

	// The signature covers chain || message, not the bare message.
	if ed25519.Verify(pub, msg, sig) {
		t.Error("signature verified without the domain byte")
	}
	if !ed25519.Verify(pub, append([]byte{1}, msg...), sig) {
		t.Error("signature does not cover 0x01 || message")
	}
}

func TestVerifyRejects(t *testing.T) {
	sk := rfcKey(t)
	pub := sk.Public().(ed25519.PublicKey)
	msg := []byte("payload")
	sig, _ := Sign(sk, msg, ChainMarket)

	flipped := append([]byte(nil), sig...)
	flipped[10] ^= 0x01

	tests := []struct {
		name  string
		pub   []byte
		msg   []byte
		sig   []byte
		chain ChainID
	}{
		{"other key", mustHex(t, otherPubHex), msg, sig, ChainMarket},
		{"altered message", pub, []byte("payloaD"), sig, ChainMarket},
		{"flipped bit", pub, msg, flipped, ChainMarket},
		{"short sig", pub, msg, sig[:63], ChainMarket},
		{"short pub", pub[:31], msg, sig, ChainMarket},
		{"chain zero", pub, msg, sig, 0},
	}
	for _, tt := range tests {
		if Verify(tt.pub, tt.msg, tt.sig, tt.chain) {
			t.Errorf("%s: Verify = true", tt.name)
		}
	}
}

func TestSignRejectsBadInput(t *testing.T) {
	if _, err := Sign(rfcKey(t)[:32], []byte("x"), ChainLedger); !errors.Is(err, ErrInvalidSecretKey) {
		t.Errorf("32-byte key: err = %v", err)
	}
	if _, err := Sign(rfcKey(t), []byte("x"), 0); !errors.Is(err, ErrInvalidChain) {
		t.Errorf("chain 0: err = %v", err)
	}
}

func TestParseChainID(t *testing.T) {
	tests := []struct {
		in      string
		want    ChainID
		wantErr bool
	}{
		{"ledger", ChainLedger, false},
		{"Market", ChainMarket, false},
		{"1", ChainLedger, false},
		{"200", 200, false},
		{"0", 0, true},
		{"256", 0, true},
		{"moon", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseChainID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseChainID(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseChainID(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
	if ChainMarket.String() != "market" || ChainID(9).String() != "chain-9" {
		t.Error("unexpected ChainID.String output")
	}
}

func TestDeriveAddress(t *testing.T) {
	tests := []struct {
		prefix string
		pub    string
		want   string
	}{
		{"LDG", rfcPubHex, "LDG_21FE31DFA154A261626BF854046FD2271B7BED4B"},
		{"LDG", otherPubHex, "LDG_39F713D0A644253F04529421B9F51B9B08979D08"},
		{"MK2", rfcPubHex, "MK2_21FE31DFA154A261626BF854046FD2271B7BED4B"},
	}
	for _, tt := range tests {
		got, err := DeriveAddress(tt.prefix, mustHex(t, tt.pub))
		if err != nil {
			t.Fatalf("DeriveAddress: %v", err)
		}
		if got != tt.want {
			t.Errorf("DeriveAddress(%s, %s…) = %s, want %s", tt.prefix, tt.pub[:8], got, tt.want)
		}
		if len(got) != AddressLen {
			t.Errorf("address length = %d", len(got))
		}
	}
}

func TestDeriveAddressRejects(t *testing.T) {
	pub := mustHex(t, rfcPubHex)
	for _, prefix := range []string{"", "LD", "LDGX", "ldg", "L-G"} {
		if _, err := DeriveAddress(prefix, pub); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("prefix %q: err = %v", prefix, err)
		}
	}
	if _, err := DeriveAddress("LDG", pub[:20]); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("short key: err = %v", err)
	}
}

func TestParseAddress(t *testing.T) {
	prefix, hash, err := ParseAddress("LDG_21FE31DFA154A261626BF854046FD2271B7BED4B")
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	if prefix != "LDG" || hash != "21FE31DFA154A261626BF854046FD2271B7BED4B" {
		t.Errorf("ParseAddress = %s, %s", prefix, hash)
	}

	bad := []string{
		"",
		"LDG21FE31DFA154A261626BF854046FD2271B7BED4B",
		"LDG_21fe31dfa154a261626bf854046fd2271b7bed4b",
		"LDG_21FE31DFA154A261626BF854046FD2271B7BED4",
		"ld9_21FE31DFA154A261626BF854046FD2271B7BED4B",
		"LDG_" + strings.Repeat("G", 40),
	}
	for _, addr := range bad {
		if _, _, err := ParseAddress(addr); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("ParseAddress(%q) err = %v", addr, err)
		}
	}
}

func TestValidatePublicKey(t *testing.T) {
	if err := ValidatePublicKey(mustHex(t, rfcPubHex)); err != nil {
		t.Errorf("RFC key rejected: %v", err)
	}

	identity := make([]byte, 32)
	identity[0] = 1
	notOnCurve := make([]byte, 32)
	notOnCurve[0] = 2

	tests := []struct {
		name string
		pub  []byte
	}{
		{"short", make([]byte, 31)},
		{"identity", identity},
		{"order four", make([]byte, 32)},
		{"not on curve", notOnCurve},
		{"non-canonical", mustHex(t, "eeffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff7f")},
	}
	for _, tt := range tests {
		if err := ValidatePublicKey(tt.pub); !errors.Is(err, ErrInvalidPublicKey) {
			t.Errorf("%s: err = %v, want ErrInvalidPublicKey", tt.name, err)
		}
	}
}
