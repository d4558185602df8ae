// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package conformance holds the shared test vectors every apbridge client
// implementation must reproduce byte for byte, and checks the Go packages
// and an embedded JavaScript reference against them.
package conformance

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed vectors.json
var vectorsJSON []byte

// CanonicalVector is a JSON text and its canonical form.
type CanonicalVector struct {
	Name      string `json:"name"`
	Input     string `json:"input"`
	Canonical string `json:"canonical"`
}

// InvalidVector is a JSON text the canonical parser must reject.
type InvalidVector struct {
	Name  string `json:"name"`
	Input string `json:"input"`
}

// AddressVector maps a public key and prefix to its wallet address.
type AddressVector struct {
	PublicKey string `json:"public_key"`
	Prefix    string `json:"prefix"`
	Address   string `json:"address"`
}

// SignatureVector is a fully specified signed request.
type SignatureVector struct {
	Name          string `json:"name"`
	Seed          string `json:"seed"`
	PublicKey     string `json:"public_key"`
	Action        string `json:"action"`
	Nonce         string `json:"nonce"`
	Payload       string `json:"payload"`
	Timestamp     int64  `json:"timestamp"`
	ChainID       uint8  `json:"chain_id"`
	Signable      string `json:"signable"`
	Signature     string `json:"signature"`
	WalletAddress string `json:"wallet_address"`
}

// PBKDF2Vector is a vault v2 key derivation.
type PBKDF2Vector struct {
	Password   string `json:"password"`
	Salt       string `json:"salt"`
	Iterations int    `json:"iterations"`
	Key        string `json:"key"`
}

// Vectors is the whole vector file.
type Vectors struct {
	Version    int               `json:"version"`
	Canonical  []CanonicalVector `json:"canonical"`
	Invalid    []InvalidVector   `json:"invalid"`
	Addresses  []AddressVector   `json:"addresses"`
	Signatures []SignatureVector `json:"signatures"`
	PBKDF2     []PBKDF2Vector    `json:"pbkdf2"`
}

// Load parses the embedded vectors.
func Load() (*Vectors, error) {
	return Parse(vectorsJSON)
}

// Parse parses a vector file, for checking vectors shipped by another client.
func Parse(data []byte) (*Vectors, error) {
	var v Vectors
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse vectors: %w", err)
	}
	if v.Version != 1 {
		return nil, fmt.Errorf("unsupported vector file version %d", v.Version)
	}
	return &v, nil
}

// Count returns the total number of vectors.
func (v *Vectors) Count() int {
	return len(v.Canonical) + len(v.Invalid) + len(v.Addresses) + len(v.Signatures) + len(v.PBKDF2)
}
