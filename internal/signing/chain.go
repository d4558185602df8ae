// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package signing produces and checks domain-separated Ed25519 signatures
// and derives wallet addresses from public keys.
//
// Every signature covers one chain byte followed by the message, so a
// signature made for one chain never verifies on another.
package signing

import (
	"fmt"
	"strconv"
	"strings"
)

// ChainID is the one-byte domain tag prepended to every signed message.
type ChainID uint8

const (
	// ChainLedger is the base ledger network.
	ChainLedger ChainID = 1

	// ChainMarket is the market and trading layer.
	ChainMarket ChainID = 2
)

var chainNames = map[ChainID]string{
	ChainLedger: "ledger",
	ChainMarket: "market",
}

func (c ChainID) String() string {
	if name, ok := chainNames[c]; ok {
		return name
	}
	return "chain-" + strconv.Itoa(int(c))
}

// Valid reports whether c can be used as a domain tag. Zero is reserved.
func (c ChainID) Valid() bool { return c != 0 }

// ParseChainID accepts a chain name ("ledger", "market") or a number 1-255.
func ParseChainID(s string) (ChainID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for id, name := range chainNames {
		if s == name {
			return id, nil
		}
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid chain %q: want ledger, market, or 1-255", s)
	}
	return ChainID(n), nil
}

// DomainMessage returns chain || message, the exact bytes that are signed.
func DomainMessage(chain ChainID, message []byte) []byte {
	out := make([]byte, 0, 1+len(message))
	out = append(out, byte(chain))
	return append(out, message...)
}
