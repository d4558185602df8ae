// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package signing

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultAddressPrefix is the network prefix used when none is configured.
	DefaultAddressPrefix = "LDG"

	// AddressPrefixLen is the fixed prefix length.
	AddressPrefixLen = 3

	// AddressHashLen is the number of hex characters after the separator.
	AddressHashLen = 40

	// AddressLen is the total address length.
	AddressLen = AddressPrefixLen + 1 + AddressHashLen
)

// ErrInvalidAddress indicates a string that is not PREFIX_<40 upper hex>.
var ErrInvalidAddress = errors.New("invalid address")

// ValidPrefix reports whether p is three characters of A-Z or 0-9.
func ValidPrefix(p string) bool {
	if len(p) != AddressPrefixLen {
		return false
	}
	for i := 0; i < len(p); i++ {
		c := p[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// DeriveAddress returns prefix + "_" + the first 160 bits of SHA-256(pub)
// as uppercase hex.
func DeriveAddress(prefix string, pub ed25519.PublicKey) (string, error) {
	if !ValidPrefix(prefix) {
		return "", fmt.Errorf("%w: bad prefix %q", ErrInvalidAddress, prefix)
	}
	if len(pub) != ed25519.PublicKeySize {
		return "", fmt.Errorf("%w: public key is %d bytes", ErrInvalidAddress, len(pub))
	}
	sum := sha256.Sum256(pub)
	return prefix + "_" + strings.ToUpper(hex.EncodeToString(sum[:AddressHashLen/2])), nil
}

// ParseAddress splits a well-formed address into its prefix and hash.
func ParseAddress(addr string) (prefix, hash string, err error) {
	if len(addr) != AddressLen || addr[AddressPrefixLen] != '_' {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	prefix, hash = addr[:AddressPrefixLen], addr[AddressPrefixLen+1:]
	if !ValidPrefix(prefix) {
		return "", "", fmt.Errorf("%w: bad prefix %q", ErrInvalidAddress, prefix)
	}
	for i := 0; i < len(hash); i++ {
		c := hash[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return "", "", fmt.Errorf("%w: hash must be uppercase hex", ErrInvalidAddress)
		}
	}
	return prefix, hash, nil
}
