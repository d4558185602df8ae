// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aplane-algo/apbridge/internal/fsutil"
)

// TokenLength is the number of random bytes in a token (32 bytes = 256 bits)
const TokenLength = 32

// GenerateToken generates a cryptographically secure random token
func GenerateToken() (string, error) {
	bytes := make([]byte, TokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// ReadToken reads a token from a file.
// Returns empty string if file doesn't exist (not an error).
// Warns if file permissions are more permissive than 0600.
func ReadToken(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read token file: %w", err)
	}

	if perm := info.Mode().Perm(); perm&0077 != 0 {
		Logger.Warn("token file is readable by other users",
			"path", path, "mode", fmt.Sprintf("%04o", perm), "fix", "chmod 600 "+path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// WriteToken writes a token to a file with secure permissions (0600)
func WriteToken(path, token string) error {
	if err := fsutil.MkdirAll(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, []byte(token+"\n")); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// LoadOrCreateToken returns the token at path, generating and saving one if
// the file does not exist. created reports whether a new token was written.
func LoadOrCreateToken(path string) (token string, created bool, err error) {
	token, err = ReadToken(path)
	if err != nil || token != "" {
		return token, false, err
	}

	token, err = GenerateToken()
	if err != nil {
		return "", false, err
	}
	if err := WriteToken(path, token); err != nil {
		return "", false, err
	}
	return token, true, nil
}

// ValidateToken compares two tokens in constant time to prevent timing attacks
func ValidateToken(provided, expected string) bool {
	if provided == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}
