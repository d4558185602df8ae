// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package crypto

import (
	"crypto/subtle"
	"log/slog"
	"runtime"
	"sync"
)

// ZeroBytes overwrites b with zeros in a way the compiler will not elide.
func ZeroBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
	runtime.KeepAlive(b)
}

// SecureString holds a password or other secret text.
// The bytes are only reachable through WithBytes and are zeroed by Destroy.
// fmt and slog print a placeholder instead of the contents.
type SecureString struct {
	data []byte
	lock sync.RWMutex
}

// NewSecureString copies s into a SecureString. The Go string itself cannot
// be wiped; prefer NewSecureStringFromBytes when the source is a buffer.
func NewSecureString(s string) *SecureString {
	return NewSecureStringFromBytes([]byte(s))
}

// zeroAbandoned wipes the buffer of a SecureString that became unreachable
// without Destroy.
var zeroAbandoned = ZeroBytes

// NewSecureStringFromBytes copies b into a SecureString.
// The caller may zero b afterwards. The copy is zeroed when the SecureString
// is garbage collected, even if Destroy is never called.
func NewSecureStringFromBytes(b []byte) *SecureString {
	if b == nil {
		return &SecureString{}
	}
	data := make([]byte, len(b))
	copy(data, b)
	s := &SecureString{data: data}
	runtime.AddCleanup(s, zeroAbandoned, data)
	return s
}

// WithBytes runs fn with direct access to the secret under a read lock.
// The slice must not be retained after fn returns.
//
//	err := pass.WithBytes(func(p []byte) error {
//	    return deriver.Check(v, p)
//	})
func (s *SecureString) WithBytes(fn func([]byte) error) error {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.data == nil {
		return fn(nil)
	}
	return fn(s.data)
}

// Clone returns an independent copy. Destroying one does not affect the other.
func (s *SecureString) Clone() *SecureString {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return NewSecureStringFromBytes(s.data)
}

// Equal compares two secrets in constant time.
func (s *SecureString) Equal(other *SecureString) bool {
	if s == other {
		return true
	}
	if other == nil {
		return false
	}
	s.lock.RLock()
	defer s.lock.RUnlock()
	other.lock.RLock()
	defer other.lock.RUnlock()
	return subtle.ConstantTimeCompare(s.data, other.data) == 1
}

// Len returns the length of the secret in bytes.
func (s *SecureString) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.data)
}

// Destroy zeros the secret. Calling it more than once is safe.
func (s *SecureString) Destroy() {
	s.lock.Lock()
	defer s.lock.Unlock()
	ZeroBytes(s.data)
	s.data = nil
}

// IsEmpty reports whether the secret is empty or destroyed.
func (s *SecureString) IsEmpty() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.data) == 0
}

// String implements fmt.Stringer without revealing the secret.
func (s *SecureString) String() string { return "[REDACTED]" }

// LogValue implements slog.LogValuer without revealing the secret.
func (s *SecureString) LogValue() slog.Value { return slog.StringValue("[REDACTED]") }
