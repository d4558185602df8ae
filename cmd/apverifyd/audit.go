// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aplane-algo/apbridge/internal/fsutil"
	"github.com/aplane-algo/apbridge/internal/util"
)

// AuditEventType represents the type of audit event
type AuditEventType string

const (
	maxAuditLogSize = 10 * 1024 * 1024 // 10 MB
	appendFlags     = os.O_APPEND | os.O_CREATE | os.O_WRONLY
)

const (
	AuditRequestAccepted  AuditEventType = "REQUEST_ACCEPTED"
	AuditRequestRejected  AuditEventType = "REQUEST_REJECTED"
	AuditRequestForbidden AuditEventType = "REQUEST_FORBIDDEN"
	AuditAuthFailed       AuditEventType = "AUTH_FAILED"
	AuditRateLimited      AuditEventType = "RATE_LIMITED"
	AuditLedgerSwept      AuditEventType = "LEDGER_SWEPT"
	AuditServerStart      AuditEventType = "SERVER_START"
	AuditServerStop       AuditEventType = "SERVER_STOP"
)

// AuditEntry represents a single audit log entry
type AuditEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Event      AuditEventType `json:"event"`
	Principal  string         `json:"principal,omitempty"` // Wallet address or "default" for the admin token
	Action     string         `json:"action,omitempty"`
	Chain      string         `json:"chain,omitempty"`
	Nonce      string         `json:"nonce,omitempty"`
	Code       string         `json:"code,omitempty"`
	RemoteAddr string         `json:"remote_addr,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Count      int            `json:"count,omitempty"` // Swept entries
}

// AuditLogger handles append-only audit logging
type AuditLogger struct {
	file    *os.File
	mu      sync.Mutex
	path    string
	written uint64
	now     func() time.Time
}

// NewAuditLogger opens path in append-only mode with owner-only permissions.
func NewAuditLogger(path string) (*AuditLogger, error) {
	file, err := fsutil.CreateFile(path, appendFlags)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	var written uint64
	if info, err := file.Stat(); err == nil {
		written = uint64(info.Size())
	}

	return &AuditLogger{file: file, path: path, written: written, now: time.Now}, nil
}

// Log writes an audit entry. A nil logger discards it.
func (a *AuditLogger) Log(entry AuditEntry) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = a.now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		util.Logger.Warn("failed to marshal audit entry", "error", err)
		return
	}

	line := append(data, '\n')
	if a.written+uint64(len(line)) > maxAuditLogSize {
		if err := a.rotate(); err != nil {
			// Keep writing to the current file
			util.Logger.Warn("failed to rotate audit log", "error", err)
		}
	}

	if _, err := a.file.Write(line); err != nil {
		util.Logger.Warn("failed to write audit entry", "error", err)
		return
	}
	a.written += uint64(len(line))
	_ = a.file.Sync()
}

// rotate archives the current log file and opens a fresh one.
// Must be called with a.mu held.
func (a *AuditLogger) rotate() error {
	if err := a.file.Close(); err != nil {
		return fmt.Errorf("close current log: %w", err)
	}
	if err := os.Rename(a.path, a.path+".1"); err != nil {
		a.file, _ = fsutil.CreateFile(a.path, appendFlags)
		a.written = 0
		return fmt.Errorf("rename log: %w", err)
	}
	file, err := fsutil.CreateFile(a.path, appendFlags)
	if err != nil {
		return fmt.Errorf("open new log: %w", err)
	}
	a.file = file
	a.written = 0
	return nil
}

// Close closes the audit log file
func (a *AuditLogger) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

// LogAccepted records a verified request.
func (a *AuditLogger) LogAccepted(address, action, chain, nonce, remoteAddr string) {
	a.Log(AuditEntry{
		Event:      AuditRequestAccepted,
		Principal:  address,
		Action:     action,
		Chain:      chain,
		Nonce:      nonce,
		RemoteAddr: remoteAddr,
	})
}

// LogRejected records a request the verifier refused. address is the
// claimed wallet address and may be empty for undecodable bodies.
func (a *AuditLogger) LogRejected(address, nonce, code, remoteAddr, reason string) {
	a.Log(AuditEntry{
		Event:      AuditRequestRejected,
		Principal:  address,
		Nonce:      nonce,
		Code:       code,
		RemoteAddr: remoteAddr,
		Reason:     reason,
	})
}

// LogForbidden records a verified request denied by chain policy.
func (a *AuditLogger) LogForbidden(address, action, chain, remoteAddr string) {
	a.Log(AuditEntry{
		Event:      AuditRequestForbidden,
		Principal:  address,
		Action:     action,
		Chain:      chain,
		RemoteAddr: remoteAddr,
	})
}

// LogAuthFailed logs an admin authentication failure from a remote address.
func (a *AuditLogger) LogAuthFailed(principal, remoteAddr, reason string) {
	a.Log(AuditEntry{
		Event:      AuditAuthFailed,
		Principal:  principal,
		RemoteAddr: remoteAddr,
		Reason:     reason,
	})
}

// LogRateLimited logs a throttled client.
func (a *AuditLogger) LogRateLimited(remoteAddr string) {
	a.Log(AuditEntry{Event: AuditRateLimited, RemoteAddr: remoteAddr})
}

// LogSwept logs a ledger sweep.
func (a *AuditLogger) LogSwept(principal string, count int) {
	a.Log(AuditEntry{Event: AuditLedgerSwept, Principal: principal, Count: count})
}

// LogServerStart logs the startup of the verifier.
func (a *AuditLogger) LogServerStart(ledger string) {
	a.Log(AuditEntry{Event: AuditServerStart, Reason: ledger})
}

// LogServerStop logs the shutdown of the verifier.
func (a *AuditLogger) LogServerStop() {
	a.Log(AuditEntry{Event: AuditServerStop})
}
