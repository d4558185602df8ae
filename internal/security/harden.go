// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package security applies process hardening for commands that hold key
// material in memory.
package security

import "github.com/aplane-algo/apbridge/internal/util"

// Options selects which hardening steps are mandatory.
type Options struct {
	// RequireMemoryLock turns a failed mlockall into an error instead of a warning.
	RequireMemoryLock bool
}

// Harden disables core dumps and locks memory. Core dump failures are always
// fatal; memory locking is best effort unless required.
func Harden(opts Options) error {
	if err := DisableCoreDumps(); err != nil {
		return err
	}
	if err := LockMemory(); err != nil {
		if opts.RequireMemoryLock {
			return err
		}
		util.Logger.Warn("memory not locked, secrets may reach swap", "error", err)
		return nil
	}
	util.Debug("memory locked")
	return nil
}
