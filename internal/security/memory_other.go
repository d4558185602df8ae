// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

//go:build !(linux || darwin || freebsd)

package security

import "errors"

var errUnsupported = errors.New("not supported on this platform")

func LockMemory() error { return errUnsupported }

func DisableCoreDumps() error { return errUnsupported }

func CoreDumpsDisabled() bool { return false }
