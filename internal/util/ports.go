// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import "github.com/aplane-algo/apbridge/internal/signing"

const (
	// DefaultVerifierPort is the default HTTP port for apverifyd
	DefaultVerifierPort = 11280

	// DefaultAddressPrefix is the wallet address prefix used when none is configured
	DefaultAddressPrefix = signing.DefaultAddressPrefix
)
