// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, Version+" (commit: ") {
		t.Errorf("String() = %q", s)
	}
}

func TestUserAgent(t *testing.T) {
	if ua := UserAgent(); ua != "apbridge/"+Version || strings.ContainsAny(ua, " ()") {
		t.Errorf("UserAgent() = %q", ua)
	}
}
