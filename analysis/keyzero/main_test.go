// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const leakySrc = `package signing

import "crypto/ed25519"

func leak(sk ed25519.PrivateKey) []byte {
	return append([]byte(nil), sk.Seed()...)
}

func careful(sk ed25519.PrivateKey) {
	seed := sk.Seed()
	defer ZeroBytes(seed)
}

func destroyed(kp *Keypair) {
	_ = kp.PrivateKey
	kp.Destroy()
}

func ZeroBytes(b []byte) {}

type Keypair struct{ PrivateKey []byte }

func (k *Keypair) Destroy() {}
`

func TestRun(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "internal", "signing")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sign.go"), []byte(leakySrc), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sign_test.go"), []byte(leakySrc), 0644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	n, err := run(root, &out)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("findings = %d, want 1\n%s", n, out.String())
	}
	report := out.String()
	if !strings.Contains(report, "Function: leak") || !strings.Contains(report, "uses Seed") {
		t.Errorf("unexpected report:\n%s", report)
	}
}

func TestRunReportsParseError(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "internal", "crypto")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.go"), []byte("package"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(root, &bytes.Buffer{}); err == nil {
		t.Error("expected a parse error")
	}
}
