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

func writeFile(t *testing.T, root, rel, src string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRun(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "internal/crypto/ok.go", "package crypto\n\nimport \"crypto/rand\"\n\nvar _ = rand.Read\n")
	writeFile(t, root, "internal/request/nonce.go", "package request\n\nimport mrand \"math/rand/v2\"\n\nvar _ = mrand.Int\n")
	writeFile(t, root, "internal/request/nonce_test.go", "package request\n\nimport \"math/rand\"\n\nvar _ = rand.Int\n")
	writeFile(t, root, "cmd/tool/main.go", "package main\n\nimport \"math/rand\"\n\nvar _ = rand.Int\n")

	var out bytes.Buffer
	n, err := run(root, &out)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("findings = %d, want 1\n%s", n, out.String())
	}
	if !strings.Contains(out.String(), "nonce.go") || !strings.Contains(out.String(), "math/rand/v2") {
		t.Errorf("report does not name the offending import:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "Files checked: 2") {
		t.Errorf("test files should be skipped:\n%s", out.String())
	}
}

func TestRunClean(t *testing.T) {
	var out bytes.Buffer
	n, err := run(t.TempDir(), &out)
	if err != nil || n != 0 {
		t.Fatalf("run = %d, %v", n, err)
	}
	if !strings.Contains(out.String(), "No issues found.") {
		t.Errorf("unexpected report:\n%s", out.String())
	}
}
