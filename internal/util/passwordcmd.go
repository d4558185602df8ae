// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/aplane-algo/apbridge/internal/crypto"
)

// maxPasswordOutputBytes caps what a password helper may print (8 KB).
const maxPasswordOutputBytes = 8 * 1024

var (
	// passwordCommandTimeout bounds a helper run, including its children.
	passwordCommandTimeout = 5 * time.Second

	// lockedPATH is searched when allow_path_lookup is set. Only system
	// directories are listed.
	lockedPATH = "/usr/sbin:/usr/bin:/sbin:/bin"
)

// PasswordCommand runs a helper that prints the vault password, for headless
// signing where no terminal is attached.
type PasswordCommand struct {
	Argv            []string          `yaml:"argv" description:"Helper command and arguments; argv[0] must be absolute unless allow_path_lookup is set"`
	Env             map[string]string `yaml:"env" description:"Environment passed to the helper (the process environment is not inherited)"`
	AllowPathLookup bool              `yaml:"allow_path_lookup" description:"Resolve a bare argv[0] against a fixed system PATH" default:"false"`
}

// Enabled reports whether a helper is configured.
func (c PasswordCommand) Enabled() bool { return len(c.Argv) > 0 }

// Validate checks argv[0] without running it.
func (c PasswordCommand) Validate() error {
	_, err := c.resolve()
	return err
}

// Run executes the helper and returns the password it printed.
//
// Exactly one trailing newline is stripped. Output starting with "base64:"
// or "hex:" is decoded. NUL bytes and empty output are rejected. Stderr is
// discarded. The caller owns the returned slice and must zero it.
func (c PasswordCommand) Run(ctx context.Context) ([]byte, error) {
	path, err := c.resolve()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, passwordCommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, c.Argv[1:]...) //nolint:gosec // argv[0] validated by resolve
	cmd.Env = c.environ()
	cmd.Stderr = io.Discard
	// A grandchild holding stdout open must not stall Wait past the deadline
	cmd.WaitDelay = 500 * time.Millisecond

	var stdout bytes.Buffer
	defer func() {
		crypto.ZeroBytes(stdout.Bytes())
		stdout.Reset()
	}()
	lw := &limitedWriter{w: &stdout, remaining: maxPasswordOutputBytes}
	cmd.Stdout = lw

	runErr := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("password_command: timed out after %s", passwordCommandTimeout)
	}
	if runErr != nil && !errors.Is(runErr, exec.ErrWaitDelay) {
		return nil, fmt.Errorf("password_command: %w", runErr)
	}
	if lw.truncated {
		return nil, fmt.Errorf("password_command: stdout exceeded %d bytes", maxPasswordOutputBytes)
	}

	out := stdout.Bytes()
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
		if n := len(out); n > 0 && out[n-1] == '\r' {
			out = out[:n-1]
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("password_command: empty output")
	}
	if bytes.IndexByte(out, 0) >= 0 {
		return nil, fmt.Errorf("password_command: output contains NUL bytes")
	}
	return decodePasswordOutput(out)
}

// decodePasswordOutput always returns a fresh slice.
func decodePasswordOutput(out []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(out, []byte("base64:")):
		enc := out[len("base64:"):]
		dst := make([]byte, base64.StdEncoding.DecodedLen(len(enc)))
		n, err := base64.StdEncoding.Decode(dst, enc)
		if err != nil {
			crypto.ZeroBytes(dst)
			return nil, fmt.Errorf("password_command: invalid base64 output: %w", err)
		}
		return dst[:n], nil
	case bytes.HasPrefix(out, []byte("hex:")):
		enc := out[len("hex:"):]
		dst := make([]byte, hex.DecodedLen(len(enc)))
		if _, err := hex.Decode(dst, enc); err != nil {
			crypto.ZeroBytes(dst)
			return nil, fmt.Errorf("password_command: invalid hex output: %w", err)
		}
		return dst, nil
	}
	return bytes.Clone(out), nil
}

func (c PasswordCommand) resolve() (string, error) {
	if len(c.Argv) == 0 {
		return "", fmt.Errorf("password_command: argv must be non-empty")
	}
	path := c.Argv[0]
	if !filepath.IsAbs(path) {
		if !c.AllowPathLookup {
			return "", fmt.Errorf("password_command: argv[0] must be an absolute path, got %q (set allow_path_lookup to search the system PATH)", path)
		}
		resolved, err := lookupLocked(path)
		if err != nil {
			return "", fmt.Errorf("password_command: %w", err)
		}
		path = resolved
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("password_command: %w", err)
	}
	perm := info.Mode().Perm()
	switch {
	case info.IsDir():
		return "", fmt.Errorf("password_command: %s is a directory", path)
	case perm&0111 == 0:
		return "", fmt.Errorf("password_command: %s is not executable (mode %04o)", path, perm)
	case perm&0022 != 0:
		return "", fmt.Errorf("password_command: %s is group or world writable (mode %04o)", path, perm)
	}
	return path, nil
}

// lookupLocked resolves a plain basename against lockedPATH.
func lookupLocked(name string) (string, error) {
	if strings.ContainsRune(name, '/') || strings.Contains(name, "..") || name == "." {
		return "", fmt.Errorf("command name %q must be a plain basename", name)
	}
	for _, dir := range filepath.SplitList(lockedPATH) {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() && info.Mode().Perm()&0111 != 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("command %q not found in %s", name, lockedPATH)
}

// environ never inherits the process environment.
func (c PasswordCommand) environ() []string {
	env := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		env = append(env, k+"="+v)
	}
	return env
}

// limitedWriter keeps the first remaining bytes and reports full writes so
// the helper never sees a short write.
type limitedWriter struct {
	w         io.Writer
	remaining int64
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if int64(n) > lw.remaining {
		p = p[:lw.remaining]
		lw.truncated = true
	}
	if len(p) > 0 {
		written, err := lw.w.Write(p)
		lw.remaining -= int64(written)
		if err != nil {
			return written, err
		}
	}
	return n, nil
}
