// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/aplane-algo/apbridge/internal/keyderive"
	"github.com/aplane-algo/apbridge/internal/request"
	"github.com/aplane-algo/apbridge/internal/security"
	"github.com/aplane-algo/apbridge/internal/transport"
	"github.com/aplane-algo/apbridge/internal/vault"
	"github.com/aplane-algo/apbridge/internal/verifier"
)

const (
	testPassword = "correct horse battery staple"
	rfcSeedHex   = "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60"
	rfcAddress   = "LDG_21FE31DFA154A261626BF854046FD2271B7BED4B"
)

// fastParams keeps KDF cost low in tests.
var fastParams = vault.Params{PBKDF2Iterations: 1000, Argon2: vault.DefaultParams().Argon2}

func init() {
	fastParams.Argon2.Time = 1
	fastParams.Argon2.Memory = 8 * 1024
}

// testApp returns an app over a temp data dir whose password prompts are
// answered from answers in order.
func testApp(t *testing.T, answers ...string) *app {
	t.Helper()
	a := newApp()
	a.dataDirFlag = t.TempDir()
	a.params = fastParams
	a.harden = func(security.Options) error { return nil }
	a.stdin = strings.NewReader("")
	a.readPassword = func(string) ([]byte, error) {
		if len(answers) == 0 {
			return nil, errors.New("unexpected password prompt")
		}
		next := answers[0]
		answers = answers[1:]
		return []byte(next), nil
	}
	return a
}

func run(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	// Registering the -d flag resets dataDirFlag to its default; keep the
	// temp dir chosen by testApp.
	dataDir := a.dataDirFlag
	root := newRootCmd(a)
	a.dataDirFlag = dataDir
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func createVault(t *testing.T, a *app, extra ...string) {
	t.Helper()
	args := append([]string{"vault", "create", "--import"}, extra...)
	out, err := run(t, a, args...)
	if err != nil {
		t.Fatalf("vault create: %v\n%s", err, out)
	}
	if !strings.Contains(out, rfcAddress) {
		t.Fatalf("vault create output missing address:\n%s", out)
	}
}

func TestVaultCreateAndAddress(t *testing.T) {
	a := testApp(t, rfcSeedHex, testPassword, testPassword, testPassword)
	createVault(t, a)

	info, err := os.Stat(filepath.Join(a.dataDirFlag, "vault.json"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("vault mode = %o", info.Mode().Perm())
	}

	out, err := run(t, a, "address")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, rfcAddress) || !strings.Contains(out, "d75a980182b10ab7d54bfed3c964073a0ee172f3daa62325af021a68f707511a") {
		t.Errorf("address output:\n%s", out)
	}
}

func TestVaultCreateRefusesOverwrite(t *testing.T) {
	a := testApp(t, rfcSeedHex, testPassword, testPassword)
	createVault(t, a)
	if _, err := run(t, a, "vault", "create"); !errors.Is(err, vault.ErrVaultExists) {
		t.Fatalf("got %v, want ErrVaultExists", err)
	}
}

func TestVaultCreatePasswordMismatch(t *testing.T) {
	a := testApp(t, testPassword, "something else")
	if _, err := run(t, a, "vault", "create"); err == nil || !strings.Contains(err.Error(), "do not match") {
		t.Fatalf("got %v", err)
	}
}

func TestVaultInspectAndPasswd(t *testing.T) {
	a := testApp(t, rfcSeedHex, testPassword, testPassword, testPassword, "new password", "new password", "new password")
	createVault(t, a)

	out, err := run(t, a, "vault", "inspect")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "pbkdf2") {
		t.Errorf("inspect output:\n%s", out)
	}

	if out, err := run(t, a, "vault", "passwd", "--format", "v3"); err != nil {
		t.Fatalf("passwd: %v\n%s", err, out)
	}
	out, err = run(t, a, "vault", "inspect")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "argon2") {
		t.Errorf("inspect after passwd:\n%s", out)
	}

	// Same key under the new password
	out, err = run(t, a, "address")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, rfcAddress) {
		t.Errorf("address after passwd:\n%s", out)
	}
}

func TestAddressWrongPassword(t *testing.T) {
	a := testApp(t, rfcSeedHex, testPassword, testPassword, "wrong")
	createVault(t, a)
	if _, err := run(t, a, "address"); !errors.Is(err, keyderive.ErrDecryptionFailed) {
		t.Fatalf("got %v, want ErrDecryptionFailed", err)
	}
}

func TestSignThenVerify(t *testing.T) {
	a := testApp(t, rfcSeedHex, testPassword, testPassword, testPassword)
	createVault(t, a)

	out, err := run(t, a, "sign", "bet", `{"option":"yes","market_id":"btc-100k","amount":100}`, "--chain", "market")
	if err != nil {
		t.Fatalf("sign: %v\n%s", err, out)
	}
	var req request.SignedRequest
	if err := json.Unmarshal([]byte(out), &req); err != nil {
		t.Fatalf("sign output is not an envelope: %v\n%s", err, out)
	}
	if req.WalletAddress != rfcAddress || req.ChainID != 2 || req.Payload != `{"amount":100,"market_id":"btc-100k","option":"yes"}` {
		t.Errorf("envelope = %+v", req)
	}

	path := filepath.Join(t.TempDir(), "req.json")
	if err := os.WriteFile(path, []byte(out), 0600); err != nil {
		t.Fatal(err)
	}
	vout, err := run(t, a, "verify", path)
	if err != nil {
		t.Fatalf("verify: %v\n%s", err, vout)
	}
	if !strings.Contains(vout, "accepted") {
		t.Errorf("verify output:\n%s", vout)
	}

	// Far in the future the timestamp is stale
	_, err = run(t, a, "verify", path, "--at", "4102444800")
	if !errors.Is(err, verifier.ErrExpiredTimestamp) {
		t.Errorf("stale verify: got %v", err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	a := testApp(t)
	a.stdin = strings.NewReader(`{"action":"bet"}`)
	out, err := run(t, a, "verify")
	if !errors.Is(err, verifier.ErrMalformedRequest) {
		t.Fatalf("got %v", err)
	}
	if !strings.Contains(out, "malformed_request") {
		t.Errorf("output:\n%s", out)
	}
}

func TestSignRejectsBadInput(t *testing.T) {
	a := testApp(t, rfcSeedHex, testPassword, testPassword)
	createVault(t, a)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown action", []string{"sign", "steal", `{}`}},
		{"array payload", []string{"sign", "bet", `[1,2]`}},
		{"duplicate key", []string{"sign", "bet", `{"a":1,"a":2}`}},
		{"bad chain", []string{"sign", "bet", `{}`, "--chain", "moon"}},
		{"bad amount", []string{"sign", "bet", `{}`, "--amount", "lots"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, a, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSignSubmit(t *testing.T) {
	var got request.SignedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != transport.PathActions {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(transport.Receipt{Accepted: true, Address: got.WalletAddress, Action: got.Action, Nonce: got.Nonce})
	}))
	defer srv.Close()

	a := testApp(t, rfcSeedHex, testPassword, testPassword, testPassword)
	createVault(t, a)
	writeTestConfig(t, a, "server_url: "+srv.URL+"\nnonce_source: ulid\n")

	out, err := run(t, a, "sign", "withdraw", `{"amount":"10","asset":"USDC"}`, "--submit")
	if err != nil {
		t.Fatalf("submit: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Accepted") || !strings.Contains(out, got.Nonce) {
		t.Errorf("output:\n%s", out)
	}
	if len(got.Nonce) != 26 {
		t.Errorf("nonce %q is not a ULID", got.Nonce)
	}
}

func writeTestConfig(t *testing.T, a *app, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(a.dataDirFlag, "config.yaml"), []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestPayloadAmount(t *testing.T) {
	a := testApp(t)
	tests := []struct {
		payload string
		flag    string
		want    string
		wantErr bool
	}{
		{`{"amount":"999.99"}`, "", "999.99", false},
		{`{"amount":1000}`, "", "1000", false},
		{`{"market_id":"m"}`, "", "0", false},
		{`{"amount":true}`, "", "", true},
		{`{"amount":"1"}`, "2500", "2500", false},
	}
	for _, tt := range tests {
		p, err := a.readPayload(tt.payload)
		if err != nil {
			t.Fatal(err)
		}
		got, err := resolveAmount(tt.flag, p)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v", tt.payload, err)
			continue
		}
		if err == nil && got.String() != tt.want {
			t.Errorf("%s: amount = %s, want %s", tt.payload, got, tt.want)
		}
	}
}

func TestConformanceCommand(t *testing.T) {
	out, err := run(t, testApp(t), "conformance")
	if err != nil {
		t.Fatalf("conformance: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Go:") || !strings.Contains(out, "JavaScript:") {
		t.Errorf("output:\n%s", out)
	}
}

func TestConfigInit(t *testing.T) {
	a := testApp(t)
	if _, err := run(t, a, "config", "init"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(a.dataDirFlag, "config.yaml")); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, a, "config", "init"); err == nil {
		t.Error("second init should refuse to overwrite")
	}
}

func TestVersionSkipsConfig(t *testing.T) {
	a := testApp(t)
	writeTestConfig(t, a, "nonce_source: bogus\n")
	out, err := run(t, a, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "apbridge ") {
		t.Errorf("output %q", out)
	}
	if _, err := run(t, a, "vault", "inspect"); err == nil {
		t.Error("invalid config should fail other commands")
	}
}

func TestShellSessionFlow(t *testing.T) {
	a := testApp(t, rfcSeedHex, testPassword, testPassword, testPassword, testPassword)
	createVault(t, a)
	if err := a.load(); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	sh, err := newShell(a, &out)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := sh.exec(ctx, "chain market"); err != nil {
		t.Fatal(err)
	}
	// First sign prompts and starts the session
	if err := sh.exec(ctx, `sign bet {"amount":5,"market_id":"m","option":"no"}`); err != nil {
		t.Fatalf("first sign: %v", err)
	}
	if !sh.client.Session().IsUnlocked() {
		t.Fatal("session should be unlocked after first sign")
	}
	// Second small sign uses the cached password: no prompt left in the queue
	// except the one reserved for the large amount below.
	if err := sh.exec(ctx, `sign bet {"amount":6,"market_id":"m","option":"no"}`); err != nil {
		t.Fatalf("cached sign: %v", err)
	}
	// Large amounts always prompt
	if err := sh.exec(ctx, `sign bet {"amount":"1000","market_id":"m","option":"no"}`); err != nil {
		t.Fatalf("large sign: %v", err)
	}
	if sh.client.Address() != rfcAddress {
		t.Errorf("address = %q", sh.client.Address())
	}

	out.Reset()
	if err := sh.exec(ctx, "status"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "logged in") {
		t.Errorf("status:\n%s", out.String())
	}

	if err := sh.exec(ctx, "logout"); err != nil {
		t.Fatal(err)
	}
	if sh.client.Session().IsLoggedIn() {
		t.Error("still logged in after logout")
	}
	// Nothing left to answer the prompt
	err = sh.exec(ctx, `sign bet {"amount":1,"market_id":"m","option":"no"}`)
	if err == nil || !strings.Contains(err.Error(), "unexpected password prompt") {
		t.Errorf("sign after logout: %v", err)
	}

	if err := sh.exec(ctx, "bogus"); err == nil {
		t.Error("unknown command should error")
	}
	if err := sh.exec(ctx, "quit"); !errors.Is(err, errQuit) {
		t.Errorf("quit: %v", err)
	}
}

func TestShellLoginWrongPassword(t *testing.T) {
	a := testApp(t, rfcSeedHex, testPassword, testPassword, "wrong")
	createVault(t, a)
	if err := a.load(); err != nil {
		t.Fatal(err)
	}
	sh, err := newShell(a, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if err := sh.exec(context.Background(), "login"); !errors.Is(err, keyderive.ErrDecryptionFailed) {
		t.Fatalf("got %v", err)
	}
	if sh.client.Session().IsLoggedIn() {
		t.Error("failed login must not start a session")
	}
}

func TestAddressAuthKey(t *testing.T) {
	a := testApp(t, rfcSeedHex, testPassword, testPassword, testPassword, testPassword)
	createVault(t, a)

	first, err := run(t, a, "address", "--auth-key")
	if err != nil {
		t.Fatal(err)
	}
	second, err := run(t, a, "address", "--auth-key")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(first, "Auth key") || first != second {
		t.Errorf("auth key output not stable:\n%s\n%s", first, second)
	}
}

func TestHardenOnlyForKeyCommands(t *testing.T) {
	a := testApp(t, rfcSeedHex, testPassword, testPassword, testPassword, testPassword)
	var calls int
	a.harden = func(opts security.Options) error {
		calls++
		if opts.RequireMemoryLock {
			t.Error("memory lock should not be required by default")
		}
		return nil
	}

	createVault(t, a)
	if calls != 1 {
		t.Fatalf("harden calls after create = %d, want 1", calls)
	}
	if _, err := run(t, a, "vault", "inspect"); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, a, "config", "show"); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("harden ran for commands without key material: %d calls", calls)
	}
	if _, err := run(t, a, "address"); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("harden calls after address = %d, want 2", calls)
	}
}

func TestHardenFailureAborts(t *testing.T) {
	a := testApp(t)
	a.harden = func(security.Options) error { return errors.New("no rlimit") }
	if _, err := run(t, a, "address"); err == nil || !strings.Contains(err.Error(), "no rlimit") {
		t.Errorf("err = %v, want harden failure", err)
	}
}

func TestPasswordCommandReplacesPrompt(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell helper needs a unix shell")
	}
	a := testApp(t, rfcSeedHex, testPassword, testPassword)
	createVault(t, a)

	helper := filepath.Join(t.TempDir(), "pw.sh")
	if err := os.WriteFile(helper, []byte("#!/bin/sh\nprintf '%s\\n' '"+testPassword+"'\n"), 0700); err != nil {
		t.Fatal(err)
	}
	cfg := "password_command:\n  argv: [" + helper + "]\n"
	if err := os.WriteFile(filepath.Join(a.dataDirFlag, "config.yaml"), []byte(cfg), 0600); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, a, "address")
	if err != nil {
		t.Fatalf("address: %v\n%s", err, out)
	}
	if !strings.Contains(out, rfcAddress) {
		t.Errorf("output missing address:\n%s", out)
	}
}
