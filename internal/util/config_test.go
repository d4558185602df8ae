// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aplane-algo/apbridge/internal/signing"

	"github.com/shopspring/decimal"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerURL != "http://localhost:11280" || cfg.Chain != "ledger" || cfg.NonceSource != "uuid" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.VaultFile != filepath.Join(dir, "vault.json") {
		t.Errorf("vault path not resolved: %s", cfg.VaultFile)
	}
}

func TestLoadConfig_FillsMissingFields(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
server_url: https://verifier.example
vault_file: /abs/vault.json
session:
  active_window: 5m
`)
	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerURL != "https://verifier.example" {
		t.Errorf("ServerURL = %s", cfg.ServerURL)
	}
	if cfg.VaultFile != "/abs/vault.json" {
		t.Errorf("absolute vault path rewritten: %s", cfg.VaultFile)
	}
	active, inactivity, err := cfg.Session.Windows()
	if err != nil {
		t.Fatal(err)
	}
	if active != 5*time.Minute || inactivity != time.Hour {
		t.Errorf("windows = %s, %s", active, inactivity)
	}
	threshold, err := cfg.Session.Threshold()
	if err != nil || !threshold.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("threshold = %s, %v", threshold, err)
	}
	if cfg.Session.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d", cfg.Session.MaxAttempts)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"nonce source", "nonce_source: counter\n", "nonce_source"},
		{"timeout", "request_timeout: soon\n", "request_timeout"},
		{"zero window", "session:\n  active_window: \"0\"\n", "active_window"},
		{"threshold", "session:\n  large_tx_threshold: lots\n", "large_tx_threshold"},
		{"negative threshold", "session:\n  large_tx_threshold: \"-5\"\n", "large_tx_threshold"},
		{"negative attempts", "session:\n  max_attempts: -1\n", "max_attempts"},
		{"yaml", "server_url: [\n", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.body)
			_, err := LoadConfig(dir)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestDefaultAddressPrefixMatchesSigning(t *testing.T) {
	if DefaultAddressPrefix != signing.DefaultAddressPrefix {
		t.Errorf("DefaultAddressPrefix = %q, signing uses %q", DefaultAddressPrefix, signing.DefaultAddressPrefix)
	}
	if got := DefaultVerifierConfig().AddressPrefix; got != signing.DefaultAddressPrefix {
		t.Errorf("verifier default prefix = %q", got)
	}
}

func TestGetClientDataDir(t *testing.T) {
	t.Setenv("APBRIDGE_DATA", "/from/env")
	if got := GetClientDataDir("/from/flag"); got != "/from/flag" {
		t.Errorf("flag ignored: %s", got)
	}
	if got := GetClientDataDir(""); got != "/from/env" {
		t.Errorf("env ignored: %s", got)
	}
}

func TestLoadVerifierConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadVerifierConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":11280" || cfg.Freshness() != 5*time.Minute || cfg.Sweep() != time.Minute {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Ledger.Backend != "memory" || cfg.RateLimit != 10 || cfg.RateBurst != 20 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.AuditLog != filepath.Join(dir, "audit.jsonl") {
		t.Errorf("audit path = %s", cfg.AuditLog)
	}
}

func TestLoadVerifierConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
freshness_window: 2m
audit_log: ""
ledger:
  backend: leveldb
  path: db/nonces
chain_actions:
  market: [bet, resolve]
`)
	t.Setenv("APVERIFY_LISTEN", "127.0.0.1:9999")

	cfg, err := LoadVerifierConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != "127.0.0.1:9999" {
		t.Errorf("env override ignored: %s", cfg.Listen)
	}
	if cfg.Freshness() != 2*time.Minute {
		t.Errorf("freshness = %s", cfg.Freshness())
	}
	if cfg.AuditLog != "" {
		t.Errorf("explicitly empty audit log replaced: %q", cfg.AuditLog)
	}
	if cfg.Ledger.Path != filepath.Join(dir, "db/nonces") {
		t.Errorf("ledger path = %s", cfg.Ledger.Path)
	}
	if cfg.RateLimit != 10 {
		t.Errorf("unset rate_limit lost its default: %v", cfg.RateLimit)
	}
	if got := cfg.ChainActions["market"]; len(got) != 2 {
		t.Errorf("chain_actions = %v", cfg.ChainActions)
	}
}

func TestLoadVerifierConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("APVERIFY_LEDGER=bogus\n"), 0600); err != nil {
		t.Fatal(err)
	}
	// Registered so the variable godotenv sets is removed afterwards
	t.Setenv("APVERIFY_LEDGER", "")
	os.Unsetenv("APVERIFY_LEDGER")

	_, err := LoadVerifierConfig(dir)
	if err == nil || !strings.Contains(err.Error(), "ledger.backend") {
		t.Fatalf("err = %v, want ledger.backend rejection from .env", err)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"15m", 15 * time.Minute, false},
		{"1h", time.Hour, false},
		{"-5m", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseDuration(%q) = %s, %v", tt.in, got, err)
		}
	}
}

func TestResolvePath(t *testing.T) {
	if got := ResolvePath("x", "/base"); got != "/base/x" {
		t.Errorf("relative: %s", got)
	}
	if got := ResolvePath("/abs", "/base"); got != "/abs" {
		t.Errorf("absolute: %s", got)
	}
	if got := ResolvePath("", "/base"); got != "" {
		t.Errorf("empty: %s", got)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	cfg := DefaultConfig()
	cfg.Chain = "market"
	cfg.Session.LargeTxThreshold = "250.5"

	if err := SaveConfig(dir, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	loaded, err := LoadConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Chain != "market" || loaded.Session.LargeTxThreshold != "250.5" {
		t.Errorf("loaded %+v", loaded)
	}
	if err := SaveConfig(dir, cfg); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("second save: %v", err)
	}
}
