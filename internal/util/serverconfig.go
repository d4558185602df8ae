// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LedgerConfig selects where accepted nonces are remembered.
type LedgerConfig struct {
	Backend       string `yaml:"backend" description:"Nonce ledger backend (memory, leveldb, redis)" default:"memory"`
	Path          string `yaml:"path" description:"LevelDB directory (relative to data dir)" default:"nonces"`
	RedisAddr     string `yaml:"redis_addr" description:"Redis address for the redis backend" default:"localhost:6379"`
	RedisPassword string `yaml:"redis_password" description:"Redis password"`
	RedisDB       int    `yaml:"redis_db" description:"Redis database number" default:"0"`
	RedisPrefix   string `yaml:"redis_prefix" description:"Key prefix for nonce entries" default:"apbridge:nonce:"`
}

// VerifierConfig represents the apverifyd configuration file
type VerifierConfig struct {
	Listen          string              `yaml:"listen" description:"HTTP listen address" default:":11280"`
	FreshnessWindow string              `yaml:"freshness_window" description:"Maximum clock skew accepted for request timestamps" default:"5m"`
	AddressPrefix   string              `yaml:"address_prefix" description:"Wallet address prefix expected on requests" default:"LDG"`
	Ledger          LedgerConfig        `yaml:"ledger" description:"Nonce ledger settings"`
	SweepInterval   string              `yaml:"sweep_interval" description:"How often expired nonces are removed" default:"1m"`
	AuditLog        string              `yaml:"audit_log" description:"Append-only JSON audit log (relative to data dir, empty disables)" default:"audit.jsonl"`
	RateLimit       float64             `yaml:"rate_limit" description:"Requests per second allowed per client address (0 disables)" default:"10"`
	RateBurst       int                 `yaml:"rate_burst" description:"Burst size for the per-client limiter" default:"20"`
	TokenFile       string              `yaml:"token_file" description:"Bearer token guarding the admin API (relative to data dir)" default:"apbridge.token"`
	ChainActions    map[string][]string `yaml:"chain_actions" description:"Actions permitted per chain (empty = built-in policy)"`
}

// ResolvePath resolves a path relative to baseDir if not absolute.
// Returns path unchanged if empty or already absolute.
func ResolvePath(path, baseDir string) string {
	if path == "" || baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// DefaultLedgerConfig returns the in-memory ledger settings.
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		Backend:     "memory",
		Path:        "nonces",
		RedisAddr:   "localhost:6379",
		RedisPrefix: "apbridge:nonce:",
	}
}

// DefaultVerifierConfig returns the default verifier configuration.
// Relative paths are resolved against the data directory ($APVERIFY_DATA).
func DefaultVerifierConfig() VerifierConfig {
	return VerifierConfig{
		Listen:          fmt.Sprintf(":%d", DefaultVerifierPort),
		FreshnessWindow: "5m",
		AddressPrefix:   DefaultAddressPrefix,
		Ledger:          DefaultLedgerConfig(),
		SweepInterval:   "1m",
		AuditLog:        "audit.jsonl",
		RateLimit:       10,
		RateBurst:       20,
		TokenFile:       "apbridge.token",
	}
}

// GetVerifierDataDir returns the data directory for apverifyd.
// It checks -d flag value first (passed as parameter), then APVERIFY_DATA env var.
// Returns empty string if neither is set.
func GetVerifierDataDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("APVERIFY_DATA")
}

// LoadVerifierConfig loads <dataDir>/config.yaml, then applies <dataDir>/.env
// and APVERIFY_* environment overrides. A missing file yields defaults.
func LoadVerifierConfig(dataDir string) (VerifierConfig, error) {
	config := DefaultVerifierConfig()

	if dataDir != "" {
		path := filepath.Join(dataDir, "config.yaml")
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			// Overlay the file on the defaults
			if err := yaml.Unmarshal(data, &config); err != nil {
				return VerifierConfig{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return VerifierConfig{}, fmt.Errorf("failed to read config file: %w", err)
		}

		// .env never overrides variables already set in the process
		envPath := filepath.Join(dataDir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return VerifierConfig{}, fmt.Errorf("failed to load %s: %w", envPath, err)
			}
		}
	}

	config.fillDefaults()
	if err := config.applyEnv(); err != nil {
		return VerifierConfig{}, err
	}
	if err := config.Validate(); err != nil {
		return VerifierConfig{}, err
	}

	config.Ledger.Path = ResolvePath(config.Ledger.Path, dataDir)
	config.AuditLog = ResolvePath(config.AuditLog, dataDir)
	config.TokenFile = ResolvePath(config.TokenFile, dataDir)
	return config, nil
}

func (c *VerifierConfig) fillDefaults() {
	defaults := DefaultVerifierConfig()
	if c.Listen == "" {
		c.Listen = defaults.Listen
	}
	if c.FreshnessWindow == "" {
		c.FreshnessWindow = defaults.FreshnessWindow
	}
	if c.AddressPrefix == "" {
		c.AddressPrefix = defaults.AddressPrefix
	}
	if c.SweepInterval == "" {
		c.SweepInterval = defaults.SweepInterval
	}
	if c.RateBurst == 0 {
		c.RateBurst = defaults.RateBurst
	}
	if c.TokenFile == "" {
		c.TokenFile = defaults.TokenFile
	}
	// An explicitly empty audit_log disables auditing.
	ld := defaults.Ledger
	if c.Ledger.Backend == "" {
		c.Ledger.Backend = ld.Backend
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = ld.Path
	}
	if c.Ledger.RedisAddr == "" {
		c.Ledger.RedisAddr = ld.RedisAddr
	}
	if c.Ledger.RedisPrefix == "" {
		c.Ledger.RedisPrefix = ld.RedisPrefix
	}
}

// applyEnv applies APVERIFY_* overrides.
func (c *VerifierConfig) applyEnv() error {
	if v := os.Getenv("APVERIFY_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("APVERIFY_LEDGER"); v != "" {
		c.Ledger.Backend = v
	}
	if v := os.Getenv("APVERIFY_REDIS_ADDR"); v != "" {
		c.Ledger.RedisAddr = v
	}
	if v := os.Getenv("APVERIFY_REDIS_PASSWORD"); v != "" {
		c.Ledger.RedisPassword = v
	}
	if v := os.Getenv("APVERIFY_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid APVERIFY_RATE_LIMIT %q: %w", v, err)
		}
		c.RateLimit = f
	}
	return nil
}

// Validate checks enumerations and durations.
func (c *VerifierConfig) Validate() error {
	switch c.Ledger.Backend {
	case "memory", "leveldb", "redis":
	default:
		return fmt.Errorf("invalid ledger.backend %q (must be memory, leveldb, or redis)", c.Ledger.Backend)
	}
	if w, err := ParseDuration(c.FreshnessWindow); err != nil || w == 0 {
		return fmt.Errorf("invalid freshness_window %q", c.FreshnessWindow)
	}
	if _, err := ParseDuration(c.SweepInterval); err != nil {
		return fmt.Errorf("invalid sweep_interval: %w", err)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative")
	}
	return nil
}

// Freshness returns the parsed freshness window.
func (c *VerifierConfig) Freshness() time.Duration {
	d, _ := ParseDuration(c.FreshnessWindow)
	return d
}

// Sweep returns the parsed sweep interval. Zero disables sweeping.
func (c *VerifierConfig) Sweep() time.Duration {
	d, _ := ParseDuration(c.SweepInterval)
	return d
}

// ParseDuration parses a duration string into a time.Duration.
// Accepts formats like: "0" (disabled), "15m" (15 minutes), "1h" (1 hour).
// Negative durations are rejected.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration format: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q not supported", s)
	}
	return d, nil
}
