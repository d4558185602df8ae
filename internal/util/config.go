// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aplane-algo/apbridge/internal/fsutil"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// SessionSettings holds the password cache windows shared by the CLI shell
// and any embedding client.
type SessionSettings struct {
	ActiveWindow     string `yaml:"active_window" description:"How long a supplied password is reused, slid forward by activity" default:"10m"`
	InactivityWindow string `yaml:"inactivity_window" description:"Idle time before the session logs out" default:"60m"`
	LargeTxThreshold string `yaml:"large_tx_threshold" description:"Amounts at or above this always prompt for the password" default:"1000"`
	MaxAttempts      int    `yaml:"max_attempts" description:"Password attempts allowed before throttling" default:"5"`
}

// Config holds apbridge client configuration settings
type Config struct {
	ServerURL      string          `yaml:"server_url" description:"Base URL of the verifier service" default:"http://localhost:11280"`
	VaultFile      string          `yaml:"vault_file" description:"Vault path (relative to data dir)" default:"vault.json"`
	Chain          string          `yaml:"chain" description:"Default chain (ledger, market, or 1-255)" default:"ledger"`
	AddressPrefix  string          `yaml:"address_prefix" description:"Wallet address prefix" default:"LDG"`
	NonceSource    string          `yaml:"nonce_source" description:"Nonce generator (uuid or ulid)" default:"uuid"`
	RequestTimeout string          `yaml:"request_timeout" description:"HTTP timeout for submissions" default:"30s"`
	TokenFile      string          `yaml:"token_file" description:"Bearer token for the verifier admin API (relative to data dir)" default:"apbridge.token"`
	Session        SessionSettings `yaml:"session" description:"Session windows"`

	RequireMemoryLock bool            `yaml:"require_memory_lock" description:"Refuse to handle keys if memory cannot be locked" default:"false"`
	PasswordCommand   PasswordCommand `yaml:"password_command" description:"Helper that prints the vault password instead of prompting"`
}

// DefaultSessionSettings returns the default session windows.
func DefaultSessionSettings() SessionSettings {
	return SessionSettings{
		ActiveWindow:     "10m",
		InactivityWindow: "60m",
		LargeTxThreshold: "1000",
		MaxAttempts:      5,
	}
}

// DefaultConfig returns the default configuration for runtime use.
func DefaultConfig() Config {
	return Config{
		ServerURL:      fmt.Sprintf("http://localhost:%d", DefaultVerifierPort),
		VaultFile:      "vault.json",
		Chain:          "ledger",
		AddressPrefix:  DefaultAddressPrefix,
		NonceSource:    "uuid",
		RequestTimeout: "30s",
		TokenFile:      "apbridge.token",
		Session:        DefaultSessionSettings(),
	}
}

// GetClientDataDir returns the data directory for apbridge.
// Resolution order: -d flag > APBRIDGE_DATA env var > ~/.apbridge
func GetClientDataDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envDir := os.Getenv("APBRIDGE_DATA"); envDir != "" {
		return envDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".apbridge")
}

// GetConfigPath returns the path to the config file in the data directory.
// Returns empty string if dataDir is empty.
func GetConfigPath(dataDir string) string {
	if dataDir == "" {
		return ""
	}
	return filepath.Join(dataDir, "config.yaml")
}

// LoadConfig loads config.yaml from the data directory, filling missing
// fields with defaults and resolving relative paths against dataDir.
// A missing file yields the defaults.
func LoadConfig(dataDir string) (Config, error) {
	config, err := LoadConfigFromPath(GetConfigPath(dataDir))
	if err != nil {
		return config, err
	}
	config.VaultFile = ResolvePath(config.VaultFile, dataDir)
	config.TokenFile = ResolvePath(config.TokenFile, dataDir)
	return config, nil
}

// LoadConfigFromPath loads configuration from the specified path.
// If path is empty or the file doesn't exist, returns default config.
func LoadConfigFromPath(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return DefaultConfig(), fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	defaults := DefaultConfig()
	if config.ServerURL == "" {
		config.ServerURL = defaults.ServerURL
	}
	if config.VaultFile == "" {
		config.VaultFile = defaults.VaultFile
	}
	if config.Chain == "" {
		config.Chain = defaults.Chain
	}
	if config.AddressPrefix == "" {
		config.AddressPrefix = defaults.AddressPrefix
	}
	if config.NonceSource == "" {
		config.NonceSource = defaults.NonceSource
	}
	if config.RequestTimeout == "" {
		config.RequestTimeout = defaults.RequestTimeout
	}
	if config.TokenFile == "" {
		config.TokenFile = defaults.TokenFile
	}
	config.Session.fillDefaults()

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (s *SessionSettings) fillDefaults() {
	d := DefaultSessionSettings()
	if s.ActiveWindow == "" {
		s.ActiveWindow = d.ActiveWindow
	}
	if s.InactivityWindow == "" {
		s.InactivityWindow = d.InactivityWindow
	}
	if s.LargeTxThreshold == "" {
		s.LargeTxThreshold = d.LargeTxThreshold
	}
	if s.MaxAttempts == 0 {
		s.MaxAttempts = d.MaxAttempts
	}
}

// Validate checks the fields that are parsed later at use.
func (c *Config) Validate() error {
	switch c.NonceSource {
	case "uuid", "ulid":
	default:
		return fmt.Errorf("invalid nonce_source %q (must be uuid or ulid)", c.NonceSource)
	}
	if _, err := ParseDuration(c.RequestTimeout); err != nil {
		return fmt.Errorf("invalid request_timeout: %w", err)
	}
	if _, _, err := c.Session.Windows(); err != nil {
		return err
	}
	if _, err := c.Session.Threshold(); err != nil {
		return err
	}
	if c.Session.MaxAttempts < 1 {
		return fmt.Errorf("invalid session.max_attempts %d (must be at least 1)", c.Session.MaxAttempts)
	}
	return nil
}

// Windows parses the active and inactivity windows. Both must be positive.
func (s SessionSettings) Windows() (active, inactivity time.Duration, err error) {
	active, err = ParseDuration(s.ActiveWindow)
	if err != nil || active == 0 {
		return 0, 0, fmt.Errorf("invalid session.active_window %q", s.ActiveWindow)
	}
	inactivity, err = ParseDuration(s.InactivityWindow)
	if err != nil || inactivity == 0 {
		return 0, 0, fmt.Errorf("invalid session.inactivity_window %q", s.InactivityWindow)
	}
	return active, inactivity, nil
}

// Threshold parses the large-transaction threshold as an exact decimal.
func (s SessionSettings) Threshold() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s.LargeTxThreshold)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("invalid session.large_tx_threshold %q", s.LargeTxThreshold)
	}
	return d, nil
}

// SaveConfig writes config to <dataDir>/config.yaml with owner-only
// permissions. It refuses to overwrite an existing file.
func SaveConfig(dataDir string, config Config) error {
	path := GetConfigPath(dataDir)
	if path == "" {
		return fmt.Errorf("data directory required")
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	data, err := yaml.Marshal(&config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := fsutil.MkdirAll(dataDir); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, data)
}

// DisplayConfig prints the current configuration
func DisplayConfig(dataDir string) {
	config, err := LoadConfig(dataDir)

	fmt.Println("Current Configuration:")
	fmt.Println("=====================")
	fmt.Printf("Data dir:    %s\n", dataDir)
	fmt.Printf("Config file: %s\n", GetConfigPath(dataDir))
	if err != nil {
		fmt.Printf("Error:       %v\n", err)
		fmt.Println()
		return
	}
	fmt.Printf("Server:      %s\n", config.ServerURL)
	fmt.Printf("Vault:       %s\n", config.VaultFile)
	fmt.Printf("Chain:       %s\n", config.Chain)
	fmt.Printf("Prefix:      %s\n", config.AddressPrefix)
	fmt.Printf("Nonces:      %s\n", config.NonceSource)
	if config.PasswordCommand.Enabled() {
		fmt.Printf("Password:    helper %s\n", config.PasswordCommand.Argv[0])
	}
	fmt.Printf("Session:     active %s, inactivity %s, threshold %s\n",
		config.Session.ActiveWindow, config.Session.InactivityWindow, config.Session.LargeTxThreshold)
	fmt.Println()
}
