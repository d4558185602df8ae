// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/aplane-algo/apbridge/internal/crypto"
	"github.com/aplane-algo/apbridge/internal/signing"
	"github.com/aplane-algo/apbridge/internal/vault"

	"github.com/spf13/cobra"
)

func newVaultCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Create and inspect the encrypted wallet vault",
	}
	cmd.AddCommand(newVaultCreateCmd(a), newVaultInspectCmd(a), newVaultPasswdCmd(a))
	return cmd
}

func parseFormat(s string) (int, error) {
	switch strings.ToLower(s) {
	case "", "v2", "2", "pbkdf2":
		return vault.VersionPBKDF2, nil
	case "v3", "3", "argon2":
		return vault.VersionArgon2, nil
	default:
		return 0, fmt.Errorf("unknown vault format %q (use v2 or v3)", s)
	}
}

func newVaultCreateCmd(a *app) *cobra.Command {
	var (
		format     string
		importSeed bool
		hexLayout  bool
	)
	cmd := &cobra.Command{
		Use:         "create",
		Annotations: map[string]string{"secrets": "true"},
		Short:       "Generate (or import) a seed and seal it under a new password",
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseFormat(format)
			if err != nil {
				return err
			}
			store := a.store()
			if store.Exists() {
				return fmt.Errorf("%w at %s", vault.ErrVaultExists, store.Path())
			}

			var seed []byte
			if importSeed {
				seed, err = a.readSeed()
			} else {
				seed, err = crypto.RandomBytes(ed25519.SeedSize)
			}
			if err != nil {
				return err
			}
			defer crypto.ZeroBytes(seed)

			password, err := a.newPassword()
			if err != nil {
				return err
			}
			defer crypto.ZeroBytes(password)

			opts := []vault.SealOption{vault.WithVersion(version), vault.WithParams(a.params)}
			if hexLayout {
				opts = append(opts, vault.WithHexSeed())
			}
			v, err := vault.Seal(seed, password, opts...)
			if err != nil {
				return err
			}
			if err := store.Create(v); err != nil {
				return err
			}

			sk := ed25519.NewKeyFromSeed(seed)
			defer crypto.ZeroBytes(sk)
			address, err := signing.DeriveAddress(a.cfg.AddressPrefix, sk.Public().(ed25519.PublicKey))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, okStyle.Render("✓ Vault created"))
			fmt.Fprintln(out, field("Path", store.Path()))
			fmt.Fprintln(out, field("Format", v.Summarize().Suite))
			fmt.Fprintln(out, field("Address", address))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "v2", "vault format: v2 (PBKDF2 + AES-GCM) or v3 (Argon2id + XChaCha20)")
	cmd.Flags().BoolVar(&importSeed, "import", false, "prompt for an existing 32-byte seed (hex) instead of generating one")
	cmd.Flags().BoolVar(&hexLayout, "hex-seed", false, "store the seed hex-encoded, as browser wallets do")
	return cmd
}

// readSeed prompts for a hex seed without echo.
func (a *app) readSeed() ([]byte, error) {
	text, err := a.readPassword("Seed (64 hex characters): ")
	if err != nil {
		return nil, err
	}
	defer crypto.ZeroBytes(text)

	seed := make([]byte, ed25519.SeedSize)
	trimmed := bytes.TrimSpace(text)
	if hex.DecodedLen(len(trimmed)) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d hex characters", 2*ed25519.SeedSize)
	}
	if _, err := hex.Decode(seed, trimmed); err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	return seed, nil
}

func newVaultInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show vault format metadata without decrypting",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.store().Load()
			if err != nil {
				return err
			}
			s := v.Summarize()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render("Vault"))
			fmt.Fprintln(out, field("Path", a.store().Path()))
			fmt.Fprintln(out, field("Version", fmt.Sprintf("%d", s.Version)))
			fmt.Fprintln(out, field("Suite", s.Suite))
			fmt.Fprintln(out, field("Ciphertext", fmt.Sprintf("%d bytes", s.BlobBytes)))
			fmt.Fprintln(out, field("Salt", fmt.Sprintf("%d bytes", s.SaltBytes)))
			fmt.Fprintln(out, field("Auth salt", fmt.Sprintf("%t", s.HasAuth)))
			return nil
		},
	}
}

func newVaultPasswdCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:         "passwd",
		Annotations: map[string]string{"secrets": "true"},
		Short:       "Re-seal the vault under a new password, optionally changing its format",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.store()
			old, err := store.Load()
			if err != nil {
				return err
			}
			version := old.Version
			if format != "" {
				if version, err = parseFormat(format); err != nil {
					return err
				}
			}

			current, err := a.vaultPassword(cmd.Context(), "Current password: ")
			if err != nil {
				return err
			}
			kp, err := a.deriver().DeriveContext(cmd.Context(), old, current)
			crypto.ZeroBytes(current)
			if err != nil {
				return err
			}
			defer kp.Destroy()

			password, err := a.newPassword()
			if err != nil {
				return err
			}
			defer crypto.ZeroBytes(password)

			var sealed *vault.Vault
			err = kp.WithSecret(func(sk ed25519.PrivateKey) error {
				seed := sk.Seed()
				defer crypto.ZeroBytes(seed)
				var serr error
				sealed, serr = vault.Seal(seed, password, vault.WithVersion(version), vault.WithParams(a.params))
				return serr
			})
			if err != nil {
				return err
			}
			if err := store.Replace(sealed); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("✓ Vault re-sealed as "+sealed.Summarize().Suite))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "new vault format (v2 or v3, default keeps the current one)")
	return cmd
}
