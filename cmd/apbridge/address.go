// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"encoding/hex"
	"fmt"

	"github.com/aplane-algo/apbridge/internal/crypto"
	"github.com/aplane-algo/apbridge/internal/signing"

	"github.com/spf13/cobra"
)

func newAddressCmd(a *app) *cobra.Command {
	var showAuthKey bool
	cmd := &cobra.Command{
		Use:         "address",
		Annotations: map[string]string{"secrets": "true"},
		Short:       "Decrypt the vault and print the wallet address and public key",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.store().Load()
			if err != nil {
				return err
			}
			password, err := a.vaultPassword(cmd.Context(), "Vault password: ")
			if err != nil {
				return err
			}
			defer crypto.ZeroBytes(password)
			d := a.deriver()
			kp, err := d.DeriveContext(cmd.Context(), v, password)
			if err != nil {
				return err
			}
			defer kp.Destroy()

			pub := kp.PublicKey()
			address, err := signing.DeriveAddress(a.cfg.AddressPrefix, pub)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, field("Address", address))
			fmt.Fprintln(out, field("Public key", hex.EncodeToString(pub)))
			if showAuthKey {
				key, err := d.AuthKey(v, password)
				if err != nil {
					return err
				}
				defer crypto.ZeroBytes(key)
				fmt.Fprintln(out, field("Auth key", hex.EncodeToString(key)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showAuthKey, "auth-key", false, "also print the login proof derived from the auth salt")
	return cmd
}
