// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"fmt"

	"github.com/aplane-algo/apbridge/internal/util"

	"github.com/spf13/cobra"
)

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the verifier is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.transport("").Health(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("✓ Verifier reachable at "+a.cfg.ServerURL))
			return nil
		},
	}
}

func newSweepCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Ask the verifier to drop expired nonces (needs the admin token)",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := util.ReadToken(a.cfg.TokenFile)
			if err != nil {
				return fmt.Errorf("failed to read admin token: %w", err)
			}
			n, err := a.transport(token).Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired nonce(s)\n", n)
			return nil
		},
	}
}
