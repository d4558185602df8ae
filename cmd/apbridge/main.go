// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Command apbridge manages a wallet vault and signs bridge requests.
package main

import (
	"fmt"
	"os"

	"github.com/aplane-algo/apbridge/internal/security"
	"github.com/aplane-algo/apbridge/internal/util"
	"github.com/aplane-algo/apbridge/internal/version"

	"github.com/spf13/cobra"
)

func main() {
	util.InitLogger()
	if err := newRootCmd(newApp()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "apbridge",
		Short:         "Sign and submit authenticated bridge requests",
		Long:          "apbridge keeps an encrypted wallet vault and produces signed, replay-protected requests for the ledger and market layers.",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["noconfig"] == "true" {
				return nil
			}
			if err := a.load(); err != nil {
				return err
			}
			if cmd.Annotations["secrets"] == "true" {
				return a.harden(security.Options{RequireMemoryLock: a.cfg.RequireMemoryLock})
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.dataDirFlag, "data", "d", "", "data directory (default $APBRIDGE_DATA or ~/.apbridge)")

	root.AddCommand(
		newVaultCmd(a),
		newAddressCmd(a),
		newSignCmd(a),
		newVerifyCmd(a),
		newHealthCmd(a),
		newSweepCmd(a),
		newShellCmd(a),
		newConformanceCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{"noconfig": "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "apbridge %s\n", version.String())
		},
	}
}
