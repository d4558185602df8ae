// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"fmt"

	"github.com/aplane-algo/apbridge/internal/util"

	"github.com/spf13/cobra"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialize config.yaml",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Run: func(cmd *cobra.Command, args []string) {
				util.DisplayConfig(a.dataDir)
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Write a config.yaml with default values",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := util.SaveConfig(a.dataDir, util.DefaultConfig()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("✓ Wrote "+util.GetConfigPath(a.dataDir)))
				return nil
			},
		},
	)
	return cmd
}
