// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/aplane-algo/apbridge/internal/conformance"

	"github.com/spf13/cobra"
)

func newConformanceCmd(a *app) *cobra.Command {
	var (
		file   string
		skipJS bool
	)
	cmd := &cobra.Command{
		Use:         "conformance",
		Short:       "Run the shared canonical-encoding and signing vectors",
		Annotations: map[string]string{"noconfig": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var v *conformance.Vectors
			var err error
			if file != "" {
				data, rerr := os.ReadFile(file)
				if rerr != nil {
					return rerr
				}
				v, err = conformance.Parse(data)
			} else {
				v, err = conformance.Load()
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failures := conformance.Check(v)
			report(out, "Go", v.Count(), failures)

			if !skipJS {
				jsFailures, err := conformance.CheckJS(v)
				if err != nil {
					return err
				}
				report(out, "JavaScript", len(v.Canonical)+len(v.Signatures), jsFailures)
				failures = append(failures, jsFailures...)
			}

			if len(failures) > 0 {
				return fmt.Errorf("%d conformance failure(s)", len(failures))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "vectors", "", "vector file to check instead of the built-in set")
	cmd.Flags().BoolVar(&skipJS, "no-js", false, "skip the embedded JavaScript reference")
	return cmd
}

func report(w io.Writer, name string, total int, failures []conformance.Failure) {
	if len(failures) == 0 {
		fmt.Fprintln(w, okStyle.Render(fmt.Sprintf("✓ %s: %d vectors passed", name, total)))
		return
	}
	fmt.Fprintln(w, errStyle.Render(fmt.Sprintf("✗ %s: %d failure(s)", name, len(failures))))
	for _, f := range failures {
		fmt.Fprintln(w, "  "+f.String())
	}
}
