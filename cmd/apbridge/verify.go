// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aplane-algo/apbridge/internal/request"
	"github.com/aplane-algo/apbridge/internal/verifier"

	"github.com/spf13/cobra"
)

func newVerifyCmd(a *app) *cobra.Command {
	var (
		window time.Duration
		at     int64
	)
	cmd := &cobra.Command{
		Use:   "verify [FILE]",
		Short: "Check a signed envelope locally (reads stdin without FILE)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if len(args) == 0 || args[0] == "-" {
				data, err = io.ReadAll(a.stdin)
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}

			now := time.Now
			if at != 0 {
				now = func() time.Time { return time.Unix(at, 0) }
			}
			v, err := verifier.New(
				verifier.WithWindow(window),
				verifier.WithAddressPrefix(a.cfg.AddressPrefix),
				verifier.WithClock(now),
			)
			if err != nil {
				return err
			}

			res := &verifier.Result{}
			req, err := request.Decode(data)
			if err != nil {
				res.Err = fmt.Errorf("%w: %v", verifier.ErrMalformedRequest, err)
			} else {
				res = v.Verify(cmd.Context(), req)
			}

			trace := make([]string, len(res.Trace))
			for i, s := range res.Trace {
				trace[i] = s.String()
			}
			out := cmd.OutOrStdout()
			if res.Address != "" {
				fmt.Fprintln(out, field("Address", res.Address))
			}
			if len(trace) > 0 {
				fmt.Fprintln(out, field("Trace", dimStyle.Render(strings.Join(trace, " → "))))
			}
			if !res.Accepted() {
				fmt.Fprintln(out, field("Result", errStyle.Render(string(res.Code()))))
				return res.Err
			}
			fmt.Fprintln(out, field("Result", okStyle.Render(string(verifier.CodeAccepted))))
			return nil
		},
	}
	cmd.Flags().DurationVar(&window, "window", 5*time.Minute, "freshness window")
	cmd.Flags().Int64Var(&at, "at", 0, "verify as of this Unix time instead of now")
	return cmd
}
