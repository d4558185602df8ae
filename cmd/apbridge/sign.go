// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aplane-algo/apbridge/internal/canonical"
	"github.com/aplane-algo/apbridge/internal/crypto"
	"github.com/aplane-algo/apbridge/internal/request"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var errRejected = errors.New("request rejected")

// readPayload accepts inline JSON, @path, or - for stdin.
func (a *app) readPayload(arg string) (canonical.Value, error) {
	var data []byte
	var err error
	switch {
	case arg == "-":
		data, err = io.ReadAll(a.stdin)
	case strings.HasPrefix(arg, "@"):
		data, err = os.ReadFile(arg[1:])
	default:
		data = []byte(arg)
	}
	if err != nil {
		return canonical.Value{}, fmt.Errorf("failed to read payload: %w", err)
	}
	v, err := canonical.Parse(data)
	if err != nil {
		return canonical.Value{}, fmt.Errorf("invalid payload: %w", err)
	}
	if v.Kind() != canonical.KindObject {
		return canonical.Value{}, fmt.Errorf("payload must be a JSON object, got %s", v.Kind())
	}
	return v, nil
}

// payloadAmount reads the "amount" member as a decimal. Payloads without
// one count as zero.
func payloadAmount(payload canonical.Value) (decimal.Decimal, error) {
	v, ok := payload.Get("amount")
	if !ok {
		return decimal.Zero, nil
	}
	if s, ok := v.AsString(); ok {
		return decimal.NewFromString(s)
	}
	if n, ok := v.AsNumber(); ok {
		return decimal.NewFromFloat(n), nil
	}
	return decimal.Zero, fmt.Errorf("amount must be a string or number")
}

// resolveAmount prefers the --amount flag over the payload.
func resolveAmount(flag string, payload canonical.Value) (decimal.Decimal, error) {
	if flag != "" {
		d, err := decimal.NewFromString(flag)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid --amount: %w", err)
		}
		return d, nil
	}
	return payloadAmount(payload)
}

func writeEnvelope(w io.Writer, req *request.SignedRequest) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(req)
}

func newSignCmd(a *app) *cobra.Command {
	var (
		chainFlag  string
		amountFlag string
		submit     bool
		confirm    bool
	)
	cmd := &cobra.Command{
		Use:         "sign ACTION PAYLOAD",
		Annotations: map[string]string{"secrets": "true"},
		Short:       "Sign a request (and optionally submit it to the verifier)",
		Long: `Sign ACTION over PAYLOAD and print the signed envelope.

ACTION is one of bridge_transfer, withdraw, bet, resolve.
PAYLOAD is a JSON object given inline, as @file, or - for stdin.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := request.ParseAction(args[0])
			if err != nil {
				return err
			}
			chain, err := a.chain(chainFlag)
			if err != nil {
				return err
			}
			payload, err := a.readPayload(args[1])
			if err != nil {
				return err
			}
			amount, err := resolveAmount(amountFlag, payload)
			if err != nil {
				return err
			}

			client, err := a.client()
			if err != nil {
				return err
			}
			if confirm {
				approved, err := a.confirm(signSummary{
					Action:    action,
					Chain:     chain,
					Amount:    amount,
					Threshold: client.Session().Config().LargeTxThreshold,
					Payload:   payload,
				})
				if err != nil {
					return err
				}
				if !approved {
					return errRejected
				}
			}
			password, err := a.vaultPassword(cmd.Context(), "Vault password: ")
			if err != nil {
				return err
			}
			defer crypto.ZeroBytes(password)

			if !submit {
				req, err := client.Sign(cmd.Context(), action, payload, amount, chain, password)
				if err != nil {
					return err
				}
				return writeEnvelope(cmd.OutOrStdout(), req)
			}

			req, receipt, err := client.Submit(cmd.Context(), action, payload, amount, chain, password)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, okStyle.Render("✓ Accepted by verifier"))
			fmt.Fprintln(out, field("Address", receipt.Address))
			fmt.Fprintln(out, field("Action", string(receipt.Action)))
			fmt.Fprintln(out, field("Chain", req.Chain().String()))
			fmt.Fprintln(out, field("Nonce", receipt.Nonce))
			return nil
		},
	}
	cmd.Flags().StringVarP(&chainFlag, "chain", "c", "", "chain (ledger, market, or 1-255; default from config)")
	cmd.Flags().StringVar(&amountFlag, "amount", "", "amount checked against the large-transaction threshold (default: payload amount)")
	cmd.Flags().BoolVar(&submit, "submit", false, "post the signed request to the verifier")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "review and approve the request before the vault is opened")
	return cmd
}
