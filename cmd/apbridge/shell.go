// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aplane-algo/apbridge/internal/bridge"
	"github.com/aplane-algo/apbridge/internal/canonical"
	"github.com/aplane-algo/apbridge/internal/crypto"
	"github.com/aplane-algo/apbridge/internal/request"
	"github.com/aplane-algo/apbridge/internal/session"
	"github.com/aplane-algo/apbridge/internal/signing"
	"github.com/aplane-algo/apbridge/internal/util"
	"github.com/aplane-algo/apbridge/internal/vault"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

var errQuit = errors.New("quit")

// shell is one interactive session over the vault.
type shell struct {
	app    *app
	client *bridge.Client
	chain  signing.ChainID
	out    io.Writer
}

func newShellCmd(a *app) *cobra.Command {
	var noWatch bool
	cmd := &cobra.Command{
		Use:         "shell",
		Annotations: map[string]string{"secrets": "true"},
		Short:       "Interactive session: sign repeatedly with a cached password",
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, err := newShell(a, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if !noWatch {
				if err := sh.watchVault(ctx); err != nil {
					util.Logger.Warn("vault changes will not be picked up", "error", err)
				}
			}
			return sh.run(ctx)
		},
	}
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not reload the vault when the file changes")
	return cmd
}

func newShell(a *app, out io.Writer) (*shell, error) {
	chain, err := a.chain("")
	if err != nil {
		return nil, err
	}
	sh := &shell{app: a, chain: chain, out: out}
	sh.client, err = a.client(session.OnLogout(func(reason session.LogoutReason) {
		if reason == session.LogoutInactivity {
			fmt.Fprintln(out, warnStyle.Render("Session ended after inactivity"))
		}
	}))
	if err != nil {
		return nil, err
	}
	return sh, nil
}

func (sh *shell) watchVault(ctx context.Context) error {
	return sh.app.store().Watch(ctx, func(v *vault.Vault, err error) {
		if err != nil {
			fmt.Fprintln(sh.out, errStyle.Render("Vault unavailable: "+err.Error()))
			sh.client.SetVault(nil)
			return
		}
		sh.client.SetVault(v)
		fmt.Fprintln(sh.out, warnStyle.Render("Vault changed on disk, reloaded. Log in again."))
	})
}

func (sh *shell) prompt() string {
	lock := "locked"
	if sh.client.Session().IsUnlocked() {
		lock = "unlocked"
	}
	return fmt.Sprintf("apbridge[%s|%s]> ", sh.chain, lock)
}

func (sh *shell) run(ctx context.Context) error {
	fmt.Fprintln(sh.out, titleStyle.Render("apbridge shell"))
	fmt.Fprintln(sh.out, dimStyle.Render("Type 'help' for commands, 'quit' to exit"))

	home, _ := os.UserHomeDir()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            sh.prompt(),
		HistoryFile:       filepath.Join(home, ".apbridge_history"),
		HistoryLimit:      1000,
		AutoComplete:      shellCompleter(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to start line editor: %w", err)
	}
	defer func() { _ = rl.Close() }()

	// Passwords typed in the shell go through readline's masked input
	sh.app.readPassword = func(prompt string) ([]byte, error) {
		return rl.ReadPassword(prompt)
	}

	for {
		rl.SetPrompt(sh.prompt())
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if len(line) == 0 {
					fmt.Fprintln(sh.out, "Use 'quit' or 'exit' to exit")
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if err := sh.exec(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				break
			}
			fmt.Fprintln(sh.out, errStyle.Render("Error: "+err.Error()))
		}
	}
	sh.client.Session().Logout()
	fmt.Fprintln(sh.out, "Goodbye!")
	return nil
}

func shellCompleter() *readline.PrefixCompleter {
	actions := func() []readline.PrefixCompleterInterface {
		var items []readline.PrefixCompleterInterface
		for _, a := range request.KnownActions {
			items = append(items, readline.PcItem(string(a)))
		}
		return items
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("status"),
		readline.PcItem("login"),
		readline.PcItem("logout"),
		readline.PcItem("address"),
		readline.PcItem("chain", readline.PcItem("ledger"), readline.PcItem("market")),
		readline.PcItem("sign", actions()...),
		readline.PcItem("submit", actions()...),
		readline.PcItem("quit"),
	)
}

// exec runs one shell line.
func (sh *shell) exec(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case "help", "?":
		sh.help()
	case "quit", "exit":
		return errQuit
	case "status":
		sh.status()
	case "login":
		return sh.login()
	case "logout":
		sh.client.Session().Logout()
		fmt.Fprintln(sh.out, "Logged out")
	case "address":
		if addr := sh.client.Address(); addr != "" {
			fmt.Fprintln(sh.out, addr)
		} else {
			fmt.Fprintln(sh.out, dimStyle.Render("unknown until the first signature (or run 'apbridge address')"))
		}
	case "chain":
		if rest == "" {
			fmt.Fprintln(sh.out, sh.chain)
			return nil
		}
		chain, err := signing.ParseChainID(rest)
		if err != nil {
			return err
		}
		sh.chain = chain
	case "sign", "submit":
		return sh.sign(ctx, name == "submit", rest)
	default:
		return fmt.Errorf("unknown command %q (try 'help')", name)
	}
	return nil
}

func (sh *shell) help() {
	lines := [][2]string{
		{"status", "show session state and remaining windows"},
		{"login", "enter the vault password and start a session"},
		{"logout", "end the session and wipe the cached password"},
		{"address", "show the wallet address"},
		{"chain [NAME]", "show or set the chain (ledger, market, 1-255)"},
		{"sign ACTION JSON", "sign and print an envelope"},
		{"submit ACTION JSON", "sign and post to the verifier"},
		{"quit", "leave the shell"},
	}
	for _, l := range lines {
		fmt.Fprintf(sh.out, "  %-20s %s\n", l[0], dimStyle.Render(l[1]))
	}
}

func (sh *shell) status() {
	s := sh.client.Session().Status()
	cfg := sh.client.Session().Config()
	if !s.LoggedIn {
		fmt.Fprintln(sh.out, field("Session", warnStyle.Render("logged out")))
		return
	}
	fmt.Fprintln(sh.out, field("Session", okStyle.Render("logged in")))
	if s.Unlocked {
		fmt.Fprintln(sh.out, field("Password", fmt.Sprintf("cached, %s left", s.PasswordLeft.Round(time.Second))))
	} else {
		fmt.Fprintln(sh.out, field("Password", warnStyle.Render("expired, will prompt")))
	}
	fmt.Fprintln(sh.out, field("Idle logout", s.InactiveLeft.Round(time.Second).String()))
	fmt.Fprintln(sh.out, field("Threshold", cfg.LargeTxThreshold.String()))
}

func (sh *shell) login() error {
	password, err := sh.app.readPassword("Vault password: ")
	if err != nil {
		return err
	}
	defer crypto.ZeroBytes(password)
	if err := sh.client.Session().SupplyPassword(password); err != nil {
		return err
	}
	fmt.Fprintln(sh.out, okStyle.Render("✓ Logged in"))
	return nil
}

func (sh *shell) sign(ctx context.Context, submit bool, args string) error {
	actionName, payloadText, ok := strings.Cut(args, " ")
	if !ok {
		return fmt.Errorf("usage: sign ACTION JSON")
	}
	action, err := request.ParseAction(actionName)
	if err != nil {
		return err
	}
	payload, err := canonical.ParseString(strings.TrimSpace(payloadText))
	if err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	amount, err := payloadAmount(payload)
	if err != nil {
		return err
	}

	do := func(password []byte) error {
		if !submit {
			req, err := sh.client.Sign(ctx, action, payload, amount, sh.chain, password)
			if err != nil {
				return err
			}
			return writeEnvelope(sh.out, req)
		}
		_, receipt, err := sh.client.Submit(ctx, action, payload, amount, sh.chain, password)
		if err != nil {
			return err
		}
		fmt.Fprintln(sh.out, okStyle.Render("✓ Accepted, nonce "+receipt.Nonce))
		return nil
	}

	err = do(nil)
	if !session.PasswordRequired(err) {
		return err
	}

	if errors.Is(err, session.ErrAuthenticationRequired) {
		fmt.Fprintln(sh.out, warnStyle.Render(fmt.Sprintf("Amount %s needs the password", amount)))
	}
	password, perr := sh.app.readPassword("Vault password: ")
	if perr != nil {
		return perr
	}
	defer crypto.ZeroBytes(password)

	if errors.Is(err, session.ErrAuthenticationRequired) {
		return do(password)
	}
	if err := sh.client.Session().SupplyPassword(password); err != nil {
		return err
	}
	return do(nil)
}
