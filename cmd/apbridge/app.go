// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aplane-algo/apbridge/internal/bridge"
	"github.com/aplane-algo/apbridge/internal/crypto"
	"github.com/aplane-algo/apbridge/internal/keyderive"
	"github.com/aplane-algo/apbridge/internal/request"
	"github.com/aplane-algo/apbridge/internal/security"
	"github.com/aplane-algo/apbridge/internal/session"
	"github.com/aplane-algo/apbridge/internal/signing"
	"github.com/aplane-algo/apbridge/internal/transport"
	"github.com/aplane-algo/apbridge/internal/util"
	"github.com/aplane-algo/apbridge/internal/vault"

	"golang.org/x/term"
	"golang.org/x/time/rate"
)

// app is the state shared by every subcommand.
type app struct {
	dataDirFlag string
	dataDir     string
	cfg         util.Config

	stdin  io.Reader
	reader *bufio.Reader

	// readPassword prompts for a secret. Tests replace it.
	readPassword func(prompt string) ([]byte, error)

	// params are the KDF costs for sealing and opening the vault.
	params vault.Params

	// harden runs before commands that hold key material.
	harden func(security.Options) error

	// confirm asks the user to approve a request before it is signed.
	confirm func(signSummary) (bool, error)
}

func newApp() *app {
	a := &app{stdin: os.Stdin, params: vault.DefaultParams(), harden: security.Harden}
	a.readPassword = a.promptPassword
	a.confirm = a.confirmTUI
	return a
}

// load resolves the data directory and reads config.yaml.
func (a *app) load() error {
	a.dataDir = util.GetClientDataDir(a.dataDirFlag)
	if a.dataDir == "" {
		return fmt.Errorf("cannot determine data directory: pass -d or set APBRIDGE_DATA")
	}
	cfg, err := util.LoadConfig(a.dataDir)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *app) store() *vault.FileStore {
	return vault.NewFileStore(a.cfg.VaultFile)
}

// chain resolves a --chain flag, falling back to the configured default.
func (a *app) chain(flag string) (signing.ChainID, error) {
	if flag == "" {
		flag = a.cfg.Chain
	}
	return signing.ParseChainID(flag)
}

func (a *app) deriver() *keyderive.Deriver {
	return keyderive.New(keyderive.WithParams(a.params))
}

func (a *app) nonceSource() request.NonceSource {
	if a.cfg.NonceSource == "ulid" {
		return request.NewULIDNonces()
	}
	return request.UUIDNonces{}
}

func (a *app) builder() (*request.Builder, error) {
	return request.NewBuilder(
		request.WithAddressPrefix(a.cfg.AddressPrefix),
		request.WithNonceSource(a.nonceSource()),
	)
}

func (a *app) transport(token string) *transport.Client {
	timeout, _ := util.ParseDuration(a.cfg.RequestTimeout)
	if timeout == 0 {
		timeout = transport.DefaultTimeout
	}
	return transport.New(a.cfg.ServerURL, transport.WithTimeout(timeout), transport.WithToken(token))
}

func (a *app) sessionConfig() (session.Config, error) {
	active, inactivity, err := a.cfg.Session.Windows()
	if err != nil {
		return session.Config{}, err
	}
	threshold, err := a.cfg.Session.Threshold()
	if err != nil {
		return session.Config{}, err
	}
	return session.Config{
		ActiveWindow:     active,
		InactivityWindow: inactivity,
		LargeTxThreshold: threshold,
	}, nil
}

// client returns a bridge client over the stored vault.
func (a *app) client(extra ...session.Option) (*bridge.Client, error) {
	v, err := a.store().Load()
	if err != nil {
		return nil, err
	}
	scfg, err := a.sessionConfig()
	if err != nil {
		return nil, err
	}
	b, err := a.builder()
	if err != nil {
		return nil, err
	}

	sessOpts := append([]session.Option{
		session.WithAttemptLimit(rate.Every(2*time.Second), a.cfg.Session.MaxAttempts),
	}, extra...)

	c, err := bridge.New(scfg,
		bridge.WithDeriver(a.deriver()),
		bridge.WithBuilder(b),
		bridge.WithTransport(a.transport("")),
		bridge.WithSessionOptions(sessOpts...),
	)
	if err != nil {
		return nil, err
	}
	c.SetVault(v)
	return c, nil
}

// vaultPassword returns the password that opens the vault, from the
// configured helper if there is one and from a prompt otherwise.
func (a *app) vaultPassword(ctx context.Context, prompt string) ([]byte, error) {
	if a.cfg.PasswordCommand.Enabled() {
		util.Debug("reading vault password from helper", "argv0", a.cfg.PasswordCommand.Argv[0])
		return a.cfg.PasswordCommand.Run(ctx)
	}
	return a.readPassword(prompt)
}

// promptPassword reads a password with echo disabled when stdin is a
// terminal, and a plain line otherwise.
func (a *app) promptPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	if f, ok := a.stdin.(*os.File); ok {
		fd := int(f.Fd()) // #nosec G115 - file descriptors are small integers
		if term.IsTerminal(fd) {
			pw, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			return pw, err
		}
	}
	line, err := a.readLine()
	if err != nil {
		return nil, err
	}
	return []byte(line), nil
}

func (a *app) readLine() (string, error) {
	if a.reader == nil {
		a.reader = bufio.NewReader(a.stdin)
	}
	line, err := a.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// newPassword prompts twice and requires both entries to match.
func (a *app) newPassword() ([]byte, error) {
	pw, err := a.readPassword("New vault password: ")
	if err != nil {
		return nil, err
	}
	if len(pw) == 0 {
		return nil, fmt.Errorf("password must not be empty")
	}
	confirm, err := a.readPassword("Confirm password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ZeroBytes(confirm)
	if !bytes.Equal(pw, confirm) {
		crypto.ZeroBytes(pw)
		return nil, fmt.Errorf("passwords do not match")
	}
	return pw, nil
}
