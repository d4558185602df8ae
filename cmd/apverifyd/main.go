// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Command apverifyd is the reference verifier for signed bridge requests.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aplane-algo/apbridge/internal/auth"
	"github.com/aplane-algo/apbridge/internal/fsutil"
	"github.com/aplane-algo/apbridge/internal/transport"
	"github.com/aplane-algo/apbridge/internal/util"
	"github.com/aplane-algo/apbridge/internal/verifier"
	"github.com/aplane-algo/apbridge/internal/version"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	printVersion := flag.Bool("version", false, "Print version and exit")
	dataDir := flag.String("d", "", "Data directory (required, or set APVERIFY_DATA)")
	flag.Parse()
	if *printVersion {
		fmt.Printf("apverifyd %s\n", version.String())
		os.Exit(0)
	}

	util.InitLogger()
	if err := run(util.GetVerifierDataDir(*dataDir)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(dataDir string) error {
	if dataDir == "" {
		return errors.New("data directory required: pass -d or set APVERIFY_DATA")
	}
	if err := fsutil.MkdirAll(dataDir); err != nil {
		return err
	}

	config, err := util.LoadVerifierConfig(dataDir)
	if err != nil {
		return err
	}

	policy, err := auth.ParseChainPolicy(config.ChainActions)
	if err != nil {
		return fmt.Errorf("invalid chain_actions: %w", err)
	}

	token, created, err := util.LoadOrCreateToken(config.TokenFile)
	if err != nil {
		return fmt.Errorf("failed to load admin token: %w", err)
	}
	if created {
		fmt.Printf("✓ Generated admin token at %s\n", config.TokenFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, err := openLedger(ctx, config.Ledger)
	if err != nil {
		return err
	}
	defer func() { _ = ledger.Close() }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	v, err := verifier.New(
		verifier.WithWindow(config.Freshness()),
		verifier.WithAddressPrefix(config.AddressPrefix),
		verifier.WithLedger(ledger),
		verifier.WithMetrics(verifier.NewMetrics(registry)),
	)
	if err != nil {
		return err
	}

	var auditLog *AuditLogger
	if config.AuditLog != "" {
		if auditLog, err = NewAuditLogger(config.AuditLog); err != nil {
			return err
		}
		defer func() { _ = auditLog.Close() }()
	}

	server := NewServer(ServerOptions{
		Verifier:   v,
		AdminToken: token,
		Authorizer: auth.NewChainAuthorizer(policy),
		RateLimit:  config.RateLimit,
		RateBurst:  config.RateBurst,
		AuditLog:   auditLog,
		Gatherer:   registry,
	})

	if interval := config.Sweep(); interval > 0 {
		go v.RunSweeper(ctx, interval, func(err error) {
			util.Logger.Warn("nonce sweep failed", "error", err)
		})
	}

	httpServer := &http.Server{
		Addr:              config.Listen,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Println("apverifyd - Signed Request Verifier")
	fmt.Println("============================================")
	fmt.Printf("Data directory:   %s\n", dataDir)
	fmt.Printf("Nonce ledger:     %s\n", config.Ledger.Backend)
	fmt.Printf("Freshness window: %s\n", config.Freshness())
	fmt.Printf("Address prefix:   %s\n", config.AddressPrefix)
	if config.RateLimit > 0 {
		fmt.Printf("Rate limit:       %.1f req/s per client (burst %d)\n", config.RateLimit, config.RateBurst)
	}
	fmt.Printf("\nEndpoints:\n")
	fmt.Printf("  POST   %-16s - Verify a signed request\n", transport.PathActions)
	fmt.Printf("  GET    %-16s - Health check\n", transport.PathHealth)
	fmt.Printf("  GET    %-16s - Prometheus metrics\n", "/metrics")
	fmt.Printf("  POST   %-16s - Remove expired nonces (admin token)\n", transport.PathSweep)
	fmt.Printf("\n>> Listening on %s\n", config.Listen)

	auditLog.LogServerStart(config.Ledger.Backend)

	serverErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		fmt.Println("\n[*] Shutdown signal received, cleaning up...")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		util.Logger.Warn("server shutdown error", "error", err)
	}
	auditLog.LogServerStop()
	fmt.Println("[✓] Shutdown complete")
	return nil
}
