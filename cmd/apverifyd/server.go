// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/aplane-algo/apbridge/internal/auth"
	"github.com/aplane-algo/apbridge/internal/transport"
	"github.com/aplane-algo/apbridge/internal/util"
	"github.com/aplane-algo/apbridge/internal/verifier"
	"github.com/aplane-algo/apbridge/internal/version"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, transport.ErrorResponse{Error: msg, Code: code})
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Window  string `json:"freshness_window"`
}

// SweepResponse is the body of POST /v1/admin/sweep.
type SweepResponse struct {
	Removed int `json:"removed"`
}

// Server is the verifier HTTP front end.
type Server struct {
	verifier   *verifier.Verifier
	signed     *auth.SignedRequestAuthenticator
	admin      auth.Authenticator
	authorizer auth.Authorizer
	limiter    *clientLimiter
	auditLog   *AuditLogger
	gatherer   prometheus.Gatherer
	now        func() time.Time
}

// ServerOptions carries the collaborators main wires into a Server.
type ServerOptions struct {
	Verifier   *verifier.Verifier
	AdminToken string
	Authorizer auth.Authorizer
	RateLimit  float64
	RateBurst  int
	AuditLog   *AuditLogger
	Gatherer   prometheus.Gatherer
}

// NewServer builds a Server. A nil Authorizer permits every action on
// every chain; an empty AdminToken disables the admin API.
func NewServer(opts ServerOptions) *Server {
	s := &Server{
		verifier:   opts.Verifier,
		signed:     auth.NewSignedRequestAuthenticator(opts.Verifier),
		authorizer: opts.Authorizer,
		limiter:    newClientLimiter(opts.RateLimit, opts.RateBurst, 0),
		auditLog:   opts.AuditLog,
		gatherer:   opts.Gatherer,
		now:        time.Now,
	}
	if opts.AdminToken != "" {
		s.admin = auth.NewTokenAuthenticator(opts.AdminToken)
	}
	if s.authorizer == nil {
		s.authorizer = auth.NewAllowAllAuthorizer()
	}
	return s
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get(transport.PathHealth, s.handleHealth)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.With(s.rateLimit).Post(transport.PathActions, s.handleAction)
	if s.admin != nil {
		r.Post(transport.PathSweep, s.requireAuth(auth.ActionAdmin, auth.Resource{Type: auth.ResourceLedger}, s.handleSweep))
	}
	return r
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimit throttles each client address before any body is read.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientKey(r), s.now()) {
			s.auditLog.LogRateLimited(r.RemoteAddr)
			writeError(w, http.StatusTooManyRequests, transport.CodeRateLimited, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth is middleware that validates authentication and authorization
// using the admin authenticator and the configured authorizer
func (s *Server) requireAuth(action auth.Action, resource auth.Resource, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		identity, err := s.admin.Authenticate(ctx, r)
		if err != nil {
			reason := "auth_failed"
			switch {
			case errors.Is(err, auth.ErrNoCredentials):
				reason = "missing_credentials"
			case errors.Is(err, auth.ErrInvalidCredentials):
				reason = "invalid_credentials"
			}
			s.auditLog.LogAuthFailed("", r.RemoteAddr, reason)
			writeError(w, http.StatusUnauthorized, transport.CodeUnauthorized, "Authorization header required")
			return
		}

		if err := s.authorizer.Authorize(ctx, identity, action, resource); err != nil {
			s.auditLog.LogAuthFailed(identity.ID, r.RemoteAddr, "unauthorized: "+string(action))
			writeError(w, http.StatusForbidden, transport.CodeForbidden, "Forbidden")
			return
		}

		next(w, r.WithContext(auth.ContextWithIdentity(ctx, identity)))
	}
}

// statusFor maps a verifier outcome to an HTTP status.
func statusFor(code verifier.Code) int {
	switch code {
	case verifier.CodeMalformedRequest:
		return http.StatusBadRequest
	case verifier.CodeExpiredTimestamp, verifier.CodeInvalidSignature, verifier.CodeAddressMismatch:
		return http.StatusUnauthorized
	case verifier.CodeReplayedNonce:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	v, err := s.signed.AuthenticateRequest(ctx, r)
	if err != nil {
		code := verifier.CodeFor(err)
		if errors.Is(err, auth.ErrNoCredentials) {
			code = verifier.CodeMalformedRequest
		}
		var address, nonce string
		if v.Request != nil {
			address, nonce = v.Request.WalletAddress, v.Request.Nonce
		}
		s.auditLog.LogRejected(address, nonce, string(code), r.RemoteAddr, err.Error())

		status := statusFor(code)
		if status == http.StatusInternalServerError {
			util.Logger.Error("verification failed", "error", err)
			writeError(w, status, string(verifier.CodeInternal), "internal error")
			return
		}
		writeError(w, status, string(code), err.Error())
		return
	}

	req := v.Request
	chain := req.Chain()
	if err := s.authorizer.Authorize(ctx, v.Identity, auth.Action(req.Action), auth.ChainResource(chain)); err != nil {
		s.auditLog.LogForbidden(v.Identity.ID, string(req.Action), chain.String(), r.RemoteAddr)
		writeError(w, http.StatusForbidden, transport.CodeForbidden, err.Error())
		return
	}

	s.auditLog.LogAccepted(v.Identity.ID, string(req.Action), chain.String(), req.Nonce, r.RemoteAddr)
	util.Debug("request accepted", "address", v.Identity.ID, "action", req.Action, "chain", chain)
	writeJSON(w, http.StatusAccepted, transport.Receipt{
		Accepted: true,
		Address:  v.Identity.ID,
		Action:   req.Action,
		Nonce:    req.Nonce,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: version.String(),
		Window:  s.verifier.Window().String(),
	})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	n, err := s.verifier.Sweep(r.Context())
	if err != nil {
		util.Logger.Error("sweep failed", "error", err)
		writeError(w, http.StatusInternalServerError, string(verifier.CodeInternal), "sweep failed")
		return
	}
	principal := ""
	if id := auth.IdentityFromContext(r.Context()); id != nil {
		principal = id.ID
	}
	s.auditLog.LogSwept(principal, n)
	writeJSON(w, http.StatusOK, SweepResponse{Removed: n})
}
