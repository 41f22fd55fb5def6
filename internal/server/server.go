// ABOUTME: HTTP server wiring the auth protocol, user, and vault item handlers
// ABOUTME: Builds the mux, middleware chain, and lifecycle around net/http

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/hollowgrove/vaultgate/internal/auth"
	"github.com/hollowgrove/vaultgate/internal/config"
	"github.com/hollowgrove/vaultgate/internal/mail"
	"github.com/hollowgrove/vaultgate/internal/store"
)

// Server is the HTTP front end of vaultgate
type Server struct {
	cfg    *config.Config
	store  store.Store
	logger *slog.Logger

	codec      *auth.TokenCodec
	verifier   *auth.CredentialVerifier
	registry   *auth.DeviceRegistry
	challenges *auth.ChallengeManager
	sessions   *auth.SessionManager
	gate       *auth.Gate
	mailer     *mail.Verifier
	metrics    *metrics

	httpServer *http.Server
}

// publicRoutes is the immutable allow-list of endpoints that bypass the
// auth gate. Everything else requires a valid access token.
func publicRoutes(cfg *config.Config) []auth.PublicRoute {
	routes := []auth.PublicRoute{
		{Method: http.MethodPost, PathPrefix: "/api/users/email-verifications"},
		{Method: http.MethodPost, PathPrefix: "/api/users"},
		{Method: http.MethodPost, PathPrefix: "/api/sessions"},
		{Method: http.MethodGet, PathPrefix: "/health"},
	}
	if cfg.Metrics.Enabled {
		routes = append(routes, auth.PublicRoute{Method: http.MethodGet, PathPrefix: cfg.Metrics.Path})
	}
	return routes
}

// New builds a fully wired server from configuration and a store
func New(cfg *config.Config, st store.Store, sender mail.Sender) *Server {
	codec := auth.NewTokenCodec(auth.Secrets{
		Challenge: []byte(cfg.Auth.ChallengeSecret),
		Session:   []byte(cfg.Auth.SessionSecret),
		Access:    []byte(cfg.Auth.AccessSecret),
		Refresh:   []byte(cfg.Auth.RefreshSecret),
		Email:     []byte(cfg.Auth.EmailSecret),
	})

	s := &Server{
		cfg:        cfg,
		store:      st,
		logger:     slog.Default().With("component", "server"),
		codec:      codec,
		verifier:   auth.NewCredentialVerifier(st, cfg.Auth.Pepper),
		registry:   auth.NewDeviceRegistry(st),
		challenges: auth.NewChallengeManager(st, codec, cfg.Auth.ChallengeTTL),
		sessions:   auth.NewSessionManager(st, st, codec, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL),
		gate:       auth.NewGate(codec, publicRoutes(cfg)),
		mailer:     mail.NewVerifier(sender, cfg.SMTP.VerifyURL),
	}
	if cfg.Metrics.Enabled {
		s.metrics = newMetrics()
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      s.buildHandler(),
		ReadTimeout:  cfg.Server.RequestTimeout,
		WriteTimeout: cfg.Server.RequestTimeout,
	}
	return s
}

// buildHandler assembles the route table and middleware chain
func (s *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()

	// Login protocol
	mux.HandleFunc("POST /api/sessions/credentials", s.handleCredentials)
	mux.HandleFunc("POST /api/sessions/challenges", s.handleChallenges)
	mux.HandleFunc("POST /api/sessions/tokens/refresh-tokens", s.handleRefresh)
	mux.HandleFunc("POST /api/sessions", s.handleVerifyChallenge)

	// Users
	mux.HandleFunc("POST /api/users/email-verifications", s.handleVerifyEmail)
	mux.HandleFunc("POST /api/users", s.handleRegister)
	mux.HandleFunc("GET /api/users/me", s.handleGetProfile)
	mux.HandleFunc("PATCH /api/users/me", s.handleUpdateProfile)
	mux.HandleFunc("DELETE /api/users/me", s.handleDeleteAccount)
	mux.HandleFunc("GET /api/users/me/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/users/me/settings", s.handlePutSettings)

	// Vault items
	mux.HandleFunc("GET /api/vault-items", s.handleListVaultItems)
	mux.HandleFunc("POST /api/vault-items", s.handleCreateVaultItem)
	mux.HandleFunc("GET /api/vault-items/trash", s.handleListTrash)
	mux.HandleFunc("GET /api/vault-items/{id}", s.handleGetVaultItem)
	mux.HandleFunc("PUT /api/vault-items/{id}", s.handleUpdateVaultItem)
	mux.HandleFunc("DELETE /api/vault-items/{id}", s.handleTrashVaultItem)
	mux.HandleFunc("POST /api/vault-items/{id}/restore", s.handleRestoreVaultItem)
	mux.HandleFunc("DELETE /api/vault-items/{id}/permanent", s.handlePurgeVaultItem)

	// Operational
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/ready", s.handleReady)
	if s.cfg.Metrics.Enabled {
		mux.Handle("GET "+s.cfg.Metrics.Path, s.metrics.handler())
	}

	var handler http.Handler = mux
	handler = s.gate.Middleware(handler)
	if s.metrics != nil {
		handler = s.metrics.middleware(handler)
	}
	return handler
}

// Start begins serving and blocks until the listener fails or the
// context is cancelled, at which point a graceful shutdown runs.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down HTTP server")
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// clientIP extracts the client address without the port
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
