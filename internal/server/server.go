// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/educagestao/educagestao-tui/internal/credentials"
	"github.com/educagestao/educagestao-tui/internal/security"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:5000"

	// MaxRequestBodySize bounds request bodies.
	MaxRequestBodySize = 16 * 1024

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout = 5 * time.Second
)

// ============================================================================
// SERVER
// ============================================================================

// Server is the local school API. It is the server side of the remote
// credential verifier and the authoritative permission check behind the
// terminal client's show/hide decisions.
type Server struct {
	router      *chi.Mux
	verifier    credentials.Verifier
	logger      *slog.Logger
	readTimeout time.Duration
	startedAt   time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithReadTimeout sets the HTTP read timeout.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = d
	}
}

// New creates a server that verifies logins with verifier.
func New(verifier credentials.Verifier, opts ...Option) *Server {
	s := &Server{
		verifier:    verifier,
		logger:      slog.Default(),
		readTimeout: 10 * time.Second,
		startedAt:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(RequestID())
	r.Use(RequestLogger(s.logger))
	r.Use(Recovery(s.logger))
	r.Use(SecurityHeaders())

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/login", s.handleLogin)
		api.Get("/roles", s.handleRoles)
		api.Get("/roles/{role}", s.handleRole)

		api.Group(func(authed chi.Router) {
			authed.Use(RequireAuth(s.logger))
			authed.Get("/me/permissions", s.handleMyPermissions)
			authed.Get("/permissions/{token}/check", s.handleCheck)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.router = r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadTimeout:       s.readTimeout,
		ReadHeaderTimeout: s.readTimeout,
		WriteTimeout:      2 * s.readTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server_started", slog.String("addr", ln.Addr().String()))
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		s.logger.Info("server_stopping")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// ============================================================================
// HANDLERS
// ============================================================================

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleLogin answers the remote verifier. Every rejection is the same
// generic 401 so callers cannot tell which field was wrong.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials.LoginInput
	body := http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.Email == "" || in.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := s.verifier.Verify(r.Context(), in.Email, in.Password)
	if err == nil && !user.Active() {
		err = security.ErrInvalidCredentials
	}
	switch {
	case err == nil:
	case errors.Is(err, security.ErrVerifierUnavailable):
		loggerFrom(r, s.logger).Error("login_verifier_unavailable", slog.Any("error", err))
		writeError(w, http.StatusServiceUnavailable, security.ErrVerifierUnavailable.Error())
		return
	default:
		loggerFrom(r, s.logger).Info("login_failed",
			slog.String("email", credentials.MaskEmail(credentials.NormalizeEmail(in.Email))))
		writeError(w, http.StatusUnauthorized, security.ErrInvalidCredentials.Error())
		return
	}

	loggerFrom(r, s.logger).Info("login_succeeded",
		slog.String("user_id", user.ID),
		slog.String("role", user.Role.String()))
	writeJSON(w, http.StatusOK, credentials.LoginResponse{
		ID:    json.Number(user.ID),
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role.Code(),
	})
}

func (s *Server) handleRoles(w http.ResponseWriter, r *http.Request) {
	roles := security.AllRoles()
	out := make([]security.RoleInfo, 0, len(roles))
	for _, role := range roles {
		out = append(out, security.Describe(role))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRole(w http.ResponseWriter, r *http.Request) {
	role := security.ParseRole(chi.URLParam(r, "role"))
	if role == security.RoleUnknown {
		writeError(w, http.StatusNotFound, "unknown role")
		return
	}
	writeJSON(w, http.StatusOK, security.Describe(role))
}

// PermissionsResponse is the body of GET /api/me/permissions.
type PermissionsResponse struct {
	UserID      string   `json:"user_id"`
	Role        string   `json:"role"`
	Superuser   bool     `json:"superuser"`
	Permissions []string `json:"permissions"`
}

func (s *Server) handleMyPermissions(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	perms := make([]string, 0, len(id.Permissions))
	for _, p := range id.Permissions {
		perms = append(perms, string(p))
	}
	sort.Strings(perms)
	writeJSON(w, http.StatusOK, PermissionsResponse{
		UserID:      id.UserID,
		Role:        id.Role.String(),
		Superuser:   id.Role.IsSuperuser(),
		Permissions: perms,
	})
}

// CheckResponse is the body of GET /api/permissions/{token}/check.
type CheckResponse struct {
	Permission string `json:"permission"`
	Allowed    bool   `json:"allowed"`
}

// handleCheck answers 200 when the caller holds the token and 403
// otherwise; the enforcement itself is RequirePermission.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	token, ok := security.ParsePermission(chi.URLParam(r, "token"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown permission")
		return
	}
	RequirePermission(token, s.logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, CheckResponse{Permission: string(token), Allowed: true})
	})).ServeHTTP(w, r)
}

// ============================================================================
// HELPER FUNCTIONS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, credentials.ErrorResponse{Error: message})
}
