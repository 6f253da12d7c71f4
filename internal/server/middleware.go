// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/educagestao/educagestao-tui/internal/security"
)

// Request headers.
const (
	HeaderRequestID = "X-Request-Id"
	HeaderUserID    = "X-User-Id"
	HeaderUserRole  = "X-User-Cargo"
)

type ctxKey int

const (
	keyRequestID ctxKey = iota
	keyLogger
	keyIdentity
)

// ============================================================================
// Request Tracing and Logging
// ============================================================================

// RequestID attaches a correlation ID to every request.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if id == "" || len(id) > 64 {
				id = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, id)
			ctx := context.WithValue(r.Context(), keyRequestID, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// RequestLogger logs every request with its status and latency, and stores
// a request-scoped logger in the context.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID, _ := r.Context().Value(keyRequestID).(string)
			reqLogger := logger.With(
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)

			ctx := context.WithValue(r.Context(), keyLogger, reqLogger)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			level := slog.LevelInfo
			if rec.status >= 500 {
				level = slog.LevelError
			} else if rec.status >= 400 {
				level = slog.LevelWarn
			}
			reqLogger.Log(ctx, level, "http_request_finished",
				slog.Int("status", rec.status),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()))
		})
	}
}

// loggerFrom returns the request-scoped logger, or fallback.
func loggerFrom(r *http.Request, fallback *slog.Logger) *slog.Logger {
	if l, ok := r.Context().Value(keyLogger).(*slog.Logger); ok && l != nil {
		return l
	}
	return fallback
}

// ============================================================================
// Security Headers and Recovery
// ============================================================================

// SecurityHeaders sets defensive response headers on every response.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Cache-Control", "no-store")
			h.Set("Referrer-Policy", "no-referrer")
			next.ServeHTTP(w, r)
		})
	}
}

// Recovery turns a handler panic into a 500 and logs the stack.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					loggerFrom(r, logger).Error("http_panic_recovered",
						slog.Any("panic", rec),
						slog.String("stack", string(debug.Stack())))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// ============================================================================
// Authorization
// ============================================================================

// IdentityFrom returns the caller identity stored by RequireAuth.
func IdentityFrom(ctx context.Context) (security.Grant, bool) {
	g, ok := ctx.Value(keyIdentity).(security.Grant)
	return g, ok
}

// RequireAuth rejects requests without a caller identity. The identity is
// taken from the X-User-Id and X-User-Cargo headers, and the granted tokens
// come from the role catalog, never from the request.
//
// The headers are not authenticated; deploy behind a trusted proxy.
func RequireAuth(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
			if userID == "" {
				loggerFrom(r, logger).Info("auth_denied", slog.String("reason", "missing_user_id"))
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			role := security.ParseRole(r.Header.Get(HeaderUserRole))
			id := security.Grant{
				UserID:      userID,
				Role:        role,
				Permissions: security.PermissionsFor(role),
			}
			ctx := context.WithValue(r.Context(), keyIdentity, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission rejects callers whose role does not grant token. It
// must run after RequireAuth.
func RequirePermission(token security.Permission, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !id.Allows(token) {
				loggerFrom(r, logger).Info("permission_denied",
					slog.String("user_id", id.UserID),
					slog.String("role", id.Role.String()),
					slog.String("permission", string(token)))
				writeError(w, http.StatusForbidden, "permission denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
