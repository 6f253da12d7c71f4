// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/educagestao/educagestao-tui/internal/credentials"
	"github.com/educagestao/educagestao-tui/internal/security"
)

func newTestServer(verifier credentials.Verifier) *Server {
	return New(verifier, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func do(t *testing.T, s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

// =============================================================================
// LOGIN TESTS
// =============================================================================

func TestHandleLogin_Success(t *testing.T) {
	s := newTestServer(credentials.Demo{})
	rec := do(t, s, http.MethodPost, "/api/auth/login",
		`{"email":"professor@escola.com","password":"prof123"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[credentials.LoginResponse](t, rec)
	assert.Equal(t, "2", resp.ID.String())
	assert.Equal(t, "professor", resp.Role)
	assert.Equal(t, "professor@escola.com", resp.Email)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestHandleLogin_GenericRejection(t *testing.T) {
	s := newTestServer(credentials.Demo{})

	wrongPassword := do(t, s, http.MethodPost, "/api/auth/login",
		`{"email":"admin@escola.com","password":"nope"}`, nil)
	unknownEmail := do(t, s, http.MethodPost, "/api/auth/login",
		`{"email":"ghost@escola.com","password":"admin123"}`, nil)

	require.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	require.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String(),
		"responses must not reveal which field was wrong")
}

func TestHandleLogin_InactiveUser(t *testing.T) {
	s := newTestServer(credentials.VerifierFunc(func(ctx context.Context, email, password string) (credentials.User, error) {
		return credentials.User{ID: "4", Email: email, Role: security.RoleTeacher, Status: credentials.StatusInactive}, nil
	}))
	rec := do(t, s, http.MethodPost, "/api/auth/login", `{"email":"a@escola.com","password":"x"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleLogin_BadRequests(t *testing.T) {
	s := newTestServer(credentials.Demo{})
	for _, body := range []string{`{"email":"admin@escola.com"}`, `{}`, ``} {
		rec := do(t, s, http.MethodPost, "/api/auth/login", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	rec := do(t, s, http.MethodPost, "/api/auth/login", `{"email":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/auth/login", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleLogin_VerifierUnavailable(t *testing.T) {
	s := newTestServer(credentials.VerifierFunc(func(ctx context.Context, email, password string) (credentials.User, error) {
		return credentials.User{}, security.ErrVerifierUnavailable
	}))
	rec := do(t, s, http.MethodPost, "/api/auth/login", `{"email":"a@escola.com","password":"x"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleLogin_RemoteVerifierRoundTrip(t *testing.T) {
	api := httptest.NewServer(newTestServer(credentials.Demo{}).Handler())
	defer api.Close()

	remote := credentials.NewRemote(api.URL, 2*time.Second)
	user, err := remote.Verify(context.Background(), "secretaria@escola.com", "sec123")
	require.NoError(t, err)
	assert.Equal(t, security.RoleSecretary, user.Role)
	assert.Equal(t, "3", user.ID)

	_, err = remote.Verify(context.Background(), "secretaria@escola.com", "wrong")
	require.ErrorIs(t, err, security.ErrInvalidCredentials)
}

// =============================================================================
// CATALOG TESTS
// =============================================================================

func TestHandleRoles(t *testing.T) {
	s := newTestServer(credentials.Demo{})
	rec := do(t, s, http.MethodGet, "/api/roles", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	roles := decodeBody[[]security.RoleInfo](t, rec)
	require.Len(t, roles, 5)
	assert.Equal(t, "admin", roles[0].Role)
	assert.True(t, roles[0].Superuser)
}

func TestHandleRole(t *testing.T) {
	s := newTestServer(credentials.Demo{})

	rec := do(t, s, http.MethodGet, "/api/roles/coordenador", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decodeBody[security.RoleInfo](t, rec)
	assert.Equal(t, "coordinator", info.Role)
	assert.Contains(t, info.Permissions, security.Permission("delete_alunos"))

	rec = do(t, s, http.MethodGet, "/api/roles/janitor", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// AUTHORIZATION TESTS
// =============================================================================

func TestRequireAuth(t *testing.T) {
	s := newTestServer(credentials.Demo{})

	rec := do(t, s, http.MethodGet, "/api/me/permissions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/me/permissions", "", map[string]string{
		HeaderUserID:   "2",
		HeaderUserRole: "professor",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[PermissionsResponse](t, rec)
	assert.Equal(t, "teacher", resp.Role)
	assert.Contains(t, resp.Permissions, "create_notas")
	assert.NotContains(t, resp.Permissions, "delete_alunos")
}

func TestRequireAuth_UnknownRoleGetsDefault(t *testing.T) {
	s := newTestServer(credentials.Demo{})
	rec := do(t, s, http.MethodGet, "/api/me/permissions", "", map[string]string{
		HeaderUserID:   "9",
		HeaderUserRole: "root",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[PermissionsResponse](t, rec)
	assert.Equal(t, []string{"view_dashboard"}, resp.Permissions)
}

func TestRequirePermission(t *testing.T) {
	s := newTestServer(credentials.Demo{})
	teacher := map[string]string{HeaderUserID: "2", HeaderUserRole: "professor"}
	director := map[string]string{HeaderUserID: "1", HeaderUserRole: "diretor"}

	tests := []struct {
		path    string
		headers map[string]string
		want    int
	}{
		{"/api/permissions/create_notas/check", teacher, http.StatusOK},
		{"/api/permissions/delete_alunos/check", teacher, http.StatusForbidden},
		{"/api/permissions/delete:students/check", teacher, http.StatusForbidden},
		{"/api/permissions/delete_alunos/check", director, http.StatusOK},
		{"/api/permissions/fly_dragons/check", director, http.StatusNotFound},
		{"/api/permissions/create_notas/check", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		rec := do(t, s, http.MethodGet, tt.path, "", tt.headers)
		assert.Equal(t, tt.want, rec.Code, tt.path)
	}
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestServe_ShutsDownOnCancel(t *testing.T) {
	s := newTestServer(credentials.Demo{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}
