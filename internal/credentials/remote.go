// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/educagestao/educagestao-tui/internal/security"
)

// LoginPath is the login endpoint of the school API.
const LoginPath = "/api/auth/login"

// LoginResponse is the success body of the login endpoint.
type LoginResponse struct {
	ID    json.Number `json:"id"`
	Name  string      `json:"nome"`
	Email string      `json:"email"`
	Role  string      `json:"cargo"`
}

// ErrorResponse is the failure body of the API.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Remote verifies credentials against the school API.
type Remote struct {
	baseURL string
	client  *http.Client
}

// RemoteOption configures a Remote verifier.
type RemoteOption func(*Remote)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *Remote) {
		r.client = c
	}
}

// NewRemote creates a verifier for the API at baseURL.
func NewRemote(baseURL string, timeout time.Duration, opts ...RemoteOption) *Remote {
	r := &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Verify implements Verifier.
func (r *Remote) Verify(ctx context.Context, email, password string) (User, error) {
	body, err := json.Marshal(LoginInput{Email: NormalizeEmail(email), Password: password})
	if err != nil {
		return User{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+LoginPath, bytes.NewReader(body))
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", security.ErrVerifierUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", security.ErrVerifierUnavailable, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return User{}, fmt.Errorf("%w: read response: %v", security.ErrVerifierUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusBadRequest:
		return User{}, security.ErrInvalidCredentials
	default:
		return User{}, fmt.Errorf("%w: unexpected status %d", security.ErrVerifierUnavailable, resp.StatusCode)
	}

	var lr LoginResponse
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&lr); err != nil {
		return User{}, fmt.Errorf("%w: malformed response: %v", security.ErrVerifierUnavailable, err)
	}
	if lr.ID.String() == "" || lr.Email == "" {
		return User{}, fmt.Errorf("%w: incomplete response", security.ErrVerifierUnavailable)
	}

	// The API only answers 200 for active accounts.
	return User{
		ID:     lr.ID.String(),
		Name:   lr.Name,
		Email:  NormalizeEmail(lr.Email),
		Role:   security.ParseRole(lr.Role),
		Status: StatusActive,
	}, nil
}
