// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - Machine-readable output for every command (--json).

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/educagestao/educagestao-tui/internal/credentials"
	"github.com/educagestao/educagestao-tui/internal/session"
)

// JSONResponse is the envelope printed by every command in JSON mode.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data interface{} `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the RFC3339 time when the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print outputs the JSON response to stdout.
func (r *JSONResponse) Print() error {
	return r.Write(os.Stdout)
}

// Write outputs the indented JSON response to w.
func (r *JSONResponse) Write(w io.Writer) error {
	return encodeIndented(w, r)
}

// String returns the JSON response as a string.
func (r *JSONResponse) String() string {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":"failed to marshal response: %s","timestamp":"%s"}`,
			err.Error(), time.Now().UTC().Format(time.RFC3339))
	}
	return string(data)
}

func encodeIndented(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// LoginData is returned by the login command.
type LoginData struct {
	Session     session.Info `json:"session"`
	ProcessOnly bool         `json:"process_only"`
}

// StatusData is returned by the status command.
type StatusData struct {
	Authenticated bool          `json:"authenticated"`
	Session       *session.Info `json:"session,omitempty"`
	Backend       string        `json:"durable_backend"`
}

// LogoutData is returned by the logout command.
type LogoutData struct {
	WasSignedIn bool `json:"was_signed_in"`
}

// CanData is returned by the can command.
type CanData struct {
	Permission string `json:"permission"`
	Allowed    bool   `json:"allowed"`
	Role       string `json:"role,omitempty"`
}

// UsersData is returned by users list.
type UsersData struct {
	Users []credentials.Account `json:"users"`
}
