// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes shared by all commands.
//
// Handlers always return errors; main decides how to display them and
// which exit code to use.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/educagestao/educagestao-tui/internal/config"
	"github.com/educagestao/educagestao-tui/internal/credentials"
	"github.com/educagestao/educagestao-tui/internal/security"
	"github.com/educagestao/educagestao-tui/internal/session"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates authentication or authorization failure
	ExitAuthError = 4
	// ExitNetworkError indicates the authentication service could not be reached
	ExitNetworkError = 5
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "users")
	Action  string // Action being performed (e.g., "add")
	Reason  string // Human-readable reason
	Err     error  // Underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents a validation failure for user input.
type ValidationError struct {
	Field   string // Field that failed validation
	Value   string // Value that was provided
	Reason  string // Why validation failed
	Example string // Example of valid value (optional)
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// PermissionError represents an authorization failure.
type PermissionError struct {
	Action     string // Action that was denied
	UserID     string // User who was denied ("" when nobody is signed in)
	Permission string // Required permission
}

func (e *PermissionError) Error() string {
	if e.UserID == "" {
		return fmt.Sprintf("permission denied: %s requires a signed-in user with '%s'", e.Action, e.Permission)
	}
	return fmt.Sprintf("permission denied: %s requires permission '%s' (user: %s)",
		e.Action, e.Permission, e.UserID)
}

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	Resource string // Type of resource (e.g., "role", "user")
	ID       string // Identifier that was not found
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ConfigError reports a configuration file that could not be used.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ReportedError marks an error whose outcome was already printed. It
// still sets the exit code.
type ReportedError struct {
	Err error
}

func (e *ReportedError) Error() string {
	return e.Err.Error()
}

func (e *ReportedError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR CONSTRUCTION HELPERS
// =============================================================================

// NewCommandError creates a new command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{
		Command: command,
		Action:  action,
		Reason:  reason,
		Err:     err,
	}
}

// NewValidationError creates a new validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// NewValidationErrorWithExample creates a validation error with an example.
func NewValidationErrorWithExample(field, value, reason, example string) error {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Reason:  reason,
		Example: example,
	}
}

// ErrMissingArgument creates an error for missing required arguments.
func ErrMissingArgument(argName, usage string) error {
	return NewValidationErrorWithExample(argName, "", "required argument missing", usage)
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError displays an error on stderr, or as a JSON envelope on stdout
// in JSON mode.
func DisplayError(command string, err error, jsonMode bool) {
	var reported *ReportedError
	if errors.As(err, &reported) {
		return
	}
	if jsonMode {
		writeErrorJSON(os.Stdout, command, err)
		return
	}
	writeErrorText(os.Stderr, err)
}

func writeErrorText(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
	fmt.Fprintln(w)
}

// errorDetails is the data block of a JSON error envelope.
type errorDetails struct {
	Type       string `json:"error_type"`
	Field      string `json:"field,omitempty"`
	Permission string `json:"required_permission,omitempty"`
	Resource   string `json:"resource,omitempty"`
	ExitCode   int    `json:"exit_code"`
}

func writeErrorJSON(w io.Writer, command string, err error) {
	if err == nil {
		return
	}
	details := errorDetails{Type: "generic_error", ExitCode: GetExitCode(err)}

	var (
		validationErr *ValidationError
		permissionErr *PermissionError
		notFoundErr   *NotFoundError
		commandErr    *CommandError
		configErr     *ConfigError
	)
	switch {
	case errors.As(err, &validationErr):
		details.Type = "validation_error"
		details.Field = validationErr.Field
	case errors.As(err, &permissionErr):
		details.Type = "permission_error"
		details.Permission = permissionErr.Permission
	case errors.As(err, &notFoundErr):
		details.Type = "not_found_error"
		details.Resource = notFoundErr.Resource
	case errors.As(err, &configErr):
		details.Type = "config_error"
	case errors.Is(err, security.ErrInvalidCredentials), errors.Is(err, security.ErrRoleMismatch):
		details.Type = "auth_error"
	case errors.As(err, &commandErr):
		details.Type = "command_error"
	}

	resp := NewJSONErrorResponse(command, err)
	resp.Data = details
	_ = resp.Write(w)
}

// GetExitCode determines the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return ExitUsageError
	}

	var permissionErr *PermissionError
	if errors.As(err, &permissionErr) {
		return ExitAuthError
	}

	var notFoundErr *NotFoundError
	if errors.As(err, &notFoundErr) {
		return ExitNotFoundError
	}

	var configErr *ConfigError
	var configValidation config.ValidateErrors
	if errors.As(err, &configErr) || errors.As(err, &configValidation) {
		return ExitConfigError
	}

	switch {
	case errors.Is(err, security.ErrInvalidCredentials),
		errors.Is(err, security.ErrRoleMismatch),
		errors.Is(err, session.ErrNoSession):
		return ExitAuthError
	case errors.Is(err, credentials.ErrUserExists),
		errors.Is(err, ErrConfirmationRequired):
		return ExitUsageError
	case errors.Is(err, credentials.ErrUserNotFound):
		return ExitNotFoundError
	case errors.Is(err, security.ErrVerifierUnavailable):
		return ExitNetworkError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	}

	return ExitGeneralError
}
