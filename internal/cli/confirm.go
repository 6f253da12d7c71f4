// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Confirmation for actions that lock people out.
//
//  1. If --confirm is present, proceed without prompting
//  2. In --json mode, --confirm is required
//  3. If stdin is not a terminal, --confirm is required
//  4. Otherwise, ask on the terminal

package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrConfirmationRequired is returned when a prompt is impossible and
// --confirm was not given.
var ErrConfirmationRequired = errors.New("confirmation required: use --confirm")

// ConfirmationOptions controls RequireConfirmation.
type ConfirmationOptions struct {
	// ConfirmFlag indicates --confirm was passed (skip the prompt)
	ConfirmFlag bool
	// JSONMode indicates --json was passed (prompts are not allowed)
	JSONMode bool
	// Interactive reports whether a prompt can be shown
	Interactive bool
}

// RequireConfirmation asks the user to confirm action, printing details
// first. It returns false when the user declines.
func RequireConfirmation(out io.Writer, p Prompter, action string, details [][2]string, opts ConfirmationOptions) (bool, error) {
	if opts.ConfirmFlag {
		return true, nil
	}
	if opts.JSONMode || !opts.Interactive {
		return false, ErrConfirmationRequired
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, WarningStyle.Render("Confirm"))
	fmt.Fprintln(out, RenderSeparator(40))
	for _, d := range details {
		fmt.Fprintf(out, "  %s%s\n", RenderLabel(d[0]+":"), d[1])
	}
	fmt.Fprintln(out)

	answer, err := p.Line(fmt.Sprintf("Are you sure you want to %s? [y/N]: ", action))
	if errors.Is(err, ErrPromptAborted) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	yes, err := ParseBoolString(answer)
	if err != nil {
		return false, nil
	}
	return yes, nil
}

// ShowCancellationMessage displays a standard cancellation message.
func ShowCancellationMessage(out io.Writer) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, DimStyle.Render("Cancelled."))
	fmt.Fprintln(out)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
