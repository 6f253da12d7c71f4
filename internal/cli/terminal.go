// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// terminal.go - Terminal detection and interactive input.

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/muesli/termenv"
	"github.com/peterh/liner"
	"golang.org/x/term"
)

// =============================================================================
// TTY DETECTION
// =============================================================================

// IsTTY returns true if stdin is a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// IsStdoutTTY returns true if stdout is a terminal.
func IsStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// DefaultTerminalWidth is the fallback width when detection fails.
const DefaultTerminalWidth = 80

// GetTerminalWidth returns the current terminal width.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return DefaultTerminalWidth
	}
	return width
}

// =============================================================================
// COLOR OUTPUT CONTROL
// =============================================================================

var (
	colorsEnabled     bool
	colorsEnabledOnce sync.Once
)

// ColorsEnabled returns true if colored output should be used.
// See https://no-color.org/ for the NO_COLOR convention.
func ColorsEnabled() bool {
	colorsEnabledOnce.Do(func() {
		if os.Getenv("NO_COLOR") != "" {
			colorsEnabled = false
			return
		}
		if os.Getenv("FORCE_COLOR") != "" {
			colorsEnabled = true
			return
		}
		colorsEnabled = IsStdoutTTY()
	})
	return colorsEnabled
}

// GetColorProfile returns the termenv color profile for command output.
func GetColorProfile() termenv.Profile {
	if !ColorsEnabled() {
		return termenv.Ascii
	}
	return termenv.ColorProfile()
}

// =============================================================================
// INTERACTIVE INPUT
// =============================================================================

// ErrPromptAborted is returned when the user cancels a prompt with Ctrl+C.
var ErrPromptAborted = errors.New("prompt cancelled")

// TTYRequiredError is returned when an operation requires a TTY but none is available.
type TTYRequiredError struct {
	Operation string
}

func (e *TTYRequiredError) Error() string {
	return "stdin is not a terminal; cannot " + e.Operation + " interactively"
}

// RequiresTTY returns an error if stdin is not a terminal.
func RequiresTTY(operation string) error {
	if !IsTTY() {
		return &TTYRequiredError{Operation: operation}
	}
	return nil
}

// Prompter reads interactive answers. The terminal implementation uses
// liner for line editing and x/term for hidden passwords.
type Prompter interface {
	Line(prompt string) (string, error)
	Password(prompt string) (string, error)
}

// terminalPrompter prompts on the controlling terminal.
type terminalPrompter struct {
	out io.Writer
}

// NewTerminalPrompter returns a Prompter bound to stdin, printing prompts
// on stderr so stdout stays clean for --json.
func NewTerminalPrompter() Prompter {
	return terminalPrompter{out: os.Stderr}
}

// Line reads one edited line. The liner state is closed before returning
// so a following password read gets the terminal in cooked mode.
func (p terminalPrompter) Line(prompt string) (string, error) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	input, err := line.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", ErrPromptAborted
	}
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(input), nil
}

// Password reads a line without echo.
func (p terminalPrompter) Password(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	passBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(passBytes), nil
}

// readerPrompter answers prompts from a plain reader, one line per answer.
// It serves piped input such as `printf 'x\n' | educagestao login --email e`.
type readerPrompter struct {
	r   *bufio.Reader
	out io.Writer
}

// NewReaderPrompter returns a Prompter reading lines from r. Prompts are
// written to out.
func NewReaderPrompter(r io.Reader, out io.Writer) Prompter {
	return readerPrompter{r: bufio.NewReader(r), out: out}
}

func (p readerPrompter) Line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", ErrPromptAborted
		}
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (p readerPrompter) Password(prompt string) (string, error) {
	line, err := p.Line(prompt)
	if err != nil {
		return "", err
	}
	return line, nil
}

// defaultPrompter picks the terminal prompter on a TTY and a line reader
// over stdin otherwise.
func defaultPrompter() Prompter {
	if IsTTY() {
		return NewTerminalPrompter()
	}
	return NewReaderPrompter(os.Stdin, os.Stderr)
}
