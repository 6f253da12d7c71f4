// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Version information (set by main).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents a CLI command.
type Command int

const (
	// CmdTUI starts the interactive terminal UI (default).
	CmdTUI Command = iota
	// CmdLogin signs in from the command line.
	CmdLogin
	// CmdLogout ends the current session.
	CmdLogout
	// CmdStatus shows the current session.
	CmdStatus
	// CmdCan checks one capability against the current session.
	CmdCan
	// CmdRoles lists the role catalog.
	CmdRoles
	// CmdUsers manages the local user directory.
	CmdUsers
	// CmdServe runs the local school API.
	CmdServe
	// CmdVersion shows version information.
	CmdVersion
	// CmdHelp shows help information.
	CmdHelp
	// CmdUnknown is returned for an unrecognized command word.
	CmdUnknown
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdLogin:
		return "login"
	case CmdLogout:
		return "logout"
	case CmdStatus:
		return "status"
	case CmdCan:
		return "can"
	case CmdRoles:
		return "roles"
	case CmdUsers:
		return "users"
	case CmdServe:
		return "serve"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds parsed command-line arguments.
type Args struct {
	// Global flags
	JSON       bool   // --json: machine-readable output
	Quiet      bool   // -q, --quiet: minimal output
	Verbose    bool   // -v, --verbose: debug logging
	ConfigPath string // --config: alternate config.toml

	// Raw holds the arguments after the command word, for per-command
	// parsing with ArgParser.
	Raw []string
}

// usageText is the main help text.
const usageText = `educagestao - school management terminal client

USAGE:
  educagestao [command] [options]

COMMANDS:
  (none)                     Start the terminal UI
  login                      Sign in
  logout                     Sign out and clear the stored session
  status                     Show the current session
  can <token>                Check one capability (exit 0 granted, 4 denied)
  roles [role]               List roles and their capabilities
  users <subcommand>         Manage the local user directory (superuser)
  serve                      Run the local school API
  version                    Show version information
  help                       Show this help

LOGIN OPTIONS:
  --email EMAIL              Email (prompted when omitted)
  --remember                 Keep the session for 7 days
  --access admin|professional
                             Access type chosen for this login

STATUS OPTIONS:
  --raw                      Print the stored record (highlighted on a terminal)

ROLES OPTIONS:
  --describe                 Render the role description

USERS SUBCOMMANDS:
  list                       List accounts
  add --name N --email E --role R [--cpf C] [--phone P]
                             Add an account (password is prompted)
  disable EMAIL              Deactivate an account
  enable EMAIL               Reactivate an account

SERVE OPTIONS:
  --addr ADDR                Listen address (default from config, 127.0.0.1:5000)

GLOBAL OPTIONS:
  --json                     Output in JSON format
  --config PATH              Use an alternate config file
  -q, --quiet                Minimal output
  -v, --verbose              Debug logging

EXAMPLES:
  educagestao login --email professor@escola.com --remember
  educagestao can create_notas
  educagestao can delete:students --json
  educagestao roles professor --describe
  educagestao users add --name "Ana Lima" --email ana@escola.com --role secretaria

Configuration: ~/.educagestao/config.toml (override the directory with EDUCAGESTAO_HOME)

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	writeUsage(os.Stdout)
}

func writeUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("educagestao version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
}

// Parse parses os.Args and returns the command and args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses argv (without the program name).
func ParseArgs(argv []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdTUI, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	parsedArgs.Raw = remaining[1:]

	switch cmd {
	case "tui":
		return CmdTUI, parsedArgs
	case "login", "entrar":
		return CmdLogin, parsedArgs
	case "logout", "sair":
		return CmdLogout, parsedArgs
	case "status", "s", "whoami":
		return CmdStatus, parsedArgs
	case "can", "check":
		return CmdCan, parsedArgs
	case "roles", "role", "cargos":
		return CmdRoles, parsedArgs
	case "users", "user", "usuarios":
		return CmdUsers, parsedArgs
	case "serve", "server":
		return CmdServe, parsedArgs
	case "version", "--version":
		return CmdVersion, parsedArgs
	case "help", "-h", "--help":
		return CmdHelp, parsedArgs
	default:
		parsedArgs.Raw = remaining
		return CmdUnknown, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "--json":
			parsedArgs.JSON = true
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--config":
			if i+1 < len(args) {
				i++
				parsedArgs.ConfigPath = args[i]
			}
		default:
			if strings.HasPrefix(arg, "--config=") {
				parsedArgs.ConfigPath = strings.TrimPrefix(arg, "--config=")
			} else {
				remaining = append(remaining, arg)
			}
		}
	}

	return remaining, parsedArgs
}

// =============================================================================
// VERSION AND HELP
// =============================================================================

// VersionData represents the data returned by the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// HandleVersion handles the "version" command.
func HandleVersion(args Args) error {
	if args.JSON {
		return NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}).Print()
	}
	PrintVersion()
	return nil
}

// HandleHelp handles the "help" command.
func HandleHelp() error {
	PrintUsage()
	return nil
}

// HandleUnknown reports an unrecognized command word.
func HandleUnknown(args Args) error {
	word := ""
	if len(args.Raw) > 0 {
		word = args.Raw[0]
	}
	return NewValidationErrorWithExample("command", word, "unknown command", "educagestao help")
}
