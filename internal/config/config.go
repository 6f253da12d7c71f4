// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EDUCAGESTAO_"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete educagestao configuration.
type Config struct {
	// Auth selects how credentials are verified.
	Auth AuthConfig `toml:"auth" json:"auth" envPrefix:"AUTH_"`

	// Session selects where remembered sessions are kept. Session lifetimes
	// are fixed and not configurable.
	Session SessionConfig `toml:"session" json:"session" envPrefix:"SESSION_"`

	// Storage locates the local database.
	Storage StorageConfig `toml:"storage" json:"storage" envPrefix:"STORAGE_"`

	// Server configures `educagestao serve`.
	Server ServerConfig `toml:"server" json:"server" envPrefix:"SERVER_"`

	// Log configures the rotating log file.
	Log LogConfig `toml:"log" json:"log" envPrefix:"LOG_"`
}

// AuthConfig contains credential verification settings.
type AuthConfig struct {
	// Verifier is one of:
	//   "local"    - the user table in the local database
	//   "remote"   - the school API at APIURL
	//   "demo"     - the built-in demonstration accounts
	//   "fallback" - remote (when APIURL is set), then local, then demo (when DemoUsers)
	Verifier string `toml:"verifier" json:"verifier" env:"VERIFIER" validate:"oneof=local remote demo fallback"`
	// APIURL is the base URL of the school API, e.g. http://localhost:5000
	APIURL string `toml:"api_url" json:"api_url" env:"API_URL" validate:"required_if=Verifier remote,omitempty,url"`
	// TimeoutSecs bounds a remote verification request.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs" env:"TIMEOUT_SECS" validate:"min=1,max=120"`
	// AccessMode preselects the login path: "any", "admin" or "professional".
	AccessMode string `toml:"access_mode" json:"access_mode" env:"ACCESS_MODE" validate:"oneof=any admin professional"`
	// DemoUsers adds the demonstration accounts to the fallback chain.
	DemoUsers bool `toml:"demo_users" json:"demo_users" env:"DEMO_USERS"`
	// BcryptCost is the cost used when adding local users.
	BcryptCost int `toml:"bcrypt_cost" json:"bcrypt_cost" env:"BCRYPT_COST" validate:"min=4,max=31"`
}

// SessionConfig contains session storage settings.
type SessionConfig struct {
	// DurableBackend is "file", "sqlite" or "redis".
	DurableBackend string `toml:"durable_backend" json:"durable_backend" env:"DURABLE_BACKEND" validate:"oneof=file sqlite redis"`
	// File is the durable session file used by the "file" backend.
	File string `toml:"file" json:"file" env:"FILE" validate:"required"`
	// RedisURL is used by the "redis" backend, e.g. redis://localhost:6379/0
	RedisURL string `toml:"redis_url" json:"redis_url" env:"REDIS_URL" validate:"required_if=DurableBackend redis,omitempty,url"`
	// RedisKey is the key holding the session.
	RedisKey string `toml:"redis_key" json:"redis_key" env:"REDIS_KEY" validate:"required"`
}

// StorageConfig contains local database settings.
type StorageConfig struct {
	// DataDir holds the database, the session file and logs.
	DataDir string `toml:"data_dir" json:"data_dir" env:"DATA_DIR" validate:"required"`
	// DatabasePath is the sqlite database file.
	DatabasePath string `toml:"database_path" json:"database_path" env:"DATABASE_PATH" validate:"required"`
}

// ServerConfig contains settings for the local API server.
type ServerConfig struct {
	ListenAddr string `toml:"listen_addr" json:"listen_addr" env:"LISTEN_ADDR" validate:"required"`
	// ReadTimeoutSecs bounds reading a request.
	ReadTimeoutSecs int `toml:"read_timeout_secs" json:"read_timeout_secs" env:"READ_TIMEOUT_SECS" validate:"min=1"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level      string `toml:"level" json:"level" env:"LEVEL" validate:"oneof=debug info warn error"`
	File       string `toml:"file" json:"file" env:"FILE" validate:"required"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" env:"MAX_SIZE_MB" validate:"min=1"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" env:"MAX_BACKUPS" validate:"min=0"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days" env:"MAX_AGE_DAYS" validate:"min=0"`
}

// AuthTimeout returns the remote verification timeout.
func (c *Config) AuthTimeout() time.Duration {
	return time.Duration(c.Auth.TimeoutSecs) * time.Second
}

// ReadTimeout returns the server read timeout.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeoutSecs) * time.Second
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns the built-in configuration rooted at dataDir.
func Default(dataDir string) *Config {
	return &Config{
		Auth: AuthConfig{
			Verifier:    "fallback",
			TimeoutSecs: 10,
			AccessMode:  "any",
			DemoUsers:   true,
			BcryptCost:  10,
		},
		Session: SessionConfig{
			DurableBackend: "file",
			File:           filepath.Join(dataDir, "session.json"),
			RedisKey:       "educagestao:session",
		},
		Storage: StorageConfig{
			DataDir:      dataDir,
			DatabasePath: filepath.Join(dataDir, "educagestao.db"),
		},
		Server: ServerConfig{
			ListenAddr:      "127.0.0.1:5000",
			ReadTimeoutSecs: 10,
		},
		Log: LogConfig{
			Level:      "info",
			File:       filepath.Join(dataDir, "logs", "educagestao.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the educagestao data directory. EDUCAGESTAO_HOME
// overrides the default ~/.educagestao.
func ConfigDir() (string, error) {
	if dir := os.Getenv(EnvPrefix + "HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".educagestao"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: the config may hold the API URL and redis credentials.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads ~/.educagestao/config.toml when it exists, applies
// environment overrides and validates the result.
func Load() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	path, err := ConfigPathTOML()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path, dir)
}

// LoadFrom loads the TOML file at path over the defaults for dataDir. A
// missing file is not an error.
func LoadFrom(path, dataDir string) (*Config, error) {
	cfg := Default(dataDir)

	if _, err := os.Stat(path); err == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys missing from the file keep
// their current values; unknown keys are an error.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies EDUCAGESTAO_* variables, e.g.
// EDUCAGESTAO_AUTH_VERIFIER=remote or EDUCAGESTAO_LOG_LEVEL=debug.
func (c *Config) ApplyEnvOverrides() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("config: failed to parse environment variables: %w", err)
	}
	return nil
}

// Normalize lowercases enumerated values and expands a leading ~ in paths.
func (c *Config) Normalize() {
	c.Auth.Verifier = strings.ToLower(strings.TrimSpace(c.Auth.Verifier))
	c.Auth.AccessMode = strings.ToLower(strings.TrimSpace(c.Auth.AccessMode))
	c.Auth.APIURL = strings.TrimRight(strings.TrimSpace(c.Auth.APIURL), "/")
	c.Session.DurableBackend = strings.ToLower(strings.TrimSpace(c.Session.DurableBackend))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))

	c.Storage.DataDir = expandHome(c.Storage.DataDir)
	c.Storage.DatabasePath = expandHome(c.Storage.DatabasePath)
	c.Session.File = expandHome(c.Session.File)
	c.Log.File = expandHome(c.Log.File)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report TOML keys instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate validates the configuration and returns ValidateErrors.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	errs := make(ValidateErrors, 0, len(verrs))
	for _, fe := range verrs {
		// Namespace is "Config.auth.verifier"; drop the root.
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		errs = append(errs, ValidationError{Field: field, Message: describe(fe)})
	}
	return errs
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return fmt.Sprintf("is required when %s", strings.Replace(fe.Param(), " ", " is ", 1))
	case "oneof":
		return fmt.Sprintf("invalid value '%v', must be one of: %s", fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url":
		return fmt.Sprintf("invalid URL '%v'", fe.Value())
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}
