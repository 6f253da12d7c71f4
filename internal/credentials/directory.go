// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/educagestao/educagestao-tui/internal/security"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("a user with this email already exists")
)

// =============================================================================
// LOCAL DIRECTORY
// =============================================================================

// userRow mirrors the usuarios table.
type userRow struct {
	ID        int64          `db:"id"`
	Name      string         `db:"nome"`
	Email     string         `db:"email"`
	CPF       sql.NullString `db:"cpf"`
	Phone     sql.NullString `db:"telefone"`
	Role      string         `db:"cargo"`
	Hash      string         `db:"senha_hash"`
	Status    string         `db:"status"`
	CreatedAt string         `db:"created_at"`
	LastLogin sql.NullString `db:"last_login"`
}

func (r userRow) user() User {
	return User{
		ID:     strconv.FormatInt(r.ID, 10),
		Name:   r.Name,
		Email:  r.Email,
		Role:   security.ParseRole(r.Role),
		Status: Status(r.Status),
	}
}

// Account is a directory entry as listed to administrators.
type Account struct {
	User
	CPF       string `json:"cpf,omitempty"`
	Phone     string `json:"telefone,omitempty"`
	CreatedAt string `json:"created_at"`
	LastLogin string `json:"last_login,omitempty"`
}

// Directory is the local user directory backed by the usuarios table.
type Directory struct {
	db     *sqlx.DB
	logger *slog.Logger
	cost   int

	// dummyHash is compared against when the email is unknown so both
	// failure paths take the same time.
	dummyHash []byte
}

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithBcryptCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) DirectoryOption {
	return func(d *Directory) {
		d.cost = cost
	}
}

// WithDirectoryLogger sets the logger.
func WithDirectoryLogger(logger *slog.Logger) DirectoryOption {
	return func(d *Directory) {
		d.logger = logger
	}
}

// NewDirectory wraps an open database (see storage.Open).
func NewDirectory(db *sqlx.DB, opts ...DirectoryOption) (*Directory, error) {
	d := &Directory{
		db:     db,
		logger: slog.Default(),
		cost:   bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(d)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("educagestao-dummy"), d.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare directory: %w", err)
	}
	d.dummyHash = hash
	return d, nil
}

// Verify implements Verifier.
func (d *Directory) Verify(ctx context.Context, email, password string) (User, error) {
	email = NormalizeEmail(email)

	var row userRow
	err := d.db.GetContext(ctx, &row, `SELECT id, nome, email, cpf, telefone, cargo, senha_hash, status, created_at, last_login
		FROM usuarios WHERE email = ?`, email)
	if errors.Is(err, sql.ErrNoRows) {
		_ = bcrypt.CompareHashAndPassword(d.dummyHash, []byte(password))
		return User{}, ErrUnknownAccount
	}
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", security.ErrVerifierUnavailable, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.Hash), []byte(password)); err != nil {
		return User{}, security.ErrInvalidCredentials
	}
	if Status(row.Status) != StatusActive {
		return User{}, security.ErrInvalidCredentials
	}

	if _, err := d.db.ExecContext(ctx, "UPDATE usuarios SET last_login = CURRENT_TIMESTAMP WHERE id = ?", row.ID); err != nil {
		d.logger.Warn("last_login_update_failed", slog.Int64("user_id", row.ID), slog.Any("error", err))
	}
	return row.user(), nil
}

// Add inserts a new active user.
func (d *Directory) Add(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(nu.Password), d.cost)
	if err != nil {
		return User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	role := security.ParseRole(nu.Role)
	email := NormalizeEmail(nu.Email)
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO usuarios (nome, email, cpf, telefone, cargo, senha_hash, status) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(nu.Name), email, nullable(nu.CPF), nullable(nu.Phone), role.Code(), string(hash), string(StatusActive))
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return User{}, ErrUserExists
		}
		return User{}, fmt.Errorf("failed to insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, fmt.Errorf("failed to read user id: %w", err)
	}

	d.logger.Info("user_added", slog.Int64("user_id", id), slog.String("role", role.String()))
	return User{
		ID:     strconv.FormatInt(id, 10),
		Name:   strings.TrimSpace(nu.Name),
		Email:  email,
		Role:   role,
		Status: StatusActive,
	}, nil
}

// List returns every account ordered by name.
func (d *Directory) List(ctx context.Context) ([]Account, error) {
	var rows []userRow
	if err := d.db.SelectContext(ctx, &rows, `SELECT id, nome, email, cpf, telefone, cargo, senha_hash, status, created_at, last_login
		FROM usuarios ORDER BY nome`); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	out := make([]Account, 0, len(rows))
	for _, r := range rows {
		out = append(out, Account{
			User:      r.user(),
			CPF:       r.CPF.String,
			Phone:     r.Phone.String,
			CreatedAt: r.CreatedAt,
			LastLogin: r.LastLogin.String,
		})
	}
	return out, nil
}

// SetStatus activates or deactivates the account with email.
func (d *Directory) SetStatus(ctx context.Context, email string, status Status) error {
	res, err := d.db.ExecContext(ctx, "UPDATE usuarios SET status = ? WHERE email = ?", string(status), NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	d.logger.Info("user_status_changed", slog.String("email", MaskEmail(email)), slog.String("status", string(status)))
	return nil
}

// Count returns the number of accounts.
func (d *Directory) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM usuarios"); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// SeedDefaultAdmin creates the default administrator when the directory is
// empty. It reports whether an account was created.
func (d *Directory) SeedDefaultAdmin(ctx context.Context) (bool, error) {
	n, err := d.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	_, err = d.Add(ctx, NewUser{
		Name:     "Administrador",
		Email:    DefaultAdminEmail,
		CPF:      "000.000.000-00",
		Phone:    "(61) 99999-0000",
		Role:     security.RoleAdmin.Code(),
		Password: DefaultAdminPassword,
	})
	if err != nil {
		return false, err
	}
	d.logger.Warn("default_admin_seeded", slog.String("email", MaskEmail(DefaultAdminEmail)))
	return true, nil
}

// Default administrator created in an empty directory.
const (
	DefaultAdminEmail    = "admin@escola.com"
	DefaultAdminPassword = "admin123"
)

func nullable(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
