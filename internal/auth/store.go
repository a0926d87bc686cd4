package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Roles. Admins manage the dataset and its configuration; users may only
// query it.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

var (
	// ErrUserExists means the username is already taken.
	ErrUserExists = errors.New("user already exists")

	// ErrInvalidCredentials covers unknown users and wrong passwords
	// alike, so a login failure does not reveal which one it was.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User is an account record. The password hash never leaves this package.
type User struct {
	Username  string
	Role      string
	CreatedAt time.Time
}

// Store persists user accounts in sqlite.
type Store struct {
	db *sql.DB
}

// NewStore creates a user store backed by an opened database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create registers a new account with the given role.
func (s *Store) Create(ctx context.Context, username, password, role string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role, created_at) VALUES (?, ?, ?, ?)`,
		username, hash, role, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Authenticate verifies credentials and returns the account.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*User, error) {
	var (
		user User
		hash string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT username, password_hash, role, created_at FROM users WHERE username = ?`, username).
		Scan(&user.Username, &hash, &user.Role, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	if !VerifyPassword(password, hash) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// EnsureAdmin seeds the default admin account when it does not exist yet.
// Called once at startup so a fresh deployment is immediately usable.
func (s *Store) EnsureAdmin(ctx context.Context, password string) error {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE username = 'admin'`).Scan(&n)
	if err != nil {
		return fmt.Errorf("check admin account: %w", err)
	}
	if n > 0 {
		return nil
	}

	if err := s.Create(ctx, "admin", password, RoleAdmin); err != nil {
		return fmt.Errorf("seed admin account: %w", err)
	}
	slog.Info("seeded default admin account")
	return nil
}

// isUniqueViolation matches sqlite's primary-key conflict without importing
// driver internals.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
