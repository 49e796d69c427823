// Package users defines the user directory contract consumed by the HTTP
// gateway for registration, login, and bearer-token lookups.
package users

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for directory operations.
var (
	// ErrNotFound indicates no user exists for the given username.
	ErrNotFound = errors.New("users: not found")

	// ErrExists indicates the username is already registered.
	ErrExists = errors.New("users: already exists")
)

// User is a registered account. Usernames are email addresses.
type User struct {
	ID        int64
	Username  string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Directory manages user accounts.
// Implementations must be safe for concurrent use.
type Directory interface {
	// FindByUsername returns the user for the given username.
	// Returns ErrNotFound if no such user exists.
	FindByUsername(ctx context.Context, username string) (*User, error)

	// Create registers a new user. Returns ErrExists if the username
	// is taken.
	Create(ctx context.Context, username, password, name string) (*User, error)

	// VerifyPassword reports whether the password matches the stored
	// credential for the username. Returns ErrNotFound for unknown users.
	VerifyPassword(ctx context.Context, username, password string) (bool, error)

	// UpdatePassword replaces the stored credential for the username.
	// Returns ErrNotFound for unknown users.
	UpdatePassword(ctx context.Context, username, newPassword string) error
}
