package sqlite

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starpal/starpal/internal/users"
)

// directory implements users.Directory backed by SQLite.
// Passwords are stored as salted SHA-256 digests in "salt$digest" form.
type directory struct {
	db *sql.DB
}

// FindByUsername returns the user for the given username.
func (d *directory) FindByUsername(ctx context.Context, username string) (*users.User, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, username, name, created_at, updated_at
		FROM users WHERE username = ?`,
		username,
	)
	return scanUser(row)
}

// Create registers a new user with a freshly salted credential.
func (d *directory) Create(ctx context.Context, username, password, name string) (*users.User, error) {
	credential, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO users (username, password, name) VALUES (?, ?, ?)`,
		username, credential, name,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, users.ErrExists
		}
		return nil, fmt.Errorf("users: create: %w", err)
	}

	return d.FindByUsername(ctx, username)
}

// VerifyPassword checks the password against the stored credential.
func (d *directory) VerifyPassword(ctx context.Context, username, password string) (bool, error) {
	var credential string
	err := d.db.QueryRowContext(ctx,
		`SELECT password FROM users WHERE username = ?`, username,
	).Scan(&credential)
	if errors.Is(err, sql.ErrNoRows) {
		return false, users.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("users: verify password: %w", err)
	}

	return verifyCredential(credential, password), nil
}

// UpdatePassword replaces the stored credential for the username.
func (d *directory) UpdatePassword(ctx context.Context, username, newPassword string) error {
	credential, err := hashPassword(newPassword)
	if err != nil {
		return err
	}

	res, err := d.db.ExecContext(ctx, `
		UPDATE users SET password = ?, updated_at = ? WHERE username = ?`,
		credential, time.Now().UTC().Format(time.RFC3339Nano), username,
	)
	if err != nil {
		return fmt.Errorf("users: update password: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("users: update password: %w", err)
	}
	if n == 0 {
		return users.ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*users.User, error) {
	var (
		u                    users.User
		createdAt, updatedAt string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Name, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("users: scan: %w", err)
	}

	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	u.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &u, nil
}

// saltSize is the per-credential random salt length in bytes.
const saltSize = 16

// hashPassword derives a salted SHA-256 credential in "salt$digest" form.
func hashPassword(password string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("users: generate salt: %w", err)
	}

	digest := sha256.Sum256(append(salt, []byte(password)...))
	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(digest[:]), nil
}

// verifyCredential checks a password against a stored "salt$digest"
// credential using constant-time comparison.
func verifyCredential(credential, password string) bool {
	saltHex, digestHex, ok := strings.Cut(credential, "$")
	if !ok {
		return false
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(digestHex)
	if err != nil {
		return false
	}

	got := sha256.Sum256(append(salt, []byte(password)...))
	return subtle.ConstantTimeCompare(got[:], want) == 1
}
