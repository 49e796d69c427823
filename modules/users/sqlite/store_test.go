package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starpal/starpal/internal/users"

	_ "modernc.org/sqlite"
)

func newTestDirectory(t *testing.T) *directory {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "users.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return &directory{db: db}
}

func TestCreateAndFind(t *testing.T) {
	t.Parallel()

	d := newTestDirectory(t)
	ctx := context.Background()

	created, err := d.Create(ctx, "alice@example.com", "secret123", "Alice")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if created.ID == 0 {
		t.Error("created user has no ID")
	}
	if created.Username != "alice@example.com" || created.Name != "Alice" {
		t.Errorf("created user = %+v", created)
	}
	if created.CreatedAt.IsZero() {
		t.Error("created_at not populated")
	}

	found, err := d.FindByUsername(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("FindByUsername() error: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("found ID = %d, want %d", found.ID, created.ID)
	}
}

func TestFind_NotFound(t *testing.T) {
	t.Parallel()

	d := newTestDirectory(t)
	_, err := d.FindByUsername(context.Background(), "nobody@example.com")
	if !errors.Is(err, users.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCreate_Duplicate(t *testing.T) {
	t.Parallel()

	d := newTestDirectory(t)
	ctx := context.Background()

	if _, err := d.Create(ctx, "alice@example.com", "secret123", "Alice"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := d.Create(ctx, "alice@example.com", "other456", "Alice Two")
	if !errors.Is(err, users.ErrExists) {
		t.Errorf("err = %v, want ErrExists", err)
	}
}

func TestVerifyPassword(t *testing.T) {
	t.Parallel()

	d := newTestDirectory(t)
	ctx := context.Background()

	if _, err := d.Create(ctx, "alice@example.com", "secret123", "Alice"); err != nil {
		t.Fatalf("create: %v", err)
	}

	match, err := d.VerifyPassword(ctx, "alice@example.com", "secret123")
	if err != nil || !match {
		t.Errorf("correct password: match = %v, err = %v", match, err)
	}

	match, err = d.VerifyPassword(ctx, "alice@example.com", "wrongpass")
	if err != nil || match {
		t.Errorf("wrong password: match = %v, err = %v", match, err)
	}

	_, err = d.VerifyPassword(ctx, "nobody@example.com", "whatever")
	if !errors.Is(err, users.ErrNotFound) {
		t.Errorf("unknown user: err = %v, want ErrNotFound", err)
	}
}

func TestUpdatePassword(t *testing.T) {
	t.Parallel()

	d := newTestDirectory(t)
	ctx := context.Background()

	if _, err := d.Create(ctx, "alice@example.com", "secret123", "Alice"); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := d.UpdatePassword(ctx, "alice@example.com", "newsecret"); err != nil {
		t.Fatalf("UpdatePassword() error: %v", err)
	}

	if match, _ := d.VerifyPassword(ctx, "alice@example.com", "secret123"); match {
		t.Error("old password still accepted")
	}
	if match, _ := d.VerifyPassword(ctx, "alice@example.com", "newsecret"); !match {
		t.Error("new password rejected")
	}

	err := d.UpdatePassword(ctx, "nobody@example.com", "whatever")
	if !errors.Is(err, users.ErrNotFound) {
		t.Errorf("unknown user: err = %v, want ErrNotFound", err)
	}
}

func TestPasswordsNotStoredInPlaintext(t *testing.T) {
	t.Parallel()

	d := newTestDirectory(t)
	ctx := context.Background()

	if _, err := d.Create(ctx, "alice@example.com", "secret123", "Alice"); err != nil {
		t.Fatalf("create: %v", err)
	}

	var credential string
	if err := d.db.QueryRowContext(ctx,
		"SELECT password FROM users WHERE username = ?", "alice@example.com",
	).Scan(&credential); err != nil {
		t.Fatalf("read credential: %v", err)
	}
	if strings.Contains(credential, "secret123") {
		t.Error("credential contains the plaintext password")
	}
	if !strings.Contains(credential, "$") {
		t.Errorf("credential %q missing salt separator", credential)
	}
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	t.Parallel()

	a, err := hashPassword("same password")
	if err != nil {
		t.Fatal(err)
	}
	b, err := hashPassword("same password")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two credentials for the same password share a salt")
	}
	if !verifyCredential(a, "same password") || !verifyCredential(b, "same password") {
		t.Error("credential does not verify against its own password")
	}
}

func TestVerifyCredential_Malformed(t *testing.T) {
	t.Parallel()

	for _, credential := range []string{"", "nodollar", "zz$zz", "abcd$nothex"} {
		if verifyCredential(credential, "pw") {
			t.Errorf("malformed credential %q verified", credential)
		}
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()

	d := newTestDirectory(t)
	if err := migrate(d.db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}
