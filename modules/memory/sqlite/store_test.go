package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/starpal/starpal/internal/longterm"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *memoryStore {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return &memoryStore{db: db, logger: slog.Default()}
}

func addMemory(t *testing.T, s *memoryStore, userID, content string, metadata map[string]any) {
	t.Helper()
	err := s.Add(context.Background(), userID, []longterm.Message{
		{Role: "user", Content: content},
	}, metadata)
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
}

func TestAddAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	addMemory(t, s, "alice", "my favourite drink is green tea", map[string]any{"importance": "high"})
	addMemory(t, s, "alice", "meeting notes from standup", map[string]any{"importance": "low"})
	addMemory(t, s, "bob", "green tea is overrated", map[string]any{"importance": "high"})

	records, err := s.Search(ctx, "alice", "green tea", longterm.SearchFilters{}, 10)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Importance != "high" {
		t.Errorf("importance = %q, want high", records[0].Importance)
	}
}

func TestSearch_ImportanceOrRecency(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	addMemory(t, s, "alice", "old but important tea fact", map[string]any{"importance": "high"})
	addMemory(t, s, "alice", "recent low tea fact", map[string]any{"importance": "low"})

	// Force the first record well outside the recency window.
	old := time.Now().Add(-90 * 24 * time.Hour).UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx, "UPDATE memories SET created_at = ? WHERE importance = 'high'", old); err != nil {
		t.Fatalf("backdate record: %v", err)
	}

	records, err := s.Search(ctx, "alice", "tea", longterm.SearchFilters{
		MinImportance: longterm.ImportanceHigh,
		CreatedAfter:  time.Now().Add(-30 * 24 * time.Hour),
	}, 10)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	// Both qualify: one by importance, one by recency.
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}

func TestSearch_FilterExcludes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	addMemory(t, s, "alice", "stale low tea fact", map[string]any{"importance": "low"})

	old := time.Now().Add(-90 * 24 * time.Hour).UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx, "UPDATE memories SET created_at = ?", old); err != nil {
		t.Fatalf("backdate record: %v", err)
	}

	records, err := s.Search(ctx, "alice", "tea", longterm.SearchFilters{
		MinImportance: longterm.ImportanceHigh,
		CreatedAfter:  time.Now().Add(-30 * 24 * time.Hour),
	}, 10)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestList_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	addMemory(t, s, "alice", "first", nil)
	addMemory(t, s, "alice", "second", nil)

	// Separate the timestamps deterministically.
	if _, err := s.db.ExecContext(ctx,
		"UPDATE memories SET created_at = ? WHERE memory LIKE '%second%'",
		time.Now().Add(time.Hour).UTC().Format(time.RFC3339Nano)); err != nil {
		t.Fatalf("adjust timestamp: %v", err)
	}

	records, err := s.List(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Memory != "user: second" {
		t.Errorf("first record = %q, want the newest", records[0].Memory)
	}
}

func TestUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	addMemory(t, s, "alice", "likes tea", nil)
	records, err := s.List(ctx, "alice", 1)
	if err != nil || len(records) != 1 {
		t.Fatalf("List() = %v, %v", records, err)
	}

	meta := map[string]any{"importance": "high", "last_modified": "user_edit"}
	if err := s.Update(ctx, records[0].ID, "prefers oolong now", meta); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	got, err := s.Get(ctx, records[0].ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Memory != "prefers oolong now" {
		t.Errorf("memory = %q, want updated text", got.Memory)
	}
	if got.Importance != "high" {
		t.Errorf("importance = %q, want high", got.Importance)
	}
	if got.UpdatedAt == "" {
		t.Error("expected updated_at to be set")
	}
}

func TestUpdate_NotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.Update(context.Background(), "missing", "text", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestDeleteAll_ScopedToUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	addMemory(t, s, "alice", "a", nil)
	addMemory(t, s, "bob", "b", nil)

	if err := s.DeleteAll(ctx, "alice"); err != nil {
		t.Fatalf("DeleteAll() error: %v", err)
	}

	aliceLeft, err := s.List(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("List(alice) error: %v", err)
	}
	if len(aliceLeft) != 0 {
		t.Errorf("alice has %d records left, want 0", len(aliceLeft))
	}

	bobLeft, err := s.List(ctx, "bob", 10)
	if err != nil {
		t.Fatalf("List(bob) error: %v", err)
	}
	if len(bobLeft) != 1 {
		t.Errorf("bob has %d records, want 1", len(bobLeft))
	}
}
