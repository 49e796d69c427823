package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starpal/starpal/internal/longterm"
)

// ErrNotFound is returned when a memory ID does not exist.
var ErrNotFound = longterm.ErrRecordNotFound

// memoryStore implements longterm.Client backed by SQLite with FTS5.
type memoryStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// importanceLevels orders importance values for "at least" comparisons.
var importanceLevels = map[string]int{
	string(longterm.ImportanceLow):    0,
	string(longterm.ImportanceMedium): 1,
	string(longterm.ImportanceHigh):   2,
}

// atLeast returns the importance values ranking at or above min.
func atLeast(min longterm.Importance) []string {
	floor := importanceLevels[string(min)]
	var out []string
	for level, rank := range importanceLevels {
		if rank >= floor {
			out = append(out, level)
		}
	}
	return out
}

// ftsQuery converts free text into an FTS5 OR-query of quoted tokens.
// Returns "" when the text yields no usable tokens.
func ftsQuery(text string) string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '\r', ',', '.', '?', '!', '"', '\'', ':', ';', '(', ')':
			return true
		}
		return false
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tokens = append(tokens, `"`+f+`"`)
	}
	return strings.Join(tokens, " OR ")
}

// Search implements longterm.Client using FTS5 ranking. Records must also
// satisfy the importance-or-recency filter when one is given.
func (s *memoryStore) Search(ctx context.Context, userID, query string, filters longterm.SearchFilters, limit int) ([]longterm.Record, error) {
	if limit <= 0 {
		return nil, nil
	}

	match := ftsQuery(query)
	if match == "" {
		return s.List(ctx, userID, limit)
	}

	where := []string{"m.user_id = ?", "memories_fts MATCH ?"}
	args := []any{userID, match}

	var alternatives []string
	if filters.MinImportance != "" {
		levels := atLeast(filters.MinImportance)
		alternatives = append(alternatives,
			"m.importance IN ("+strings.TrimRight(strings.Repeat("?,", len(levels)), ",")+")")
		for _, l := range levels {
			args = append(args, l)
		}
	}
	if !filters.CreatedAfter.IsZero() {
		alternatives = append(alternatives, "m.created_at >= ?")
		args = append(args, filters.CreatedAfter.UTC().Format(time.RFC3339Nano))
	}
	if len(alternatives) > 0 {
		where = append(where, "("+strings.Join(alternatives, " OR ")+")")
	}

	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.memory, m.importance, m.metadata, m.created_at, m.updated_at
		FROM memories_fts
		JOIN memories m ON m.rowid = memories_fts.rowid
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY rank
		LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search memories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRecords(rows)
}

// Add implements longterm.Client. The exchange is flattened into one
// record; importance is lifted out of metadata for filtering.
func (s *memoryStore) Add(ctx context.Context, userID string, messages []longterm.Message, metadata map[string]any) error {
	var text strings.Builder
	for i, msg := range messages {
		if i > 0 {
			text.WriteByte('\n')
		}
		text.WriteString(msg.Role)
		text.WriteString(": ")
		text.WriteString(msg.Content)
	}

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("sqlite: marshal metadata: %w", err)
	}

	importance := string(longterm.ImportanceLow)
	if imp, ok := metadata["importance"].(string); ok && imp != "" {
		importance = imp
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (id, user_id, memory, importance, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), userID, text.String(), importance,
		string(metaJSON), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: add memory: %w", err)
	}
	return nil
}

// Get implements longterm.Client.
func (s *memoryStore) Get(ctx context.Context, memoryID string) (*longterm.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, memory, importance, metadata, created_at, updated_at
		FROM memories WHERE id = ?`,
		memoryID,
	)

	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get memory: %w", err)
	}
	return &rec, nil
}

// List implements longterm.Client, newest records first.
func (s *memoryStore) List(ctx context.Context, userID string, limit int) ([]longterm.Record, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, memory, importance, metadata, created_at, updated_at
		FROM memories
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list memories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRecords(rows)
}

// Update implements longterm.Client.
func (s *memoryStore) Update(ctx context.Context, memoryID, text string, metadata map[string]any) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("sqlite: marshal metadata: %w", err)
	}

	importance := string(longterm.ImportanceLow)
	if imp, ok := metadata["importance"].(string); ok && imp != "" {
		importance = imp
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE memories
		SET memory = ?, importance = ?, metadata = ?, updated_at = ?
		WHERE id = ?`,
		text, importance, string(metaJSON),
		time.Now().UTC().Format(time.RFC3339Nano), memoryID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: update memory: %w", err)
	}
	return requireRow(result)
}

// Delete implements longterm.Client.
func (s *memoryStore) Delete(ctx context.Context, memoryID string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM memories WHERE id = ?", memoryID)
	if err != nil {
		return fmt.Errorf("sqlite: delete memory: %w", err)
	}
	return requireRow(result)
}

// DeleteAll implements longterm.Client.
func (s *memoryStore) DeleteAll(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM memories WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("sqlite: delete memories: %w", err)
	}
	return nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecord(scan func(...any) error) (longterm.Record, error) {
	var (
		rec      longterm.Record
		metaJSON string
	)
	if err := scan(&rec.ID, &rec.Memory, &rec.Importance, &metaJSON, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return rec, err
	}
	if metaJSON != "" && metaJSON != "{}" && metaJSON != "null" {
		if err := json.Unmarshal([]byte(metaJSON), &rec.Metadata); err != nil {
			return rec, fmt.Errorf("sqlite: unmarshal metadata: %w", err)
		}
	}
	return rec, nil
}

func scanRecords(rows *sql.Rows) ([]longterm.Record, error) {
	var records []longterm.Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan memory: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: scan memory rows: %w", err)
	}
	return records, nil
}
