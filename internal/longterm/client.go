// Package longterm provides the long-term memory gateway: a policy layer
// over a remote (or local) memory store that tags, searches, and formats
// memory records, and degrades gracefully when the store is unavailable
// or the feature is disabled.
package longterm

import (
	"context"
	"errors"
	"time"
)

// ErrRecordNotFound is returned by backends when a memory ID does not exist.
var ErrRecordNotFound = errors.New("longterm: record not found")

// Importance grades how valuable a memory record is for future retrieval.
type Importance string

// Importance levels, lowest to highest.
const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

// Message is one half of a conversation exchange submitted for memorization.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Record is a long-term memory record as reported by the backing store.
// Timestamps are kept as the store's own string representation; remote
// services are not consistent enough to parse them strictly.
type Record struct {
	ID         string         `json:"id"`
	Memory     string         `json:"memory"`
	CreatedAt  string         `json:"created_at,omitempty"`
	UpdatedAt  string         `json:"updated_at,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Score      *float64       `json:"relevance_score,omitempty"`
	Importance string         `json:"importance,omitempty"`
}

// SearchFilters narrows a search to records the caller considers relevant.
// A record matches when its importance is at least MinImportance OR it was
// created after CreatedAfter. Zero values disable the respective condition.
type SearchFilters struct {
	MinImportance Importance
	CreatedAfter  time.Time
}

// Client is the contract a memory backend must implement. Implementations
// live in separate packages (e.g., memory.mem0, memory.sqlite) and register
// themselves as the "memory.client" service.
//
// All operations are user-scoped where a userID is given; the backend owns
// consistency for its records.
type Client interface {
	// Search returns up to limit records for the user matching the query,
	// sorted by the backend's relevance.
	Search(ctx context.Context, userID, query string, filters SearchFilters, limit int) ([]Record, error)

	// Add stores a new record built from the exchange messages, tagged
	// with the given metadata.
	Add(ctx context.Context, userID string, messages []Message, metadata map[string]any) error

	// Get returns a single record by ID.
	Get(ctx context.Context, memoryID string) (*Record, error)

	// List returns up to limit of the user's records, newest first.
	List(ctx context.Context, userID string, limit int) ([]Record, error)

	// Update replaces a record's content and metadata.
	Update(ctx context.Context, memoryID, text string, metadata map[string]any) error

	// Delete removes a single record.
	Delete(ctx context.Context, memoryID string) error

	// DeleteAll removes every record owned by the user.
	DeleteAll(ctx context.Context, userID string) error
}
