package longterm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// recencyWindow is how far back a record may have been created and still
// match a search without being tagged high importance.
const recencyWindow = 30 * 24 * time.Hour

// defaultSearchLimit bounds search results when no limit is configured.
const defaultSearchLimit = 5

// digestHeader opens the formatted memory digest.
const digestHeader = "User history and preferences:\n"

// Outcome is the non-exceptional result of a memory management operation.
// Failures of the backing store degrade to a reported failure outcome;
// nothing propagates past the gateway as an error.
type Outcome struct {
	OK      bool   `json:"success"`
	Message string `json:"message"`
}

// disabledOutcome is returned by every operation when the feature is off.
func disabledOutcome() Outcome {
	return Outcome{OK: false, Message: "long-term memory service is disabled"}
}

// Gateway wraps a memory Client with the retrieval and tagging policy:
// filtered search formatted as a digest, heuristic importance/keyword
// tagging on writes, and best-effort error swallowing. A nil client or a
// disabled flag turns every operation into an explicit no-op.
type Gateway struct {
	client      Client
	enabled     bool
	searchLimit int
	heuristics  Heuristics
	logger      *slog.Logger

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// Config controls gateway behavior.
type Config struct {
	Enabled     bool
	SearchLimit int
	Heuristics  Heuristics
}

// NewGateway creates a gateway over the given client. A nil client forces
// the disabled state regardless of cfg.Enabled.
func NewGateway(client Client, cfg Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	limit := cfg.SearchLimit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return &Gateway{
		client:      client,
		enabled:     cfg.Enabled && client != nil,
		searchLimit: limit,
		heuristics:  cfg.Heuristics,
		logger:      logger,
		now:         time.Now,
	}
}

// Enabled reports whether long-term memory operations reach a backend.
func (g *Gateway) Enabled() bool {
	return g.enabled
}

// SearchDigest queries the store for records relevant to the message and
// formats them into a numbered, human-readable digest. The filter selects
// the user's records that are either tagged high importance or created
// within the last 30 days. Returns an empty string when disabled, on any
// failure, or when nothing matches — never an error.
func (g *Gateway) SearchDigest(ctx context.Context, userID, query string) string {
	if !g.enabled {
		return ""
	}

	filters := SearchFilters{
		MinImportance: ImportanceHigh,
		CreatedAfter:  g.now().Add(-recencyWindow),
	}

	records, err := g.client.Search(ctx, userID, query, filters, g.searchLimit)
	if err != nil {
		g.logger.Warn("long-term memory search failed", "user", userID, "error", err)
		return ""
	}
	if len(records) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(digestHeader)
	for i, rec := range records {
		fmt.Fprintf(&b, "%d. ", i+1)
		if rec.Score != nil {
			fmt.Fprintf(&b, "[relevance: %.2f] ", *rec.Score)
		}
		if rec.CreatedAt != "" {
			fmt.Fprintf(&b, "(%s) ", rec.CreatedAt)
		}
		b.WriteString(rec.Memory)
		b.WriteString("\n")
	}
	return b.String()
}

// Record submits a completed exchange to the store, tagged with the chat ID
// and heuristic importance/keyword metadata. Write failures are logged and
// swallowed; a failed record must never abort the chat turn that
// triggered it. Disabled state skips silently.
func (g *Gateway) Record(ctx context.Context, userID, chatID, userText, assistantText string) {
	if !g.enabled {
		return
	}

	metadata := map[string]any{
		"chat_id":    chatID,
		"timestamp":  g.now().Unix(),
		"importance": string(g.heuristics.EstimateImportance(userText, assistantText)),
		"context":    g.heuristics.ExtractKeywords(userText, assistantText),
	}

	messages := []Message{
		{Role: "user", Content: userText},
		{Role: "assistant", Content: assistantText},
	}

	if err := g.client.Add(ctx, userID, messages, metadata); err != nil {
		g.logger.Warn("long-term memory write failed", "user", userID, "chat", chatID, "error", err)
	}
}

// List returns up to limit of the user's records, newest first.
func (g *Gateway) List(ctx context.Context, userID string, limit int) ([]Record, Outcome) {
	if !g.enabled {
		return nil, disabledOutcome()
	}

	records, err := g.client.List(ctx, userID, limit)
	if err != nil {
		g.logger.Warn("long-term memory list failed", "user", userID, "error", err)
		return nil, Outcome{OK: false, Message: fmt.Sprintf("listing memories failed: %v", err)}
	}
	return records, Outcome{OK: true, Message: "memories retrieved"}
}

// Update replaces a record's content. When no metadata is supplied, the
// existing record's metadata is fetched (tolerating fetch failure) and
// enriched: updated_at and last_modified are set, and importance is forced
// to high if absent — a manually edited memory is presumed important.
func (g *Gateway) Update(ctx context.Context, memoryID, text string, metadata map[string]any) Outcome {
	if !g.enabled {
		return disabledOutcome()
	}

	if metadata == nil {
		metadata = g.editMetadata(ctx, memoryID)
	}

	if err := g.client.Update(ctx, memoryID, text, metadata); err != nil {
		g.logger.Warn("long-term memory update failed", "memory", memoryID, "error", err)
		return Outcome{OK: false, Message: fmt.Sprintf("updating memory failed: %v", err)}
	}
	return Outcome{OK: true, Message: "memory updated"}
}

// editMetadata builds the metadata bag for a user edit, starting from the
// record's existing metadata when it can be fetched.
func (g *Gateway) editMetadata(ctx context.Context, memoryID string) map[string]any {
	metadata := make(map[string]any)

	existing, err := g.client.Get(ctx, memoryID)
	if err != nil {
		g.logger.Warn("fetching existing memory metadata failed", "memory", memoryID, "error", err)
	} else if existing != nil {
		for k, v := range existing.Metadata {
			metadata[k] = v
		}
	}

	metadata["updated_at"] = g.now().Unix()
	metadata["last_modified"] = "user_edit"
	if _, ok := metadata["importance"]; !ok {
		metadata["importance"] = string(ImportanceHigh)
	}
	return metadata
}

// Delete removes a single record.
func (g *Gateway) Delete(ctx context.Context, memoryID string) Outcome {
	if !g.enabled {
		return disabledOutcome()
	}

	if err := g.client.Delete(ctx, memoryID); err != nil {
		g.logger.Warn("long-term memory delete failed", "memory", memoryID, "error", err)
		return Outcome{OK: false, Message: fmt.Sprintf("deleting memory failed: %v", err)}
	}
	return Outcome{OK: true, Message: "memory deleted"}
}

// DeleteAll removes every record owned by the user.
func (g *Gateway) DeleteAll(ctx context.Context, userID string) Outcome {
	if !g.enabled {
		return disabledOutcome()
	}

	if err := g.client.DeleteAll(ctx, userID); err != nil {
		g.logger.Warn("long-term memory bulk delete failed", "user", userID, "error", err)
		return Outcome{OK: false, Message: fmt.Sprintf("clearing memories failed: %v", err)}
	}
	return Outcome{OK: true, Message: "user memories cleared"}
}
