package gateway

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starpal/starpal/internal/longterm"
)

const defaultListLimit = 10

// memoryJSON is the serializable view of a long-term record for the
// administration endpoints.
type memoryJSON struct {
	ID         string `json:"id"`
	Memory     string `json:"memory"`
	CreatedAt  string `json:"created_at,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
	Importance string `json:"importance"`
}

func (g *Gateway) handleMemoryStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":                  true,
			"short_term_memory_count":  g.chat.Count(),
			"long_term_memory_enabled": g.chat.Memory().Enabled(),
		})
	}
}

func (g *Gateway) handleListLongTerm() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := usernameFrom(r.Context())

		limit := defaultListLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}

		ctx, cancel := requestContext(r)
		defer cancel()

		records, outcome := g.chat.Memory().List(ctx, username, limit)
		g.metrics.MemoryOps.WithLabelValues("list").Inc()

		memories := make([]memoryJSON, 0, len(records))
		for _, rec := range records {
			memories = append(memories, memoryJSON{
				ID:         rec.ID,
				Memory:     rec.Memory,
				CreatedAt:  rec.CreatedAt,
				UpdatedAt:  rec.UpdatedAt,
				Importance: importanceOrUnknown(rec),
			})
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success":  outcome.OK,
			"message":  outcome.Message,
			"memories": memories,
		})
	}
}

// importanceOrUnknown reads importance from the record, falling back to
// metadata, then to "unknown".
func importanceOrUnknown(rec longterm.Record) string {
	if rec.Importance != "" {
		return rec.Importance
	}
	if imp, ok := rec.Metadata["importance"].(string); ok && imp != "" {
		return imp
	}
	return "unknown"
}

func (g *Gateway) handleClearLongTerm() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := requestContext(r)
		defer cancel()

		outcome := g.chat.Memory().DeleteAll(ctx, usernameFrom(r.Context()))
		g.metrics.MemoryOps.WithLabelValues("delete_all").Inc()
		writeJSON(w, http.StatusOK, outcome)
	}
}

type updateMemoryRequest struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

func (g *Gateway) handleUpdateLongTerm() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req updateMemoryRequest
		if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Text) == "" {
			writeJSON(w, http.StatusBadRequest, longterm.Outcome{Message: "memory text is required"})
			return
		}

		ctx, cancel := requestContext(r)
		defer cancel()

		outcome := g.chat.Memory().Update(ctx, id, req.Text, req.Metadata)
		g.metrics.MemoryOps.WithLabelValues("update").Inc()
		writeJSON(w, http.StatusOK, outcome)
	}
}

func (g *Gateway) handleDeleteLongTerm() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := requestContext(r)
		defer cancel()

		outcome := g.chat.Memory().Delete(ctx, chi.URLParam(r, "id"))
		g.metrics.MemoryOps.WithLabelValues("delete").Inc()
		writeJSON(w, http.StatusOK, outcome)
	}
}
