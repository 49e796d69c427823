package mem0

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starpal/starpal/internal/longterm"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &Client{
		apiKey:  "m0-test",
		baseURL: srv.URL,
		http:    srv.Client(),
	}
}

func decodeBody(t *testing.T, r *http.Request, out any) {
	t.Helper()
	body, _ := io.ReadAll(r.Body)
	if err := json.Unmarshal(body, out); err != nil {
		t.Fatalf("invalid request body: %v", err)
	}
}

func TestSearch_FilterShape(t *testing.T) {
	var got map[string]any
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/memories/search/" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Token m0-test" {
			t.Error("missing authorization header")
		}
		decodeBody(t, r, &got)
		_, _ = w.Write([]byte(`{"results":[{"id":"m1","memory":"likes tea","relevance_score":0.92,"metadata":{"importance":"high"}}]}`))
	})

	c := newTestClient(t, handler)
	after := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	records, err := c.Search(context.Background(), "alice", "tea", longterm.SearchFilters{
		MinImportance: longterm.ImportanceHigh,
		CreatedAfter:  after,
	}, 5)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if got["query"] != "tea" {
		t.Errorf("query = %v, want tea", got["query"])
	}
	and, ok := got["filters"].(map[string]any)["AND"].([]any)
	if !ok || len(and) != 2 {
		t.Fatalf("filters.AND = %v, want two clauses", got["filters"])
	}
	if uid := and[0].(map[string]any)["user_id"]; uid != "alice" {
		t.Errorf("user clause = %v, want alice", uid)
	}
	or, ok := and[1].(map[string]any)["OR"].([]any)
	if !ok || len(or) != 2 {
		t.Fatalf("second clause = %v, want OR of importance and recency", and[1])
	}

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Importance != "high" {
		t.Errorf("importance = %q, want high", records[0].Importance)
	}
	if records[0].Score == nil || *records[0].Score != 0.92 {
		t.Errorf("score = %v, want 0.92", records[0].Score)
	}
}

func TestSearch_NoFilters(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var got map[string]any
		decodeBody(t, r, &got)
		and := got["filters"].(map[string]any)["AND"].([]any)
		if len(and) != 1 {
			t.Errorf("filters.AND has %d clauses, want 1", len(and))
		}
		_, _ = w.Write([]byte(`{"results":[]}`))
	})

	c := newTestClient(t, handler)
	records, err := c.Search(context.Background(), "alice", "tea", longterm.SearchFilters{}, 5)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestAdd(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/memories/" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var got addRequest
		decodeBody(t, r, &got)
		if got.UserID != "alice" {
			t.Errorf("user_id = %q, want alice", got.UserID)
		}
		if len(got.Messages) != 2 {
			t.Errorf("messages = %d, want 2", len(got.Messages))
		}
		if got.Metadata["importance"] != "high" {
			t.Errorf("metadata importance = %v, want high", got.Metadata["importance"])
		}
		w.WriteHeader(http.StatusCreated)
	})

	c := newTestClient(t, handler)
	err := c.Add(context.Background(), "alice", []longterm.Message{
		{Role: "user", Content: "remember my birthday is in May"},
		{Role: "assistant", Content: "Noted."},
	}, map[string]any{"importance": "high"})
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
}

func TestList_ItemsEnvelope(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/memories/" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var got listRequest
		decodeBody(t, r, &got)
		if got.SortBy != "created_at" || got.SortOrder != "desc" {
			t.Errorf("sort = %s %s, want created_at desc", got.SortBy, got.SortOrder)
		}
		_, _ = w.Write([]byte(`{"items":[{"id":"m1","memory":"a"},{"id":"m2","memory":"b"}]}`))
	})

	c := newTestClient(t, handler)
	records, err := c.List(context.Background(), "alice", 20)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "m1" {
		t.Errorf("first id = %q, want m1", records[0].ID)
	}
}

func TestDeleteAll(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/v1/memories/" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("user_id") != "alice" {
			t.Errorf("user_id = %q, want alice", r.URL.Query().Get("user_id"))
		}
		w.WriteHeader(http.StatusNoContent)
	})

	c := newTestClient(t, handler)
	if err := c.DeleteAll(context.Background(), "alice"); err != nil {
		t.Fatalf("DeleteAll() error: %v", err)
	}
}

func TestDo_ErrorStatus(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"bad filter"}`))
	})

	c := newTestClient(t, handler)
	_, err := c.Search(context.Background(), "alice", "tea", longterm.SearchFilters{}, 5)
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
}
