package mem0

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/starpal/starpal/internal/longterm"
)

// Client talks to the mem0 platform REST API. Search and bulk listing
// use the v2 endpoints with structured filters; single-record operations
// use the v1 endpoints.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// filter is one clause of a v2 filter expression. Clauses nest via the
// AND/OR keys.
type filter map[string]any

type searchRequest struct {
	Query   string `json:"query"`
	Filters filter `json:"filters"`
	Limit   int    `json:"limit,omitempty"`
}

type listRequest struct {
	Filters   filter `json:"filters"`
	Page      int    `json:"page,omitempty"`
	PageSize  int    `json:"page_size,omitempty"`
	SortBy    string `json:"sort_by,omitempty"`
	SortOrder string `json:"sort_order,omitempty"`
}

type addRequest struct {
	Messages []longterm.Message `json:"messages"`
	UserID   string             `json:"user_id"`
	Metadata map[string]any     `json:"metadata,omitempty"`
}

type updateRequest struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type recordPage struct {
	Results []wireRecord `json:"results"`
	Items   []wireRecord `json:"items"`
}

type wireRecord struct {
	ID        string         `json:"id"`
	Memory    string         `json:"memory"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
	Metadata  map[string]any `json:"metadata"`
	Score     *float64       `json:"relevance_score"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.baseURL, "/")+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mem0 request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<10))
		return fmt.Errorf("mem0 %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func toRecord(w wireRecord) longterm.Record {
	rec := longterm.Record{
		ID:        w.ID,
		Memory:    w.Memory,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
		Metadata:  w.Metadata,
		Score:     w.Score,
	}
	if imp, ok := w.Metadata["importance"].(string); ok {
		rec.Importance = imp
	}
	return rec
}

func toRecords(page recordPage) []longterm.Record {
	wire := page.Results
	if len(wire) == 0 {
		wire = page.Items
	}
	out := make([]longterm.Record, 0, len(wire))
	for _, w := range wire {
		out = append(out, toRecord(w))
	}
	return out
}

// Search implements longterm.Client using the v2 search endpoint with a
// structured filter expression.
func (c *Client) Search(ctx context.Context, userID, query string, filters longterm.SearchFilters, limit int) ([]longterm.Record, error) {
	clauses := []filter{{"user_id": userID}}

	var alternatives []filter
	if filters.MinImportance != "" {
		alternatives = append(alternatives, filter{
			"metadata.importance": map[string]any{"gte": string(filters.MinImportance)},
		})
	}
	if !filters.CreatedAfter.IsZero() {
		alternatives = append(alternatives, filter{
			"created_at": map[string]any{"gte": filters.CreatedAfter.Unix()},
		})
	}
	if len(alternatives) > 0 {
		clauses = append(clauses, filter{"OR": alternatives})
	}

	var page recordPage
	err := c.do(ctx, http.MethodPost, "/v2/memories/search/", searchRequest{
		Query:   query,
		Filters: filter{"AND": clauses},
		Limit:   limit,
	}, &page)
	if err != nil {
		return nil, err
	}
	return toRecords(page), nil
}

// Add implements longterm.Client.
func (c *Client) Add(ctx context.Context, userID string, messages []longterm.Message, metadata map[string]any) error {
	return c.do(ctx, http.MethodPost, "/v1/memories/", addRequest{
		Messages: messages,
		UserID:   userID,
		Metadata: metadata,
	}, nil)
}

// Get implements longterm.Client.
func (c *Client) Get(ctx context.Context, memoryID string) (*longterm.Record, error) {
	var w wireRecord
	if err := c.do(ctx, http.MethodGet, "/v1/memories/"+url.PathEscape(memoryID)+"/", nil, &w); err != nil {
		return nil, err
	}
	rec := toRecord(w)
	return &rec, nil
}

// List implements longterm.Client, newest records first.
func (c *Client) List(ctx context.Context, userID string, limit int) ([]longterm.Record, error) {
	var page recordPage
	err := c.do(ctx, http.MethodPost, "/v2/memories/", listRequest{
		Filters:   filter{"AND": []filter{{"user_id": userID}}},
		Page:      1,
		PageSize:  limit,
		SortBy:    "created_at",
		SortOrder: "desc",
	}, &page)
	if err != nil {
		return nil, err
	}
	return toRecords(page), nil
}

// Update implements longterm.Client.
func (c *Client) Update(ctx context.Context, memoryID, text string, metadata map[string]any) error {
	return c.do(ctx, http.MethodPut, "/v1/memories/"+url.PathEscape(memoryID)+"/", updateRequest{
		Text:     text,
		Metadata: metadata,
	}, nil)
}

// Delete implements longterm.Client.
func (c *Client) Delete(ctx context.Context, memoryID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/memories/"+url.PathEscape(memoryID)+"/", nil, nil)
}

// DeleteAll implements longterm.Client.
func (c *Client) DeleteAll(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/memories/?user_id="+url.QueryEscape(userID), nil, nil)
}
