package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/starpal/starpal/internal/chat"
	"github.com/starpal/starpal/internal/longterm"
	"github.com/starpal/starpal/internal/provider"
	"github.com/starpal/starpal/internal/users"
)

// fakeProvider streams a fixed reply split into chunks, or fails.
type fakeProvider struct {
	chunks  []string
	failErr error
}

func (p *fakeProvider) Complete(_ context.Context, _ provider.CompletionRequest) (provider.CompletionResponse, error) {
	if p.failErr != nil {
		return provider.CompletionResponse{}, p.failErr
	}
	var full string
	for _, c := range p.chunks {
		full += c
	}
	return provider.CompletionResponse{Content: full, FinishReason: provider.FinishReasonStop}, nil
}

func (p *fakeProvider) Stream(_ context.Context, _ provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	if p.failErr != nil {
		return nil, p.failErr
	}
	ch := make(chan provider.StreamChunk, len(p.chunks)+1)
	for _, c := range p.chunks {
		ch <- provider.StreamChunk{Content: c}
	}
	ch <- provider.StreamChunk{FinishReason: provider.FinishReasonStop}
	close(ch)
	return ch, nil
}

func (p *fakeProvider) ModelName() string { return "fake" }

// fakeMemoryClient is an in-memory longterm.Client.
type fakeMemoryClient struct {
	mu      sync.Mutex
	records map[string][]longterm.Record
	nextID  int
}

func newFakeMemoryClient() *fakeMemoryClient {
	return &fakeMemoryClient{records: make(map[string][]longterm.Record)}
}

func (c *fakeMemoryClient) Search(_ context.Context, userID, _ string, _ longterm.SearchFilters, limit int) ([]longterm.Record, error) {
	return c.List(context.Background(), userID, limit)
}

func (c *fakeMemoryClient) Add(_ context.Context, userID string, messages []longterm.Message, metadata map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	var text string
	for _, m := range messages {
		text += m.Content + " "
	}
	c.records[userID] = append(c.records[userID], longterm.Record{
		ID:       string(rune('a' + c.nextID - 1)),
		Memory:   text,
		Metadata: metadata,
	})
	return nil
}

func (c *fakeMemoryClient) Get(_ context.Context, memoryID string) (*longterm.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, recs := range c.records {
		for _, rec := range recs {
			if rec.ID == memoryID {
				return &rec, nil
			}
		}
	}
	return nil, longterm.ErrRecordNotFound
}

func (c *fakeMemoryClient) List(_ context.Context, userID string, limit int) ([]longterm.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	recs := c.records[userID]
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return append([]longterm.Record(nil), recs...), nil
}

func (c *fakeMemoryClient) Update(_ context.Context, memoryID, text string, metadata map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for user, recs := range c.records {
		for i, rec := range recs {
			if rec.ID == memoryID {
				c.records[user][i].Memory = text
				c.records[user][i].Metadata = metadata
				return nil
			}
		}
	}
	return longterm.ErrRecordNotFound
}

func (c *fakeMemoryClient) Delete(_ context.Context, memoryID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for user, recs := range c.records {
		for i, rec := range recs {
			if rec.ID == memoryID {
				c.records[user] = append(recs[:i], recs[i+1:]...)
				return nil
			}
		}
	}
	return longterm.ErrRecordNotFound
}

func (c *fakeMemoryClient) DeleteAll(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, userID)
	return nil
}

// fakeDirectory is an in-memory users.Directory.
type fakeDirectory struct {
	mu    sync.Mutex
	users map[string]fakeUser
}

type fakeUser struct {
	name     string
	password string
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{users: make(map[string]fakeUser)}
}

func (d *fakeDirectory) FindByUsername(_ context.Context, username string) (*users.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[username]
	if !ok {
		return nil, users.ErrNotFound
	}
	return &users.User{Username: username, Name: u.name}, nil
}

func (d *fakeDirectory) Create(_ context.Context, username, password, name string) (*users.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[username]; ok {
		return nil, users.ErrExists
	}
	d.users[username] = fakeUser{name: name, password: password}
	return &users.User{Username: username, Name: name}, nil
}

func (d *fakeDirectory) VerifyPassword(_ context.Context, username, password string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[username]
	if !ok {
		return false, users.ErrNotFound
	}
	return u.password == password, nil
}

func (d *fakeDirectory) UpdatePassword(_ context.Context, username, newPassword string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[username]
	if !ok {
		return users.ErrNotFound
	}
	u.password = newPassword
	d.users[username] = u
	return nil
}

// testGateway bundles a gateway wired with fakes for handler tests.
type testGateway struct {
	gw        *Gateway
	handler   http.Handler
	memory    *fakeMemoryClient
	directory *fakeDirectory
	provider  *fakeProvider
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()

	logger := slog.Default()
	prov := &fakeProvider{chunks: []string{"Hello", " there"}}
	memClient := newFakeMemoryClient()
	dir := newFakeDirectory()

	store := chat.NewStore()
	composer := &chat.Composer{SystemLevel: "You are a helpful assistant."}
	svc := chat.NewService(store, composer, logger)
	svc.Bind(prov, longterm.NewGateway(memClient, longterm.Config{Enabled: true}, logger))

	gw := &Gateway{
		logger:    logger,
		metrics:   NewMetrics(),
		chat:      svc,
		directory: dir,
	}
	gw.config.defaults()

	return &testGateway{
		gw:        gw,
		handler:   gw.buildRouter(),
		memory:    memClient,
		directory: dir,
		provider:  prov,
	}
}
