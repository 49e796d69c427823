// Package mem0 implements the long-term memory backend against the
// hosted mem0 platform API (v2 search and list, v1 record operations).
package mem0

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starpal/starpal/internal/core"
	"github.com/starpal/starpal/internal/longterm"
)

func init() {
	core.RegisterModule(&Module{})
}

// Config holds the mem0 API settings.
type Config struct {
	// APIKey authenticates against the mem0 platform. Required.
	APIKey string `yaml:"api_key"`

	// BaseURL is the API root. Defaults to the hosted platform.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds every request, e.g. "15s".
	Timeout string `yaml:"timeout"`
}

func defaultConfig() Config {
	return Config{
		BaseURL: "https://api.mem0.ai",
		Timeout: "15s",
	}
}

// Module wires a mem0 Client into the service registry.
type Module struct {
	cfg    Config
	logger *slog.Logger
	client *Client
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "memory.mem0",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	m.cfg = defaultConfig()
	if err := node.Decode(&m.cfg); err != nil {
		return fmt.Errorf("mem0: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.logger = ctx.Logger

	timeout, err := time.ParseDuration(m.cfg.Timeout)
	if err != nil {
		return fmt.Errorf("invalid timeout %q: %w", m.cfg.Timeout, err)
	}

	m.client = &Client{
		apiKey:  m.cfg.APIKey,
		baseURL: m.cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
	}

	ctx.RegisterService("memory.client", m.client)

	m.logger.Info("memory backend provisioned",
		"module", "memory.mem0",
		"base_url", m.cfg.BaseURL)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if m.cfg.APIKey == "" {
		return errors.New("api_key is required")
	}
	if m.cfg.BaseURL == "" {
		return errors.New("base_url is required")
	}
	if _, err := time.ParseDuration(m.cfg.Timeout); err != nil {
		return fmt.Errorf("invalid timeout %q: %w", m.cfg.Timeout, err)
	}
	return nil
}

// Start implements core.Starter.
func (m *Module) Start() error { return nil }

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	m.client.http.CloseIdleConnections()
	return nil
}

var (
	_ core.Module     = (*Module)(nil)
	_ longterm.Client = (*Client)(nil)
)
