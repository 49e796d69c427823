// Package openai implements the LLM provider module against the
// OpenAI-compatible chat completions API. The default endpoint is the
// DashScope compatible-mode gateway, but any server that speaks the
// same wire protocol works by changing base_url.
package openai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starpal/starpal/internal/core"
	"github.com/starpal/starpal/internal/provider"
)

func init() {
	core.RegisterModule(&Provider{})
}

// Provider is the openai-compatible implementation of provider.Provider.
type Provider struct {
	cfg    Config
	logger *slog.Logger

	// client is used for non-streaming calls and carries a hard timeout.
	// streamClient has no Timeout because it would kill long-lived SSE
	// streams; stream deadlines come from the request context instead.
	client       *http.Client
	streamClient *http.Client
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID: "provider.openai",
		New: func() core.Module {
			return &Provider{}
		},
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	p.cfg = defaultConfig()
	if err := node.Decode(&p.cfg); err != nil {
		return fmt.Errorf("openai: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.logger = ctx.Logger

	timeout, err := time.ParseDuration(p.cfg.Timeout)
	if err != nil {
		return fmt.Errorf("invalid timeout %q: %w", p.cfg.Timeout, err)
	}

	p.client = &http.Client{Timeout: timeout}
	p.streamClient = &http.Client{}

	ctx.RegisterService("provider.llm", p)

	p.logger.Info("provider provisioned",
		"module", "provider.openai",
		"model", p.cfg.Model,
		"base_url", p.cfg.BaseURL)
	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	return p.cfg.validate()
}

// Start implements core.Starter.
func (p *Provider) Start() error { return nil }

// Stop implements core.Stopper.
func (p *Provider) Stop(_ context.Context) error {
	p.client.CloseIdleConnections()
	p.streamClient.CloseIdleConnections()
	return nil
}

// ModelName implements provider.Provider.
func (p *Provider) ModelName() string {
	return p.cfg.Model
}

// HealthCheck implements provider.HealthChecker with a minimal
// one-token completion.
func (p *Provider) HealthCheck(ctx context.Context) error {
	req := provider.CompletionRequest{
		Messages:  []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "ping"}},
		MaxTokens: 1,
	}
	_, err := p.Complete(ctx, req)
	return err
}

var (
	_ core.Module            = (*Provider)(nil)
	_ provider.Provider      = (*Provider)(nil)
	_ provider.HealthChecker = (*Provider)(nil)
)
