// Package gateway provides the HTTP server: the SSE chat endpoint, account
// management, conversation controls, and long-term memory administration.
// It is a leaf module — nothing imports it.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starpal/starpal/internal/chat"
	"github.com/starpal/starpal/internal/core"
	"github.com/starpal/starpal/internal/users"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Gateway is the HTTP gateway module.
type Gateway struct {
	config  Config
	appCtx  *core.AppContext
	logger  *slog.Logger
	server  *http.Server
	metrics *Metrics

	// Resolved lazily at Start() via service registry.
	chat      *chat.Service
	directory users.Directory
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.metrics = NewMetrics()
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	return nil
}

// Start implements core.Starter. It resolves dependencies from the service
// registry (lazy binding) and starts the HTTP server.
func (g *Gateway) Start() error {
	svc, ok := g.appCtx.Service("chat.service")
	if !ok {
		return errors.New("gateway: chat.service not available")
	}
	chatSvc, ok := svc.(*chat.Service)
	if !ok {
		return errors.New("gateway: chat.service has unexpected type")
	}
	g.chat = chatSvc

	// Account endpoints degrade to 503 without a directory.
	if svc, ok := g.appCtx.Service("users.directory"); ok {
		if dir, ok := svc.(users.Directory); ok {
			g.directory = dir
		}
	}
	if g.directory == nil {
		g.logger.Warn("no user directory available, account endpoints disabled")
	}

	mux := g.buildRouter()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      mux,
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)

// requestContext bounds non-streaming handler work.
func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 15*time.Second)
}
