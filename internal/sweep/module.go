package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starpal/starpal/internal/chat"
	"github.com/starpal/starpal/internal/core"
)

func init() {
	core.RegisterModule(&Module{})
}

// Config holds the sweep module configuration.
type Config struct {
	// Schedule is the cron expression for the cleanup job.
	Schedule string `yaml:"schedule"`

	// MaxIdle is how long a conversation may sit untouched before it
	// is evicted. Defaults to 24h.
	MaxIdle time.Duration `yaml:"max_idle"`
}

func (c *Config) defaults() {
	if c.MaxIdle <= 0 {
		c.MaxIdle = 24 * time.Hour
	}
}

// Module runs the maintenance scheduler as part of the app lifecycle.
type Module struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	scheduler *Scheduler
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "sweep.cron",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sweep: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.appCtx = ctx
	m.logger = ctx.Logger
	m.scheduler = NewScheduler(ctx.Logger)
	return nil
}

// Start implements core.Starter. The conversation store is resolved
// lazily so the module works regardless of load order.
func (m *Module) Start() error {
	svc, ok := m.appCtx.Service("chat.service")
	if !ok {
		return errors.New("sweep: chat.service not available")
	}
	chatSvc, ok := svc.(*chat.Service)
	if !ok {
		return errors.New("sweep: chat.service has unexpected type")
	}

	job := &ConversationCleanupJob{
		Store:        chatSvc.Store(),
		Lanes:        chatSvc.Lanes(),
		MaxIdle:      m.config.MaxIdle,
		Logger:       m.logger,
		ScheduleExpr: m.config.Schedule,
	}
	if err := m.scheduler.RegisterJob(job); err != nil {
		return err
	}

	return m.scheduler.Start()
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	return m.scheduler.Stop(ctx)
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)
