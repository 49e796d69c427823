package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/starpal/starpal/internal/chat"
)

// ConversationCleanupJob evicts conversations that have been idle longer
// than MaxIdle, and drops the lane locks of conversations that no longer
// exist.
type ConversationCleanupJob struct {
	Store        *chat.Store
	Lanes        *chat.LaneLock
	MaxIdle      time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/5 * * * *"
}

// Compile-time interface check.
var _ Job = (*ConversationCleanupJob)(nil)

// Name implements Job.
func (j *ConversationCleanupJob) Name() string {
	return "conversation_cleanup"
}

// Schedule implements Job.
func (j *ConversationCleanupJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run prunes idle conversations and stale lane entries.
func (j *ConversationCleanupJob) Run(_ context.Context) error {
	pruned := j.Store.Prune(j.MaxIdle)
	if j.Lanes != nil {
		j.Lanes.Cleanup(j.Store.ActiveKeys())
	}
	if pruned > 0 {
		j.Logger.Info("sweep: pruned idle conversations", "count", pruned)
	}
	return nil
}
