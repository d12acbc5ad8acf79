package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielfernandez00/mi-webhook/internal/conversation"
	"github.com/danielfernandez00/mi-webhook/internal/security"
)

// ConversationCleanupJobName is the registered name of ConversationCleanupJob.
const ConversationCleanupJobName = "conversation_cleanup"

// ConversationCleanupJob evicts conversations idle longer than MaxIdle,
// drops the per-user lanes that no longer belong to a stored user, and
// sweeps idle keys from every limiter in Limiters (per-user webhook limits
// and per-address admin auth limits).
type ConversationCleanupJob struct {
	Store        conversation.Store
	Lanes        *conversation.LaneLock
	Limiters     []*security.RateLimiter
	MaxIdle      time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/5 * * * *"
}

var _ Job = (*ConversationCleanupJob)(nil)

// Name implements Job.
func (j *ConversationCleanupJob) Name() string { return ConversationCleanupJobName }

// Schedule implements Job.
func (j *ConversationCleanupJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run prunes idle conversations.
func (j *ConversationCleanupJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cron: conversation cleanup cancelled: %w", err)
	}

	pruned, err := j.Store.Prune(j.MaxIdle)
	if err != nil {
		return fmt.Errorf("cron: pruning conversations: %w", err)
	}
	if pruned > 0 {
		j.Logger.Info("cron: pruned idle conversations", "count", pruned, "max_idle", j.MaxIdle)
	}

	if j.Lanes != nil {
		active, err := conversation.ActiveUsers(j.Store)
		if err != nil {
			return fmt.Errorf("cron: listing active users: %w", err)
		}
		j.Lanes.Cleanup(active)
	}
	swept := 0
	for _, l := range j.Limiters {
		swept += l.Sweep()
	}
	if swept > 0 {
		j.Logger.Debug("cron: swept idle rate-limit keys", "count", swept)
	}
	return nil
}
