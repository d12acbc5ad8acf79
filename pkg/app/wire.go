package app

import (
	"context"
	"log/slog"

	"github.com/danielfernandez00/mi-webhook/internal/core"
	"github.com/danielfernandez00/mi-webhook/internal/cron"
	"github.com/danielfernandez00/mi-webhook/internal/fulfillment"
	"github.com/danielfernandez00/mi-webhook/internal/gateway"
	"github.com/danielfernandez00/mi-webhook/internal/security"
)

// schedulerModuleID is the lifecycle ID of the cleanup scheduler. It is not
// in the module registry and cannot be configured.
const schedulerModuleID core.ModuleID = "cron.scheduler"

// schedulerModule wraps a *cron.Scheduler to satisfy core.Module,
// core.Starter, and core.Stopper, so the scheduler participates in the App
// lifecycle. The cleanup job is built at Start because the fulfillment
// handler, which owns the lanes and the limiter, only exists after its own
// Start.
type schedulerModule struct {
	scheduler   *cron.Scheduler
	fulfillment *fulfillment.Module
	appCtx      *core.AppContext
	logger      *slog.Logger
}

func (m *schedulerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: schedulerModuleID}
}

func (m *schedulerModule) Start() error {
	if err := m.scheduler.RegisterJob(&cron.ConversationCleanupJob{
		Store:        m.fulfillment.Store(),
		Lanes:        m.fulfillment.Lanes(),
		Limiters:     m.limiters(),
		MaxIdle:      m.fulfillment.IdleTTL(),
		Logger:       m.logger,
		ScheduleExpr: m.fulfillment.CleanupSchedule(),
	}); err != nil {
		return err
	}
	return m.scheduler.Start()
}

// limiters collects every rate limiter whose idle keys the cleanup job
// sweeps.
func (m *schedulerModule) limiters() []*security.RateLimiter {
	limiters := []*security.RateLimiter{m.fulfillment.Limiter()}
	if auth, ok := core.LookupService[*security.RateLimiter](m.appCtx, gateway.AuthLimiterService); ok {
		limiters = append(limiters, auth)
	}
	return limiters
}

func (m *schedulerModule) Stop(ctx context.Context) error {
	return m.scheduler.Stop(ctx)
}

// wireScheduler appends the conversation cleanup scheduler to the app
// lifecycle and registers it for the gateway's prune endpoint. Must be
// called after LoadModules and before Start.
func wireScheduler(app *core.App, appCtx *core.AppContext, logger *slog.Logger) error {
	mod, ok := app.Module(fulfillment.ModuleID)
	if !ok {
		logger.Info("cron: no fulfillment module loaded, skipping cleanup scheduler")
		return nil
	}
	ful, ok := mod.(*fulfillment.Module)
	if !ok {
		return nil
	}
	scheduler := cron.NewScheduler(logger.With("module", string(schedulerModuleID)))
	app.AppendModule(schedulerModuleID, &schedulerModule{
		scheduler:   scheduler,
		fulfillment: ful,
		appCtx:      appCtx,
		logger:      logger,
	})
	appCtx.RegisterService(cron.SchedulerService, scheduler)
	return nil
}
