package feed

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/staffcal/staffcal/pkg/logging"
)

// Refresher re-syncs every configured feed on a cron schedule.
type Refresher struct {
	syncer *Syncer
	logger *logging.Logger
	cron   *cron.Cron
	runCtx context.Context
	cancel context.CancelFunc
}

func NewRefresher(syncer *Syncer, logger *logging.Logger) *Refresher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Refresher{syncer: syncer, logger: logger}
}

// Start schedules periodic syncs using the given cron spec, falling back to
// every six hours when the spec does not parse.
func (r *Refresher) Start(ctx context.Context, spec string) {
	r.runCtx, r.cancel = context.WithCancel(ctx)
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { r.runOnce(r.runCtx) }); err != nil {
		r.logger.Warn("feed refresher: invalid cron spec, falling back",
			"spec", spec, "fallback", "@every 6h", "error", err)
		c = cron.New()
		_, _ = c.AddFunc("@every 6h", func() { r.runOnce(r.runCtx) })
	}
	c.Start()
	r.cron = c
}

// Stop cancels in-flight syncs and waits for running jobs to finish.
func (r *Refresher) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

func (r *Refresher) runOnce(ctx context.Context) {
	ok, err := r.syncer.SyncAll(ctx)
	if err != nil {
		r.logger.Error("feed refresher: sweep finished with errors", "synced", ok, "error", err)
		return
	}
	r.logger.Info("feed refresher: sweep completed", "synced", ok)
}
