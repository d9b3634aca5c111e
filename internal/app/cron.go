package app

import (
	"context"
	"fmt"

	"github.com/komuness/core/internal/config"
	"github.com/komuness/core/internal/modules/storage/upload"
	pkgcron "github.com/komuness/core/internal/pkg/cron"
	"go.uber.org/zap"
)

// registerCronJobs registers all scheduled background jobs.
func registerCronJobs(sched *pkgcron.Scheduler, reconciler *upload.Reconciler, cfg *config.AppConfig, logger *zap.Logger) {
	cronLogger := logger.Named("CronService")
	ttl := cfg.ProvisionalTTL()

	sched.Register(pkgcron.Job{
		Name:        "reconcile_uploads",
		Description: "Elimina adjuntos provisionales que ninguna publicación referencia",
		Interval:    cfg.ReconcileInterval(),
		Fn: func(ctx context.Context) error {
			removed, err := reconciler.Run(ctx)
			if err != nil {
				cronLogger.Warn("upload reconciliation failed", zap.Error(err))
				return err
			}
			if removed > 0 {
				cronLogger.Info(fmt.Sprintf("removed %d uploads left provisional for more than %s", removed, humanizeDuration(ttl)))
			}
			return nil
		},
	})
}
