package upload

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const reconcileBatch = 200

var reconciledUploads = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "komuness",
	Name:      "uploads_reconciled_total",
	Help:      "Provisional uploads removed after their TTL expired",
})

// Reconciler removes uploads left provisional longer than ttl.
type Reconciler struct {
	storage Storage
	ledger  *Ledger
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

func NewReconciler(storage Storage, ledger *Ledger, ttl time.Duration, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		storage: storage,
		ledger:  ledger,
		ttl:     ttl,
		logger:  logger.Named("UploadReconciler"),
		now:     time.Now,
	}
}

// Run deletes expired provisional uploads and returns how many were removed.
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.ttl)
	removed := 0
	for {
		keys, err := r.ledger.Expired(ctx, cutoff, reconcileBatch)
		if err != nil {
			return removed, err
		}
		if len(keys) == 0 {
			break
		}

		done := make([]string, 0, len(keys))
		for _, key := range keys {
			if err := r.storage.Delete(ctx, key); err != nil {
				r.logger.Warn("orphan upload delete failed", zap.String("key", key), zap.Error(err))
				continue
			}
			done = append(done, key)
		}
		if len(done) == 0 {
			break
		}
		if err := r.ledger.Forget(ctx, done...); err != nil {
			return removed, err
		}
		removed += len(done)
		if len(keys) < reconcileBatch {
			break
		}
	}

	if removed > 0 {
		reconciledUploads.Add(float64(removed))
		r.logger.Info("orphan uploads removed", zap.Int("count", removed))
	}
	return removed, nil
}
