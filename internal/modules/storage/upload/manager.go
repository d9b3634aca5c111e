package upload

import (
	"context"
	"errors"
	"time"

	"github.com/komuness/core/internal/models"
	"go.uber.org/zap"
)

// Manager stores uploads provisionally and settles them once the owning
// record is written or abandoned.
type Manager struct {
	storage Storage
	ledger  *Ledger
	logger  *zap.Logger
	now     func() time.Time
}

type ManagerOption func(*Manager)

func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager wires storage and ledger. A nil ledger disables provisional tracking.
func NewManager(storage Storage, ledger *Ledger, opts ...ManagerOption) *Manager {
	m := &Manager{
		storage: storage,
		ledger:  ledger,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("UploadManager")
	return m
}

// Upload stores every file and records them as provisional. If any file
// fails, the ones already stored are removed.
func (m *Manager) Upload(ctx context.Context, files []File) ([]models.Attachment, error) {
	if len(files) == 0 {
		return nil, nil
	}
	stored := make([]models.Attachment, 0, len(files))
	for _, f := range files {
		att, err := m.storage.Put(ctx, f)
		if err != nil {
			m.Discard(context.WithoutCancel(ctx), stored)
			return nil, err
		}
		stored = append(stored, att)
	}

	if m.ledger != nil {
		if err := m.ledger.MarkProvisional(ctx, m.now(), keysOf(stored)...); err != nil {
			m.logger.Warn("failed to record provisional uploads", zap.Error(err))
		}
	}
	return stored, nil
}

// Commit drops the provisional mark once a record references the uploads.
func (m *Manager) Commit(ctx context.Context, atts []models.Attachment) {
	if m.ledger == nil || len(atts) == 0 {
		return
	}
	if err := m.ledger.Commit(ctx, keysOf(atts)...); err != nil {
		m.logger.Warn("failed to commit uploads", zap.Error(err))
	}
}

// Discard deletes uploads that no record will reference. Failures are
// logged and left for reconciliation.
func (m *Manager) Discard(ctx context.Context, atts []models.Attachment) {
	var removed []string
	for _, att := range atts {
		if err := m.storage.Delete(ctx, att.Key); err != nil {
			m.logger.Warn("failed to delete upload", zap.String("key", att.Key), zap.Error(err))
			continue
		}
		removed = append(removed, att.Key)
	}
	if m.ledger != nil && len(removed) > 0 {
		if err := m.ledger.Forget(ctx, removed...); err != nil {
			m.logger.Warn("failed to forget uploads", zap.Error(err))
		}
	}
}

// Remove deletes attachments that were live and are no longer referenced.
func (m *Manager) Remove(ctx context.Context, atts []models.Attachment) error {
	var errs []error
	for _, att := range atts {
		if err := m.storage.Delete(ctx, att.Key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func keysOf(atts []models.Attachment) []string {
	keys := make([]string, 0, len(atts))
	for _, a := range atts {
		keys = append(keys, a.Key)
	}
	return keys
}
