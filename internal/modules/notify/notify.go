package notify

import (
	"context"

	"github.com/komuness/core/internal/models"
)

// Notifier tells moderators about publication activity.
// Implementations must not fail the caller: delivery errors are logged.
type Notifier interface {
	PublicationCreated(ctx context.Context, pub *models.PublicationModel)
	EditRequested(ctx context.Context, pub *models.PublicationModel, changed []string)
	EditResolved(ctx context.Context, pub *models.PublicationModel, entry *models.EditHistoryModel)
}

// Nop discards every notification.
type Nop struct{}

func (Nop) PublicationCreated(context.Context, *models.PublicationModel)                      {}
func (Nop) EditRequested(context.Context, *models.PublicationModel, []string)                 {}
func (Nop) EditResolved(context.Context, *models.PublicationModel, *models.EditHistoryModel) {}
