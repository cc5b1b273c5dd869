package subscriptions

import (
	"context"

	"github.com/dmitrijs2005/pricewatch/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.Subscription) (*models.Subscription, error)
	ListOpen(ctx context.Context) ([]*models.Subscription, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.Subscription, error)
	// DeleteForUser removes a subscription only when userID owns it.
	DeleteForUser(ctx context.Context, userID, id int64) error
	// DeleteReturning removes a subscription and returns the deleted row.
	DeleteReturning(ctx context.Context, id int64) (*models.Subscription, error)
}
