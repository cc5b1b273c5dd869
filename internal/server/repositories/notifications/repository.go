package notifications

import (
	"context"

	"github.com/dmitrijs2005/pricewatch/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, n *models.Notification) (*models.Notification, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.Notification, error)
}
