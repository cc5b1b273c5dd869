package verifications

import (
	"context"

	"github.com/dmitrijs2005/pricewatch/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, v *models.Verification) (*models.Verification, error)
	GetLatest(ctx context.Context, email string) (*models.Verification, error)
	DeleteByEmail(ctx context.Context, email string) error
}
