package notifications

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/pricewatch/internal/dbx"
	"github.com/dmitrijs2005/pricewatch/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, n *models.Notification) (*models.Notification, error) {

	query :=
		`INSERT INTO notifications (uid, check_type, what_to_check, operator, value, currency, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		n.UserID, n.CheckType, n.Symbol, n.Operator, n.Threshold, n.Currency, n.FiredAt).Scan(&n.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return n, nil
}

// ListByUser returns the user's notifications, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Notification, error) {
	query :=
		`SELECT id, uid, check_type, what_to_check, operator, value, currency, created_at
		 FROM notifications
		 WHERE uid = $1
		 ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		if err := rows.Scan(&n.ID, &n.UserID, &n.CheckType, &n.Symbol, &n.Operator, &n.Threshold, &n.Currency, &n.FiredAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
