package subscriptions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pricewatch/internal/common"
	"github.com/dmitrijs2005/pricewatch/internal/dbx"
	"github.com/dmitrijs2005/pricewatch/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const columns = `id, uid, check_type, what_to_check, operator, value, currency`

type scanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row scanner) (*models.Subscription, error) {
	s := &models.Subscription{}
	if err := row.Scan(&s.ID, &s.UserID, &s.CheckType, &s.Symbol, &s.Operator, &s.Threshold, &s.Currency); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.Subscription) (*models.Subscription, error) {

	query :=
		`INSERT INTO subscriptions (uid, check_type, what_to_check, operator, value, currency)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		s.UserID, s.CheckType, s.Symbol, s.Operator, s.Threshold, s.Currency).Scan(&s.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return s, nil
}

func (r *PostgresRepository) ListOpen(ctx context.Context) ([]*models.Subscription, error) {
	return r.list(ctx, `SELECT `+columns+` FROM subscriptions ORDER BY id`)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Subscription, error) {
	return r.list(ctx, `SELECT `+columns+` FROM subscriptions WHERE uid = $1 ORDER BY id`, userID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) DeleteForUser(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = $1 AND uid = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}

func (r *PostgresRepository) DeleteReturning(ctx context.Context, id int64) (*models.Subscription, error) {
	row := r.db.QueryRowContext(ctx, `DELETE FROM subscriptions WHERE id = $1 RETURNING `+columns, id)

	s, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return s, nil
}
