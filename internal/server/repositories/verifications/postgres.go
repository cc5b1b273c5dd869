package verifications

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

func (r *PostgresRepository) Create(ctx context.Context, v *models.Verification) (*models.Verification, error) {

	query :=
		`INSERT INTO email_verifications (email, code)
		 VALUES ($1, $2)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query, v.Email, v.Code).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return v, nil
}

// GetLatest returns the most recently issued code for email.
func (r *PostgresRepository) GetLatest(ctx context.Context, email string) (*models.Verification, error) {
	query :=
		`SELECT id, email, code, created_at
		 FROM email_verifications
		 WHERE email = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`

	v := &models.Verification{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(&v.ID, &v.Email, &v.Code, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return v, nil
}

func (r *PostgresRepository) DeleteByEmail(ctx context.Context, email string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM email_verifications WHERE email = $1`, email); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
