package logintokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/parceltrack/internal/common"
	"github.com/dmitrijs2005/parceltrack/internal/dbx"
	"github.com/dmitrijs2005/parceltrack/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, t *models.LoginToken) error {
	query :=
		`INSERT INTO telegram_login_tokens (token, telegram_id, first_name, last_name, username, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		t.Token, t.Profile.ID, t.Profile.FirstName, t.Profile.LastName, t.Profile.Username, t.ExpiresAt,
	).Scan(&t.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Consume(ctx context.Context, token string, now time.Time) (*models.LoginToken, error) {
	query :=
		`DELETE FROM telegram_login_tokens
		 WHERE token = $1 AND expires_at > $2
		 RETURNING telegram_id, first_name, last_name, username, expires_at, created_at
		 `

	t := &models.LoginToken{Token: token}
	err := r.db.QueryRowContext(ctx, query, token, now).Scan(
		&t.Profile.ID, &t.Profile.FirstName, &t.Profile.LastName, &t.Profile.Username, &t.ExpiresAt, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return t, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM telegram_login_tokens WHERE expires_at <= $1`

	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
