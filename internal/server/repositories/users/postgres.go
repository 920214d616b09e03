package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/parceltrack/internal/common"
	"github.com/dmitrijs2005/parceltrack/internal/dbx"
	"github.com/dmitrijs2005/parceltrack/internal/server/models"
	"github.com/google/uuid"
)

const userColumns = `id, identifier, password_hash, role, verified, telegram_id,
		 telegram_username, telegram_first_name, telegram_last_name, telegram_photo_url,
		 created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	query :=
		`INSERT INTO users (id, identifier, password_hash, role, verified, telegram_id,
		 telegram_username, telegram_first_name, telegram_last_name, telegram_photo_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at, updated_at
		 `

	var telegramID sql.NullInt64
	if user.TelegramID != nil {
		telegramID = sql.NullInt64{Int64: *user.TelegramID, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Identifier, user.PasswordHash, user.Role, user.Verified, telegramID,
		user.Telegram.Username, user.Telegram.FirstName, user.Telegram.LastName, user.Telegram.PhotoURL,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE id = $1
		 `
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE identifier = $1
		 `
	return r.getOne(ctx, query, identifier)
}

func (r *PostgresRepository) GetByIdentifierForUpdate(ctx context.Context, identifier string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE identifier = $1
		 FOR UPDATE
		 `
	return r.getOne(ctx, query, identifier)
}

func (r *PostgresRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE telegram_id = $1
		 `
	return r.getOne(ctx, query, telegramID)
}

func (r *PostgresRepository) SetVerified(ctx context.Context, userID string) error {
	query :=
		`UPDATE users SET verified = TRUE, updated_at = now()
		 WHERE id = $1
		 `
	return r.execOne(ctx, query, userID)
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, userID string, passwordHash string) error {
	query :=
		`UPDATE users SET password_hash = $2, updated_at = now()
		 WHERE id = $1
		 `
	return r.execOne(ctx, query, userID, passwordHash)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	user := &models.User{}
	var telegramID sql.NullInt64

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID, &user.Identifier, &user.PasswordHash, &user.Role, &user.Verified, &telegramID,
		&user.Telegram.Username, &user.Telegram.FirstName, &user.Telegram.LastName, &user.Telegram.PhotoURL,
		&user.CreatedAt, &user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if telegramID.Valid {
		id := telegramID.Int64
		user.TelegramID = &id
		user.Telegram.ID = id
	}

	return user, nil
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
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
