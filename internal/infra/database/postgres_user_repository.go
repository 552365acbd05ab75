package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"payflow_billing/internal/domain/user"

	"github.com/jmoiron/sqlx"
)

type PostgresUserRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*PostgresUserRepository)(nil)

func NewPostgresUserRepository(db *sqlx.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return r.get(ctx, `SELECT id, name, email, telegram_id FROM users WHERE id = $1`, id)
}

func (r *PostgresUserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*user.User, error) {
	return r.get(ctx, `SELECT id, name, email, telegram_id FROM users WHERE telegram_id = $1`, telegramID)
}

func (r *PostgresUserRepository) get(ctx context.Context, query string, arg int64) (*user.User, error) {
	var u user.User
	if err := r.db.GetContext(ctx, &u, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", arg, user.ErrUserNotFound)
		}
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	return &u, nil
}
