package user

import (
	"context"
	"database/sql"
	"errors"
)

var ErrUserNotFound = errors.New("user not found")

// User is the owner of subscriptions and the recipient of their notifications.
type User struct {
	ID         int64         `db:"id"`
	Name       string        `db:"name"`
	Email      string        `db:"email"`
	TelegramID sql.NullInt64 `db:"telegram_id"`
}

// Repository is a read-only view; users are managed elsewhere.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*User, error)
}
