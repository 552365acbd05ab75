package database

import (
	"context"
	"fmt"
	"time"

	"payflow_billing/internal/domain/notification"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq" // For pq.Array
)

const notificationColumns = `id, user_id, cycle_id, kind, message, sent, sent_at, created_at`

type PostgresNotificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*PostgresNotificationRepository)(nil)

func NewPostgresNotificationRepository(db *sqlx.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

func (r *PostgresNotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	query := `INSERT INTO notifications (user_id, cycle_id, kind, message, sent, sent_at)
              VALUES (:user_id, :cycle_id, :kind, :message, :sent, :sent_at)
              RETURNING id, created_at`
	rows, err := sqlx.NamedQueryContext(ctx, r.db, query, n)
	if err != nil {
		if isUniqueViolation(err, "notifications_cycle_kind_unique") {
			return fmt.Errorf("%w: cycle %d %s", notification.ErrDuplicateNotification, n.CycleID, n.Kind)
		}
		return fmt.Errorf("error creating notification: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&n.ID, &n.CreatedAt); err != nil {
			return fmt.Errorf("error reading created notification: %w", err)
		}
	}
	return rows.Err()
}

func (r *PostgresNotificationRepository) Exists(ctx context.Context, cycleID int64, kind notification.Kind) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM notifications WHERE cycle_id = $1 AND kind = $2)`, cycleID, kind)
	if err != nil {
		return false, fmt.Errorf("error checking notification existence: %w", err)
	}
	return exists, nil
}

func (r *PostgresNotificationRepository) MarkSent(ctx context.Context, id int64, sentAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET sent = TRUE, sent_at = $1 WHERE id = $2`, sentAt, id)
	if err != nil {
		return fmt.Errorf("error marking notification %d sent: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking rows affected for notification %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("notification %d: %w", id, notification.ErrNotificationNotFound)
	}
	return nil
}

func (r *PostgresNotificationRepository) ListByUser(ctx context.Context, userID int64) ([]*notification.Notification, error) {
	return r.list(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE user_id = $1 ORDER BY created_at, id`, userID)
}

func (r *PostgresNotificationRepository) ListUnsent(ctx context.Context) ([]*notification.Notification, error) {
	return r.list(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE NOT sent ORDER BY created_at, id`)
}

func (r *PostgresNotificationRepository) list(ctx context.Context, query string, args ...any) ([]*notification.Notification, error) {
	out := []*notification.Notification{}
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("error listing notifications: %w", err)
	}
	return out, nil
}

func deleteNotificationsForCycles(ctx context.Context, txn *sqlx.Tx, cycleIDs []int64) error {
	_, err := txn.ExecContext(ctx, `DELETE FROM notifications WHERE cycle_id = ANY($1)`, pq.Array(cycleIDs))
	if err != nil {
		return fmt.Errorf("error deleting notifications for %d cycles: %w", len(cycleIDs), err)
	}
	return nil
}
