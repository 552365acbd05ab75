package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"payflow_billing/internal/domain/payment"

	"github.com/jmoiron/sqlx"
)

const cycleColumns = `c.id, c.subscription_id, c.due_date, c.status, c.paid_amount, c.created_at, c.updated_at`

type PostgresCycleRepository struct {
	db *sqlx.DB
}

var _ payment.Repository = (*PostgresCycleRepository)(nil)

func NewPostgresCycleRepository(db *sqlx.DB) *PostgresCycleRepository {
	return &PostgresCycleRepository{db: db}
}

func (r *PostgresCycleRepository) CreateBatch(ctx context.Context, cycles []*payment.Cycle) error {
	if len(cycles) == 0 {
		return nil
	}

	txn, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for cycle batch: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	stmt, err := txn.PreparexContext(ctx, `INSERT INTO payment_cycles (subscription_id, due_date, status, paid_amount)
                                          VALUES ($1, $2, $3, $4)
                                          RETURNING id, created_at, updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare cycle insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range cycles {
		c.DueDate = payment.DateOf(c.DueDate)
		err := stmt.QueryRowxContext(ctx, c.SubscriptionID, c.DueDate, c.Status, c.PaidAmount).
			Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err, "payment_cycles_pending_unique") {
				return fmt.Errorf("%w: subscription %d on %s", payment.ErrDuplicatePendingCycle, c.SubscriptionID, c.DueDate.Format(time.DateOnly))
			}
			return fmt.Errorf("error inserting cycle for subscription %d: %w", c.SubscriptionID, err)
		}
	}

	return txn.Commit()
}

func (r *PostgresCycleRepository) GetByID(ctx context.Context, id int64) (*payment.Cycle, error) {
	var c payment.Cycle
	err := r.db.GetContext(ctx, &c, `SELECT `+cycleColumns+` FROM payment_cycles c WHERE c.id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("cycle %d: %w", id, payment.ErrCycleNotFound)
		}
		return nil, fmt.Errorf("error getting cycle by ID: %w", err)
	}
	c.DueDate = payment.DateOf(c.DueDate)
	return &c, nil
}

func (r *PostgresCycleRepository) ListBySubscription(ctx context.Context, subscriptionID int64) ([]*payment.Cycle, error) {
	return r.list(ctx, `SELECT `+cycleColumns+` FROM payment_cycles c
                        WHERE c.subscription_id = $1 ORDER BY c.due_date, c.id`, subscriptionID)
}

func (r *PostgresCycleRepository) ListBySubscriptionAndStatus(ctx context.Context, subscriptionID int64, status payment.Status) ([]*payment.Cycle, error) {
	return r.list(ctx, `SELECT `+cycleColumns+` FROM payment_cycles c
                        WHERE c.subscription_id = $1 AND c.status = $2 ORDER BY c.due_date, c.id`, subscriptionID, status)
}

func (r *PostgresCycleRepository) ListByStatusDueBefore(ctx context.Context, status payment.Status, date time.Time) ([]*payment.Cycle, error) {
	return r.list(ctx, `SELECT `+cycleColumns+` FROM payment_cycles c
                        WHERE c.status = $1 AND c.due_date < $2 ORDER BY c.due_date, c.id`, status, payment.DateOf(date))
}

func (r *PostgresCycleRepository) ListByStatusDueOn(ctx context.Context, status payment.Status, date time.Time) ([]*payment.Cycle, error) {
	return r.list(ctx, `SELECT `+cycleColumns+` FROM payment_cycles c
                        WHERE c.status = $1 AND c.due_date = $2 ORDER BY c.id`, status, payment.DateOf(date))
}

func (r *PostgresCycleRepository) ListUpcomingForUser(ctx context.Context, userID int64, from, to time.Time) ([]*payment.Cycle, error) {
	return r.list(ctx, `SELECT `+cycleColumns+` FROM payment_cycles c
                        JOIN subscriptions s ON s.id = c.subscription_id
                        WHERE s.user_id = $1 AND c.status = 'PENDING' AND c.due_date BETWEEN $2 AND $3
                        ORDER BY c.due_date ASC, c.id ASC`, userID, payment.DateOf(from), payment.DateOf(to))
}

func (r *PostgresCycleRepository) ListHistoryForUser(ctx context.Context, userID int64, from, to time.Time) ([]*payment.Cycle, error) {
	return r.list(ctx, `SELECT `+cycleColumns+` FROM payment_cycles c
                        JOIN subscriptions s ON s.id = c.subscription_id
                        WHERE s.user_id = $1 AND c.due_date BETWEEN $2 AND $3
                        ORDER BY c.due_date DESC, c.id DESC`, userID, payment.DateOf(from), payment.DateOf(to))
}

func (r *PostgresCycleRepository) UpdateStatus(ctx context.Context, c *payment.Cycle, from payment.Status) error {
	res, err := r.db.ExecContext(ctx, `UPDATE payment_cycles
                                       SET status = $1, paid_amount = $2, updated_at = $3
                                       WHERE id = $4 AND status = $5`,
		c.Status, c.PaidAmount, c.UpdatedAt, c.ID, from)
	if err != nil {
		return fmt.Errorf("error updating cycle %d: %w", c.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking rows affected for cycle %d: %w", c.ID, err)
	}
	if n > 0 {
		return nil
	}

	// Nothing matched: either the row is gone or its status moved on.
	var current payment.Status
	err = r.db.GetContext(ctx, &current, `SELECT status FROM payment_cycles WHERE id = $1`, c.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("cycle %d: %w", c.ID, payment.ErrCycleNotFound)
	}
	if err != nil {
		return fmt.Errorf("error re-reading cycle %d: %w", c.ID, err)
	}
	return fmt.Errorf("%w: cycle %d is %s, expected %s", payment.ErrConflict, c.ID, current, from)
}

func (r *PostgresCycleRepository) DeleteBySubscription(ctx context.Context, subscriptionID int64) error {
	txn, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for cycle delete: %w", err)
	}
	defer txn.Rollback()

	var ids []int64
	if err := txn.SelectContext(ctx, &ids, `SELECT id FROM payment_cycles WHERE subscription_id = $1`, subscriptionID); err != nil {
		return fmt.Errorf("error listing cycles of subscription %d: %w", subscriptionID, err)
	}
	if len(ids) == 0 {
		return txn.Commit()
	}

	if err := deleteNotificationsForCycles(ctx, txn, ids); err != nil {
		return err
	}
	if _, err := txn.ExecContext(ctx, `DELETE FROM payment_cycles WHERE subscription_id = $1`, subscriptionID); err != nil {
		return fmt.Errorf("error deleting cycles of subscription %d: %w", subscriptionID, err)
	}
	return txn.Commit()
}

func (r *PostgresCycleRepository) list(ctx context.Context, query string, args ...any) ([]*payment.Cycle, error) {
	cycles := []*payment.Cycle{}
	if err := r.db.SelectContext(ctx, &cycles, query, args...); err != nil {
		return nil, fmt.Errorf("error listing cycles: %w", err)
	}
	for _, c := range cycles {
		c.DueDate = payment.DateOf(c.DueDate)
	}
	return cycles, nil
}
