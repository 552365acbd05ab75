package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"payflow_billing/internal/domain/payment"
	"payflow_billing/internal/domain/subscription"

	"github.com/jmoiron/sqlx"
)

// subscriptionRow is the flat 'subscriptions' row; BillingConfig is nested in the domain type.
type subscriptionRow struct {
	ID             int64               `db:"id"`
	UserID         int64               `db:"user_id"`
	Name           string              `db:"name"`
	Category       string              `db:"category"`
	Amount         int64               `db:"amount"`
	Currency       string              `db:"currency"`
	CycleType      payment.CycleKind   `db:"cycle_type"`
	BillingDay     sql.NullInt16       `db:"billing_day"`
	BillingWeekday sql.NullInt16       `db:"billing_weekday"`
	BillingMonth   sql.NullInt16       `db:"billing_month"`
	BillingDate    sql.NullInt16       `db:"billing_date"`
	ReminderD3     bool                `db:"reminder_d3"`
	ReminderD1     bool                `db:"reminder_d1"`
	Status         subscription.Status `db:"status"`
	BankName       string              `db:"bank_name"`
	Memo           string              `db:"memo"`
	CreatedAt      time.Time           `db:"created_at"`
	UpdatedAt      time.Time           `db:"updated_at"`
}

const subscriptionColumns = `id, user_id, name, category, amount, currency, cycle_type,
       billing_day, billing_weekday, billing_month, billing_date, reminder_d3, reminder_d1,
       status, bank_name, memo, created_at, updated_at`

func toRow(s *subscription.Subscription) subscriptionRow {
	return subscriptionRow{
		ID:             s.ID,
		UserID:         s.UserID,
		Name:           s.Name,
		Category:       s.Category,
		Amount:         s.Amount,
		Currency:       s.Currency,
		CycleType:      s.Billing.Kind,
		BillingDay:     nullInt(s.Billing.BillingDay),
		BillingWeekday: nullInt(s.Billing.BillingWeekday),
		BillingMonth:   nullInt(s.Billing.BillingMonth),
		BillingDate:    nullInt(s.Billing.BillingDate),
		ReminderD3:     s.Billing.ReminderD3,
		ReminderD1:     s.Billing.ReminderD1,
		Status:         s.Status,
		BankName:       s.BankName,
		Memo:           s.Memo,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func (row subscriptionRow) toDomain() *subscription.Subscription {
	return &subscription.Subscription{
		ID:       row.ID,
		UserID:   row.UserID,
		Name:     row.Name,
		Category: row.Category,
		Amount:   row.Amount,
		Currency: row.Currency,
		Billing: payment.BillingConfig{
			Kind:           row.CycleType,
			BillingDay:     intPtr(row.BillingDay),
			BillingWeekday: intPtr(row.BillingWeekday),
			BillingMonth:   intPtr(row.BillingMonth),
			BillingDate:    intPtr(row.BillingDate),
			ReminderD3:     row.ReminderD3,
			ReminderD1:     row.ReminderD1,
		},
		Status:    row.Status,
		BankName:  row.BankName,
		Memo:      row.Memo,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func nullInt(v *int) sql.NullInt16 {
	if v == nil {
		return sql.NullInt16{}
	}
	return sql.NullInt16{Int16: int16(*v), Valid: true}
}

func intPtr(v sql.NullInt16) *int {
	if !v.Valid {
		return nil
	}
	return payment.Int(int(v.Int16))
}

type PostgresSubscriptionRepository struct {
	db *sqlx.DB
}

var _ subscription.Repository = (*PostgresSubscriptionRepository)(nil)

func NewPostgresSubscriptionRepository(db *sqlx.DB) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{db: db}
}

func (r *PostgresSubscriptionRepository) Create(ctx context.Context, s *subscription.Subscription) error {
	query := `INSERT INTO subscriptions (user_id, name, category, amount, currency, cycle_type,
                  billing_day, billing_weekday, billing_month, billing_date, reminder_d3, reminder_d1,
                  status, bank_name, memo)
              VALUES (:user_id, :name, :category, :amount, :currency, :cycle_type,
                  :billing_day, :billing_weekday, :billing_month, :billing_date, :reminder_d3, :reminder_d1,
                  :status, :bank_name, :memo)
              RETURNING id, created_at, updated_at`
	rows, err := sqlx.NamedQueryContext(ctx, r.db, query, toRow(s))
	if err != nil {
		return fmt.Errorf("error creating subscription: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return fmt.Errorf("error reading created subscription: %w", err)
		}
	}
	return rows.Err()
}

func (r *PostgresSubscriptionRepository) GetByID(ctx context.Context, id int64) (*subscription.Subscription, error) {
	var row subscriptionRow
	err := r.db.GetContext(ctx, &row, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("subscription %d: %w", id, subscription.ErrSubscriptionNotFound)
		}
		return nil, fmt.Errorf("error getting subscription by ID: %w", err)
	}
	return row.toDomain(), nil
}

func (r *PostgresSubscriptionRepository) ListByUser(ctx context.Context, userID int64) ([]*subscription.Subscription, error) {
	var rows []subscriptionRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1 ORDER BY id`, userID); err != nil {
		return nil, fmt.Errorf("error listing subscriptions for user %d: %w", userID, err)
	}
	return toDomainList(rows), nil
}

func (r *PostgresSubscriptionRepository) ListActive(ctx context.Context) ([]*subscription.Subscription, error) {
	var rows []subscriptionRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE status = $1 ORDER BY id`, string(subscription.StatusActive)); err != nil {
		return nil, fmt.Errorf("error listing active subscriptions: %w", err)
	}
	return toDomainList(rows), nil
}

func toDomainList(rows []subscriptionRow) []*subscription.Subscription {
	out := make([]*subscription.Subscription, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out
}

func (r *PostgresSubscriptionRepository) Update(ctx context.Context, s *subscription.Subscription) error {
	query := `UPDATE subscriptions SET
                  name = :name, category = :category, amount = :amount, currency = :currency,
                  cycle_type = :cycle_type, billing_day = :billing_day, billing_weekday = :billing_weekday,
                  billing_month = :billing_month, billing_date = :billing_date,
                  reminder_d3 = :reminder_d3, reminder_d1 = :reminder_d1,
                  status = :status, bank_name = :bank_name, memo = :memo, updated_at = NOW()
              WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, r.db, query, toRow(s))
	if err != nil {
		return fmt.Errorf("error updating subscription %d: %w", s.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("subscription %d: %w", s.ID, subscription.ErrSubscriptionNotFound)
	}
	return nil
}

func (r *PostgresSubscriptionRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting subscription %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("subscription %d: %w", id, subscription.ErrSubscriptionNotFound)
	}
	return nil
}
