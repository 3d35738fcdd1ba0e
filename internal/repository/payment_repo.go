package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"parkingsystem/internal/db"
	apperrors "parkingsystem/internal/errors"
)

type PaymentFilter struct {
	Status    db.PaymentStatus
	Method    db.PaymentMethod
	SessionID string
	Limit     int
}

// StatusTotal is one row of the payments summary.
type StatusTotal struct {
	Status db.PaymentStatus
	Count  int
	Amount decimal.Decimal
}

type PaymentRepository struct {
	Store *Store
}

func NewPaymentRepository(store *Store) *PaymentRepository {
	return &PaymentRepository{Store: store}
}

const selectPayment = `
	SELECT id, session_id, amount, method, status, gateway_ref, created_at, updated_at
	FROM payments`

func scanPayment(row rowScanner) (*db.Payment, error) {
	var (
		p   db.Payment
		ref sql.NullString
	)
	if err := row.Scan(&p.ID, &p.SessionID, &p.Amount, &p.Method, &p.Status, &ref, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.GatewayRef = ref.String
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (r *PaymentRepository) Insert(ctx context.Context, q Querier, p *db.Payment) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO payments (id, session_id, amount, method, status, gateway_ref, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, NULL, ?, ?)`,
		p.ID, p.SessionID, p.Amount, string(p.Method), string(p.Status), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error inserting payment for session %s: %w", p.SessionID, err)
	}
	return nil
}

func (r *PaymentRepository) Get(ctx context.Context, q Querier, id string, lock bool) (*db.Payment, error) {
	query := selectPayment + ` WHERE id = ?`
	if lock {
		query += r.Store.ForUpdate()
	}
	return r.one(q.QueryRowContext(ctx, query, id), id)
}

func (r *PaymentRepository) GetByGatewayRef(ctx context.Context, q Querier, ref string) (*db.Payment, error) {
	return r.one(q.QueryRowContext(ctx, selectPayment+` WHERE gateway_ref = ?`, ref), ref)
}

// LatestForSession returns the newest payment of a session, or nil.
func (r *PaymentRepository) LatestForSession(ctx context.Context, q Querier, sessionID string) (*db.Payment, error) {
	p, err := scanPayment(q.QueryRowContext(ctx,
		selectPayment+` WHERE session_id = ? ORDER BY created_at DESC LIMIT 1`, sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying payment for session %s: %w", sessionID, err)
	}
	return p, nil
}

func (r *PaymentRepository) one(row *sql.Row, key string) (*db.Payment, error) {
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrPaymentNotFound, key)
		}
		return nil, fmt.Errorf("error querying payment %s: %w", key, err)
	}
	return p, nil
}

func (r *PaymentRepository) UpdateStatus(ctx context.Context, q Querier, id string, status db.PaymentStatus, now time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE payments SET status = ?, updated_at = ? WHERE id = ?`, string(status), now, id)
	if err != nil {
		return fmt.Errorf("error updating payment %s: %w", id, err)
	}
	n, err := rowsAffected(res, "updating payment status")
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrPaymentNotFound, id)
	}
	return nil
}

// SetGatewayRef records the checkout session that will settle the payment.
func (r *PaymentRepository) SetGatewayRef(ctx context.Context, q Querier, id, ref string, now time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE payments SET gateway_ref = ?, updated_at = ? WHERE id = ?`, ref, now, id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: gateway reference %s already used", apperrors.ErrConflict, ref)
		}
		return fmt.Errorf("error saving gateway reference for payment %s: %w", id, err)
	}
	n, err := rowsAffected(res, "saving gateway reference")
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrPaymentNotFound, id)
	}
	return nil
}

func (r *PaymentRepository) List(ctx context.Context, q Querier, f PaymentFilter) ([]db.Payment, error) {
	query := selectPayment + ` WHERE 1=1`
	args := []any{}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.Method != "" {
		query += ` AND method = ?`
		args = append(args, string(f.Method))
	}
	if f.SessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, f.SessionID)
	}
	query += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying payments: %w", err)
	}
	defer rows.Close()

	payments := []db.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// Totals sums payment amounts per status. Amounts are added up here rather
// than with SUM() because SQLite stores them as text.
func (r *PaymentRepository) Totals(ctx context.Context, q Querier) ([]StatusTotal, error) {
	rows, err := q.QueryContext(ctx, `SELECT status, amount FROM payments`)
	if err != nil {
		return nil, fmt.Errorf("error querying payment totals: %w", err)
	}
	defer rows.Close()

	byStatus := map[db.PaymentStatus]*StatusTotal{}
	for rows.Next() {
		var (
			status db.PaymentStatus
			amount decimal.Decimal
		)
		if err := rows.Scan(&status, &amount); err != nil {
			return nil, fmt.Errorf("error scanning payment totals: %w", err)
		}
		t, ok := byStatus[status]
		if !ok {
			t = &StatusTotal{Status: status}
			byStatus[status] = t
		}
		t.Count++
		t.Amount = t.Amount.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	totals := make([]StatusTotal, 0, 3)
	for _, status := range []db.PaymentStatus{db.PaymentPending, db.PaymentCompleted, db.PaymentFailed} {
		if t, ok := byStatus[status]; ok {
			totals = append(totals, *t)
		} else {
			totals = append(totals, StatusTotal{Status: status})
		}
	}
	return totals, nil
}
