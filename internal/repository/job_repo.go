package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"parkingsystem/internal/db"
)

// OccupancyDrift is an area/class pair whose counter disagrees with the
// number of open sessions.
type OccupancyDrift struct {
	AreaID       int64
	VehicleClass db.VehicleClass
	Capacity     int
	Occupied     int
	OpenSessions int
}

type JobRepository struct {
	Store *Store
}

func NewJobRepository(store *Store) *JobRepository {
	return &JobRepository{Store: store}
}

// OccupancyDrifts compares every slot counter with its open sessions.
func (r *JobRepository) OccupancyDrifts(ctx context.Context) ([]OccupancyDrift, error) {
	rows, err := r.Store.Q().QueryContext(ctx, `
		SELECT s.area_id, s.vehicle_class, s.capacity, s.occupied,
			(SELECT COUNT(*) FROM parking_sessions p
			 WHERE p.area_id = s.area_id AND p.vehicle_class = s.vehicle_class AND p.status = ?) AS open_sessions
		FROM area_slots s
		ORDER BY s.area_id, s.vehicle_class`, string(db.SessionOpen))
	if err != nil {
		return nil, fmt.Errorf("error querying occupancy counters: %w", err)
	}
	defer rows.Close()

	var drifts []OccupancyDrift
	for rows.Next() {
		var d OccupancyDrift
		if err := rows.Scan(&d.AreaID, &d.VehicleClass, &d.Capacity, &d.Occupied, &d.OpenSessions); err != nil {
			return nil, fmt.Errorf("error scanning occupancy counter: %w", err)
		}
		if d.Occupied != d.OpenSessions {
			drifts = append(drifts, d)
		}
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating occupancy rows: %w", err)
	}
	return drifts, nil
}

// StalePaymentIDs returns online payments still pending that were created
// before cutoff.
func (r *JobRepository) StalePaymentIDs(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.Store.Q().QueryContext(ctx,
		`SELECT id FROM payments WHERE status = ? AND method = ? AND created_at < ?`,
		string(db.PaymentPending), string(db.MethodOnline), cutoff)
	if err != nil {
		return nil, fmt.Errorf("error querying stale payments: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning payment ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating rows: %w", err)
	}
	return ids, nil
}

// FailPendingPayments flips the given payments to failed if they are still
// pending and returns how many changed.
func (r *JobRepository) FailPendingPayments(ctx context.Context, ids []string, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var (
		query string
		args  []any
	)
	if r.Store.Dialect == Postgres {
		query = `UPDATE payments SET status = ?, updated_at = ? WHERE status = ? AND id = ANY(?)`
		args = []any{string(db.PaymentFailed), now, string(db.PaymentPending), pq.Array(ids)}
	} else {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
		query = `UPDATE payments SET status = ?, updated_at = ? WHERE status = ? AND id IN (` + placeholders + `)`
		args = []any{string(db.PaymentFailed), now, string(db.PaymentPending)}
		for _, id := range ids {
			args = append(args, id)
		}
	}

	result, err := r.Store.Q().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("error failing stale payments: %w", err)
	}
	return rowsAffected(result, "failing stale payments")
}
