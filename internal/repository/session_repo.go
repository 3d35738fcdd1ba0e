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

// SessionFilter narrows ListSessions. Zero values mean "any".
type SessionFilter struct {
	Status    db.SessionStatus
	AreaID    int64
	VehicleID string
	Limit     int
}

type SessionRepository struct {
	Store *Store
}

func NewSessionRepository(store *Store) *SessionRepository {
	return &SessionRepository{Store: store}
}

const selectSession = `
	SELECT id, vehicle_id, vehicle_class, area_id, entry_time, exit_time, status,
		bill_amount, bill_status, created_at, updated_at
	FROM parking_sessions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*db.ParkingSession, error) {
	var (
		s    db.ParkingSession
		exit sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.VehicleID, &s.VehicleClass, &s.AreaID, &s.EntryTime, &exit, &s.Status,
		&s.BillAmount, &s.BillStatus, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.EntryTime = s.EntryTime.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	if exit.Valid {
		t := exit.Time.UTC()
		s.ExitTime = &t
	}
	return &s, nil
}

// Insert persists a new session. The partial unique index on open sessions
// turns a concurrent second entry for the same vehicle into ErrAlreadyParked.
func (r *SessionRepository) Insert(ctx context.Context, q Querier, s *db.ParkingSession) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO parking_sessions
			(id, vehicle_id, vehicle_class, area_id, entry_time, exit_time, status, bill_amount, bill_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, NULL, ?, ?, ?, ?, ?)`,
		s.ID, s.VehicleID, string(s.VehicleClass), s.AreaID, s.EntryTime, string(s.Status),
		s.BillAmount, string(s.BillStatus), s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrAlreadyParked
		}
		return fmt.Errorf("error inserting parking session: %w", err)
	}
	return nil
}

// Get loads a session. With lock set, postgres holds the row until the
// transaction ends.
func (r *SessionRepository) Get(ctx context.Context, q Querier, id string, lock bool) (*db.ParkingSession, error) {
	query := selectSession + ` WHERE id = ?`
	if lock {
		query += r.Store.ForUpdate()
	}
	s, err := scanSession(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("error querying parking session %s: %w", id, err)
	}
	return s, nil
}

// OpenForVehicle returns the vehicle's open session, or nil when it has none.
func (r *SessionRepository) OpenForVehicle(ctx context.Context, q Querier, vehicleID string) (*db.ParkingSession, error) {
	s, err := scanSession(q.QueryRowContext(ctx,
		selectSession+` WHERE vehicle_id = ? AND status = ?`, vehicleID, string(db.SessionOpen)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying open session for vehicle %s: %w", vehicleID, err)
	}
	return s, nil
}

// Close moves an open session to closed with its bill. Zero rows affected
// means another caller closed it first.
func (r *SessionRepository) Close(ctx context.Context, q Querier, id string, exit time.Time, fee decimal.Decimal) error {
	res, err := q.ExecContext(ctx, `
		UPDATE parking_sessions
		SET status = ?, exit_time = ?, bill_amount = ?, bill_status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(db.SessionClosed), exit, fee, string(db.BillPending), exit, id, string(db.SessionOpen))
	if err != nil {
		return fmt.Errorf("error closing parking session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error closing parking session %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrAlreadyClosed, id)
	}
	return nil
}

func (r *SessionRepository) SetBillStatus(ctx context.Context, q Querier, id string, status db.BillStatus, now time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE parking_sessions SET bill_status = ?, updated_at = ? WHERE id = ?`,
		string(status), now, id)
	if err != nil {
		return fmt.Errorf("error updating bill status of session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrSessionNotFound, id)
	}
	return nil
}

func (r *SessionRepository) List(ctx context.Context, q Querier, f SessionFilter) ([]db.ParkingSession, error) {
	query := selectSession + ` WHERE 1=1`
	args := []any{}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.AreaID != 0 {
		query += ` AND area_id = ?`
		args = append(args, f.AreaID)
	}
	if f.VehicleID != "" {
		query += ` AND vehicle_id = ?`
		args = append(args, f.VehicleID)
	}
	query += ` ORDER BY entry_time DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying parking sessions: %w", err)
	}
	defer rows.Close()

	sessions := []db.ParkingSession{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning parking session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}
