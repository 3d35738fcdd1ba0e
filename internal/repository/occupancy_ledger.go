package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"parkingsystem/internal/db"
	apperrors "parkingsystem/internal/errors"
)

// OccupancyLedger is the only writer of area_slots.occupied. Both operations
// are single conditional UPDATEs, so the check and the mutation happen under
// the same row lock and two callers racing for the last slot cannot both win.
type OccupancyLedger struct{}

func NewOccupancyLedger() *OccupancyLedger {
	return &OccupancyLedger{}
}

// TryReserve takes one slot of class in the area, or fails with
// ErrCapacityExceeded without touching the counter.
func (l *OccupancyLedger) TryReserve(ctx context.Context, q Querier, areaID int64, class db.VehicleClass) error {
	res, err := q.ExecContext(ctx, `
		UPDATE area_slots SET occupied = occupied + 1
		WHERE area_id = ? AND vehicle_class = ? AND occupied < capacity`,
		areaID, string(class))
	if err != nil {
		return fmt.Errorf("reserve slot in area %d for %s: %w", areaID, class, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve slot in area %d for %s: %w", areaID, class, err)
	}
	if n == 1 {
		return nil
	}
	if err := l.ensureSlotRow(ctx, q, areaID, class); err != nil {
		return err
	}
	return apperrors.ErrCapacityExceeded
}

// Release frees one slot. A counter already at zero means a session was
// closed twice or never reserved; that is reported as ErrUnderflow and the
// counter is left alone.
func (l *OccupancyLedger) Release(ctx context.Context, q Querier, areaID int64, class db.VehicleClass) error {
	res, err := q.ExecContext(ctx, `
		UPDATE area_slots SET occupied = occupied - 1
		WHERE area_id = ? AND vehicle_class = ? AND occupied > 0`,
		areaID, string(class))
	if err != nil {
		return fmt.Errorf("release slot in area %d for %s: %w", areaID, class, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release slot in area %d for %s: %w", areaID, class, err)
	}
	if n == 1 {
		return nil
	}
	if err := l.ensureSlotRow(ctx, q, areaID, class); err != nil {
		return err
	}
	return fmt.Errorf("%w: area %d, class %s", apperrors.ErrUnderflow, areaID, class)
}

// Counters returns capacity and occupied for one area/class pair.
func (l *OccupancyLedger) Counters(ctx context.Context, q Querier, areaID int64, class db.VehicleClass) (capacity, occupied int, err error) {
	err = q.QueryRowContext(ctx,
		`SELECT capacity, occupied FROM area_slots WHERE area_id = ? AND vehicle_class = ?`,
		areaID, string(class)).Scan(&capacity, &occupied)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, fmt.Errorf("%w: %d", apperrors.ErrAreaNotFound, areaID)
	}
	return capacity, occupied, err
}

func (l *OccupancyLedger) ensureSlotRow(ctx context.Context, q Querier, areaID int64, class db.VehicleClass) error {
	_, _, err := l.Counters(ctx, q, areaID, class)
	return err
}
