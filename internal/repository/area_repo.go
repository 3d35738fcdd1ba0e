package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parkingsystem/internal/db"
	apperrors "parkingsystem/internal/errors"
)

type AreaRepository struct {
	Store *Store
}

func NewAreaRepository(store *Store) *AreaRepository {
	return &AreaRepository{Store: store}
}

// Create inserts the area and one slot row per vehicle class. Classes missing
// from capacity get zero slots.
func (r *AreaRepository) Create(ctx context.Context, q Querier, name string, capacity map[db.VehicleClass]int, now time.Time) (*db.ParkingArea, error) {
	area := &db.ParkingArea{
		Name:      name,
		Capacity:  map[db.VehicleClass]int{},
		Occupied:  map[db.VehicleClass]int{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := q.QueryRowContext(ctx,
		`INSERT INTO parking_areas (name, created_at, updated_at) VALUES (?, ?, ?) RETURNING id`,
		name, now, now).Scan(&area.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: area %q already exists", apperrors.ErrConflict, name)
		}
		return nil, fmt.Errorf("error inserting parking area: %w", err)
	}

	for _, class := range db.AllVehicleClasses {
		c := capacity[class]
		if _, err := q.ExecContext(ctx,
			`INSERT INTO area_slots (area_id, vehicle_class, capacity, occupied) VALUES (?, ?, ?, 0)`,
			area.ID, string(class), c); err != nil {
			return nil, fmt.Errorf("error inserting slots for area %d: %w", area.ID, err)
		}
		area.Capacity[class] = c
		area.Occupied[class] = 0
	}
	return area, nil
}

func (r *AreaRepository) Get(ctx context.Context, q Querier, id int64) (*db.ParkingArea, error) {
	area := &db.ParkingArea{ID: id}
	err := q.QueryRowContext(ctx,
		`SELECT name, created_at, updated_at FROM parking_areas WHERE id = ?`, id).
		Scan(&area.Name, &area.CreatedAt, &area.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", apperrors.ErrAreaNotFound, id)
		}
		return nil, fmt.Errorf("error querying parking area %d: %w", id, err)
	}
	area.CreatedAt, area.UpdatedAt = area.CreatedAt.UTC(), area.UpdatedAt.UTC()

	rows, err := q.QueryContext(ctx,
		`SELECT vehicle_class, capacity, occupied FROM area_slots WHERE area_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("error querying slots for area %d: %w", id, err)
	}
	defer rows.Close()

	area.Capacity = map[db.VehicleClass]int{}
	area.Occupied = map[db.VehicleClass]int{}
	for rows.Next() {
		var class db.VehicleClass
		var capacity, occupied int
		if err := rows.Scan(&class, &capacity, &occupied); err != nil {
			return nil, fmt.Errorf("error scanning slots for area %d: %w", id, err)
		}
		area.Capacity[class] = capacity
		area.Occupied[class] = occupied
	}
	return area, rows.Err()
}

func (r *AreaRepository) List(ctx context.Context, q Querier) ([]db.ParkingArea, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT a.id, a.name, a.created_at, a.updated_at, s.vehicle_class, s.capacity, s.occupied
		FROM parking_areas a
		JOIN area_slots s ON s.area_id = a.id
		ORDER BY a.name, a.id`)
	if err != nil {
		return nil, fmt.Errorf("error querying parking areas: %w", err)
	}
	defer rows.Close()

	areas := []db.ParkingArea{}
	index := map[int64]int{}
	for rows.Next() {
		var (
			a                  db.ParkingArea
			class              db.VehicleClass
			capacity, occupied int
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.CreatedAt, &a.UpdatedAt, &class, &capacity, &occupied); err != nil {
			return nil, fmt.Errorf("error scanning parking area: %w", err)
		}
		i, ok := index[a.ID]
		if !ok {
			a.CreatedAt, a.UpdatedAt = a.CreatedAt.UTC(), a.UpdatedAt.UTC()
			a.Capacity = map[db.VehicleClass]int{}
			a.Occupied = map[db.VehicleClass]int{}
			areas = append(areas, a)
			i = len(areas) - 1
			index[a.ID] = i
		}
		areas[i].Capacity[class] = capacity
		areas[i].Occupied[class] = occupied
	}
	return areas, rows.Err()
}

// Update renames the area and sets new capacities. A capacity below the
// current occupancy is rejected with ErrConflict; the counters themselves are
// never touched here.
func (r *AreaRepository) Update(ctx context.Context, q Querier, id int64, name string, capacity map[db.VehicleClass]int, now time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE parking_areas SET name = ?, updated_at = ? WHERE id = ?`, name, now, id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: area %q already exists", apperrors.ErrConflict, name)
		}
		return fmt.Errorf("error updating parking area %d: %w", id, err)
	}
	n, err := rowsAffected(res, "updating parking area")
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", apperrors.ErrAreaNotFound, id)
	}

	for class, c := range capacity {
		res, err := q.ExecContext(ctx, `
			UPDATE area_slots SET capacity = ?
			WHERE area_id = ? AND vehicle_class = ? AND occupied <= ?`,
			c, id, string(class), c)
		if err != nil {
			return fmt.Errorf("error updating %s capacity of area %d: %w", class, id, err)
		}
		n, err := rowsAffected(res, "updating area capacity")
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s capacity %d is below current occupancy", apperrors.ErrConflict, class, c)
		}
	}
	return nil
}

// Delete removes an area that has never hosted a session.
func (r *AreaRepository) Delete(ctx context.Context, q Querier, id int64) error {
	var open int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM parking_sessions WHERE area_id = ? AND status = ?`,
		id, string(db.SessionOpen)).Scan(&open); err != nil {
		return fmt.Errorf("error counting open sessions in area %d: %w", id, err)
	}
	if open > 0 {
		return fmt.Errorf("%w: area %d has %d vehicles parked", apperrors.ErrConflict, id, open)
	}

	res, err := q.ExecContext(ctx, `DELETE FROM parking_areas WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: area %d has parking history", apperrors.ErrConflict, id)
		}
		return fmt.Errorf("error deleting parking area %d: %w", id, err)
	}
	n, err := rowsAffected(res, "deleting parking area")
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", apperrors.ErrAreaNotFound, id)
	}
	return nil
}
