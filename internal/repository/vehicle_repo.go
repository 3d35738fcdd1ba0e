package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"parkingsystem/internal/db"
	apperrors "parkingsystem/internal/errors"
)

type VehicleRepository struct {
	Store *Store
}

func NewVehicleRepository(store *Store) *VehicleRepository {
	return &VehicleRepository{Store: store}
}

func (r *VehicleRepository) Create(ctx context.Context, q Querier, v *db.Vehicle) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO vehicles (id, plate, vehicle_class, owner_name, owner_email, owner_phone, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Plate, string(v.VehicleClass), v.OwnerName, v.OwnerEmail, v.OwnerPhone, v.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: plate %s is already registered", apperrors.ErrConflict, v.Plate)
		}
		return fmt.Errorf("error inserting vehicle: %w", err)
	}
	return nil
}

const selectVehicle = `SELECT id, plate, vehicle_class, owner_name, owner_email, owner_phone, created_at FROM vehicles`

func (r *VehicleRepository) Get(ctx context.Context, q Querier, id string) (*db.Vehicle, error) {
	return scanVehicle(q.QueryRowContext(ctx, selectVehicle+` WHERE id = ?`, id), id)
}

func (r *VehicleRepository) GetByPlate(ctx context.Context, q Querier, plate string) (*db.Vehicle, error) {
	return scanVehicle(q.QueryRowContext(ctx, selectVehicle+` WHERE plate = ?`, plate), plate)
}

func scanVehicle(row *sql.Row, key string) (*db.Vehicle, error) {
	var v db.Vehicle
	err := row.Scan(&v.ID, &v.Plate, &v.VehicleClass, &v.OwnerName, &v.OwnerEmail, &v.OwnerPhone, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrVehicleNotFound, key)
		}
		return nil, fmt.Errorf("error querying vehicle: %w", err)
	}
	v.CreatedAt = v.CreatedAt.UTC()
	return &v, nil
}
