package repository

import (
	"context"
	"fmt"

	"parkingsystem/internal/db"
	"parkingsystem/internal/pricing"
)

type RateRepository struct {
	Store *Store
}

func NewRateRepository(store *Store) *RateRepository {
	return &RateRepository{Store: store}
}

func (r *RateRepository) List(ctx context.Context, q Querier) ([]db.RateSchedule, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT vehicle_class, hourly, daily, weekly, monthly, updated_at FROM parking_rates ORDER BY vehicle_class`)
	if err != nil {
		return nil, fmt.Errorf("error querying parking rates: %w", err)
	}
	defer rows.Close()

	var rates []db.RateSchedule
	for rows.Next() {
		var rs db.RateSchedule
		if err := rows.Scan(&rs.VehicleClass, &rs.Hourly, &rs.Daily, &rs.Weekly, &rs.Monthly, &rs.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning parking rate: %w", err)
		}
		rs.UpdatedAt = rs.UpdatedAt.UTC()
		rates = append(rates, rs)
	}
	return rates, rows.Err()
}

// LoadTable snapshots the rates for one fee calculation.
func (r *RateRepository) LoadTable(ctx context.Context, q Querier) (pricing.Table, error) {
	rates, err := r.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return pricing.NewTable(rates), nil
}

func (r *RateRepository) Upsert(ctx context.Context, q Querier, rs db.RateSchedule) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO parking_rates (vehicle_class, hourly, daily, weekly, monthly, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (vehicle_class) DO UPDATE SET
			hourly = excluded.hourly,
			daily = excluded.daily,
			weekly = excluded.weekly,
			monthly = excluded.monthly,
			updated_at = excluded.updated_at`,
		string(rs.VehicleClass), rs.Hourly, rs.Daily, rs.Weekly, rs.Monthly, rs.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error saving %s rates: %w", rs.VehicleClass, err)
	}
	return nil
}

// Delete exists for operators removing a class from service; fee
// calculation for that class then fails with ErrRateNotFound.
func (r *RateRepository) Delete(ctx context.Context, q Querier, class db.VehicleClass) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM parking_rates WHERE vehicle_class = ?`, string(class)); err != nil {
		return fmt.Errorf("error deleting %s rates: %w", class, err)
	}
	return nil
}
