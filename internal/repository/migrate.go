package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"parkingsystem/internal/db"
)

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS parking_areas (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS area_slots (
		area_id BIGINT NOT NULL REFERENCES parking_areas(id) ON DELETE CASCADE,
		vehicle_class TEXT NOT NULL,
		capacity INTEGER NOT NULL CHECK (capacity >= 0),
		occupied INTEGER NOT NULL DEFAULT 0,
		CHECK (occupied >= 0 AND occupied <= capacity),
		PRIMARY KEY (area_id, vehicle_class)
	)`,
	`CREATE TABLE IF NOT EXISTS parking_rates (
		vehicle_class TEXT PRIMARY KEY,
		hourly NUMERIC(12,2) NOT NULL CHECK (hourly >= 0),
		daily NUMERIC(12,2) NOT NULL CHECK (daily >= 0),
		weekly NUMERIC(12,2) NOT NULL CHECK (weekly >= 0),
		monthly NUMERIC(12,2) NOT NULL CHECK (monthly >= 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS vehicles (
		id TEXT PRIMARY KEY,
		plate TEXT NOT NULL UNIQUE,
		vehicle_class TEXT NOT NULL,
		owner_name TEXT NOT NULL DEFAULT '',
		owner_email TEXT NOT NULL DEFAULT '',
		owner_phone TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS parking_sessions (
		id TEXT PRIMARY KEY,
		vehicle_id TEXT NOT NULL REFERENCES vehicles(id),
		vehicle_class TEXT NOT NULL,
		area_id BIGINT NOT NULL REFERENCES parking_areas(id),
		entry_time TIMESTAMPTZ NOT NULL,
		exit_time TIMESTAMPTZ,
		status TEXT NOT NULL,
		bill_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
		bill_status TEXT NOT NULL DEFAULT 'none',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS parking_sessions_one_open
		ON parking_sessions (vehicle_id) WHERE status = 'open'`,
	`CREATE INDEX IF NOT EXISTS parking_sessions_area_status
		ON parking_sessions (area_id, status)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES parking_sessions(id),
		amount NUMERIC(12,2) NOT NULL,
		method TEXT NOT NULL,
		status TEXT NOT NULL,
		gateway_ref TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS payments_session ON payments (session_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS payments_gateway_ref
		ON payments (gateway_ref) WHERE gateway_ref IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS admins (
		id BIGSERIAL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS parking_areas (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS area_slots (
		area_id INTEGER NOT NULL REFERENCES parking_areas(id) ON DELETE CASCADE,
		vehicle_class TEXT NOT NULL,
		capacity INTEGER NOT NULL CHECK (capacity >= 0),
		occupied INTEGER NOT NULL DEFAULT 0,
		CHECK (occupied >= 0 AND occupied <= capacity),
		PRIMARY KEY (area_id, vehicle_class)
	)`,
	`CREATE TABLE IF NOT EXISTS parking_rates (
		vehicle_class TEXT PRIMARY KEY,
		hourly TEXT NOT NULL,
		daily TEXT NOT NULL,
		weekly TEXT NOT NULL,
		monthly TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS vehicles (
		id TEXT PRIMARY KEY,
		plate TEXT NOT NULL UNIQUE,
		vehicle_class TEXT NOT NULL,
		owner_name TEXT NOT NULL DEFAULT '',
		owner_email TEXT NOT NULL DEFAULT '',
		owner_phone TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS parking_sessions (
		id TEXT PRIMARY KEY,
		vehicle_id TEXT NOT NULL REFERENCES vehicles(id),
		vehicle_class TEXT NOT NULL,
		area_id INTEGER NOT NULL REFERENCES parking_areas(id),
		entry_time DATETIME NOT NULL,
		exit_time DATETIME,
		status TEXT NOT NULL,
		bill_amount TEXT NOT NULL DEFAULT '0',
		bill_status TEXT NOT NULL DEFAULT 'none',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS parking_sessions_one_open
		ON parking_sessions (vehicle_id) WHERE status = 'open'`,
	`CREATE INDEX IF NOT EXISTS parking_sessions_area_status
		ON parking_sessions (area_id, status)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES parking_sessions(id),
		amount TEXT NOT NULL,
		method TEXT NOT NULL,
		status TEXT NOT NULL,
		gateway_ref TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS payments_session ON payments (session_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS payments_gateway_ref
		ON payments (gateway_ref) WHERE gateway_ref IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS admins (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

// DefaultRates seeds parking_rates on first start. Operators change them
// through the admin API afterwards.
var DefaultRates = []db.RateSchedule{
	{VehicleClass: db.TwoWheeler, Hourly: decimal.NewFromInt(10), Daily: decimal.NewFromInt(80), Weekly: decimal.NewFromInt(400), Monthly: decimal.NewFromInt(1200)},
	{VehicleClass: db.FourWheeler, Hourly: decimal.NewFromInt(20), Daily: decimal.NewFromInt(150), Weekly: decimal.NewFromInt(800), Monthly: decimal.NewFromInt(2500)},
	{VehicleClass: db.Commercial, Hourly: decimal.NewFromInt(40), Daily: decimal.NewFromInt(300), Weekly: decimal.NewFromInt(1600), Monthly: decimal.NewFromInt(5000)},
}

func (s *Store) migrate(ctx context.Context) error {
	migrations := postgresMigrations
	if s.Dialect == SQLite {
		migrations = sqliteMigrations
	}
	for _, m := range migrations {
		if _, err := s.DB.ExecContext(ctx, m); err != nil {
			return err
		}
	}

	q := s.Q()
	now := time.Now().UTC()
	for _, r := range DefaultRates {
		_, err := q.ExecContext(ctx, `
			INSERT INTO parking_rates (vehicle_class, hourly, daily, weekly, monthly, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (vehicle_class) DO NOTHING`,
			string(r.VehicleClass), r.Hourly, r.Daily, r.Weekly, r.Monthly, now)
		if err != nil {
			return err
		}
	}
	return nil
}
