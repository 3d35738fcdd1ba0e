// Package repotest opens throwaway in-memory stores for tests.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"parkingsystem/internal/db"
	"parkingsystem/internal/repository"
)

// NewStore returns a migrated SQLite :memory: store closed at test cleanup.
func NewStore(t testing.TB) *repository.Store {
	t.Helper()
	store, err := repository.Open(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err, "failed to create test database")
	t.Cleanup(func() { store.Close() })
	return store
}

// CreateArea inserts an area with the given capacities.
func CreateArea(t testing.TB, store *repository.Store, name string, capacity map[db.VehicleClass]int) *db.ParkingArea {
	t.Helper()
	area, err := repository.NewAreaRepository(store).Create(context.Background(), store.Q(), name, capacity, time.Now().UTC())
	require.NoError(t, err)
	return area
}

// CreateVehicle registers a vehicle with a random plate.
func CreateVehicle(t testing.TB, store *repository.Store, class db.VehicleClass) *db.Vehicle {
	t.Helper()
	v := &db.Vehicle{
		ID:           uuid.NewString(),
		Plate:        "TEST" + uuid.NewString()[:8],
		VehicleClass: class,
		OwnerName:    "Test Owner",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, repository.NewVehicleRepository(store).Create(context.Background(), store.Q(), v))
	return v
}

// SetOccupied overwrites a slot counter, bypassing the ledger.
func SetOccupied(t testing.TB, store *repository.Store, areaID int64, class db.VehicleClass, occupied int) {
	t.Helper()
	_, err := store.Q().ExecContext(context.Background(),
		`UPDATE area_slots SET occupied = ? WHERE area_id = ? AND vehicle_class = ?`,
		occupied, areaID, string(class))
	require.NoError(t, err)
}
