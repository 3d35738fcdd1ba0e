package pricing

import (
	"fmt"

	"parkingsystem/internal/db"
	apperrors "parkingsystem/internal/errors"
)

// RateTable resolves the rate schedule for a vehicle class.
type RateTable interface {
	GetRate(class db.VehicleClass) (db.RateSchedule, error)
}

// Table is an immutable snapshot of the rate schedules, keyed by class.
type Table map[db.VehicleClass]db.RateSchedule

// NewTable builds a Table from a list of schedules. Later entries win.
func NewTable(schedules []db.RateSchedule) Table {
	t := make(Table, len(schedules))
	for _, s := range schedules {
		t[s.VehicleClass] = s
	}
	return t
}

// GetRate fails with ErrRateNotFound when the class has no schedule. For the
// three fixed classes that is a configuration error, not a retryable one.
func (t Table) GetRate(class db.VehicleClass) (db.RateSchedule, error) {
	s, ok := t[class]
	if !ok {
		return db.RateSchedule{}, fmt.Errorf("%w: %q", apperrors.ErrRateNotFound, class)
	}
	return s, nil
}
