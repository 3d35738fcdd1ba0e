package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"parkingsystem/internal/db"
	apperrors "parkingsystem/internal/errors"
	"parkingsystem/internal/repository"
)

// AdminService manages parking areas and the rate schedule.
type AdminService struct {
	store *repository.Store
	areas *repository.AreaRepository
	rates *repository.RateRepository
	now   func() time.Time
}

func NewAdminService(store *repository.Store, areas *repository.AreaRepository, rates *repository.RateRepository) *AdminService {
	return &AdminService{
		store: store,
		areas: areas,
		rates: rates,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func validateCapacity(capacity map[db.VehicleClass]int) error {
	for class, c := range capacity {
		if !class.Valid() {
			return fmt.Errorf("%w: unknown vehicle class %q", apperrors.ErrInvalidInput, class)
		}
		if c < 0 {
			return fmt.Errorf("%w: %s capacity cannot be negative", apperrors.ErrInvalidInput, class)
		}
	}
	return nil
}

func (s *AdminService) CreateArea(ctx context.Context, name string, capacity map[db.VehicleClass]int) (*db.ParkingArea, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: area name is required", apperrors.ErrInvalidInput)
	}
	if err := validateCapacity(capacity); err != nil {
		return nil, err
	}

	var area *db.ParkingArea
	err := s.store.WithTx(ctx, func(q repository.Querier) error {
		var err error
		area, err = s.areas.Create(ctx, q, name, capacity, s.now())
		return err
	})
	return area, err
}

// UpdateArea renames an area and changes the capacities given; classes left
// out keep their capacity.
func (s *AdminService) UpdateArea(ctx context.Context, id int64, name string, capacity map[db.VehicleClass]int) (*db.ParkingArea, error) {
	if err := validateCapacity(capacity); err != nil {
		return nil, err
	}

	var area *db.ParkingArea
	err := s.store.WithTx(ctx, func(q repository.Querier) error {
		current, err := s.areas.Get(ctx, q, id)
		if err != nil {
			return err
		}
		if n := strings.TrimSpace(name); n != "" {
			current.Name = n
		}
		if err := s.areas.Update(ctx, q, id, current.Name, capacity, s.now()); err != nil {
			return err
		}
		area, err = s.areas.Get(ctx, q, id)
		return err
	})
	return area, err
}

func (s *AdminService) DeleteArea(ctx context.Context, id int64) error {
	return s.store.WithTx(ctx, func(q repository.Querier) error {
		return s.areas.Delete(ctx, q, id)
	})
}

func (s *AdminService) GetArea(ctx context.Context, id int64) (*db.ParkingArea, error) {
	return s.areas.Get(ctx, s.store.Q(), id)
}

func (s *AdminService) ListAreas(ctx context.Context) ([]db.ParkingArea, error) {
	return s.areas.List(ctx, s.store.Q())
}

func (s *AdminService) ListRates(ctx context.Context) ([]db.RateSchedule, error) {
	return s.rates.List(ctx, s.store.Q())
}

// UpdateRate replaces the schedule of one class. Amounts must be
// non-negative; how the tiers relate to each other is up to the operator.
func (s *AdminService) UpdateRate(ctx context.Context, rs db.RateSchedule) (*db.RateSchedule, error) {
	if !rs.VehicleClass.Valid() {
		return nil, fmt.Errorf("%w: unknown vehicle class %q", apperrors.ErrInvalidInput, rs.VehicleClass)
	}
	for label, v := range map[string]decimal.Decimal{
		"hourly": rs.Hourly, "daily": rs.Daily, "weekly": rs.Weekly, "monthly": rs.Monthly,
	} {
		if v.IsNegative() {
			return nil, fmt.Errorf("%w: %s rate cannot be negative", apperrors.ErrInvalidInput, label)
		}
	}

	rs.Hourly = rs.Hourly.Round(2)
	rs.Daily = rs.Daily.Round(2)
	rs.Weekly = rs.Weekly.Round(2)
	rs.Monthly = rs.Monthly.Round(2)
	rs.UpdatedAt = s.now()
	if err := s.rates.Upsert(ctx, s.store.Q(), rs); err != nil {
		return nil, err
	}
	return &rs, nil
}
