package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"parkingsystem/internal/db"
	apperrors "parkingsystem/internal/errors"
	"parkingsystem/internal/repository"
	"parkingsystem/internal/utils"
)

type RegisterVehicleRequest struct {
	Plate        string
	VehicleClass string
	OwnerName    string
	OwnerEmail   string
	OwnerPhone   string
}

type VehicleService struct {
	store    *repository.Store
	vehicles *repository.VehicleRepository
	now      func() time.Time
}

func NewVehicleService(store *repository.Store, vehicles *repository.VehicleRepository) *VehicleService {
	return &VehicleService{
		store:    store,
		vehicles: vehicles,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RegisterVehicle stores a vehicle under its normalized plate. A plate can be
// registered once.
func (s *VehicleService) RegisterVehicle(ctx context.Context, req RegisterVehicleRequest) (*db.Vehicle, error) {
	plate := utils.NormalizePlate(req.Plate)
	if plate == "" {
		return nil, fmt.Errorf("%w: plate is required", apperrors.ErrInvalidInput)
	}
	class, ok := utils.ParseVehicleClass(req.VehicleClass)
	if !ok {
		return nil, fmt.Errorf("%w: unknown vehicle class %q", apperrors.ErrInvalidInput, req.VehicleClass)
	}
	email := strings.TrimSpace(req.OwnerEmail)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, fmt.Errorf("%w: invalid owner email %q", apperrors.ErrInvalidInput, email)
		}
	}

	v := &db.Vehicle{
		ID:           uuid.NewString(),
		Plate:        plate,
		VehicleClass: class,
		OwnerName:    strings.TrimSpace(req.OwnerName),
		OwnerEmail:   email,
		OwnerPhone:   strings.TrimSpace(req.OwnerPhone),
		CreatedAt:    s.now(),
	}
	if err := s.vehicles.Create(ctx, s.store.Q(), v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *VehicleService) GetVehicle(ctx context.Context, id string) (*db.Vehicle, error) {
	return s.vehicles.Get(ctx, s.store.Q(), id)
}

func (s *VehicleService) GetVehicleByPlate(ctx context.Context, plate string) (*db.Vehicle, error) {
	return s.vehicles.GetByPlate(ctx, s.store.Q(), utils.NormalizePlate(plate))
}
