package entities

import (
	"time"

	"parkingsystem/internal/db"
)

type VehicleRequest struct {
	Plate        string `json:"plate"`
	VehicleClass string `json:"vehicle_class"`
	OwnerName    string `json:"owner_name"`
	OwnerEmail   string `json:"owner_email"`
	OwnerPhone   string `json:"owner_phone"`
}

type VehicleResponse struct {
	ID           string          `json:"id"`
	Plate        string          `json:"plate"`
	VehicleClass db.VehicleClass `json:"vehicle_class"`
	OwnerName    string          `json:"owner_name,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

func NewVehicleResponse(v db.Vehicle) VehicleResponse {
	return VehicleResponse{
		ID:           v.ID,
		Plate:        v.Plate,
		VehicleClass: v.VehicleClass,
		OwnerName:    v.OwnerName,
		CreatedAt:    v.CreatedAt,
	}
}
