package entities

import (
	"time"

	"parkingsystem/internal/db"
)

// SlotAvailability is the state of one vehicle class inside an area.
type SlotAvailability struct {
	VehicleClass db.VehicleClass `json:"vehicle_class"`
	Capacity     int             `json:"capacity"`
	Occupied     int             `json:"occupied"`
	Free         int             `json:"free"`
}

type AreaResponse struct {
	ID        int64              `json:"id"`
	Name      string             `json:"name"`
	Slots     []SlotAvailability `json:"slots"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type AreaRequest struct {
	Name     string                  `json:"name"`
	Capacity map[db.VehicleClass]int `json:"capacity"`
}

func NewAreaResponse(a db.ParkingArea) AreaResponse {
	resp := AreaResponse{ID: a.ID, Name: a.Name, UpdatedAt: a.UpdatedAt}
	for _, class := range db.AllVehicleClasses {
		resp.Slots = append(resp.Slots, SlotAvailability{
			VehicleClass: class,
			Capacity:     a.Capacity[class],
			Occupied:     a.Occupied[class],
			Free:         a.Free(class),
		})
	}
	return resp
}
