package entities

import (
	"time"

	"github.com/shopspring/decimal"

	"parkingsystem/internal/db"
)

type RateResponse struct {
	VehicleClass db.VehicleClass `json:"vehicle_class"`
	Hourly       decimal.Decimal `json:"hourly"`
	Daily        decimal.Decimal `json:"daily"`
	Weekly       decimal.Decimal `json:"weekly"`
	Monthly      decimal.Decimal `json:"monthly"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type RateRequest struct {
	Hourly  decimal.Decimal `json:"hourly"`
	Daily   decimal.Decimal `json:"daily"`
	Weekly  decimal.Decimal `json:"weekly"`
	Monthly decimal.Decimal `json:"monthly"`
}

func NewRateResponse(r db.RateSchedule) RateResponse {
	return RateResponse{
		VehicleClass: r.VehicleClass,
		Hourly:       r.Hourly,
		Daily:        r.Daily,
		Weekly:       r.Weekly,
		Monthly:      r.Monthly,
		UpdatedAt:    r.UpdatedAt,
	}
}
