package entities

import (
	"time"

	"github.com/shopspring/decimal"

	"parkingsystem/internal/db"
)

type OpenSessionRequest struct {
	VehicleID    string `json:"vehicle_id"`
	VehicleClass string `json:"vehicle_class"` // optional, defaults to the registered class
	AreaID       int64  `json:"area_id"`
}

type CloseSessionRequest struct {
	Method string `json:"method"`
}

type SessionResponse struct {
	ID           string           `json:"id"`
	VehicleID    string           `json:"vehicle_id"`
	VehicleClass db.VehicleClass  `json:"vehicle_class"`
	AreaID       int64            `json:"area_id"`
	EntryTime    time.Time        `json:"entry_time"`
	ExitTime     *time.Time       `json:"exit_time,omitempty"`
	Status       db.SessionStatus `json:"status"`
	BillAmount   decimal.Decimal  `json:"bill_amount"`
	BillStatus   db.BillStatus    `json:"bill_status"`
}

type CloseSessionResponse struct {
	Session   SessionResponse `json:"session"`
	Fee       decimal.Decimal `json:"fee"`
	PaymentID string          `json:"payment_id"`
}

type QuoteResponse struct {
	SessionID string          `json:"session_id"`
	Hours     decimal.Decimal `json:"hours"`
	Fee       decimal.Decimal `json:"fee"`
	At        time.Time       `json:"at"`
}

type SessionsList struct {
	Total    int               `json:"total"`
	Sessions []SessionResponse `json:"sessions"`
}

func NewSessionResponse(s db.ParkingSession) SessionResponse {
	return SessionResponse{
		ID:           s.ID,
		VehicleID:    s.VehicleID,
		VehicleClass: s.VehicleClass,
		AreaID:       s.AreaID,
		EntryTime:    s.EntryTime,
		ExitTime:     s.ExitTime,
		Status:       s.Status,
		BillAmount:   s.BillAmount,
		BillStatus:   s.BillStatus,
	}
}
