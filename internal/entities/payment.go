package entities

import (
	"time"

	"github.com/shopspring/decimal"

	"parkingsystem/internal/db"
)

type PaymentRequest struct {
	Method string `json:"method"`
}

type PaymentStatusRequest struct {
	Status string `json:"status"`
}

type PaymentResponse struct {
	ID        string           `json:"id"`
	SessionID string           `json:"session_id"`
	Amount    decimal.Decimal  `json:"amount"`
	Method    db.PaymentMethod `json:"method"`
	Status    db.PaymentStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type CheckoutResponse struct {
	CheckoutID  string `json:"checkout_id"`
	CheckoutURL string `json:"checkout_url"`
}

type StatusTotal struct {
	Status db.PaymentStatus `json:"status"`
	Count  int              `json:"count"`
	Amount decimal.Decimal  `json:"amount"`
}

type PaymentSummaryResponse struct {
	Totals    []StatusTotal   `json:"totals"`
	Collected decimal.Decimal `json:"collected"`
	Pending   decimal.Decimal `json:"pending"`
}

func NewPaymentResponse(p db.Payment) PaymentResponse {
	return PaymentResponse{
		ID:        p.ID,
		SessionID: p.SessionID,
		Amount:    p.Amount,
		Method:    p.Method,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
