package errors

import stderrors "errors"

// Business-rule conflicts. These are user-correctable and never retried.
var (
	ErrCapacityExceeded = stderrors.New("parking area is full for this vehicle class")
	ErrAlreadyParked    = stderrors.New("vehicle is already parked")
	ErrAlreadyClosed    = stderrors.New("parking session already closed")
	ErrSessionNotFound  = stderrors.New("parking session not found")
)

// Invariant violations. Reaching one of these means bookkeeping upstream is
// broken; callers log them and surface a generic message.
var (
	ErrInvalidDuration = stderrors.New("exit time is before entry time")
	ErrUnderflow       = stderrors.New("occupancy counter would go negative")
	ErrRateNotFound    = stderrors.New("no rate schedule configured for vehicle class")
)

var (
	ErrAreaNotFound       = stderrors.New("parking area not found")
	ErrPaymentNotFound    = stderrors.New("payment not found")
	ErrVehicleNotFound    = stderrors.New("vehicle not found")
	ErrInvalidInput       = stderrors.New("invalid input")
	ErrConflict           = stderrors.New("conflict")
	ErrGatewayUnavailable = stderrors.New("payment gateway not configured")
)
