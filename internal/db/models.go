package db

import (
	"time"

	"github.com/shopspring/decimal"
)

// VehicleClass selects both the rate schedule and the slot pool a vehicle uses.
type VehicleClass string

const (
	TwoWheeler  VehicleClass = "2-wheeler"
	FourWheeler VehicleClass = "4-wheeler"
	Commercial  VehicleClass = "commercial"
)

// AllVehicleClasses lists every class in display order.
var AllVehicleClasses = []VehicleClass{TwoWheeler, FourWheeler, Commercial}

func (c VehicleClass) Valid() bool {
	switch c {
	case TwoWheeler, FourWheeler, Commercial:
		return true
	}
	return false
}

type SessionStatus string

const (
	SessionOpen   SessionStatus = "open"
	SessionClosed SessionStatus = "closed"
)

type BillStatus string

const (
	BillNone    BillStatus = "none"
	BillPending BillStatus = "pending"
	BillPaid    BillStatus = "paid"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed:
		return true
	}
	return false
}

type PaymentMethod string

const (
	MethodCash   PaymentMethod = "cash"
	MethodCard   PaymentMethod = "card"
	MethodUPI    PaymentMethod = "upi"
	MethodOnline PaymentMethod = "online"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodUPI, MethodOnline:
		return true
	}
	return false
}

// RateSchedule is the four-tier price list for one vehicle class.
type RateSchedule struct {
	VehicleClass VehicleClass
	Hourly       decimal.Decimal
	Daily        decimal.Decimal
	Weekly       decimal.Decimal
	Monthly      decimal.Decimal
	UpdatedAt    time.Time
}

// ParkingArea carries capacity and occupancy per vehicle class.
// For every class 0 <= Occupied[class] <= Capacity[class].
type ParkingArea struct {
	ID        int64
	Name      string
	Capacity  map[VehicleClass]int
	Occupied  map[VehicleClass]int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Free returns the number of unoccupied slots for class.
func (a ParkingArea) Free(class VehicleClass) int {
	return a.Capacity[class] - a.Occupied[class]
}

type Vehicle struct {
	ID           string
	Plate        string
	VehicleClass VehicleClass
	OwnerName    string
	OwnerEmail   string
	OwnerPhone   string
	CreatedAt    time.Time
}

// ParkingSession is one stay of a vehicle in an area, from entry to exit.
type ParkingSession struct {
	ID           string
	VehicleID    string
	VehicleClass VehicleClass
	AreaID       int64
	EntryTime    time.Time
	ExitTime     *time.Time
	Status       SessionStatus
	BillAmount   decimal.Decimal
	BillStatus   BillStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Payment struct {
	ID         string
	SessionID  string
	Amount     decimal.Decimal
	Method     PaymentMethod
	Status     PaymentStatus
	GatewayRef string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Admin struct {
	ID           int64
	Email        string
	PasswordHash string
}
