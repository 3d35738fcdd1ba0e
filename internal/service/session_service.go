package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"parkingsystem/internal/db"
	apperrors "parkingsystem/internal/errors"
	"parkingsystem/internal/pricing"
	"parkingsystem/internal/repository"
)

// PaymentRecorder creates the pending payment for a closed session inside
// the caller's transaction.
type PaymentRecorder interface {
	CreatePayment(ctx context.Context, q repository.Querier, sessionID string, amount decimal.Decimal, method db.PaymentMethod) (string, error)
}

// CloseResult is what a vehicle owes on exit.
type CloseResult struct {
	Session   *db.ParkingSession
	Fee       decimal.Decimal
	PaymentID string
}

// Quote is the fee a vehicle would pay if it left at At.
type Quote struct {
	Session *db.ParkingSession
	Hours   decimal.Decimal
	Fee     decimal.Decimal
	At      time.Time
}

type SessionService struct {
	store    *repository.Store
	ledger   *repository.OccupancyLedger
	sessions *repository.SessionRepository
	vehicles *repository.VehicleRepository
	rates    *repository.RateRepository
	payments PaymentRecorder
	now      func() time.Time
}

func NewSessionService(store *repository.Store, ledger *repository.OccupancyLedger, sessions *repository.SessionRepository,
	vehicles *repository.VehicleRepository, rates *repository.RateRepository, payments PaymentRecorder) *SessionService {
	return &SessionService{
		store:    store,
		ledger:   ledger,
		sessions: sessions,
		vehicles: vehicles,
		rates:    rates,
		payments: payments,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// OpenSession parks a vehicle: it checks the vehicle has no open session,
// reserves a slot and persists the session, all in one transaction. An empty
// class means the vehicle's registered class.
func (s *SessionService) OpenSession(ctx context.Context, vehicleID string, class db.VehicleClass, areaID int64) (*db.ParkingSession, error) {
	if vehicleID == "" {
		return nil, fmt.Errorf("%w: vehicle_id is required", apperrors.ErrInvalidInput)
	}
	if class != "" && !class.Valid() {
		return nil, fmt.Errorf("%w: unknown vehicle class %q", apperrors.ErrInvalidInput, class)
	}

	var session *db.ParkingSession
	err := s.store.WithTx(ctx, func(q repository.Querier) error {
		vehicle, err := s.vehicles.Get(ctx, q, vehicleID)
		if err != nil {
			return err
		}
		vc := class
		if vc == "" {
			vc = vehicle.VehicleClass
		}
		if vc != vehicle.VehicleClass {
			return fmt.Errorf("%w: vehicle %s is registered as %s, not %s",
				apperrors.ErrInvalidInput, vehicle.Plate, vehicle.VehicleClass, vc)
		}

		open, err := s.sessions.OpenForVehicle(ctx, q, vehicleID)
		if err != nil {
			return err
		}
		if open != nil {
			return apperrors.ErrAlreadyParked
		}

		if err := s.ledger.TryReserve(ctx, q, areaID, vc); err != nil {
			return err
		}

		now := s.now()
		session = &db.ParkingSession{
			ID:           uuid.NewString(),
			VehicleID:    vehicleID,
			VehicleClass: vc,
			AreaID:       areaID,
			EntryTime:    now,
			Status:       db.SessionOpen,
			BillAmount:   decimal.Zero,
			BillStatus:   db.BillNone,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return s.sessions.Insert(ctx, q, session)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Session: opened %s for vehicle %s in area %d (%s)", session.ID, vehicleID, areaID, session.VehicleClass)
	return session, nil
}

// CloseSession prices the stay, frees the slot, closes the session and
// records a pending payment. If any step fails the session stays open and
// the slot stays taken.
func (s *SessionService) CloseSession(ctx context.Context, sessionID string, method db.PaymentMethod) (*CloseResult, error) {
	if method == "" {
		method = db.MethodCash
	}
	if !method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", apperrors.ErrInvalidInput, method)
	}

	var result *CloseResult
	err := s.store.WithTx(ctx, func(q repository.Querier) error {
		session, err := s.sessions.Get(ctx, q, sessionID, true)
		if err != nil {
			return err
		}
		if session.Status != db.SessionOpen {
			return fmt.Errorf("%w: %s", apperrors.ErrAlreadyClosed, sessionID)
		}

		exit := s.now()
		table, err := s.rates.LoadTable(ctx, q)
		if err != nil {
			return err
		}
		fee, err := pricing.ComputeFee(session.EntryTime, exit, session.VehicleClass, table)
		if err != nil {
			s.logDefect("pricing", session, exit, err)
			return err
		}

		if err := s.ledger.Release(ctx, q, session.AreaID, session.VehicleClass); err != nil {
			if errors.Is(err, apperrors.ErrUnderflow) {
				s.logDefect("releasing slot", session, exit, err)
			}
			return err
		}

		if err := s.sessions.Close(ctx, q, session.ID, exit, fee); err != nil {
			return err
		}

		paymentID, err := s.payments.CreatePayment(ctx, q, session.ID, fee, method)
		if err != nil {
			return err
		}

		session.Status = db.SessionClosed
		session.ExitTime = &exit
		session.BillAmount = fee
		session.BillStatus = db.BillPending
		session.UpdatedAt = exit
		result = &CloseResult{Session: session, Fee: fee, PaymentID: paymentID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Session: closed %s, fee %s, payment %s", sessionID, result.Fee.StringFixed(2), result.PaymentID)
	return result, nil
}

// QuoteFee prices an open session as if it ended now. Nothing is written.
func (s *SessionService) QuoteFee(ctx context.Context, sessionID string) (*Quote, error) {
	q := s.store.Q()
	session, err := s.sessions.Get(ctx, q, sessionID, false)
	if err != nil {
		return nil, err
	}
	if session.Status != db.SessionOpen {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrAlreadyClosed, sessionID)
	}

	at := s.now()
	table, err := s.rates.LoadTable(ctx, q)
	if err != nil {
		return nil, err
	}
	fee, err := pricing.ComputeFee(session.EntryTime, at, session.VehicleClass, table)
	if err != nil {
		s.logDefect("quoting", session, at, err)
		return nil, err
	}
	return &Quote{
		Session: session,
		Hours:   pricing.Hours(session.EntryTime, at).Round(2),
		Fee:     fee,
		At:      at,
	}, nil
}

func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*db.ParkingSession, error) {
	return s.sessions.Get(ctx, s.store.Q(), sessionID, false)
}

func (s *SessionService) ListSessions(ctx context.Context, filter repository.SessionFilter) ([]db.ParkingSession, error) {
	if filter.Status != "" && filter.Status != db.SessionOpen && filter.Status != db.SessionClosed {
		return nil, fmt.Errorf("%w: unknown session status %q", apperrors.ErrInvalidInput, filter.Status)
	}
	return s.sessions.List(ctx, s.store.Q(), filter)
}

// ActiveSessionForVehicle fails with ErrSessionNotFound when the vehicle is
// not parked.
func (s *SessionService) ActiveSessionForVehicle(ctx context.Context, vehicleID string) (*db.ParkingSession, error) {
	session, err := s.sessions.OpenForVehicle(ctx, s.store.Q(), vehicleID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("%w: vehicle %s is not parked", apperrors.ErrSessionNotFound, vehicleID)
	}
	return session, nil
}

// SettleBill marks the session's bill as paid. PaymentService calls it from
// inside its own transaction when a payment completes.
func (s *SessionService) SettleBill(ctx context.Context, q repository.Querier, sessionID string) error {
	return s.sessions.SetBillStatus(ctx, q, sessionID, db.BillPaid, s.now())
}

func (s *SessionService) logDefect(step string, session *db.ParkingSession, at time.Time, err error) {
	log.Printf("Session: invariant violation while %s session %s (vehicle %s, area %d, class %s, entry %s, at %s): %v",
		step, session.ID, session.VehicleID, session.AreaID, session.VehicleClass,
		session.EntryTime.Format(time.RFC3339), at.Format(time.RFC3339), err)
}
