package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"parkingsystem/internal/db"
	apperrors "parkingsystem/internal/errors"
	"parkingsystem/internal/repository"
)

// BillSettler is told when a session's payment completes.
type BillSettler interface {
	SettleBill(ctx context.Context, q repository.Querier, sessionID string) error
}

// CheckoutGateway starts a hosted checkout for an online payment.
type CheckoutGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

type CheckoutRequest struct {
	PaymentID     string
	Amount        decimal.Decimal
	Description   string
	CustomerEmail string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// ReceiptNotifier delivers payment receipts. Implementations must not block
// on slow providers for long; failures are only logged.
type ReceiptNotifier interface {
	SendReceipt(r Receipt)
}

// Receipt is everything the notifier needs about a settled stay.
type Receipt struct {
	PaymentID  string
	SessionID  string
	Plate      string
	OwnerName  string
	OwnerEmail string
	OwnerPhone string
	AreaID     int64
	EntryTime  time.Time
	ExitTime   time.Time
	Amount     decimal.Decimal
	Method     db.PaymentMethod
}

// PaymentSummary is the per-status breakdown shown to operators.
type PaymentSummary struct {
	Totals    []repository.StatusTotal
	Collected decimal.Decimal
	Pending   decimal.Decimal
}

type PaymentService struct {
	store    *repository.Store
	payments *repository.PaymentRepository
	sessions *repository.SessionRepository
	vehicles *repository.VehicleRepository
	settler  BillSettler
	gateway  CheckoutGateway
	notifier ReceiptNotifier
	now      func() time.Time
}

func NewPaymentService(store *repository.Store, payments *repository.PaymentRepository,
	sessions *repository.SessionRepository, vehicles *repository.VehicleRepository) *PaymentService {
	return &PaymentService{
		store:    store,
		payments: payments,
		sessions: sessions,
		vehicles: vehicles,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetBillSettler wires the session side of MarkStatus. The two services
// reference each other, so this is done after both exist.
func (s *PaymentService) SetBillSettler(settler BillSettler) {
	s.settler = settler
}

func (s *PaymentService) SetGateway(gateway CheckoutGateway) {
	s.gateway = gateway
}

func (s *PaymentService) SetNotifier(notifier ReceiptNotifier) {
	s.notifier = notifier
}

// CreatePayment persists a pending payment inside the caller's transaction.
func (s *PaymentService) CreatePayment(ctx context.Context, q repository.Querier, sessionID string, amount decimal.Decimal, method db.PaymentMethod) (string, error) {
	if amount.IsNegative() {
		return "", fmt.Errorf("%w: negative payment amount %s", apperrors.ErrInvalidInput, amount)
	}
	if !method.Valid() {
		return "", fmt.Errorf("%w: unknown payment method %q", apperrors.ErrInvalidInput, method)
	}
	now := s.now()
	p := &db.Payment{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Amount:    amount,
		Method:    method,
		Status:    db.PaymentPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.payments.Insert(ctx, q, p); err != nil {
		return "", err
	}
	return p.ID, nil
}

// EnsurePayment returns the live payment of a closed session, creating a new
// pending one when there is none or the last attempt failed.
func (s *PaymentService) EnsurePayment(ctx context.Context, sessionID string, method db.PaymentMethod) (*db.Payment, error) {
	if method != "" && !method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", apperrors.ErrInvalidInput, method)
	}

	var payment *db.Payment
	err := s.store.WithTx(ctx, func(q repository.Querier) error {
		session, err := s.sessions.Get(ctx, q, sessionID, true)
		if err != nil {
			return err
		}
		if session.Status != db.SessionClosed {
			return fmt.Errorf("%w: session %s is still open", apperrors.ErrConflict, sessionID)
		}

		latest, err := s.payments.LatestForSession(ctx, q, sessionID)
		if err != nil {
			return err
		}
		if latest != nil && (latest.Status != db.PaymentFailed || session.BillStatus == db.BillPaid) {
			payment = latest
			return nil
		}
		if session.BillStatus == db.BillPaid {
			return fmt.Errorf("%w: session %s is already paid", apperrors.ErrConflict, sessionID)
		}

		m := method
		if m == "" {
			m = db.MethodCash
			if latest != nil {
				m = latest.Method
			}
		}
		id, err := s.CreatePayment(ctx, q, sessionID, session.BillAmount, m)
		if err != nil {
			return err
		}
		payment, err = s.payments.Get(ctx, q, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// MarkStatus records the outcome of a payment. Completing it settles the
// session's bill in the same transaction and sends a receipt afterwards.
// Moving a completed payment back to another status does not reopen the bill.
func (s *PaymentService) MarkStatus(ctx context.Context, paymentID string, status db.PaymentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown payment status %q", apperrors.ErrInvalidInput, status)
	}

	var (
		payment      *db.Payment
		newlySettled bool
	)
	err := s.store.WithTx(ctx, func(q repository.Querier) error {
		p, err := s.payments.Get(ctx, q, paymentID, true)
		if err != nil {
			return err
		}
		if p.Status == status {
			payment = p
			return nil
		}
		if err := s.payments.UpdateStatus(ctx, q, p.ID, status, s.now()); err != nil {
			return err
		}
		if status == db.PaymentCompleted {
			if s.settler == nil {
				return fmt.Errorf("payment %s completed but no bill settler is configured", p.ID)
			}
			if err := s.settler.SettleBill(ctx, q, p.SessionID); err != nil {
				return err
			}
			newlySettled = true
		}
		p.Status = status
		payment = p
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("Payment: %s marked %s", paymentID, status)
	if newlySettled {
		s.sendReceipt(ctx, payment)
	}
	return nil
}

// MarkStatusByGatewayRef is the entry point for gateway callbacks, which only
// know their own checkout reference.
func (s *PaymentService) MarkStatusByGatewayRef(ctx context.Context, ref string, status db.PaymentStatus) error {
	p, err := s.payments.GetByGatewayRef(ctx, s.store.Q(), ref)
	if err != nil {
		return err
	}
	return s.MarkStatus(ctx, p.ID, status)
}

// StartCheckout opens a hosted checkout for a pending online payment and
// remembers its reference for the webhook.
func (s *PaymentService) StartCheckout(ctx context.Context, paymentID string) (*CheckoutSession, error) {
	if s.gateway == nil {
		return nil, apperrors.ErrGatewayUnavailable
	}

	q := s.store.Q()
	p, err := s.payments.Get(ctx, q, paymentID, false)
	if err != nil {
		return nil, err
	}
	if p.Method != db.MethodOnline {
		return nil, fmt.Errorf("%w: payment %s is a %s payment", apperrors.ErrInvalidInput, p.ID, p.Method)
	}
	if p.Status != db.PaymentPending {
		return nil, fmt.Errorf("%w: payment %s is %s", apperrors.ErrConflict, p.ID, p.Status)
	}

	session, err := s.sessions.Get(ctx, q, p.SessionID, false)
	if err != nil {
		return nil, err
	}
	vehicle, err := s.vehicles.Get(ctx, q, session.VehicleID)
	if err != nil {
		return nil, err
	}

	checkout, err := s.gateway.CreateCheckoutSession(ctx, CheckoutRequest{
		PaymentID:     p.ID,
		Amount:        p.Amount,
		Description:   fmt.Sprintf("Parking %s, area %d", vehicle.Plate, session.AreaID),
		CustomerEmail: vehicle.OwnerEmail,
	})
	if err != nil {
		return nil, fmt.Errorf("creating checkout for payment %s: %w", p.ID, err)
	}
	if err := s.payments.SetGatewayRef(ctx, q, p.ID, checkout.ID, s.now()); err != nil {
		return nil, err
	}
	return checkout, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, paymentID string) (*db.Payment, error) {
	return s.payments.Get(ctx, s.store.Q(), paymentID, false)
}

// GetPaymentByGatewayRef looks a payment up by its checkout reference, for
// the page the gateway redirects back to.
func (s *PaymentService) GetPaymentByGatewayRef(ctx context.Context, ref string) (*db.Payment, error) {
	return s.payments.GetByGatewayRef(ctx, s.store.Q(), ref)
}

func (s *PaymentService) ListPayments(ctx context.Context, filter repository.PaymentFilter) ([]db.Payment, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown payment status %q", apperrors.ErrInvalidInput, filter.Status)
	}
	if filter.Method != "" && !filter.Method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", apperrors.ErrInvalidInput, filter.Method)
	}
	return s.payments.List(ctx, s.store.Q(), filter)
}

func (s *PaymentService) Summary(ctx context.Context) (*PaymentSummary, error) {
	totals, err := s.payments.Totals(ctx, s.store.Q())
	if err != nil {
		return nil, err
	}
	summary := &PaymentSummary{Totals: totals}
	for _, t := range totals {
		switch t.Status {
		case db.PaymentCompleted:
			summary.Collected = summary.Collected.Add(t.Amount)
		case db.PaymentPending:
			summary.Pending = summary.Pending.Add(t.Amount)
		}
	}
	return summary, nil
}

func (s *PaymentService) sendReceipt(ctx context.Context, p *db.Payment) {
	if s.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		q := s.store.Q()
		session, err := s.sessions.Get(ctx, q, p.SessionID, false)
		if err != nil {
			log.Printf("Payment: receipt for %s not sent, loading session: %v", p.ID, err)
			return
		}
		vehicle, err := s.vehicles.Get(ctx, q, session.VehicleID)
		if err != nil {
			log.Printf("Payment: receipt for %s not sent, loading vehicle: %v", p.ID, err)
			return
		}
		if vehicle.OwnerEmail == "" && vehicle.OwnerPhone == "" {
			return
		}
		r := Receipt{
			PaymentID:  p.ID,
			SessionID:  session.ID,
			Plate:      vehicle.Plate,
			OwnerName:  vehicle.OwnerName,
			OwnerEmail: vehicle.OwnerEmail,
			OwnerPhone: vehicle.OwnerPhone,
			AreaID:     session.AreaID,
			EntryTime:  session.EntryTime,
			Amount:     p.Amount,
			Method:     p.Method,
		}
		if session.ExitTime != nil {
			r.ExitTime = *session.ExitTime
		}
		s.notifier.SendReceipt(r)
	}()
}
