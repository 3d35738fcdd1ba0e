package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"parkingsystem/internal/db"
	"parkingsystem/internal/repository"
	"parkingsystem/internal/repository/repotest"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	ctx      context.Context
	store    *repository.Store
	clock    *fakeClock
	ledger   *repository.OccupancyLedger
	rates    *repository.RateRepository
	payRepo  *repository.PaymentRepository
	sessions *SessionService
	payments *PaymentService
	admin    *AdminService
	vehicles *VehicleService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repotest.NewStore(t)
	clock := newFakeClock()

	ledger := repository.NewOccupancyLedger()
	sessionRepo := repository.NewSessionRepository(store)
	vehicleRepo := repository.NewVehicleRepository(store)
	rateRepo := repository.NewRateRepository(store)
	paymentRepo := repository.NewPaymentRepository(store)

	payments := NewPaymentService(store, paymentRepo, sessionRepo, vehicleRepo)
	sessions := NewSessionService(store, ledger, sessionRepo, vehicleRepo, rateRepo, payments)
	payments.SetBillSettler(sessions)
	admin := NewAdminService(store, repository.NewAreaRepository(store), rateRepo)
	vehicles := NewVehicleService(store, vehicleRepo)

	sessions.now = clock.Now
	payments.now = clock.Now
	admin.now = clock.Now
	vehicles.now = clock.Now

	return &fixture{
		ctx:      context.Background(),
		store:    store,
		clock:    clock,
		ledger:   ledger,
		rates:    rateRepo,
		payRepo:  paymentRepo,
		sessions: sessions,
		payments: payments,
		admin:    admin,
		vehicles: vehicles,
	}
}

func (f *fixture) occupied(t *testing.T, areaID int64, class db.VehicleClass) int {
	t.Helper()
	_, occupied, err := f.ledger.Counters(f.ctx, f.store.Q(), areaID, class)
	require.NoError(t, err)
	return occupied
}

func (f *fixture) paymentsFor(t *testing.T, sessionID string) []db.Payment {
	t.Helper()
	ps, err := f.payRepo.List(f.ctx, f.store.Q(), repository.PaymentFilter{SessionID: sessionID})
	require.NoError(t, err)
	return ps
}

// recordingNotifier collects receipts sent from PaymentService goroutines.
type recordingNotifier struct {
	mu       sync.Mutex
	receipts []Receipt
	sent     chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{sent: make(chan struct{}, 10)}
}

func (n *recordingNotifier) SendReceipt(r Receipt) {
	n.mu.Lock()
	n.receipts = append(n.receipts, r)
	n.mu.Unlock()
	n.sent <- struct{}{}
}

func (n *recordingNotifier) wait(t *testing.T) Receipt {
	t.Helper()
	select {
	case <-n.sent:
	case <-time.After(5 * time.Second):
		t.Fatal("receipt was not sent")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.receipts[len(n.receipts)-1]
}
