package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkingsystem/internal/db"
	apperrors "parkingsystem/internal/errors"
	"parkingsystem/internal/repository"
	"parkingsystem/internal/repository/repotest"
)

func TestOpenAndCloseSession(t *testing.T) {
	f := newFixture(t)
	area := repotest.CreateArea(t, f.store, "Main", map[db.VehicleClass]int{db.FourWheeler: 2})
	car := repotest.CreateVehicle(t, f.store, db.FourWheeler)

	session, err := f.sessions.OpenSession(f.ctx, car.ID, "", area.ID)
	require.NoError(t, err)
	assert.Equal(t, db.SessionOpen, session.Status)
	assert.Equal(t, db.FourWheeler, session.VehicleClass)
	assert.WithinDuration(t, f.clock.Now(), session.EntryTime, 0)
	assert.Equal(t, 1, f.occupied(t, area.ID, db.FourWheeler))

	f.clock.Advance(2*time.Hour + 30*time.Minute)
	result, err := f.sessions.CloseSession(f.ctx, session.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "60.00", result.Fee.StringFixed(2))
	assert.Equal(t, 0, f.occupied(t, area.ID, db.FourWheeler))

	stored, err := f.sessions.GetSession(f.ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, db.SessionClosed, stored.Status)
	assert.Equal(t, db.BillPending, stored.BillStatus)
	assert.True(t, result.Fee.Equal(stored.BillAmount))
	require.NotNil(t, stored.ExitTime)
	assert.WithinDuration(t, f.clock.Now(), *stored.ExitTime, 0)

	payments := f.paymentsFor(t, session.ID)
	require.Len(t, payments, 1)
	assert.Equal(t, result.PaymentID, payments[0].ID)
	assert.Equal(t, db.PaymentPending, payments[0].Status)
	assert.Equal(t, db.MethodCash, payments[0].Method)
	assert.True(t, result.Fee.Equal(payments[0].Amount))
}

func TestOpenSessionRejectsSecondOpenSession(t *testing.T) {
	f := newFixture(t)
	a := repotest.CreateArea(t, f.store, "A", map[db.VehicleClass]int{db.FourWheeler: 5})
	b := repotest.CreateArea(t, f.store, "B", map[db.VehicleClass]int{db.FourWheeler: 5})
	car := repotest.CreateVehicle(t, f.store, db.FourWheeler)

	_, err := f.sessions.OpenSession(f.ctx, car.ID, db.FourWheeler, a.ID)
	require.NoError(t, err)

	_, err = f.sessions.OpenSession(f.ctx, car.ID, db.FourWheeler, b.ID)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyParked)
	assert.Equal(t, 0, f.occupied(t, b.ID, db.FourWheeler))
	assert.Equal(t, 1, f.occupied(t, a.ID, db.FourWheeler))
}

func TestOpenSessionFullArea(t *testing.T) {
	f := newFixture(t)
	area := repotest.CreateArea(t, f.store, "Tiny", map[db.VehicleClass]int{db.FourWheeler: 1, db.TwoWheeler: 1})
	first := repotest.CreateVehicle(t, f.store, db.FourWheeler)
	second := repotest.CreateVehicle(t, f.store, db.FourWheeler)
	bike := repotest.CreateVehicle(t, f.store, db.TwoWheeler)

	_, err := f.sessions.OpenSession(f.ctx, first.ID, "", area.ID)
	require.NoError(t, err)

	_, err = f.sessions.OpenSession(f.ctx, second.ID, "", area.ID)
	require.ErrorIs(t, err, apperrors.ErrCapacityExceeded)
	assert.Equal(t, "parking area is full for this vehicle class", err.Error())

	_, err = f.sessions.OpenSession(f.ctx, bike.ID, "", area.ID)
	assert.NoError(t, err, "classes have separate slot pools")

	open, err := f.sessions.ListSessions(f.ctx, repository.SessionFilter{Status: db.SessionOpen})
	require.NoError(t, err)
	assert.Len(t, open, 2)
}

func TestOpenSessionValidation(t *testing.T) {
	f := newFixture(t)
	area := repotest.CreateArea(t, f.store, "Main", map[db.VehicleClass]int{db.FourWheeler: 1})
	car := repotest.CreateVehicle(t, f.store, db.FourWheeler)

	_, err := f.sessions.OpenSession(f.ctx, "", db.FourWheeler, area.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.sessions.OpenSession(f.ctx, car.ID, "hovercraft", area.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.sessions.OpenSession(f.ctx, car.ID, db.TwoWheeler, area.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.sessions.OpenSession(f.ctx, "no-such-vehicle", db.FourWheeler, area.ID)
	assert.ErrorIs(t, err, apperrors.ErrVehicleNotFound)

	_, err = f.sessions.OpenSession(f.ctx, car.ID, db.FourWheeler, area.ID+100)
	assert.ErrorIs(t, err, apperrors.ErrAreaNotFound)

	assert.Equal(t, 0, f.occupied(t, area.ID, db.FourWheeler))
}

func TestConcurrentOpenForLastSlot(t *testing.T) {
	f := newFixture(t)
	area := repotest.CreateArea(t, f.store, "Last slot", map[db.VehicleClass]int{db.FourWheeler: 1})

	const n = 10
	cars := make([]*db.Vehicle, n)
	for i := range cars {
		cars[i] = repotest.CreateVehicle(t, f.store, db.FourWheeler)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   int
		full int
	)
	for _, car := range cars {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.sessions.OpenSession(f.ctx, id, db.FourWheeler, area.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, apperrors.ErrCapacityExceeded):
				full++
			}
		}(car.ID)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, full)
	assert.Equal(t, 1, f.occupied(t, area.ID, db.FourWheeler))
}

func TestConcurrentOpenSameVehicle(t *testing.T) {
	f := newFixture(t)
	area := repotest.CreateArea(t, f.store, "Main", map[db.VehicleClass]int{db.FourWheeler: 10})
	car := repotest.CreateVehicle(t, f.store, db.FourWheeler)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.sessions.OpenSession(f.ctx, car.ID, "", area.ID); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, apperrors.ErrAlreadyParked)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, f.occupied(t, area.ID, db.FourWheeler))
}

func TestCloseSessionTwice(t *testing.T) {
	f := newFixture(t)
	area := repotest.CreateArea(t, f.store, "Main", map[db.VehicleClass]int{db.TwoWheeler: 3})
	bike := repotest.CreateVehicle(t, f.store, db.TwoWheeler)

	session, err := f.sessions.OpenSession(f.ctx, bike.ID, "", area.ID)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		closed  int
		already int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.sessions.CloseSession(f.ctx, session.ID, db.MethodUPI)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				closed++
			} else if assert.ErrorIs(t, err, apperrors.ErrAlreadyClosed) {
				already++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, closed)
	assert.Equal(t, 3, already)
	assert.Equal(t, 0, f.occupied(t, area.ID, db.TwoWheeler))
	assert.Len(t, f.paymentsFor(t, session.ID), 1)
}

func TestCloseUnknownSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.sessions.CloseSession(f.ctx, "missing", "")
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	_, err = f.sessions.CloseSession(f.ctx, "missing", "cheque")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// assertStillOpen checks that a failed close left no trace.
func assertStillOpen(t *testing.T, f *fixture, session *db.ParkingSession, occupied int) {
	t.Helper()
	stored, err := f.sessions.GetSession(f.ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, db.SessionOpen, stored.Status)
	assert.Equal(t, db.BillNone, stored.BillStatus)
	assert.Nil(t, stored.ExitTime)
	assert.Equal(t, occupied, f.occupied(t, session.AreaID, session.VehicleClass))
	assert.Empty(t, f.paymentsFor(t, session.ID))
}

func TestCloseSessionMissingRateChangesNothing(t *testing.T) {
	f := newFixture(t)
	area := repotest.CreateArea(t, f.store, "Main", map[db.VehicleClass]int{db.Commercial: 2})
	truck := repotest.CreateVehicle(t, f.store, db.Commercial)

	session, err := f.sessions.OpenSession(f.ctx, truck.ID, "", area.ID)
	require.NoError(t, err)
	require.NoError(t, f.rates.Delete(f.ctx, f.store.Q(), db.Commercial))
	f.clock.Advance(3 * time.Hour)

	_, err = f.sessions.CloseSession(f.ctx, session.ID, "")
	assert.ErrorIs(t, err, apperrors.ErrRateNotFound)
	assertStillOpen(t, f, session, 1)
}

func TestCloseSessionUnderflowChangesNothing(t *testing.T) {
	f := newFixture(t)
	area := repotest.CreateArea(t, f.store, "Main", map[db.VehicleClass]int{db.FourWheeler: 2})
	car := repotest.CreateVehicle(t, f.store, db.FourWheeler)

	session, err := f.sessions.OpenSession(f.ctx, car.ID, "", area.ID)
	require.NoError(t, err)
	repotest.SetOccupied(t, f.store, area.ID, db.FourWheeler, 0)
	f.clock.Advance(time.Hour)

	_, err = f.sessions.CloseSession(f.ctx, session.ID, "")
	assert.ErrorIs(t, err, apperrors.ErrUnderflow)
	assertStillOpen(t, f, session, 0)
}

type failingRecorder struct{ err error }

func (r failingRecorder) CreatePayment(context.Context, repository.Querier, string, decimal.Decimal, db.PaymentMethod) (string, error) {
	return "", r.err
}

func TestCloseSessionPaymentFailureChangesNothing(t *testing.T) {
	f := newFixture(t)
	area := repotest.CreateArea(t, f.store, "Main", map[db.VehicleClass]int{db.FourWheeler: 2})
	car := repotest.CreateVehicle(t, f.store, db.FourWheeler)

	session, err := f.sessions.OpenSession(f.ctx, car.ID, "", area.ID)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Hour)

	recorder := f.sessions.payments
	errInsert := errors.New("payments table unavailable")
	f.sessions.payments = failingRecorder{err: errInsert}

	_, err = f.sessions.CloseSession(f.ctx, session.ID, db.MethodCash)
	assert.ErrorIs(t, err, errInsert)
	assertStillOpen(t, f, session, 1)

	f.sessions.payments = recorder
	result, err := f.sessions.CloseSession(f.ctx, session.ID, db.MethodCash)
	require.NoError(t, err)
	assert.Equal(t, db.SessionClosed, result.Session.Status)
	assert.Equal(t, 0, f.occupied(t, area.ID, db.FourWheeler))
	assert.Len(t, f.paymentsFor(t, session.ID), 1)
}

func TestCloseSessionClockBeforeEntry(t *testing.T) {
	f := newFixture(t)
	area := repotest.CreateArea(t, f.store, "Main", map[db.VehicleClass]int{db.FourWheeler: 2})
	car := repotest.CreateVehicle(t, f.store, db.FourWheeler)

	session, err := f.sessions.OpenSession(f.ctx, car.ID, "", area.ID)
	require.NoError(t, err)
	f.clock.Advance(-time.Minute)

	_, err = f.sessions.CloseSession(f.ctx, session.ID, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidDuration)
	assertStillOpen(t, f, session, 1)
}

func TestCloseSessionUsesCurrentRates(t *testing.T) {
	f := newFixture(t)
	area := repotest.CreateArea(t, f.store, "Main", map[db.VehicleClass]int{db.FourWheeler: 2})
	car := repotest.CreateVehicle(t, f.store, db.FourWheeler)

	session, err := f.sessions.OpenSession(f.ctx, car.ID, "", area.ID)
	require.NoError(t, err)

	_, err = f.admin.UpdateRate(f.ctx, db.RateSchedule{
		VehicleClass: db.FourWheeler,
		Hourly:       decimal.NewFromInt(25),
		Daily:        decimal.NewFromInt(200),
		Weekly:       decimal.NewFromInt(1000),
		Monthly:      decimal.NewFromInt(3000),
	})
	require.NoError(t, err)
	f.clock.Advance(30 * time.Hour)

	result, err := f.sessions.CloseSession(f.ctx, session.ID, db.MethodCard)
	require.NoError(t, err)
	assert.Equal(t, "400.00", result.Fee.StringFixed(2))
}

func TestQuoteFee(t *testing.T) {
	f := newFixture(t)
	area := repotest.CreateArea(t, f.store, "Main", map[db.VehicleClass]int{db.FourWheeler: 2})
	car := repotest.CreateVehicle(t, f.store, db.FourWheeler)

	session, err := f.sessions.OpenSession(f.ctx, car.ID, "", area.ID)
	require.NoError(t, err)
	f.clock.Advance(25 * time.Hour)

	quote, err := f.sessions.QuoteFee(f.ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "300.00", quote.Fee.StringFixed(2))
	assert.Equal(t, "25", quote.Hours.String())
	assert.WithinDuration(t, f.clock.Now(), quote.At, 0)
	assertStillOpen(t, f, session, 1)

	_, err = f.sessions.CloseSession(f.ctx, session.ID, "")
	require.NoError(t, err)
	_, err = f.sessions.QuoteFee(f.ctx, session.ID)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyClosed)
}

func TestActiveSessionForVehicle(t *testing.T) {
	f := newFixture(t)
	area := repotest.CreateArea(t, f.store, "Main", map[db.VehicleClass]int{db.FourWheeler: 2})
	car := repotest.CreateVehicle(t, f.store, db.FourWheeler)

	_, err := f.sessions.ActiveSessionForVehicle(f.ctx, car.ID)
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	session, err := f.sessions.OpenSession(f.ctx, car.ID, "", area.ID)
	require.NoError(t, err)
	active, err := f.sessions.ActiveSessionForVehicle(f.ctx, car.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, active.ID)

	_, err = f.sessions.CloseSession(f.ctx, session.ID, "")
	require.NoError(t, err)
	_, err = f.sessions.ActiveSessionForVehicle(f.ctx, car.ID)
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	// The same vehicle can park again once its session is closed.
	_, err = f.sessions.OpenSession(f.ctx, car.ID, "", area.ID)
	assert.NoError(t, err)
}

func TestListSessionsRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	_, err := f.sessions.ListSessions(f.ctx, repository.SessionFilter{Status: "parked"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
