package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"parkingsystem/internal/repository"
)

type JobService struct {
	Repo          *repository.JobRepository
	PaymentExpiry time.Duration
	now           func() time.Time
}

func NewJobService(repo *repository.JobRepository, paymentExpiry time.Duration) *JobService {
	return &JobService{
		Repo:          repo,
		PaymentExpiry: paymentExpiry,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// ReconcileOccupancy reports area/class counters that disagree with the
// number of open sessions. Counters are never corrected here: a drift means
// a bookkeeping bug that needs investigation.
func (s *JobService) ReconcileOccupancy(ctx context.Context) (int, error) {
	log.Println("Cron Job: Checking occupancy counters against open sessions...")

	drifts, err := s.Repo.OccupancyDrifts(ctx)
	if err != nil {
		return 0, fmt.Errorf("cron job: failed to load occupancy counters: %w", err)
	}
	if len(drifts) == 0 {
		log.Println("Cron Job: Occupancy counters match open sessions.")
		return 0, nil
	}

	for _, d := range drifts {
		log.Printf("Cron Job: occupancy drift in area %d class %s: counter %d, open sessions %d, capacity %d",
			d.AreaID, d.VehicleClass, d.Occupied, d.OpenSessions, d.Capacity)
	}
	return len(drifts), nil
}

// ExpireStalePayments fails online payments that stayed pending longer than
// the checkout window. An operator can still re-flag them by hand.
func (s *JobService) ExpireStalePayments(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.PaymentExpiry)
	ids, err := s.Repo.StalePaymentIDs(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cron job: failed to get stale payments: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	log.Printf("Cron Job: Found %d online payments pending since before %s. IDs: %v", len(ids), cutoff.Format(time.RFC3339), ids)
	n, err := s.Repo.FailPendingPayments(ctx, ids, s.now())
	if err != nil {
		return 0, fmt.Errorf("cron job: failed to expire payments: %w", err)
	}
	log.Printf("Cron Job: Marked %d payments as failed.", n)
	return n, nil
}

// Schedule registers both jobs on c.
func (s *JobService) Schedule(c *cron.Cron, reconcileSpec, expirySpec string) error {
	if _, err := c.AddFunc(reconcileSpec, func() {
		if _, err := s.ReconcileOccupancy(context.Background()); err != nil {
			log.Printf("Cron Job: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", reconcileSpec, err)
	}
	if _, err := c.AddFunc(expirySpec, func() {
		if _, err := s.ExpireStalePayments(context.Background()); err != nil {
			log.Printf("Cron Job: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid payment expiry schedule %q: %w", expirySpec, err)
	}
	return nil
}
