package scheduler

import (
	"context"
	"fmt"
	"time"

	"ticketflow/internal/shared/config"
	"ticketflow/pkg/logger"
	"ticketflow/pkg/metrics"

	"github.com/go-co-op/gocron/v2"
)

// BookingSweeper releases pending bookings whose inventory hold ran out.
type BookingSweeper interface {
	ExpireOverdue(ctx context.Context, batchSize int) (int, error)
}

// PaymentSweeper closes abandoned payments and settles completed ones.
type PaymentSweeper interface {
	ExpireStale(ctx context.Context, batchSize int) (int, error)
	SettleCompleted(ctx context.Context, batchSize int) (int, error)
}

// WaitlistSweeper expires notification windows that lapsed without a booking.
type WaitlistSweeper interface {
	ExpireStaleNotifications(ctx context.Context) (int, error)
}

// Scheduler runs the recurring maintenance sweeps. Each sweep is independent;
// a failing or panicking sweep never takes the others down.
type Scheduler struct {
	cron     gocron.Scheduler
	cfg      *config.Config
	logger   *logger.Logger
	bookings BookingSweeper
	payments PaymentSweeper
	waitlist WaitlistSweeper
}

func New(
	cfg *config.Config,
	log *logger.Logger,
	bookings BookingSweeper,
	payments PaymentSweeper,
	waitlist WaitlistSweeper,
) (*Scheduler, error) {
	cron, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Scheduler{
		cron:     cron,
		cfg:      cfg,
		logger:   log,
		bookings: bookings,
		payments: payments,
		waitlist: waitlist,
	}, nil
}

// Start registers the sweeps and begins running them. A no-op when sweeps are
// disabled by configuration.
func (s *Scheduler) Start() error {
	if !s.cfg.Sweep.Enabled {
		s.logger.Info("background sweeps disabled")
		return nil
	}

	batch := s.cfg.Sweep.BatchSize

	jobs := []struct {
		name     string
		interval time.Duration
		run      func(ctx context.Context) (int, error)
	}{
		{
			name:     "booking_expiration",
			interval: s.cfg.Sweep.BookingExpiration,
			run: func(ctx context.Context) (int, error) {
				return s.bookings.ExpireOverdue(ctx, batch)
			},
		},
		{
			name:     "payment_staleness",
			interval: s.cfg.Sweep.PaymentStaleness,
			run: func(ctx context.Context) (int, error) {
				return s.payments.ExpireStale(ctx, batch)
			},
		},
		{
			name:     "settlement",
			interval: s.cfg.Sweep.Settlement,
			run: func(ctx context.Context) (int, error) {
				return s.payments.SettleCompleted(ctx, batch)
			},
		},
		{
			name:     "waitlist_expiration",
			interval: s.cfg.Sweep.WaitlistExpiration,
			run: func(ctx context.Context) (int, error) {
				return s.waitlist.ExpireStaleNotifications(ctx)
			},
		},
	}

	for _, job := range jobs {
		name, run := job.name, job.run
		_, err := s.cron.NewJob(
			gocron.DurationJob(job.interval),
			gocron.NewTask(func() {
				s.runSweep(name, run)
			}),
			gocron.WithName(name),
		)
		if err != nil {
			return fmt.Errorf("failed to register %s sweep: %w", name, err)
		}
	}

	s.cron.Start()
	s.logger.Info("background sweeps started")
	return nil
}

// Stop shuts the scheduler down, waiting for running sweeps to finish.
func (s *Scheduler) Stop() error {
	return s.cron.Shutdown()
}

func (s *Scheduler) runSweep(name string, run func(ctx context.Context) (int, error)) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sweep panicked", "sweep", name, "panic", fmt.Sprintf("%v", r))
		}
	}()

	ctx := context.Background()
	processed, err := run(ctx)
	metrics.RecordSweepRun(name, err)
	if err != nil {
		s.logger.ErrorWithContext(ctx, "sweep failed", err, map[string]interface{}{
			"sweep": name,
		})
		return
	}
	if processed > 0 {
		s.logger.InfoWithContext(ctx, "sweep completed", map[string]interface{}{
			"sweep":     name,
			"processed": processed,
		})
	}
}
