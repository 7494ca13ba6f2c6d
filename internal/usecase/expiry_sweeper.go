package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cinema-reservation/internal/data/entity"
	"cinema-reservation/internal/data/repository"
	"cinema-reservation/internal/event"
	"cinema-reservation/pkg/clock"
	"cinema-reservation/pkg/utils"

	"go.uber.org/zap"
)

// SweepReport summarises one sweeper pass.
type SweepReport struct {
	Scanned   int
	Processed int
	Skipped   int // changed state between the query and the row lock
	Failed    int
}

// ExpirySweeper reconciles durable state only. It never reads the hold
// store, so it keeps working when Redis is down.
type ExpirySweeper interface {
	SweepExpired(ctx context.Context) (SweepReport, error)
	PurgeCancelled(ctx context.Context) (SweepReport, error)
}

var errNoLongerExpired = errors.New("booking no longer expired")

type expirySweeper struct {
	repo      *repository.Repository
	publisher event.Publisher
	clock     clock.Clock
	cfg       utils.SweeperConfig
	log       *zap.Logger
}

func NewExpirySweeper(repo *repository.Repository, publisher event.Publisher, clk clock.Clock, cfg utils.SweeperConfig, log *zap.Logger) ExpirySweeper {
	return &expirySweeper{
		repo:      repo,
		publisher: publisher,
		clock:     clk,
		cfg:       cfg,
		log:       log.With(zap.String("service", "expiry_sweeper")),
	}
}

// SweepExpired walks every expired PENDING booking page by page. Rows that
// fail stay behind the cursor, so they cannot starve the rest of the run.
func (s *expirySweeper) SweepExpired(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	now := s.clock.Now()
	limit := s.batchSize()

	var after repository.ScanCursor
	for ctx.Err() == nil {
		page, err := s.repo.Booking.FindExpiredPending(ctx, now, after, limit)
		if err != nil {
			return report, fmt.Errorf("sweep expired bookings: %w", err)
		}
		report.Scanned += len(page)

		for _, candidate := range page {
			if ctx.Err() != nil {
				break
			}
			s.expire(ctx, candidate, now, &report)
		}

		if len(page) < limit {
			break
		}
		last := page[len(page)-1]
		after = repository.ScanCursor{At: last.HoldExpiresAt, ID: last.ID}
	}

	if report.Scanned > 0 {
		s.log.Info("Expiry sweep finished",
			zap.Int("scanned", report.Scanned),
			zap.Int("cancelled", report.Processed),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed),
		)
	}
	return report, ctx.Err()
}

func (s *expirySweeper) expire(ctx context.Context, candidate *entity.Booking, now time.Time, report *SweepReport) {
	booking, err := s.repo.Ledger.Transition(ctx, candidate.ID, func(b *entity.Booking) error {
		// re-checked under the row lock; a payment may have landed
		if !b.IsExpired(now) {
			return errNoLongerExpired
		}
		return b.TransitionTo(entity.BookingStatusCancelled, now)
	})
	switch {
	case errors.Is(err, errNoLongerExpired), errors.Is(err, entity.ErrBookingNotFound):
		report.Skipped++
		return
	case err != nil:
		report.Failed++
		s.log.Error("Failed to expire booking",
			zap.Error(err),
			zap.String("booking_id", candidate.ID.String()),
			zap.String("booking_code", candidate.Code),
		)
		return
	}

	report.Processed++
	s.log.Info("Expired booking cancelled",
		zap.String("booking_code", booking.Code),
		zap.Int64("showtime_id", booking.ShowtimeID),
		zap.Int("seats_restored", len(booking.SeatIDs)),
	)

	if err := s.publisher.Publish(ctx, event.BookingExpired, event.NewBookingEvent(booking, now)); err != nil {
		s.log.Warn("Failed to publish expiry event", zap.Error(err), zap.String("booking_code", booking.Code))
	}
}

func (s *expirySweeper) PurgeCancelled(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	cutoff := s.clock.Now().Add(-s.cfg.PurgeRetention)
	limit := s.batchSize()

	var after repository.ScanCursor
	for ctx.Err() == nil {
		page, err := s.repo.Booking.FindCancelledBefore(ctx, cutoff, after, limit)
		if err != nil {
			return report, fmt.Errorf("purge cancelled bookings: %w", err)
		}
		report.Scanned += len(page)

		for _, booking := range page {
			if ctx.Err() != nil {
				break
			}
			s.purge(ctx, booking, &report)
		}

		if len(page) < limit {
			break
		}
		last := page[len(page)-1]
		after = repository.ScanCursor{At: last.UpdatedAt, ID: last.ID}
	}

	s.log.Info("Cancelled bookings purged",
		zap.Time("cutoff", cutoff),
		zap.Int("purged", report.Processed),
		zap.Int("failed", report.Failed),
	)
	return report, ctx.Err()
}

func (s *expirySweeper) purge(ctx context.Context, booking *entity.Booking, report *SweepReport) {
	err := s.repo.Ledger.PurgeCancelled(ctx, booking.ID)
	switch {
	case errors.Is(err, entity.ErrBookingNotFound), errors.Is(err, entity.ErrInvalidStateTransition):
		report.Skipped++
	case err != nil:
		report.Failed++
		s.log.Error("Failed to purge booking",
			zap.Error(err),
			zap.String("booking_code", booking.Code),
		)
	default:
		report.Processed++
	}
}

func (s *expirySweeper) batchSize() int {
	if s.cfg.BatchSize <= 0 {
		return 100
	}
	return s.cfg.BatchSize
}

