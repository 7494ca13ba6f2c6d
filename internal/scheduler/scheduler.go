// Package scheduler runs the periodic booking maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"cinema-reservation/internal/usecase"
	"cinema-reservation/pkg/utils"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Scheduler struct {
	cron    *cron.Cron
	sweeper usecase.ExpirySweeper
	cfg     utils.SweeperConfig
	log     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New registers the expiry sweep and the cancelled-booking purge. It fails
// when either schedule cannot be parsed.
func New(sweeper usecase.ExpirySweeper, cfg utils.SweeperConfig, log *zap.Logger) (*Scheduler, error) {
	log = log.With(zap.String("component", "scheduler"))
	cronLog := cronLogger{log.Sugar()}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		sweeper: sweeper,
		cfg:     cfg,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	if _, err := s.cron.AddFunc("@every "+interval.String(), s.sweepExpired); err != nil {
		cancel()
		return nil, fmt.Errorf("schedule expiry sweep every %s: %w", interval, err)
	}
	if cfg.PurgeSchedule != "" {
		if _, err := s.cron.AddFunc(cfg.PurgeSchedule, s.purgeCancelled); err != nil {
			cancel()
			return nil, fmt.Errorf("schedule purge %q: %w", cfg.PurgeSchedule, err)
		}
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.log.Info("Scheduler started",
		zap.Duration("sweep_interval", s.cfg.Interval),
		zap.String("purge_schedule", s.cfg.PurgeSchedule),
	)
	s.cron.Start()
}

// Stop cancels running jobs and waits for them until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()

	select {
	case <-done.Done():
		s.log.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop scheduler: %w", ctx.Err())
	}
}

func (s *Scheduler) sweepExpired() {
	if _, err := s.sweeper.SweepExpired(s.ctx); err != nil && s.ctx.Err() == nil {
		s.log.Error("Expiry sweep failed", zap.Error(err))
	}
}

func (s *Scheduler) purgeCancelled() {
	if _, err := s.sweeper.PurgeCancelled(s.ctx); err != nil && s.ctx.Err() == nil {
		s.log.Error("Purge failed", zap.Error(err))
	}
}

// cronLogger routes cron's own messages into zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
