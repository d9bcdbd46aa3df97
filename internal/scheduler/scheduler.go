package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/i474232898/boris-companion/internal/observability"
)

// Refresher is what a scheduled tick triggers.
type Refresher interface {
	FetchAndForward(ctx context.Context) error
}

// Scheduler periodically refreshes the weather on the device, standing in for
// the watchface's own half-hourly request.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	interval  time.Duration
	metrics   *observability.Metrics
	logger    zerolog.Logger

	ctx context.Context
}

// New creates a new Scheduler. Jobs run with ctx.
func New(ctx context.Context, interval time.Duration, refresher Refresher, metrics *observability.Metrics, logger zerolog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		refresher: refresher,
		interval:  interval,
		metrics:   metrics,
		logger:    logger,
		ctx:       ctx,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first run happens one interval from now; startup is covered by "ready".
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Info().Msg("scheduler: refresh interval disabled; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info().Dur("interval", s.interval).Msg("scheduler: started")
	return nil
}

func (s *Scheduler) run() {
	s.logger.Debug().Msg("scheduler: running weather refresh")
	s.metrics.EventsTriggered.WithLabelValues("refresh").Inc()

	if err := s.refresher.FetchAndForward(s.ctx); err != nil {
		s.logger.Warn().Err(err).Msg("scheduler: refresh failed")
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
