package ingest

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Runner performs one ingestion cycle.
type Runner interface {
	RunOnce(ctx context.Context) (*Stats, error)
}

const DefaultErrorBackoff = 60 * time.Second

type Scheduler struct {
	runner   Runner
	interval time.Duration
	backoff  time.Duration
	log      logrus.FieldLogger
}

func NewScheduler(runner Runner, interval, backoff time.Duration, logger logrus.FieldLogger) *Scheduler {
	if backoff <= 0 {
		backoff = DefaultErrorBackoff
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		backoff:  backoff,
		log:      logger.WithField("component", "scheduler"),
	}
}

// Start runs immediately, then waits interval between successful runs and
// backoff after a failed one. It returns when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.log.WithFields(logrus.Fields{"interval": s.interval.String(), "backoff": s.backoff.String()}).Info("Scheduler started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Scheduler stopped")
			return ctx.Err()
		case <-timer.C:
		}

		wait := s.interval
		if _, err := s.runner.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				s.log.Info("Scheduler stopped")
				return ctx.Err()
			}
			s.log.WithError(err).WithField("retry_in", s.backoff.String()).Error("Ingestion run failed")
			wait = s.backoff
		}
		timer.Reset(wait)
	}
}
