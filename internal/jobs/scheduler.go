package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type SessionPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type Scheduler struct {
	cron     *cron.Cron
	spec     string
	sessions SessionPurger
	now      func() time.Time
	timeout  time.Duration
	log      zerolog.Logger
}

// NewScheduler runs the session purge on spec, a six-field cron expression
// with a leading seconds column.
func NewScheduler(spec string, sessions SessionPurger, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		spec:     spec,
		sessions: sessions,
		now:      time.Now,
		timeout:  time.Minute,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if s.spec == "" {
		s.log.Info().Msg("session purge disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.spec, s.purgeExpiredSessions); err != nil {
		return fmt.Errorf("schedule session purge %q: %w", s.spec, err)
	}

	s.cron.Start()
	return nil
}

// Stop halts the scheduler; the returned context is done once a running
// purge has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) purgeExpiredSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.PurgeExpiredSessions(ctx); err != nil {
		s.log.Error().Err(err).Msg("session purge failed")
	}
}

// PurgeExpiredSessions deletes every session whose refresh token has lapsed.
func (s *Scheduler) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	s.log.Info().Int64("deleted", n).Msg("expired sessions purged")
	return n, nil
}
