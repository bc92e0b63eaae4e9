package workers

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

type ExpiredCredentialCleaner interface {
	ClearExpired(ctx context.Context, now time.Time) (sessions int64, resets int64, err error)
}

// Sweeper revokes credential pairs whose refresh token has expired and
// drops reset tokens past their expiry.
type Sweeper struct {
	store ExpiredCredentialCleaner
	now   func() time.Time
}

func NewSweeper(store ExpiredCredentialCleaner) *Sweeper {
	return &Sweeper{store: store, now: time.Now}
}

func (s *Sweeper) Sweep(ctx context.Context) error {
	sessions, resets, err := s.store.ClearExpired(ctx, s.now())
	if err != nil {
		log.Error().Err(err).Msg("credential sweep failed")
		return err
	}
	if sessions > 0 || resets > 0 {
		log.Info().Int64("sessions", sessions).Int64("reset_tokens", resets).Msg("expired credentials cleared")
	}
	return nil
}

// Scheduler runs the sweeper on a fixed interval. A run that overlaps the
// previous one is skipped.
type Scheduler struct {
	scheduler gocron.Scheduler
	sweeper   *Sweeper
}

func NewScheduler(sweeper *Sweeper, interval time.Duration) (*Scheduler, error) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			sweeper.Sweep(ctx)
		}),
		gocron.WithName("credential-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		scheduler.Shutdown()
		return nil, err
	}

	return &Scheduler{scheduler: scheduler, sweeper: sweeper}, nil
}

func (s *Scheduler) Start() {
	log.Info().Msg("starting background job scheduler")
	s.scheduler.Start()
}

func (s *Scheduler) Stop() error {
	log.Info().Msg("stopping background job scheduler")
	return s.scheduler.Shutdown()
}
