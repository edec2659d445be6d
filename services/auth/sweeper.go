package auth

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

type sessionPruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Sweeper periodically deletes expired sessions.
type Sweeper struct {
	sessions sessionPruner
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time

	// OnPrune, when set, receives the number of rows removed by each sweep.
	OnPrune func(n int64)
}

func NewSweeper(sessions sessionPruner, interval time.Duration, logger zerolog.Logger) (*Sweeper, error) {
	if sessions == nil {
		return nil, errors.New("session pruner is required")
	}
	if interval <= 0 {
		return nil, errors.New("sweep interval must be positive")
	}
	return &Sweeper{
		sessions: sessions,
		interval: interval,
		log:      logger.With().Str("component", "session-sweeper").Logger(),
		now:      time.Now,
	}, nil
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Error().Err(err).Msg("sweep sessions")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SweepOnce prunes every session expired as of now.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	n, err := s.sessions.Prune(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info().Int64("deleted", n).Msg("expired sessions pruned")
	}
	if s.OnPrune != nil {
		s.OnPrune(n)
	}
	return n, nil
}
