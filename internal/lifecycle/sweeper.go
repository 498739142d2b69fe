package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"videostyler/internal/domain"
)

const staleJobMessage = "no completion callback received before the deadline"

// Sweeper reconciles jobs stuck in "submitted": a provider outage or a lost
// webhook would otherwise leave them in progress forever. It reuses the same
// guarded update as callback finalization, so a late webhook and the sweep
// cannot both win.
type Sweeper struct {
	repo   domain.JobRepository
	logger zerolog.Logger
	maxAge time.Duration

	now func() time.Time
}

// NewSweeper constructs a sweeper failing jobs submitted more than maxAge ago.
func NewSweeper(repo domain.JobRepository, logger zerolog.Logger, maxAge time.Duration) (*Sweeper, error) {
	if repo == nil {
		return nil, errors.New("lifecycle: job repository is required")
	}
	if maxAge <= 0 {
		return nil, errors.New("lifecycle: sweep max age must be positive")
	}
	return &Sweeper{repo: repo, logger: logger, maxAge: maxAge, now: time.Now}, nil
}

// Sweep fails every job submitted before now-maxAge and returns the count.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now().UTC()
	cutoff := now.Add(-s.maxAge)
	n, err := s.repo.FailStale(ctx, cutoff, staleJobMessage, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("lifecycle: sweep failed")
		return 0, err
	}
	if n > 0 {
		s.logger.Warn().Int("count", n).Time("cutoff", cutoff).Msg("lifecycle: failed stale jobs")
	}
	return n, nil
}
