package publish

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"labelbot/internal/app/storage"
	"labelbot/internal/pkg/logx"
)

// Sweeper removes day buckets older than the retention period.
type Sweeper struct {
	store     storage.StorageService
	retention time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewSweeper returns a Sweeper that keeps results for at least retention.
func NewSweeper(store storage.StorageService, retention time.Duration) *Sweeper {
	return &Sweeper{
		store:     store,
		retention: retention,
		now:       time.Now,
		log:       logx.Component("sweeper"),
	}
}

// expired reports whether every result in the bucket for day is older than retention.
func (s *Sweeper) expired(day time.Time) bool {
	end := day.Add(24 * time.Hour)
	return !end.After(s.now().Add(-s.retention))
}

// SweepOnce deletes expired day buckets and returns the number of objects removed.
// Buckets whose names are not dates are left alone.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	prefixes, err := s.store.ListPrefixes(ctx, RootPrefix)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, prefix := range prefixes {
		name := strings.TrimSuffix(strings.TrimPrefix(prefix, RootPrefix), "/")
		day, err := time.ParseInLocation(DayLayout, name, time.UTC)
		if err != nil {
			s.log.Warn().Str("prefix", prefix).Msg("Skipping unrecognized result bucket")
			continue
		}
		if !s.expired(day) {
			continue
		}

		n, err := s.store.DeletePrefix(ctx, prefix)
		removed += n
		if err != nil {
			return removed, err
		}
		s.log.Info().Str("prefix", prefix).Int("removed", n).Msg("Expired result bucket deleted")
	}

	return removed, nil
}

// Run sweeps immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Error().Err(err).Msg("Result sweep failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
