// Package scheduler runs the periodic booking maintenance: it completes
// bookings whose tour date has passed and expires bookings left unpaid.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

type bookingCompleter interface {
	CompleteDue(ctx context.Context) (int, error)
	ExpirePending(ctx context.Context) (int, error)
}

type Scheduler struct {
	bookings bookingCompleter
	interval time.Duration
}

func New(bookings bookingCompleter, interval time.Duration) *Scheduler {
	return &Scheduler{bookings: bookings, interval: interval}
}

// Start runs one pass immediately and then one per interval until ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Msg("completion scheduler started")
	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("completion scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if n, err := s.bookings.ExpirePending(ctx); err != nil {
		if ctx.Err() == nil {
			log.Error().Err(err).Msg("failed to expire unpaid bookings")
		}
	} else if n > 0 {
		log.Info().Int("expired", n).Msg("unpaid bookings expired")
	}

	n, err := s.bookings.CompleteDue(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Error().Err(err).Msg("failed to complete past bookings")
		}
		return
	}
	if n > 0 {
		log.Info().Int("completed", n).Msg("past bookings completed")
	}
}
