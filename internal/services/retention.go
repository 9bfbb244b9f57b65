package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const retentionPollInterval = 1 * time.Hour

// Pruner deletes turns older than a cutoff.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionSweeper periodically removes turns older than the retention
// window. A zero retention disables it.
type RetentionSweeper struct {
	store     Pruner
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	stopChan  chan struct{}
	done      chan struct{}
}

func NewRetentionSweeper(store Pruner, retention time.Duration) *RetentionSweeper {
	return &RetentionSweeper{
		store:     store,
		retention: retention,
		interval:  retentionPollInterval,
		now:       time.Now,
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (s *RetentionSweeper) Start() {
	if s.store == nil || s.retention <= 0 {
		close(s.done)
		return
	}

	go s.loop()
	log.Info().Dur("retention", s.retention).Msg("Retention sweeper started")
}

// Stop signals the loop and waits for an in-flight sweep to finish.
func (s *RetentionSweeper) Stop() {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	<-s.done
}

func (s *RetentionSweeper) loop() {
	defer close(s.done)

	// Run on startup as well as by interval.
	s.sweep(context.Background())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep(context.Background())
		}
	}
}

func (s *RetentionSweeper) sweep(ctx context.Context) int64 {
	cutoff := s.now().UTC().Add(-s.retention)
	removed, err := s.store.PruneBefore(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Time("cutoff", cutoff).Msg("retention sweep failed")
		return 0
	}
	if removed > 0 {
		log.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("pruned expired turns")
	}
	return removed
}
