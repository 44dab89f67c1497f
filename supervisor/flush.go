// Package supervisor runs the periodic and shutdown-triggered flush
// schedule from spec §4.13 over the storage writer.
package supervisor

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Flusher is the subset of storage.Writer the supervisor depends on.
type Flusher interface {
	Flush(ctx context.Context) error
}

// FlushSupervisor periodically flushes the event buffer and guarantees
// one last flush attempt during shutdown, bounded by shutdownTimeout.
type FlushSupervisor struct {
	writer          Flusher
	interval        time.Duration
	shutdownTimeout time.Duration
	logger          zerolog.Logger

	due chan struct{}
}

// New builds a FlushSupervisor. due, if non-nil, is a trigger channel the
// ingestion orchestrator can signal to request an out-of-band flush once
// the buffer crosses its configured threshold.
func New(writer Flusher, interval, shutdownTimeout time.Duration, logger zerolog.Logger, due chan struct{}) *FlushSupervisor {
	return &FlushSupervisor{
		writer:          writer,
		interval:        interval,
		shutdownTimeout: shutdownTimeout,
		logger:          logger.With().Str("component", "flush_supervisor").Logger(),
		due:             due,
	}
}

// Run blocks, flushing on both the fixed interval and on-demand signals,
// until ctx is cancelled — at which point it performs exactly one final
// flush bounded by shutdownTimeout, per spec §4.13.
func (s *FlushSupervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.finalFlush()
		case <-ticker.C:
			s.flushOnce(ctx)
		case <-s.due:
			s.flushOnce(ctx)
			ticker.Reset(s.interval)
		}
	}
}

func (s *FlushSupervisor) flushOnce(ctx context.Context) {
	if err := s.writer.Flush(ctx); err != nil {
		s.logger.Error().Err(err).Msg("periodic flush failed; events restored to buffer")
	}
}

func (s *FlushSupervisor) finalFlush() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.writer.Flush(ctx); err != nil {
		s.logger.Error().Err(err).Msg("final shutdown flush failed")
		return err
	}
	s.logger.Info().Msg("final shutdown flush complete")
	return nil
}

// RunInGroup registers Run against an errgroup so it participates in the
// process-wide shutdown sequence alongside the HTTP server and the
// retention reaper, grounded on the teacher's background-worker wiring.
func (s *FlushSupervisor) RunInGroup(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error {
		return s.Run(ctx)
	})
}
