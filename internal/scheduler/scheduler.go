// Package scheduler drives periodic analysis passes.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Amro212/meme-radar/internal/domain/meme"
	"github.com/Amro212/meme-radar/internal/metrics"
	"github.com/Amro212/meme-radar/internal/service/analysis"
)

// PassRunner runs one analysis pass. The analysis engine implements it.
type PassRunner interface {
	RunPass(ctx context.Context, now time.Time) (analysis.PassResult, error)
}

// Scheduler triggers an analysis pass at a fixed interval. A cycle that
// fires while the previous pass is still running is skipped, never queued.
type Scheduler struct {
	runner   PassRunner
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger

	cron *cron.Cron
}

// New creates a scheduler for the given interval.
func New(runner PassRunner, interval time.Duration, m *metrics.Metrics, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		metrics:  m,
		logger:   logger,
		cron:     cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
	}
}

// Start registers the pass job and begins ticking.
func (s *Scheduler) Start(ctx context.Context) error {
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("scheduling analysis pass: %w", err)
	}
	s.cron.Start()
	s.logger.Info("analysis pass scheduled", zap.Duration("interval", s.interval))
	return nil
}

// Stop stops ticking and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runOnce(ctx context.Context) {
	result, err := s.runner.RunPass(ctx, time.Now())
	if err != nil {
		if errors.Is(err, meme.ErrPassInProgress) {
			s.metrics.PassesSkipped.Inc()
			s.logger.Warn("skipping pass, previous pass still running")
			return
		}
		s.metrics.PassFailures.Inc()
		s.logger.Error("analysis pass failed", zap.Error(err))
		return
	}

	s.metrics.PassDuration.Observe(result.Elapsed.Seconds())
	s.metrics.WindowsFlushed.Add(float64(result.StatsFlushed))
	s.metrics.CandidatesFound.Set(float64(result.Candidates))
	s.metrics.Suppressed.Set(float64(result.Suppressed))

	s.logger.Info("analysis pass complete",
		zap.Int("stats_flushed", result.StatsFlushed),
		zap.Int("pairs_scored", result.PairsScored),
		zap.Int("raw_candidates", result.RawCount),
		zap.Int("suppressed", result.Suppressed),
		zap.Int("candidates", result.Candidates),
		zap.Duration("elapsed", result.Elapsed),
	)
}
