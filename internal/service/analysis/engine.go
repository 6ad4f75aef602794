// internal/service/analysis/engine.go

package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Amro212/meme-radar/internal/config"
	"github.com/Amro212/meme-radar/internal/domain/meme"
)

// timestampSlack is how far in the future an event timestamp may sit before
// it is rejected as implausible (collector clock skew allowance).
const timestampSlack = 5 * time.Minute

// WindowStore is the persistence surface for time-bucketed statistics.
type WindowStore interface {
	// SaveStats writes finalized window stats atomically: all or nothing.
	SaveStats(ctx context.Context, stats []meme.WindowStat) error

	// History returns up to n windows for a (unit, platform) pair ending at
	// the given window index, oldest first. Gaps inside the range come back
	// as zero-count stats; a unit with no recorded windows at all returns
	// an empty history.
	History(ctx context.Context, unit meme.UnitKey, platform meme.Platform, through int64, n int) (meme.History, error)

	// RecentUnitStats returns a unit's stats across all platforms from the
	// given window index onward.
	RecentUnitStats(ctx context.Context, unit meme.UnitKey, since int64) ([]meme.WindowStat, error)
}

// CandidateStore persists the per-run candidate set.
type CandidateStore interface {
	// ReplaceAll swaps the current candidate set in one transaction.
	ReplaceAll(ctx context.Context, candidates []meme.TrendCandidate) error
}

// ClusterStore persists the opaque hash to cluster id mapping.
type ClusterStore interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, assignments map[string]string) error
}

// Engine runs the trend-detection pipeline: continuous idempotent ingestion
// into the aggregator, and one coordinated analysis pass per scheduling
// cycle. Passes are mutually exclusive; a pass requested while another runs
// returns ErrPassInProgress and the cycle is skipped rather than overlapped.
type Engine struct {
	cfg        func() config.AnalysisConfig
	agg        *Aggregator
	clusterer  *Clusterer
	noise      *NoiseFilter
	windows    WindowStore
	candidates CandidateStore
	clusters   ClusterStore
	bus        *nats.Conn
	subject    string
	logger     *zap.Logger
	workers    int

	passMu sync.Mutex
}

// EngineOptions carries the engine's collaborators.
type EngineOptions struct {
	Config     func() config.AnalysisConfig
	Aggregator *Aggregator
	Clusterer  *Clusterer
	Noise      *NoiseFilter
	Windows    WindowStore
	Candidates CandidateStore
	Clusters   ClusterStore
	Bus        *nats.Conn
	Subject    string
	Workers    int
	Logger     *zap.Logger
}

// NewEngine creates the engine.
func NewEngine(opts EngineOptions) *Engine {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Engine{
		cfg:        opts.Config,
		agg:        opts.Aggregator,
		clusterer:  opts.Clusterer,
		noise:      opts.Noise,
		windows:    opts.Windows,
		candidates: opts.Candidates,
		clusters:   opts.Clusters,
		bus:        opts.Bus,
		subject:    opts.Subject,
		logger:     opts.Logger,
		workers:    workers,
	}
}

// Ingest validates and aggregates one collector event. Malformed events are
// rejected with InvalidEventError; the caller logs and skips them.
func (e *Engine) Ingest(ev meme.Event) error {
	cfg := e.cfg()
	if err := ev.Validate(time.Now(), cfg.Horizon(), timestampSlack); err != nil {
		return err
	}
	return e.agg.Ingest(ev)
}

// ApplyConfig propagates a reloaded configuration to the components that
// hold live state between passes.
func (e *Engine) ApplyConfig(cfg config.AnalysisConfig) {
	e.noise.Reload(cfg)
	e.agg.Reconfigure(cfg)
	e.clusterer.SetThreshold(cfg.SimilarityThreshold)
}

// PassResult summarizes one analysis pass.
type PassResult struct {
	StatsFlushed int
	PairsScored  int
	RawCount     int
	Suppressed   int
	Candidates   int
	Elapsed      time.Duration
}

type scoreJob struct {
	current meme.WindowStat
}

// RunPass executes one full analysis pass: flush finalized windows, score
// every (unit, platform) pair against its baseline, filter noise, enrich
// spread, correlate across platforms, rank, persist, publish.
func (e *Engine) RunPass(ctx context.Context, now time.Time) (PassResult, error) {
	if !e.passMu.TryLock() {
		return PassResult{}, meme.ErrPassInProgress
	}
	defer e.passMu.Unlock()

	started := time.Now()
	cfg := e.cfg()

	stats := e.agg.Drain(now)

	var result PassResult
	result.StatsFlushed = len(stats)

	if len(stats) > 0 {
		if err := e.windows.SaveStats(ctx, stats); err != nil {
			// The aggregator keeps unacknowledged stats; the next pass
			// drains and saves them again.
			return result, fmt.Errorf("flushing window stats: %w", err)
		}
		e.agg.Ack()
		if err := e.clusters.Save(ctx, e.clusterer.Assignments()); err != nil {
			return result, fmt.Errorf("persisting cluster assignments: %w", err)
		}
	}

	jobs := currentWindows(stats)
	result.PairsScored = len(jobs)

	raw, err := e.scoreAll(ctx, cfg, now, jobs)
	if err != nil {
		return result, err
	}
	result.RawCount = len(raw)

	kept := raw[:0]
	for _, cand := range raw {
		th := cfg.ThresholdsFor(cand.Unit.Kind)
		if reason := e.noise.Suppress(cand, th, cfg.ExtremeSpikeMultiplier); reason != "" {
			result.Suppressed++
			e.logger.Debug("candidate suppressed",
				zap.String("unit", cand.Unit.String()),
				zap.String("platform", string(cand.Platform)),
				zap.String("reason", reason),
			)
			continue
		}
		kept = append(kept, cand)
	}

	final := NewCorrelator(cfg).Apply(kept)
	meme.Rank(final)
	result.Candidates = len(final)

	if err := e.candidates.ReplaceAll(ctx, final); err != nil {
		return result, fmt.Errorf("replacing candidate set: %w", err)
	}

	e.publish(final)

	result.Elapsed = time.Since(started)
	return result, nil
}

// currentWindows reduces drained stats to one scoring job per
// (unit, platform) pair: its newest finalized window.
func currentWindows(stats []meme.WindowStat) []scoreJob {
	latest := make(map[statKey]meme.WindowStat)
	for _, s := range stats {
		key := statKey{unit: s.Unit, platform: s.Platform}
		if prev, ok := latest[key]; !ok || s.WindowIndex > prev.WindowIndex {
			latest[key] = s
		}
	}

	jobs := make([]scoreJob, 0, len(latest))
	for _, s := range latest {
		jobs = append(jobs, scoreJob{current: s})
	}
	return jobs
}

// scoreAll scores every pair against its baseline. Pairs are independent,
// so scoring fans out across workers; everything merges at the barrier
// before correlation. Any storage failure aborts the pass.
func (e *Engine) scoreAll(ctx context.Context, cfg config.AnalysisConfig, now time.Time, jobs []scoreJob) ([]meme.TrendCandidate, error) {
	scorer := NewScorer(cfg, now)
	detector := NewCommentMemeDetector(cfg)

	jobCh := make(chan scoreJob)
	var (
		mu       sync.Mutex
		raw      []meme.TrendCandidate
		firstErr error
	)

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				cand, err := e.scoreOne(ctx, scorer, detector, cfg, job)
				mu.Lock()
				if err != nil && firstErr == nil {
					firstErr = err
				}
				if err == nil && cand != nil {
					raw = append(raw, *cand)
				}
				mu.Unlock()
			}
		}()
	}

	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return raw, nil
}

// scoreOne evaluates a single pair and returns a raw candidate, or nil when
// the pair does not clear the candidacy gate.
func (e *Engine) scoreOne(ctx context.Context, scorer *Scorer, detector *CommentMemeDetector, cfg config.AnalysisConfig, job scoreJob) (*meme.TrendCandidate, error) {
	current := job.current

	history, err := e.windows.History(ctx, current.Unit, current.Platform, current.WindowIndex-1, cfg.HistoryWindowCount-1)
	if err != nil {
		return nil, fmt.Errorf("loading history for %s on %s: %w", current.Unit, current.Platform, err)
	}

	cand, raw := scorer.Score(current, history)
	if !raw {
		return nil, nil
	}

	if current.Unit.Kind == meme.UnitPhrase {
		since := current.WindowIndex - int64(cfg.CrossPlatformWindowSpan) + 1
		recent, err := e.windows.RecentUnitStats(ctx, current.Unit, since)
		if err != nil {
			return nil, fmt.Errorf("loading spread stats for %s: %w", current.Unit, err)
		}
		detector.Enrich(&cand, current, recent)
	}

	return &cand, nil
}

// publish pushes the ranked candidate set onto the event bus for live
// consumers. Publish failures are logged, never fatal to the pass.
func (e *Engine) publish(candidates []meme.TrendCandidate) {
	if e.bus == nil || len(candidates) == 0 {
		return
	}

	for _, cand := range candidates {
		data, err := json.Marshal(cand)
		if err != nil {
			e.logger.Error("marshaling candidate for publish", zap.Error(err))
			continue
		}
		if err := e.bus.Publish(e.subject, data); err != nil {
			e.logger.Error("publishing candidate", zap.Error(err))
		}
	}
}
