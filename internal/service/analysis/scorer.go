// internal/service/analysis/scorer.go

package analysis

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/Amro212/meme-radar/internal/config"
	"github.com/Amro212/meme-radar/internal/domain/meme"
)

// stddevEpsilon guards the z-score against division by zero on a flat
// baseline. A single constant is used everywhere so flat-baseline spikes
// score consistently.
const stddevEpsilon = 0.5

// Scorer computes baseline statistics and the composite trend score for one
// analysis pass. It is built from a configuration snapshot so a reload never
// changes thresholds mid-pass.
type Scorer struct {
	cfg config.AnalysisConfig
	now time.Time
}

// NewScorer creates a scorer for a pass running at the given time.
func NewScorer(cfg config.AnalysisConfig, now time.Time) *Scorer {
	return &Scorer{cfg: cfg, now: now}
}

// Score evaluates the current window against its history. The history holds
// the prior windows only (current excluded), oldest first, contiguous with
// zero-count stats for gaps. It returns the scored candidate and whether it
// clears the raw-candidacy gate. Units with fewer than two prior windows
// are recorded but never flagged: there is no baseline to be anomalous
// against yet.
func (s *Scorer) Score(current meme.WindowStat, history meme.History) (meme.TrendCandidate, bool) {
	th := s.cfg.ThresholdsFor(current.Unit.Kind)

	freq := float64(current.Frequency())
	mean, stddev := meanStddev(history.Frequencies())

	accel := (freq + 1) / (mean + 1)
	z := (freq - mean) / math.Max(stddev, stddevEpsilon)

	cand := meme.TrendCandidate{
		ID:               uuid.New().String(),
		Unit:             current.Unit,
		Platform:         current.Platform,
		WindowIndex:      current.WindowIndex,
		CurrentFrequency: current.Frequency(),
		BaselineMean:     mean,
		BaselineStddev:   stddev,
		Acceleration:     accel,
		ZScore:           z,
		SumEngagement:    current.SumEngagement,
		DistinctAuthors:  current.DistinctAuthors,
		Examples:         current.Examples,
		DetectedAt:       s.now,
	}
	cand.TrendScore = s.compositeScore(cand)

	if len(history) < 2 {
		return cand, false
	}

	raw := current.Frequency() >= th.MinFrequency &&
		(z >= th.ZThreshold || accel >= th.AccelThreshold) &&
		current.SumEngagement >= th.MinEngagement

	return cand, raw
}

// compositeScore folds acceleration, z-score, and engagement density into a
// single [0,1] score. Each component is squashed through x/(x+1), which is
// monotone non-decreasing, so raising any input never lowers the score.
func (s *Scorer) compositeScore(c meme.TrendCandidate) float64 {
	w := s.cfg.Score

	// Acceleration sits at 1.0 for a flat signal; only growth above the
	// baseline contributes.
	accel := squash(math.Max(c.Acceleration-1, 0))
	z := squash(math.Max(c.ZScore, 0))

	density := 0.0
	if c.CurrentFrequency > 0 {
		density = c.SumEngagement / float64(c.CurrentFrequency)
	}
	engagement := squash(density)

	total := w.Acceleration + w.ZScore + w.Engagement
	score := (w.Acceleration*accel + w.ZScore*z + w.Engagement*engagement) / total

	return clamp01(score)
}

func squash(x float64) float64 {
	return x / (x + 1)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// meanStddev returns the sample mean and sample standard deviation.
func meanStddev(values []int) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}

	sum := 0.0
	for _, v := range values {
		sum += float64(v)
	}
	mean := sum / float64(len(values))

	if len(values) < 2 {
		return mean, 0
	}

	ss := 0.0
	for _, v := range values {
		d := float64(v) - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(values)-1))
}
