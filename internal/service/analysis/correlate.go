// internal/service/analysis/correlate.go

package analysis

import (
	"sort"

	"github.com/google/uuid"

	"github.com/Amro212/meme-radar/internal/config"
	"github.com/Amro212/meme-radar/internal/domain/meme"
)

// Correlator boosts units that are raw candidates on two or more platforms
// within adjacent windows. Cross-platform spread is the strongest organic
// signal the engine has, so each additional platform adds a score boost,
// capped at 1.0. It also emits one merged pseudo-platform candidate per
// correlated unit for the global, platform-agnostic ranking.
type Correlator struct {
	span         int64
	boost        float64
	exampleLimit int
}

// NewCorrelator creates a correlator from a configuration snapshot.
func NewCorrelator(cfg config.AnalysisConfig) *Correlator {
	return &Correlator{
		span:         int64(cfg.AdjacentWindowSpan),
		boost:        cfg.PlatformBoost,
		exampleLimit: cfg.ExampleRefLimit,
	}
}

// Apply returns the input candidates with cross-platform boosts applied,
// followed by the merged cross-platform candidates.
func (c *Correlator) Apply(candidates []meme.TrendCandidate) []meme.TrendCandidate {
	byUnit := make(map[meme.UnitKey][]int)
	for i, cand := range candidates {
		byUnit[cand.Unit] = append(byUnit[cand.Unit], i)
	}

	out := make([]meme.TrendCandidate, len(candidates))
	copy(out, candidates)

	var merged []meme.TrendCandidate

	for _, idxs := range byUnit {
		group := c.adjacentGroup(out, idxs)
		if len(group) < 2 {
			continue
		}

		platforms := make([]meme.Platform, 0, len(group))
		for _, i := range group {
			platforms = append(platforms, out[i].Platform)
		}
		sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })

		extra := float64(len(group) - 1)
		for _, i := range group {
			out[i].TrendScore = clamp01(out[i].TrendScore + c.boost*extra)
			out[i].CrossPlatform = true
			out[i].Platforms = platforms
		}

		merged = append(merged, c.merge(out, group, platforms))
	}

	return append(out, merged...)
}

// adjacentGroup filters a unit's candidate indices down to those on distinct
// platforms whose window indices all sit within the adjacency span of each
// other.
func (c *Correlator) adjacentGroup(cands []meme.TrendCandidate, idxs []int) []int {
	if len(idxs) < 2 {
		return nil
	}

	sort.Slice(idxs, func(i, j int) bool {
		return cands[idxs[i]].WindowIndex > cands[idxs[j]].WindowIndex
	})

	// Anchor on the newest window; platforms trending within the span of it
	// correlate, one candidate per platform.
	anchor := cands[idxs[0]].WindowIndex
	seen := make(map[meme.Platform]bool)
	var group []int
	for _, i := range idxs {
		cand := cands[i]
		if anchor-cand.WindowIndex > c.span {
			break
		}
		if cand.Platform == meme.PlatformCross || seen[cand.Platform] {
			continue
		}
		seen[cand.Platform] = true
		group = append(group, i)
	}

	if len(group) < 2 {
		return nil
	}
	return group
}

func (c *Correlator) merge(cands []meme.TrendCandidate, group []int, platforms []meme.Platform) meme.TrendCandidate {
	first := cands[group[0]]
	m := meme.TrendCandidate{
		ID:            uuid.New().String(),
		Unit:          first.Unit,
		Platform:      meme.PlatformCross,
		WindowIndex:   first.WindowIndex,
		CrossPlatform: true,
		Platforms:     platforms,
		DetectedAt:    first.DetectedAt,
	}

	for _, i := range group {
		cand := cands[i]
		m.CurrentFrequency += cand.CurrentFrequency
		m.SumEngagement += cand.SumEngagement
		m.DistinctAuthors += cand.DistinctAuthors
		if cand.TrendScore > m.TrendScore {
			m.TrendScore = cand.TrendScore
		}
		if cand.ZScore > m.ZScore {
			m.ZScore = cand.ZScore
		}
		if cand.Acceleration > m.Acceleration {
			m.Acceleration = cand.Acceleration
		}
		if cand.WindowIndex > m.WindowIndex {
			m.WindowIndex = cand.WindowIndex
		}
		m.Examples = append(m.Examples, cand.Examples...)
	}

	if len(m.Examples) > c.exampleLimit {
		m.Examples = m.Examples[:c.exampleLimit]
	}
	return m
}
