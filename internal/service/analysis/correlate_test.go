package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amro212/meme-radar/internal/config"
	"github.com/Amro212/meme-radar/internal/domain/meme"
)

func testCorrelateConfig() config.AnalysisConfig {
	return config.AnalysisConfig{
		AdjacentWindowSpan: 1,
		PlatformBoost:      0.2,
		ExampleRefLimit:    5,
	}
}

func candidateOn(unit meme.UnitKey, platform meme.Platform, window int64, score float64) meme.TrendCandidate {
	return meme.TrendCandidate{
		ID:               string(platform) + ":" + unit.Key,
		Unit:             unit,
		Platform:         platform,
		WindowIndex:      window,
		CurrentFrequency: 20,
		SumEngagement:    30,
		DistinctAuthors:  8,
		TrendScore:       score,
		Examples:         []string{string(platform) + "/post"},
	}
}

func TestCorrelatorBoostsAdjacentPlatforms(t *testing.T) {
	c := NewCorrelator(testCorrelateConfig())
	unit := meme.UnitKey{Kind: meme.UnitHashtag, Key: "ohio"}

	twitter := candidateOn(unit, meme.PlatformTwitter, 5, 0.5)
	tiktok := candidateOn(unit, meme.PlatformTikTok, 6, 0.4)

	out := c.Apply([]meme.TrendCandidate{twitter, tiktok})
	require.Len(t, out, 3)

	byPlatform := make(map[meme.Platform]meme.TrendCandidate)
	for _, cand := range out {
		byPlatform[cand.Platform] = cand
	}

	// Each correlated candidate scores strictly above its solo score.
	assert.InDelta(t, 0.7, byPlatform[meme.PlatformTwitter].TrendScore, 1e-9)
	assert.InDelta(t, 0.6, byPlatform[meme.PlatformTikTok].TrendScore, 1e-9)
	assert.True(t, byPlatform[meme.PlatformTwitter].CrossPlatform)
	assert.True(t, byPlatform[meme.PlatformTikTok].CrossPlatform)

	merged, ok := byPlatform[meme.PlatformCross]
	require.True(t, ok)
	assert.Equal(t, unit, merged.Unit)
	assert.Equal(t, int64(6), merged.WindowIndex)
	assert.Equal(t, 40, merged.CurrentFrequency)
	assert.Equal(t, []meme.Platform{meme.PlatformTikTok, meme.PlatformTwitter}, merged.Platforms)
	assert.InDelta(t, 0.7, merged.TrendScore, 1e-9)
}

func TestCorrelatorBoostCappedAtOne(t *testing.T) {
	c := NewCorrelator(testCorrelateConfig())
	unit := meme.UnitKey{Kind: meme.UnitHashtag, Key: "ohio"}

	out := c.Apply([]meme.TrendCandidate{
		candidateOn(unit, meme.PlatformTwitter, 5, 0.95),
		candidateOn(unit, meme.PlatformTikTok, 5, 0.9),
		candidateOn(unit, meme.PlatformReddit, 5, 0.9),
	})

	for _, cand := range out {
		assert.LessOrEqual(t, cand.TrendScore, 1.0)
	}
}

func TestCorrelatorIgnoresDistantWindows(t *testing.T) {
	c := NewCorrelator(testCorrelateConfig())
	unit := meme.UnitKey{Kind: meme.UnitHashtag, Key: "ohio"}

	twitter := candidateOn(unit, meme.PlatformTwitter, 3, 0.5)
	tiktok := candidateOn(unit, meme.PlatformTikTok, 6, 0.4)

	out := c.Apply([]meme.TrendCandidate{twitter, tiktok})
	require.Len(t, out, 2)

	for _, cand := range out {
		assert.False(t, cand.CrossPlatform)
	}
	assert.InDelta(t, 0.9, out[0].TrendScore+out[1].TrendScore, 1e-9, "solo scores unchanged")
}

func TestCorrelatorRequiresDistinctPlatforms(t *testing.T) {
	c := NewCorrelator(testCorrelateConfig())
	unit := meme.UnitKey{Kind: meme.UnitHashtag, Key: "ohio"}

	// Same platform in two adjacent windows is not cross-platform.
	out := c.Apply([]meme.TrendCandidate{
		candidateOn(unit, meme.PlatformTwitter, 5, 0.5),
		candidateOn(unit, meme.PlatformTwitter, 6, 0.4),
	})

	require.Len(t, out, 2)
	for _, cand := range out {
		assert.False(t, cand.CrossPlatform)
	}
}

func TestCorrelatorGroupsPerUnit(t *testing.T) {
	c := NewCorrelator(testCorrelateConfig())
	ohio := meme.UnitKey{Kind: meme.UnitHashtag, Key: "ohio"}
	gyatt := meme.UnitKey{Kind: meme.UnitHashtag, Key: "gyatt"}

	out := c.Apply([]meme.TrendCandidate{
		candidateOn(ohio, meme.PlatformTwitter, 5, 0.5),
		candidateOn(ohio, meme.PlatformTikTok, 5, 0.4),
		candidateOn(gyatt, meme.PlatformReddit, 5, 0.3),
	})

	// One merged candidate for the correlated unit only.
	require.Len(t, out, 4)

	var crossCount int
	for _, cand := range out {
		if cand.Platform == meme.PlatformCross {
			crossCount++
			assert.Equal(t, ohio, cand.Unit)
		}
		if cand.Unit == gyatt {
			assert.False(t, cand.CrossPlatform)
		}
	}
	assert.Equal(t, 1, crossCount)
}
