package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Amro212/meme-radar/internal/config"
	"github.com/Amro212/meme-radar/internal/domain/meme"
)

func testAggConfig() config.AnalysisConfig {
	cfg := testNoiseConfig()
	cfg.WindowSizeMinutes = 30
	cfg.GracePeriodMinutes = 5
	cfg.HistoryWindowCount = 6
	cfg.ExampleRefLimit = 5
	cfg.SimilarityThreshold = 10
	return cfg
}

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	cfg := testAggConfig()
	return NewAggregator(cfg, NewClusterer(cfg.SimilarityThreshold), NewNoiseFilter(cfg, zap.NewNop()), zap.NewNop())
}

func postEvent(platform meme.Platform, postID, authorID string, ts time.Time) meme.Event {
	return meme.Event{
		Platform:   platform,
		Kind:       meme.KindPost,
		PostID:     postID,
		AuthorID:   authorID,
		Timestamp:  ts,
		Hashtags:   []string{"#ohio"},
		Engagement: 3,
	}
}

// drainTime is a wall clock safely past the window holding ts plus grace.
func drainTime(ts time.Time) time.Time {
	return ts.Add(40 * time.Minute)
}

func TestAggregatorWindowIndex(t *testing.T) {
	agg := newTestAggregator(t)

	base := time.Unix(1_700_000_000, 0)
	idx := agg.WindowIndex(base)

	// Timestamps inside the same 30-minute bucket share an index.
	assert.Equal(t, idx, agg.WindowIndex(base.Add(time.Second)))
	assert.NotEqual(t, idx, agg.WindowIndex(base.Add(30*time.Minute)))
}

func TestAggregatorIngestIdempotent(t *testing.T) {
	agg := newTestAggregator(t)
	ts := time.Unix(1_700_000_100, 0)

	ev := postEvent(meme.PlatformTwitter, "p1", "a1", ts)
	require.NoError(t, agg.Ingest(ev))
	require.NoError(t, agg.Ingest(ev))
	require.NoError(t, agg.Ingest(ev))

	stats := agg.Drain(drainTime(ts))
	require.Len(t, stats, 1)
	assert.Equal(t, meme.UnitKey{Kind: meme.UnitHashtag, Key: "ohio"}, stats[0].Unit)
	assert.Equal(t, 1, stats[0].CountPosts)
	assert.Equal(t, 1, stats[0].DistinctPosts)
	assert.Equal(t, 1, stats[0].DistinctAuthors)
	assert.Equal(t, float64(3), stats[0].SumEngagement)
}

func TestAggregatorSplitsByPlatform(t *testing.T) {
	agg := newTestAggregator(t)
	ts := time.Unix(1_700_000_100, 0)

	require.NoError(t, agg.Ingest(postEvent(meme.PlatformTwitter, "p1", "a1", ts)))
	require.NoError(t, agg.Ingest(postEvent(meme.PlatformTikTok, "p2", "a2", ts)))

	stats := agg.Drain(drainTime(ts))
	require.Len(t, stats, 2)
	assert.Equal(t, stats[0].Unit, stats[1].Unit)
	assert.NotEqual(t, stats[0].Platform, stats[1].Platform)
}

func TestAggregatorCommentPhraseUnit(t *testing.T) {
	agg := newTestAggregator(t)
	ts := time.Unix(1_700_000_100, 0)

	ev := meme.Event{
		Platform:   meme.PlatformReddit,
		Kind:       meme.KindComment,
		PostID:     "p1",
		AuthorID:   "a1",
		Timestamp:  ts,
		Text:       "Ohio FINAL boss!!",
		Engagement: 2,
	}
	require.NoError(t, agg.Ingest(ev))

	stats := agg.Drain(drainTime(ts))
	require.Len(t, stats, 1)
	assert.Equal(t, meme.UnitKey{Kind: meme.UnitPhrase, Key: "ohio final boss"}, stats[0].Unit)
	assert.Equal(t, 0, stats[0].CountPosts)
	assert.Equal(t, 1, stats[0].CountComments)
}

func TestAggregatorPostCaptionPhrases(t *testing.T) {
	agg := newTestAggregator(t)
	ts := time.Unix(1_700_000_100, 0)

	ev := meme.Event{
		Platform:   meme.PlatformTikTok,
		Kind:       meme.KindPost,
		PostID:     "p1",
		AuthorID:   "a1",
		Timestamp:  ts,
		Text:       "hawk tuah spit on that thang #viral https://t.co/x",
		Engagement: 9,
	}
	require.NoError(t, agg.Ingest(ev))

	stats := agg.Drain(drainTime(ts))
	require.NotEmpty(t, stats)

	units := make(map[meme.UnitKey]meme.WindowStat, len(stats))
	for _, s := range stats {
		units[s.Unit] = s
	}

	got, ok := units[meme.UnitKey{Kind: meme.UnitPhrase, Key: "hawk tuah"}]
	require.True(t, ok, "caption bigram should aggregate as a phrase unit")
	assert.Equal(t, 1, got.CountPosts)
	assert.Equal(t, 0, got.CountComments)

	_, ok = units[meme.UnitKey{Kind: meme.UnitPhrase, Key: "hawk tuah spit"}]
	assert.True(t, ok, "caption trigram should aggregate as a phrase unit")

	// The hashtag and the link never become phrase units.
	for unit := range units {
		assert.NotContains(t, unit.Key, "viral https")
		assert.NotContains(t, unit.Key, "https")
	}
}

func TestAggregatorShortStopPhraseAggregates(t *testing.T) {
	agg := newTestAggregator(t)
	ts := time.Unix(1_700_000_100, 0)

	ev := meme.Event{
		Platform:   meme.PlatformReddit,
		Kind:       meme.KindComment,
		PostID:     "p1",
		AuthorID:   "a1",
		Timestamp:  ts,
		Text:       "lol",
		Engagement: 1,
	}
	require.NoError(t, agg.Ingest(ev))

	// A stoplisted phrase below the length floor still aggregates, so the
	// extreme-spike override has a baseline to fire against.
	stats := agg.Drain(drainTime(ts))
	require.Len(t, stats, 1)
	assert.Equal(t, meme.UnitKey{Kind: meme.UnitPhrase, Key: "lol"}, stats[0].Unit)
	assert.Equal(t, 1, stats[0].CountComments)
}

func TestAggregatorRetainsDrainedStatsUntilAck(t *testing.T) {
	agg := newTestAggregator(t)
	ts := time.Unix(1_700_000_100, 0)

	require.NoError(t, agg.Ingest(postEvent(meme.PlatformTwitter, "p1", "a1", ts)))

	first := agg.Drain(drainTime(ts))
	require.Len(t, first, 1)

	// Unacknowledged stats come back on the next drain instead of being
	// lost to a failed flush.
	second := agg.Drain(drainTime(ts))
	require.Len(t, second, 1)
	assert.Equal(t, first[0], second[0])

	agg.Ack()
	assert.Empty(t, agg.Drain(drainTime(ts)))
}

func TestAggregatorImageTemplateUnit(t *testing.T) {
	agg := newTestAggregator(t)
	ts := time.Unix(1_700_000_100, 0)

	// Two near-duplicate hashes and one malformed one. The malformed hash
	// drops silently; the near-duplicates land in one cluster.
	ev1 := postEvent(meme.PlatformInstagram, "p1", "a1", ts)
	ev1.Hashtags = nil
	ev1.MediaHashes = []string{"0000000000000000"}

	ev2 := postEvent(meme.PlatformInstagram, "p2", "a2", ts)
	ev2.Hashtags = nil
	ev2.MediaHashes = []string{"00000000000000ff", "not-hex"}

	require.NoError(t, agg.Ingest(ev1))
	require.NoError(t, agg.Ingest(ev2))

	stats := agg.Drain(drainTime(ts))
	require.Len(t, stats, 1)
	assert.Equal(t, meme.UnitImageTemplate, stats[0].Unit.Kind)
	assert.Equal(t, "0000000000000000", stats[0].Unit.Key)
	assert.Equal(t, 2, stats[0].CountPosts)
}

func TestAggregatorZeroEngagementExcludedFromSpread(t *testing.T) {
	agg := newTestAggregator(t)
	ts := time.Unix(1_700_000_100, 0)

	for i, engagement := range []float64{0, 0, 4} {
		ev := meme.Event{
			Platform:   meme.PlatformTikTok,
			Kind:       meme.KindComment,
			PostID:     "p" + string(rune('1'+i)),
			AuthorID:   "a" + string(rune('1'+i)),
			Timestamp:  ts,
			Text:       "ohio final boss",
			Engagement: engagement,
		}
		require.NoError(t, agg.Ingest(ev))
	}

	stats := agg.Drain(drainTime(ts))
	require.Len(t, stats, 1)

	// Zero-engagement occurrences count toward frequency but not spread.
	assert.Equal(t, 3, stats[0].Frequency())
	assert.Equal(t, 3, stats[0].DistinctPosts)
	assert.Equal(t, 1, stats[0].EngagedPosts)
}

func TestAggregatorDrainHonorsGracePeriod(t *testing.T) {
	agg := newTestAggregator(t)
	ts := time.Unix(1_700_000_100, 0)
	windowEnd := ts.Truncate(30 * time.Minute).Add(30 * time.Minute)

	require.NoError(t, agg.Ingest(postEvent(meme.PlatformTwitter, "p1", "a1", ts)))

	// Inside the grace period the window stays open.
	assert.Empty(t, agg.Drain(windowEnd.Add(4*time.Minute)))

	// Past the grace period it finalizes.
	stats := agg.Drain(windowEnd.Add(6 * time.Minute))
	require.Len(t, stats, 1)
	agg.Ack()

	// Once flushed and acknowledged, the window is gone for good.
	assert.Empty(t, agg.Drain(windowEnd.Add(time.Hour)))
}

func TestAggregatorDropsEventsPastGrace(t *testing.T) {
	agg := newTestAggregator(t)
	ts := time.Unix(1_700_000_100, 0)

	require.NoError(t, agg.Ingest(postEvent(meme.PlatformTwitter, "p1", "a1", ts)))
	require.Len(t, agg.Drain(drainTime(ts)), 1)
	agg.Ack()

	// A straggler for the flushed window must not reopen it.
	late := postEvent(meme.PlatformTwitter, "p2", "a2", ts)
	require.NoError(t, agg.Ingest(late))
	assert.Empty(t, agg.Drain(drainTime(ts)))
}

func TestAggregatorExampleCap(t *testing.T) {
	agg := newTestAggregator(t)
	ts := time.Unix(1_700_000_100, 0)

	for i := 0; i < 10; i++ {
		ev := postEvent(meme.PlatformTwitter, "p"+string(rune('a'+i)), "author"+string(rune('a'+i)), ts)
		ev.Permalink = "https://x.com/" + ev.PostID
		require.NoError(t, agg.Ingest(ev))
	}

	stats := agg.Drain(drainTime(ts))
	require.Len(t, stats, 1)
	assert.Equal(t, 10, stats[0].CountPosts)
	assert.Len(t, stats[0].Examples, 5)
	assert.Contains(t, stats[0].Examples[0], "https://x.com/")
}

func TestAggregatorReconfigureWindowSizeDiscardsOpenWindows(t *testing.T) {
	agg := newTestAggregator(t)
	ts := time.Unix(1_700_000_100, 0)

	require.NoError(t, agg.Ingest(postEvent(meme.PlatformTwitter, "p1", "a1", ts)))

	cfg := testAggConfig()
	cfg.WindowSizeMinutes = 15
	agg.Reconfigure(cfg)

	assert.Empty(t, agg.Drain(drainTime(ts)))
}
