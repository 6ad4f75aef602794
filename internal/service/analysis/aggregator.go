// internal/service/analysis/aggregator.go

package analysis

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Amro212/meme-radar/internal/config"
	"github.com/Amro212/meme-radar/internal/domain/meme"
)

// Aggregator buckets normalized events into fixed-width time windows per
// (unit, platform) pair. Ingestion is idempotent and order-insensitive:
// retried or reordered collector output never double counts. Windows are
// finalized lazily; a window only leaves the aggregator once wall-clock time
// has passed its end plus the grace period for late-arriving events.
type Aggregator struct {
	mu           sync.Mutex
	windowSize   time.Duration
	grace        time.Duration
	exampleLimit int
	lastFlushed  int64
	pending      []meme.WindowStat

	clusterer *Clusterer
	noise     *NoiseFilter
	logger    *zap.Logger

	windows map[int64]map[statKey]*unitAgg
}

type statKey struct {
	unit     meme.UnitKey
	platform meme.Platform
}

type unitAgg struct {
	countPosts    int
	countComments int
	sumEngagement float64
	emojiSignals  int
	posts         map[string]struct{}
	authors       map[string]struct{}
	engagedPosts  map[string]struct{}
	seen          map[string]struct{}
	examples      []string
}

// NewAggregator creates an aggregator with the current analysis settings.
func NewAggregator(cfg config.AnalysisConfig, clusterer *Clusterer, noise *NoiseFilter, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		windowSize:   cfg.WindowSize(),
		grace:        cfg.GracePeriod(),
		exampleLimit: cfg.ExampleRefLimit,
		lastFlushed:  -1,
		clusterer:    clusterer,
		noise:        noise,
		logger:       logger,
		windows:      make(map[int64]map[statKey]*unitAgg),
	}
}

// Reconfigure applies a reloaded configuration. Changing the window size
// invalidates the meaning of open window indices, so open windows are
// discarded in that case; threshold-only reloads keep everything.
func (a *Aggregator) Reconfigure(cfg config.AnalysisConfig) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if cfg.WindowSize() != a.windowSize {
		a.logger.Warn("window size changed, discarding open windows",
			zap.Duration("old", a.windowSize),
			zap.Duration("new", cfg.WindowSize()),
		)
		a.windows = make(map[int64]map[statKey]*unitAgg)
		a.pending = nil
		a.lastFlushed = -1
		a.windowSize = cfg.WindowSize()
	}
	a.grace = cfg.GracePeriod()
	a.exampleLimit = cfg.ExampleRefLimit
}

// WindowIndex maps a timestamp onto its window: floor(ts / window_size).
func (a *Aggregator) WindowIndex(t time.Time) int64 {
	a.mu.Lock()
	size := a.windowSize
	a.mu.Unlock()
	return t.Unix() / int64(size.Seconds())
}

// Ingest folds one event into the window stats of every unit it references.
// Events landing in a window already flushed (later than the grace period
// allows) are dropped so closed windows stay append-only.
func (a *Aggregator) Ingest(ev meme.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx := ev.Timestamp.Unix() / int64(a.windowSize.Seconds())
	if idx <= a.lastFlushed {
		a.logger.Debug("dropping event past grace period",
			zap.String("post_id", ev.PostID),
			zap.Int64("window", idx),
		)
		return nil
	}

	dedupe := ev.DedupeID()

	for _, tag := range ev.Hashtags {
		key := NormalizeHashtag(tag)
		unit := meme.UnitKey{Kind: meme.UnitHashtag, Key: key}
		if key == "" || a.noise.DropUnit(unit) {
			continue
		}
		a.fold(idx, unit, ev, dedupe, 0)
	}

	switch {
	case ev.Kind == meme.KindComment && ev.Text != "":
		normalized, emoji := NormalizeText(ev.Text)
		unit := meme.UnitKey{Kind: meme.UnitPhrase, Key: normalized}
		if normalized != "" && !a.noise.DropUnit(unit) {
			a.fold(idx, unit, ev, dedupe, emoji)
		}
	case ev.Kind == meme.KindPost && ev.Text != "":
		for _, phrase := range ExtractPostPhrases(ev.Text) {
			unit := meme.UnitKey{Kind: meme.UnitPhrase, Key: phrase}
			if a.noise.DropUnit(unit) {
				continue
			}
			a.fold(idx, unit, ev, dedupe, 0)
		}
	}

	for _, hash := range ev.MediaHashes {
		clusterID, err := a.clusterer.Assign(hash)
		if err != nil {
			// A bad hash drops only this media reference, never the event
			// or the pass.
			a.logger.Debug("skipping unclusterable media hash",
				zap.String("post_id", ev.PostID),
				zap.Error(err),
			)
			continue
		}
		a.fold(idx, meme.UnitKey{Kind: meme.UnitImageTemplate, Key: clusterID}, ev, dedupe, 0)
	}

	return nil
}

func (a *Aggregator) fold(idx int64, unit meme.UnitKey, ev meme.Event, dedupe string, emoji int) {
	window, ok := a.windows[idx]
	if !ok {
		window = make(map[statKey]*unitAgg)
		a.windows[idx] = window
	}

	key := statKey{unit: unit, platform: ev.Platform}
	agg, ok := window[key]
	if !ok {
		agg = &unitAgg{
			posts:        make(map[string]struct{}),
			authors:      make(map[string]struct{}),
			engagedPosts: make(map[string]struct{}),
			seen:         make(map[string]struct{}),
		}
		window[key] = agg
	}

	if _, dup := agg.seen[dedupe]; dup {
		return
	}
	agg.seen[dedupe] = struct{}{}

	if ev.Kind == meme.KindPost {
		agg.countPosts++
	} else {
		agg.countComments++
	}
	agg.sumEngagement += ev.Engagement
	agg.emojiSignals += emoji
	agg.authors[ev.AuthorID] = struct{}{}

	if _, dup := agg.posts[ev.PostID]; !dup && len(agg.examples) < a.exampleLimit {
		ref := ev.Permalink
		if ref == "" {
			ref = ev.PostID
		}
		agg.examples = append(agg.examples, ref)
	}
	agg.posts[ev.PostID] = struct{}{}

	if ev.Engagement > 0 {
		agg.engagedPosts[ev.PostID] = struct{}{}
	} else if ev.Kind == meme.KindComment {
		// All-zero-engagement repeats look like bot spam; they count in the
		// raw frequency but not toward spread. Logged for visibility.
		a.logger.Debug("zero-engagement occurrence excluded from spread",
			zap.String("unit", unit.String()),
			zap.String("post_id", ev.PostID),
		)
	}
}

// Drain finalizes and removes every window whose end plus the grace period
// has passed, returning their stats in deterministic order. Drained stats
// stay buffered until Ack confirms they were persisted; a pass that fails to
// persist gets the same stats back on its next drain instead of losing the
// window's counts.
func (a *Aggregator) Drain(now time.Time) []meme.WindowStat {
	a.mu.Lock()
	defer a.mu.Unlock()

	windowSec := int64(a.windowSize.Seconds())
	graceSec := int64(a.grace.Seconds())
	cutoff := now.Unix()

	out := a.pending
	for idx, window := range a.windows {
		if (idx+1)*windowSec+graceSec > cutoff {
			continue
		}
		for key, agg := range window {
			out = append(out, meme.WindowStat{
				Unit:            key.unit,
				Platform:        key.platform,
				WindowIndex:     idx,
				CountPosts:      agg.countPosts,
				CountComments:   agg.countComments,
				SumEngagement:   agg.sumEngagement,
				DistinctPosts:   len(agg.posts),
				DistinctAuthors: len(agg.authors),
				EngagedPosts:    len(agg.engagedPosts),
				EmojiSignals:    agg.emojiSignals,
				Examples:        agg.examples,
			})
		}
		delete(a.windows, idx)
		if idx > a.lastFlushed {
			a.lastFlushed = idx
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].WindowIndex != out[j].WindowIndex {
			return out[i].WindowIndex < out[j].WindowIndex
		}
		if out[i].Unit.String() != out[j].Unit.String() {
			return out[i].Unit.String() < out[j].Unit.String()
		}
		return out[i].Platform < out[j].Platform
	})

	a.pending = out
	return out
}

// Ack discards the drained stats after the caller has persisted them.
func (a *Aggregator) Ack() {
	a.mu.Lock()
	a.pending = nil
	a.mu.Unlock()
}
