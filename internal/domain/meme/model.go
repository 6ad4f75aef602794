package meme

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"
)

// Platform identifies the social network an event was collected from.
type Platform string

// Known platforms. PlatformCross is the pseudo-platform assigned to the
// merged, platform-agnostic candidate produced by the correlator.
const (
	PlatformTwitter   Platform = "twitter"
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
	PlatformReddit    Platform = "reddit"
	PlatformCross     Platform = "cross-platform"
)

// KnownPlatform reports whether p is one of the platforms collectors
// are allowed to report events for.
func KnownPlatform(p Platform) bool {
	switch p {
	case PlatformTwitter, PlatformTikTok, PlatformInstagram, PlatformReddit:
		return true
	}
	return false
}

// EventKind distinguishes posts from comments.
type EventKind string

const (
	KindPost    EventKind = "post"
	KindComment EventKind = "comment"
)

// UnitKind enumerates the kinds of tracked units.
type UnitKind string

const (
	UnitHashtag       UnitKind = "hashtag"
	UnitPhrase        UnitKind = "phrase"
	UnitImageTemplate UnitKind = "image-template"
)

// UnitKey is the tagged identity of a tracked unit: the kind plus its
// normalized key (lowercased tag, normalized phrase, or cluster id).
type UnitKey struct {
	Kind UnitKind `json:"kind"`
	Key  string   `json:"key"`
}

func (u UnitKey) String() string {
	return string(u.Kind) + ":" + u.Key
}

// Event is a normalized collector record. Immutable once ingested.
type Event struct {
	Platform    Platform  `json:"platform"`
	Kind        EventKind `json:"event_kind"`
	PostID      string    `json:"post_id"`
	AuthorID    string    `json:"author_id"`
	Timestamp   time.Time `json:"timestamp"`
	Text        string    `json:"text,omitempty"`
	Hashtags    []string  `json:"hashtags,omitempty"`
	MediaHashes []string  `json:"media_hashes,omitempty"`
	Engagement  float64   `json:"engagement_magnitude"`
	Permalink   string    `json:"permalink,omitempty"`
}

// DedupeID returns a stable identifier used for idempotent ingestion.
// Collectors re-fetch overlapping time ranges, so the same logical event
// may arrive more than once; two arrivals of the same event produce the
// same id.
func (e Event) DedupeID() string {
	h := fnv.New64a()
	h.Write([]byte(e.Platform))
	h.Write([]byte{0})
	h.Write([]byte(e.Kind))
	h.Write([]byte{0})
	h.Write([]byte(e.PostID))
	h.Write([]byte{0})
	h.Write([]byte(e.AuthorID))
	h.Write([]byte{0})
	h.Write([]byte(e.Text))
	return fmt.Sprintf("%016x", h.Sum64())
}

// Validate checks the fields collectors are required to provide. Events with
// timestamps outside [now-horizon, now+slack] are rejected as implausible.
func (e Event) Validate(now time.Time, horizon, slack time.Duration) error {
	if !KnownPlatform(e.Platform) {
		return &InvalidEventError{Field: "platform", Reason: fmt.Sprintf("unknown platform %q", e.Platform)}
	}
	if e.Kind != KindPost && e.Kind != KindComment {
		return &InvalidEventError{Field: "event_kind", Reason: fmt.Sprintf("unknown kind %q", e.Kind)}
	}
	if strings.TrimSpace(e.PostID) == "" {
		return &InvalidEventError{Field: "post_id", Reason: "missing"}
	}
	if strings.TrimSpace(e.AuthorID) == "" {
		return &InvalidEventError{Field: "author_id", Reason: "missing"}
	}
	if e.Timestamp.IsZero() {
		return &InvalidEventError{Field: "timestamp", Reason: "missing"}
	}
	if e.Timestamp.After(now.Add(slack)) {
		return &InvalidEventError{Field: "timestamp", Reason: "in the future"}
	}
	if e.Timestamp.Before(now.Add(-horizon)) {
		return &InvalidEventError{Field: "timestamp", Reason: "older than the tracking horizon"}
	}
	if e.Engagement < 0 {
		return &InvalidEventError{Field: "engagement_magnitude", Reason: "negative"}
	}
	return nil
}

// WindowStat is the per (unit, platform, window) aggregate. Append-only per
// window once the window closes.
type WindowStat struct {
	Unit            UnitKey  `json:"unit"`
	Platform        Platform `json:"platform"`
	WindowIndex     int64    `json:"window_index"`
	CountPosts      int      `json:"count_posts"`
	CountComments   int      `json:"count_comments"`
	SumEngagement   float64  `json:"sum_engagement"`
	DistinctPosts   int      `json:"distinct_posts"`
	DistinctAuthors int      `json:"distinct_authors"`

	// EngagedPosts counts distinct posts whose contributing occurrences had
	// non-zero engagement. Zero-engagement repeats look like bot spam and do
	// not count toward comment-meme spread.
	EngagedPosts int `json:"engaged_posts"`

	// EmojiSignals counts occurrences whose text carried emoji that were
	// stripped during normalization.
	EmojiSignals int `json:"emoji_signals"`

	// Examples holds a bounded list of contributing post references.
	Examples []string `json:"examples,omitempty"`
}

// Frequency is the combined post+comment count used for baseline statistics.
func (s WindowStat) Frequency() int {
	return s.CountPosts + s.CountComments
}

// History is an ordered, contiguous run of WindowStats for one
// (unit, platform) pair, oldest first. Missing windows are represented as
// zero-count stats, never skipped, so baselines stay unbiased.
type History []WindowStat

// Frequencies returns the per-window combined counts, oldest first.
func (h History) Frequencies() []int {
	out := make([]int, len(h))
	for i, s := range h {
		out[i] = s.Frequency()
	}
	return out
}

// TrendCandidate is the derived, per-run output of the engine. Recomputed
// every pass and replaced wholesale, never mutated in place.
type TrendCandidate struct {
	ID               string     `json:"id"`
	Unit             UnitKey    `json:"unit"`
	Platform         Platform   `json:"platform"`
	WindowIndex      int64      `json:"window_index"`
	CurrentFrequency int        `json:"current_frequency"`
	BaselineMean     float64    `json:"baseline_mean"`
	BaselineStddev   float64    `json:"baseline_stddev"`
	Acceleration     float64    `json:"acceleration_score"`
	ZScore           float64    `json:"z_score"`
	TrendScore       float64    `json:"trend_score"`
	SumEngagement    float64    `json:"sum_engagement"`
	DistinctAuthors  int        `json:"distinct_authors"`
	SpreadPosts      int        `json:"spread_posts,omitempty"`
	SpreadPlatforms  int        `json:"spread_platforms,omitempty"`
	StrongSpread     bool       `json:"strong_spread,omitempty"`
	CrossPlatform    bool       `json:"cross_platform"`
	Platforms        []Platform `json:"platforms,omitempty"`
	Examples         []string   `json:"examples,omitempty"`
	DetectedAt       time.Time  `json:"detected_at"`
}

// Rank orders candidates for presentation: trend score descending, then raw
// frequency descending, then unit key ascending. The secondary keys make the
// ordering deterministic when scores tie.
func Rank(candidates []TrendCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.TrendScore != b.TrendScore {
			return a.TrendScore > b.TrendScore
		}
		if a.CurrentFrequency != b.CurrentFrequency {
			return a.CurrentFrequency > b.CurrentFrequency
		}
		return a.Unit.String() < b.Unit.String()
	})
}

// Filter selects candidates for the read API.
type Filter struct {
	Platform  Platform
	Since     time.Time
	CrossOnly bool
	MinScore  float64
	Limit     int
}
