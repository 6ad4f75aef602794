package analysis

import (
	"sort"

	"github.com/Amro212/meme-radar/internal/config"
	"github.com/Amro212/meme-radar/internal/domain/meme"
)

// CommentMemeDetector enriches phrase candidates with spread metrics: how
// many distinct posts a phrase landed on within one window, and how many
// platforms it touched within the cross-platform span. Only occurrences
// with non-zero engagement count toward spread; all-zero-engagement repeats
// are bot-spam evidence and are excluded upstream by the aggregator.
type CommentMemeDetector struct {
	cfg config.AnalysisConfig
}

// NewCommentMemeDetector creates a detector from a configuration snapshot.
func NewCommentMemeDetector(cfg config.AnalysisConfig) *CommentMemeDetector {
	return &CommentMemeDetector{cfg: cfg}
}

// Enrich fills the spread fields of a phrase candidate. current is the
// candidate's own window stat; recent holds the unit's stats across all
// platforms within the cross-platform window span, current window included.
// A phrase is a strong candidate when it spreads across enough distinct
// posts on one platform in one window, or across enough platforms within
// the span.
func (d *CommentMemeDetector) Enrich(c *meme.TrendCandidate, current meme.WindowStat, recent []meme.WindowStat) {
	if c.Unit.Kind != meme.UnitPhrase {
		return
	}

	c.SpreadPosts = current.EngagedPosts

	platforms := make(map[meme.Platform]struct{})
	lowerBound := current.WindowIndex - int64(d.cfg.CrossPlatformWindowSpan) + 1
	for _, s := range recent {
		if s.WindowIndex < lowerBound || s.WindowIndex > current.WindowIndex {
			continue
		}
		if s.EngagedPosts == 0 {
			continue
		}
		platforms[s.Platform] = struct{}{}
	}
	c.SpreadPlatforms = len(platforms)

	c.StrongSpread = c.SpreadPosts >= d.cfg.MinDistinctPosts ||
		c.SpreadPlatforms >= d.cfg.MinPlatforms

	if len(platforms) > 1 {
		list := make([]meme.Platform, 0, len(platforms))
		for p := range platforms {
			list = append(list, p)
		}
		sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
		c.Platforms = list
	}
}
