// internal/service/analysis/noise.go

package analysis

import (
	"strings"
	"sync"
	"unicode"

	ahocorasick "github.com/cloudflare/ahocorasick"
	"go.uber.org/zap"

	"github.com/Amro212/meme-radar/internal/config"
	"github.com/Amro212/meme-radar/internal/domain/meme"
)

// NoiseFilter suppresses known-noise units before aggregation and spammy or
// promotional candidates after scoring. All lists come from configuration
// and Reload swaps them without stopping ingestion.
type NoiseFilter struct {
	mu          sync.RWMutex
	stopPhrases map[string]struct{}
	evergreen   map[string]struct{}
	promo       *ahocorasick.Matcher
	promoCount  int
	logger      *zap.Logger
}

// NewNoiseFilter builds a filter from the current analysis configuration.
func NewNoiseFilter(cfg config.AnalysisConfig, logger *zap.Logger) *NoiseFilter {
	f := &NoiseFilter{logger: logger}
	f.Reload(cfg)
	return f
}

// Reload rebuilds the stop lists and the promotional pattern automaton.
func (f *NoiseFilter) Reload(cfg config.AnalysisConfig) {
	stop := make(map[string]struct{}, len(cfg.StopPhrases))
	for _, p := range cfg.StopPhrases {
		if s := strings.TrimSpace(strings.ToLower(p)); s != "" {
			stop[s] = struct{}{}
		}
	}

	evergreen := make(map[string]struct{}, len(cfg.EvergreenHashtags))
	for _, t := range cfg.EvergreenHashtags {
		if s := NormalizeHashtag(t); s != "" {
			evergreen[s] = struct{}{}
		}
	}

	patterns := make([]string, 0, len(cfg.PromotionalPatterns))
	for _, p := range cfg.PromotionalPatterns {
		if s := strings.TrimSpace(strings.ToLower(p)); s != "" {
			patterns = append(patterns, s)
		}
	}

	var promo *ahocorasick.Matcher
	if len(patterns) > 0 {
		promo = ahocorasick.NewStringMatcher(patterns)
	}

	f.mu.Lock()
	f.stopPhrases = stop
	f.evergreen = evergreen
	f.promo = promo
	f.promoCount = len(patterns)
	f.mu.Unlock()
}

// DropUnit rejects units that can never surface as memes, before they reach
// aggregation: empty keys, single-character or digit-only hashtags, and
// phrases too short to be a meme. Stop-phrase and evergreen units are NOT
// dropped here; they are still aggregated so an extreme spike can override
// the suppression at scoring time. The length floor exempts phrases on the
// stop list for the same reason, otherwise a short stop phrase would never
// aggregate and the override could never fire for it.
func (f *NoiseFilter) DropUnit(unit meme.UnitKey) bool {
	switch unit.Kind {
	case meme.UnitHashtag:
		if len(unit.Key) < 2 {
			return true
		}
		if isAllDigits(unit.Key) {
			return true
		}
	case meme.UnitPhrase:
		if len(unit.Key) < 5 && !f.onStopList(unit.Key) {
			return true
		}
	}
	return unit.Key == ""
}

func (f *NoiseFilter) onStopList(key string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.stopPhrases[key]
	return ok
}

// Stoplisted reports whether a unit is on the stop-phrase or evergreen list.
// Such units only surface when their z-score clears the extreme-spike
// override threshold.
func (f *NoiseFilter) Stoplisted(unit meme.UnitKey) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	switch unit.Kind {
	case meme.UnitHashtag:
		_, ok := f.evergreen[unit.Key]
		return ok
	case meme.UnitPhrase:
		if _, ok := f.stopPhrases[unit.Key]; ok {
			return true
		}
		// A phrase dominated by a stop phrase is still that stop phrase.
		for stop := range f.stopPhrases {
			if strings.Contains(unit.Key, stop) && len(stop)*10 >= len(unit.Key)*7 {
				return true
			}
		}
	}
	return false
}

// Promotional reports whether a unit key reads like promotional content
// (URLs, discount-code tokens, engagement bait).
func (f *NoiseFilter) Promotional(text string) bool {
	f.mu.RLock()
	matcher := f.promo
	f.mu.RUnlock()

	if matcher == nil {
		return false
	}
	return len(matcher.Match([]byte(strings.ToLower(text)))) > 0
}

// Suppress decides whether a scored raw candidate is noise. It returns the
// reason for suppression, or "" to keep the candidate.
func (f *NoiseFilter) Suppress(c meme.TrendCandidate, th config.Thresholds, extremeMultiplier float64) string {
	// Single-account spam never becomes a candidate regardless of volume.
	if c.DistinctAuthors <= 1 {
		return "single author"
	}

	if c.Unit.Kind == meme.UnitPhrase && f.Promotional(c.Unit.Key) {
		return "promotional content"
	}

	if f.Stoplisted(c.Unit) {
		if c.ZScore < th.ZThreshold*extremeMultiplier {
			return "stoplisted without extreme spike"
		}
		f.logger.Info("stoplisted unit surfacing on extreme spike",
			zap.String("unit", c.Unit.String()),
			zap.Float64("z_score", c.ZScore),
		)
	}

	return ""
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}
