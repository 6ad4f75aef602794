package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/Amro212/meme-radar/internal/config"
	"github.com/Amro212/meme-radar/internal/domain/meme"
)

func testNoiseConfig() config.AnalysisConfig {
	return config.AnalysisConfig{
		StopPhrases:         []string{"lol", "fr fr", "so true"},
		EvergreenHashtags:   []string{"fyp", "#viral"},
		PromotionalPatterns: []string{"link in bio", "use code", "giveaway", "http", "www."},
	}
}

func TestNoiseFilterDropUnit(t *testing.T) {
	f := NewNoiseFilter(testNoiseConfig(), zap.NewNop())

	tests := []struct {
		name string
		unit meme.UnitKey
		want bool
	}{
		{"single char hashtag", meme.UnitKey{Kind: meme.UnitHashtag, Key: "x"}, true},
		{"digit only hashtag", meme.UnitKey{Kind: meme.UnitHashtag, Key: "2024"}, true},
		{"normal hashtag", meme.UnitKey{Kind: meme.UnitHashtag, Key: "ohio"}, false},
		{"short phrase", meme.UnitKey{Kind: meme.UnitPhrase, Key: "ok"}, true},
		{"short phrase on stop list is kept for aggregation", meme.UnitKey{Kind: meme.UnitPhrase, Key: "lol"}, false},
		{"real phrase", meme.UnitKey{Kind: meme.UnitPhrase, Key: "ohio final boss"}, false},
		{"stop phrase is kept for aggregation", meme.UnitKey{Kind: meme.UnitPhrase, Key: "so true"}, false},
		{"evergreen hashtag is kept for aggregation", meme.UnitKey{Kind: meme.UnitHashtag, Key: "fyp"}, false},
		{"image template never dropped", meme.UnitKey{Kind: meme.UnitImageTemplate, Key: "ab"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.DropUnit(tt.unit))
		})
	}
}

func TestNoiseFilterStoplisted(t *testing.T) {
	f := NewNoiseFilter(testNoiseConfig(), zap.NewNop())

	tests := []struct {
		name string
		unit meme.UnitKey
		want bool
	}{
		{"exact stop phrase", meme.UnitKey{Kind: meme.UnitPhrase, Key: "fr fr"}, true},
		{"phrase dominated by stop phrase", meme.UnitKey{Kind: meme.UnitPhrase, Key: "so true fr"}, true},
		{"stop phrase inside a longer novel phrase", meme.UnitKey{Kind: meme.UnitPhrase, Key: "lol at the ohio final boss meme"}, false},
		{"evergreen hashtag", meme.UnitKey{Kind: meme.UnitHashtag, Key: "viral"}, true},
		{"novel hashtag", meme.UnitKey{Kind: meme.UnitHashtag, Key: "ohio"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Stoplisted(tt.unit))
		})
	}
}

func TestNoiseFilterPromotional(t *testing.T) {
	f := NewNoiseFilter(testNoiseConfig(), zap.NewNop())

	assert.True(t, f.Promotional("new drop use code OHIO10"))
	assert.True(t, f.Promotional("full tutorial link in bio"))
	assert.True(t, f.Promotional("grab yours at https://sh.op/x"))
	assert.True(t, f.Promotional("grab yours at www.shop.example"))
	assert.False(t, f.Promotional("ohio final boss"))
}

func TestNoiseFilterSuppress(t *testing.T) {
	f := NewNoiseFilter(testNoiseConfig(), zap.NewNop())
	th := config.Thresholds{MinFrequency: 10, ZThreshold: 2.0, AccelThreshold: 3.0, MinEngagement: 5}

	tests := []struct {
		name string
		cand meme.TrendCandidate
		want string
	}{
		{
			name: "single author suppressed regardless of volume",
			cand: meme.TrendCandidate{
				Unit:             meme.UnitKey{Kind: meme.UnitPhrase, Key: "ohio final boss"},
				CurrentFrequency: 500,
				DistinctAuthors:  1,
				ZScore:           50,
			},
			want: "single author",
		},
		{
			name: "promotional phrase suppressed",
			cand: meme.TrendCandidate{
				Unit:            meme.UnitKey{Kind: meme.UnitPhrase, Key: "new merch use code boss"},
				DistinctAuthors: 20,
				ZScore:          5,
			},
			want: "promotional content",
		},
		{
			name: "stoplisted below override threshold suppressed",
			cand: meme.TrendCandidate{
				Unit:            meme.UnitKey{Kind: meme.UnitPhrase, Key: "fr fr"},
				DistinctAuthors: 20,
				ZScore:          3.9,
			},
			want: "stoplisted without extreme spike",
		},
		{
			name: "stoplisted with extreme spike surfaces",
			cand: meme.TrendCandidate{
				Unit:            meme.UnitKey{Kind: meme.UnitPhrase, Key: "fr fr"},
				DistinctAuthors: 20,
				ZScore:          4.0,
			},
			want: "",
		},
		{
			name: "short stop phrase below override suppressed",
			cand: meme.TrendCandidate{
				Unit:            meme.UnitKey{Kind: meme.UnitPhrase, Key: "lol"},
				DistinctAuthors: 20,
				ZScore:          3.9,
			},
			want: "stoplisted without extreme spike",
		},
		{
			name: "short stop phrase with extreme spike surfaces",
			cand: meme.TrendCandidate{
				Unit:            meme.UnitKey{Kind: meme.UnitPhrase, Key: "lol"},
				DistinctAuthors: 20,
				ZScore:          4.5,
			},
			want: "",
		},
		{
			name: "clean candidate kept",
			cand: meme.TrendCandidate{
				Unit:            meme.UnitKey{Kind: meme.UnitPhrase, Key: "ohio final boss"},
				DistinctAuthors: 20,
				ZScore:          3,
			},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Suppress(tt.cand, th, 2.0))
		})
	}
}

func TestNoiseFilterReloadSwapsLists(t *testing.T) {
	f := NewNoiseFilter(testNoiseConfig(), zap.NewNop())

	unit := meme.UnitKey{Kind: meme.UnitPhrase, Key: "ohio final boss"}
	assert.False(t, f.Stoplisted(unit))

	cfg := testNoiseConfig()
	cfg.StopPhrases = append(cfg.StopPhrases, "ohio final boss")
	f.Reload(cfg)

	assert.True(t, f.Stoplisted(unit))
}
