// internal/config/analysis.go

package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Amro212/meme-radar/internal/domain/meme"
)

// Thresholds gates raw candidacy. Tunable per unit kind.
type Thresholds struct {
	MinFrequency   int     `mapstructure:"min_frequency"`
	ZThreshold     float64 `mapstructure:"z_threshold"`
	AccelThreshold float64 `mapstructure:"accel_threshold"`
	MinEngagement  float64 `mapstructure:"min_engagement"`
}

// Weights combines the normalized score components. The composite stays
// monotone in each input as long as every weight is non-negative.
type Weights struct {
	Acceleration float64 `mapstructure:"acceleration"`
	ZScore       float64 `mapstructure:"z_score"`
	Engagement   float64 `mapstructure:"engagement"`
}

// AnalysisConfig is the hot-reloadable engine configuration. A pass takes a
// snapshot at its start; reloads apply from the next pass onward.
type AnalysisConfig struct {
	WindowSizeMinutes  int                    `mapstructure:"window_size_minutes"`
	GracePeriodMinutes int                    `mapstructure:"grace_period_minutes"`
	HistoryWindowCount int                    `mapstructure:"history_window_count"`
	Defaults           Thresholds             `mapstructure:"thresholds"`
	KindOverrides      map[string]Thresholds  `mapstructure:"kind_thresholds"`
	Score              Weights                `mapstructure:"score_weights"`

	SimilarityThreshold     int     `mapstructure:"similarity_threshold"`
	MinDistinctPosts        int     `mapstructure:"min_distinct_posts"`
	MinPlatforms            int     `mapstructure:"min_platforms"`
	CrossPlatformWindowSpan int     `mapstructure:"cross_platform_window_span"`
	AdjacentWindowSpan      int     `mapstructure:"adjacent_window_span"`
	PlatformBoost           float64 `mapstructure:"platform_boost"`
	ExtremeSpikeMultiplier  float64 `mapstructure:"extreme_spike_multiplier"`
	ExampleRefLimit         int     `mapstructure:"example_ref_limit"`

	StopPhrases          []string `mapstructure:"stop_phrases"`
	EvergreenHashtags    []string `mapstructure:"evergreen_hashtags"`
	PromotionalPatterns  []string `mapstructure:"promotional_patterns"`
}

// WindowSize returns the aggregation window width.
func (c AnalysisConfig) WindowSize() time.Duration {
	return time.Duration(c.WindowSizeMinutes) * time.Minute
}

// GracePeriod returns how long after a window's end late events are folded in.
func (c AnalysisConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodMinutes) * time.Minute
}

// Horizon is the oldest event timestamp still worth ingesting: anything
// older than the full history span can no longer influence a baseline.
func (c AnalysisConfig) Horizon() time.Duration {
	return time.Duration(c.HistoryWindowCount+1) * c.WindowSize()
}

// ThresholdsFor returns the thresholds for a unit kind, falling back to the
// defaults when no per-kind override is configured.
func (c AnalysisConfig) ThresholdsFor(kind meme.UnitKind) Thresholds {
	if t, ok := c.KindOverrides[string(kind)]; ok {
		return t
	}
	return c.Defaults
}

// Validate fails fast on misconfigured thresholds.
func (c AnalysisConfig) Validate() error {
	if c.WindowSizeMinutes <= 0 {
		return &meme.InvalidConfigError{Key: "window_size_minutes", Reason: "must be positive"}
	}
	if c.GracePeriodMinutes < 0 {
		return &meme.InvalidConfigError{Key: "grace_period_minutes", Reason: "must not be negative"}
	}
	if c.HistoryWindowCount < 3 {
		return &meme.InvalidConfigError{Key: "history_window_count", Reason: "must be at least 3 to form a baseline"}
	}
	if err := c.Defaults.validate("thresholds"); err != nil {
		return err
	}
	for kind, t := range c.KindOverrides {
		if kind != string(meme.UnitHashtag) && kind != string(meme.UnitPhrase) && kind != string(meme.UnitImageTemplate) {
			return &meme.InvalidConfigError{Key: "kind_thresholds." + kind, Reason: "unknown unit kind"}
		}
		if err := t.validate("kind_thresholds." + kind); err != nil {
			return err
		}
	}
	if c.Score.Acceleration < 0 || c.Score.ZScore < 0 || c.Score.Engagement < 0 {
		return &meme.InvalidConfigError{Key: "score_weights", Reason: "weights must not be negative"}
	}
	if sum := c.Score.Acceleration + c.Score.ZScore + c.Score.Engagement; sum <= 0 {
		return &meme.InvalidConfigError{Key: "score_weights", Reason: "at least one weight must be positive"}
	}
	if c.SimilarityThreshold < 0 {
		return &meme.InvalidConfigError{Key: "similarity_threshold", Reason: "must not be negative"}
	}
	if c.MinDistinctPosts < 1 {
		return &meme.InvalidConfigError{Key: "min_distinct_posts", Reason: "must be at least 1"}
	}
	if c.MinPlatforms < 2 {
		return &meme.InvalidConfigError{Key: "min_platforms", Reason: "must be at least 2"}
	}
	if c.CrossPlatformWindowSpan < 1 {
		return &meme.InvalidConfigError{Key: "cross_platform_window_span", Reason: "must be at least 1"}
	}
	if c.AdjacentWindowSpan < 0 {
		return &meme.InvalidConfigError{Key: "adjacent_window_span", Reason: "must not be negative"}
	}
	if c.PlatformBoost < 0 {
		return &meme.InvalidConfigError{Key: "platform_boost", Reason: "must not be negative"}
	}
	if c.ExtremeSpikeMultiplier < 1 {
		return &meme.InvalidConfigError{Key: "extreme_spike_multiplier", Reason: "must be at least 1"}
	}
	if c.ExampleRefLimit < 1 {
		return &meme.InvalidConfigError{Key: "example_ref_limit", Reason: "must be at least 1"}
	}
	return nil
}

func (t Thresholds) validate(prefix string) error {
	if t.MinFrequency < 1 {
		return &meme.InvalidConfigError{Key: prefix + ".min_frequency", Reason: "must be at least 1"}
	}
	if t.ZThreshold < 0 {
		return &meme.InvalidConfigError{Key: prefix + ".z_threshold", Reason: "must not be negative"}
	}
	if t.AccelThreshold < 1 {
		return &meme.InvalidConfigError{Key: prefix + ".accel_threshold", Reason: "must be at least 1"}
	}
	if t.MinEngagement < 0 {
		return &meme.InvalidConfigError{Key: prefix + ".min_engagement", Reason: "must not be negative"}
	}
	return nil
}

// AnalysisLoader loads the analysis configuration file and watches it for
// changes so threshold and stop-list tuning never requires a restart. An
// invalid edit keeps the previous good configuration in effect.
type AnalysisLoader struct {
	v      *viper.Viper
	logger *zap.Logger

	mu       sync.RWMutex
	current  AnalysisConfig
	onReload []func(AnalysisConfig)
}

// LoadAnalysis reads, validates, and starts watching the analysis file.
func LoadAnalysis(path string, logger *zap.Logger) (*AnalysisLoader, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setAnalysisDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading analysis config %s: %w", path, err)
	}

	l := &AnalysisLoader{v: v, logger: logger}

	cfg, err := l.decode()
	if err != nil {
		return nil, err
	}
	l.current = cfg

	v.OnConfigChange(func(fsnotify.Event) {
		l.reload()
	})
	v.WatchConfig()

	return l, nil
}

// Current returns the active configuration snapshot.
func (l *AnalysisLoader) Current() AnalysisConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnReload registers a callback invoked with each successfully reloaded
// configuration.
func (l *AnalysisLoader) OnReload(fn func(AnalysisConfig)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onReload = append(l.onReload, fn)
}

func (l *AnalysisLoader) decode() (AnalysisConfig, error) {
	var cfg AnalysisConfig
	if err := l.v.Unmarshal(&cfg); err != nil {
		return AnalysisConfig{}, fmt.Errorf("decoding analysis config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return AnalysisConfig{}, err
	}
	return cfg, nil
}

func (l *AnalysisLoader) reload() {
	cfg, err := l.decode()
	if err != nil {
		l.logger.Error("analysis config reload rejected, keeping previous", zap.Error(err))
		return
	}

	l.mu.Lock()
	l.current = cfg
	callbacks := make([]func(AnalysisConfig), len(l.onReload))
	copy(callbacks, l.onReload)
	l.mu.Unlock()

	l.logger.Info("analysis config reloaded",
		zap.Int("stop_phrases", len(cfg.StopPhrases)),
		zap.Int("evergreen_hashtags", len(cfg.EvergreenHashtags)),
	)

	for _, fn := range callbacks {
		fn(cfg)
	}
}

func setAnalysisDefaults(v *viper.Viper) {
	v.SetDefault("window_size_minutes", 30)
	v.SetDefault("grace_period_minutes", 5)
	v.SetDefault("history_window_count", 6)
	v.SetDefault("thresholds.min_frequency", 10)
	v.SetDefault("thresholds.z_threshold", 2.0)
	v.SetDefault("thresholds.accel_threshold", 3.0)
	v.SetDefault("thresholds.min_engagement", 5.0)
	v.SetDefault("score_weights.acceleration", 0.4)
	v.SetDefault("score_weights.z_score", 0.3)
	v.SetDefault("score_weights.engagement", 0.3)
	v.SetDefault("similarity_threshold", 10)
	v.SetDefault("min_distinct_posts", 5)
	v.SetDefault("min_platforms", 3)
	v.SetDefault("cross_platform_window_span", 4)
	v.SetDefault("adjacent_window_span", 1)
	v.SetDefault("platform_boost", 0.2)
	v.SetDefault("extreme_spike_multiplier", 2.0)
	v.SetDefault("example_ref_limit", 5)
}
