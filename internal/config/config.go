package config

import (
	"time"

	"github.com/watchwise/watchwise/internal/logging"
)

// Default configuration values.
const (
	defaultServiceName          = "watchwise"
	defaultServiceVersion       = "1.0.0"
	defaultServicePort          = 8090
	defaultStoragePath          = "watchwise.db"
	defaultMinWatchTime         = 10 * time.Second
	defaultCheckInterval        = 2 * time.Second
	defaultFlushInterval        = 15 * time.Second
	defaultURLPollInterval      = 1 * time.Second
	defaultDetectRetryBase      = 1 * time.Second
	defaultDetectRetryAttempts  = 5
	defaultInferenceAPIBase     = "https://api-inference.huggingface.co/models"
	defaultSentimentModel       = "cardiffnlp/twitter-roberta-base-sentiment-latest"
	defaultTopicModel           = "facebook/bart-large-mnli"
	defaultRequestTimeout       = 30 * time.Second
	defaultCacheTTL             = 24 * time.Hour
	defaultRequestsPerSecond    = 5
	defaultArchiveKeyPrefix     = "stats-"
	defaultClassifyMinTextRunes = 5
)

// defaultCandidateLabels is the fixed label set sent to the remote provider
// for zero-shot topic classification.
var defaultCandidateLabels = []string{
	"music", "food", "news", "entertainment", "education",
	"lifestyle", "gaming", "technology", "sports", "travel",
	"fashion", "beauty", "health", "fitness", "business",
	"science", "art", "comedy", "drama", "documentary",
}

// Config holds all configuration for the watchwise daemon.
type Config struct {
	Service        ServiceConfig        `yaml:"service"`
	Tracking       TrackingConfig       `yaml:"tracking"`
	Classification ClassificationConfig `yaml:"classification"`
	Storage        StorageConfig        `yaml:"storage"`
	Rollover       RolloverConfig       `yaml:"rollover"`
	Logging        logging.Config       `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Port    int    `env:"WATCHWISE_PORT" yaml:"port"`
	Debug   bool   `env:"APP_DEBUG"      yaml:"debug"`
}

// TrackingConfig holds the watch-session tracker settings.
type TrackingConfig struct {
	// MinWatchTime gates whether a session is ever recorded at all.
	MinWatchTime        time.Duration `env:"WATCHWISE_MIN_WATCH_TIME" yaml:"min_watch_time"`
	CheckInterval       time.Duration `yaml:"check_interval"`
	FlushInterval       time.Duration `yaml:"flush_interval"`
	URLPollInterval     time.Duration `yaml:"url_poll_interval"`
	DetectRetryBase     time.Duration `yaml:"detect_retry_base"`
	DetectRetryAttempts int           `yaml:"detect_retry_attempts"`
}

// ClassificationConfig holds remote-provider and classifier settings.
type ClassificationConfig struct {
	// APIKey selects the remote strategy when non-empty.
	APIKey            string        `env:"HUGGINGFACE_API_KEY"  yaml:"api_key"`
	APIBase           string        `env:"HUGGINGFACE_API_BASE" yaml:"api_base"`
	SentimentModel    string        `yaml:"sentiment_model"`
	TopicModel        string        `yaml:"topic_model"`
	CandidateLabels   []string      `yaml:"candidate_labels"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	RequestsPerSecond int           `yaml:"requests_per_second"`
	MinTextRunes      int           `yaml:"min_text_runes"`
}

// StorageConfig holds storage collaborator settings.
type StorageConfig struct {
	// Path is the sqlite database file. ":memory:" gives a volatile store.
	Path string `env:"WATCHWISE_DB_PATH" yaml:"path"`
}

// RolloverConfig holds daily rollover settings.
type RolloverConfig struct {
	ArchiveKeyPrefix string `yaml:"archive_key_prefix"`
}

// Load loads configuration from the specified path and applies defaults.
func Load(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	setDefaults(cfg)
	// Re-apply env overrides after defaults (env always wins).
	applyEnvOverrides(cfg)
	return cfg, nil
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setTrackingDefaults(&cfg.Tracking)
	setClassificationDefaults(&cfg.Classification)
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = defaultStoragePath
	}
	if cfg.Rollover.ArchiveKeyPrefix == "" {
		cfg.Rollover.ArchiveKeyPrefix = defaultArchiveKeyPrefix
	}
	cfg.Logging.SetDefaults()
}

func setServiceDefaults(s *ServiceConfig) {
	if s.Name == "" {
		s.Name = defaultServiceName
	}
	if s.Version == "" {
		s.Version = defaultServiceVersion
	}
	if s.Port == 0 {
		s.Port = defaultServicePort
	}
}

func setTrackingDefaults(t *TrackingConfig) {
	if t.MinWatchTime == 0 {
		t.MinWatchTime = defaultMinWatchTime
	}
	if t.CheckInterval == 0 {
		t.CheckInterval = defaultCheckInterval
	}
	if t.FlushInterval == 0 {
		t.FlushInterval = defaultFlushInterval
	}
	if t.URLPollInterval == 0 {
		t.URLPollInterval = defaultURLPollInterval
	}
	if t.DetectRetryBase == 0 {
		t.DetectRetryBase = defaultDetectRetryBase
	}
	if t.DetectRetryAttempts == 0 {
		t.DetectRetryAttempts = defaultDetectRetryAttempts
	}
}

func setClassificationDefaults(c *ClassificationConfig) {
	if c.APIBase == "" {
		c.APIBase = defaultInferenceAPIBase
	}
	if c.SentimentModel == "" {
		c.SentimentModel = defaultSentimentModel
	}
	if c.TopicModel == "" {
		c.TopicModel = defaultTopicModel
	}
	if len(c.CandidateLabels) == 0 {
		c.CandidateLabels = append([]string(nil), defaultCandidateLabels...)
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = defaultCacheTTL
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = defaultRequestsPerSecond
	}
	if c.MinTextRunes == 0 {
		c.MinTextRunes = defaultClassifyMinTextRunes
	}
}
