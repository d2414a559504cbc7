// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Governor GovernorConfig `mapstructure:"governor"`
	Store    StoreConfig    `mapstructure:"store"`
	Export   ExportConfig   `mapstructure:"export"`
	Server   ServerConfig   `mapstructure:"server"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CrawlerConfig holds the seed URLs and pipeline knobs.
type CrawlerConfig struct {
	FAQURL             string `mapstructure:"faq_url"`
	AgencyDirectoryURL string `mapstructure:"agency_directory_url"`
	MinistryListURL    string `mapstructure:"ministry_list_url"`
	UserAgent          string `mapstructure:"user_agent"`
	PoolSize           int    `mapstructure:"pool_size"`
	CountTolerance     int    `mapstructure:"count_tolerance"`
}

// GovernorConfig paces the sequential fetch path.
type GovernorConfig struct {
	BaseDelayMinSec     int `mapstructure:"base_delay_min_seconds"`
	BaseDelayMaxSec     int `mapstructure:"base_delay_max_seconds"`
	JitterMaxSec        int `mapstructure:"jitter_max_seconds"`
	CautiousDelayMinSec int `mapstructure:"cautious_delay_min_seconds"`
	CautiousDelayMaxSec int `mapstructure:"cautious_delay_max_seconds"`
	CautiousWindow      int `mapstructure:"cautious_window"`
	BackoffPauseSec     int `mapstructure:"backoff_pause_seconds"`
	AbortThreshold      int `mapstructure:"abort_threshold"`
	MaxAttempts         int `mapstructure:"max_attempts"`
	AttemptTimeoutSec   int `mapstructure:"attempt_timeout_seconds"`
}

// StoreConfig sets the local artifact and ledger locations.
type StoreConfig struct {
	ArtifactDir string `mapstructure:"artifact_dir"`
	LedgerDir   string `mapstructure:"ledger_dir"`
}

// ExportConfig sets the dataset output location and the optional GCS mirror.
type ExportConfig struct {
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`
}

// ServerConfig controls the health and metrics listener.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// PubSubConfig holds metadata for run and phase event publishing. Events
// are disabled when TopicName is empty.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig selects the zap encoder and level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ECITIZEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.faq_url", "https://accounts.ecitizen.go.ke/en/help-and-support")
	v.SetDefault("crawler.agency_directory_url", "https://accounts.ecitizen.go.ke/en/agencies")
	v.SetDefault("crawler.ministry_list_url", "https://accounts.ecitizen.go.ke/en/national-ministries")
	v.SetDefault("crawler.user_agent", "ecitizen-directory-bot/0.1")
	v.SetDefault("crawler.pool_size", 0)
	v.SetDefault("crawler.count_tolerance", 0)
	v.SetDefault("governor.base_delay_min_seconds", 2)
	v.SetDefault("governor.base_delay_max_seconds", 6)
	v.SetDefault("governor.jitter_max_seconds", 4)
	v.SetDefault("governor.cautious_delay_min_seconds", 10)
	v.SetDefault("governor.cautious_delay_max_seconds", 20)
	v.SetDefault("governor.cautious_window", 10)
	v.SetDefault("governor.backoff_pause_seconds", 180)
	v.SetDefault("governor.abort_threshold", 5)
	v.SetDefault("governor.max_attempts", 3)
	v.SetDefault("governor.attempt_timeout_seconds", 30)
	v.SetDefault("store.artifact_dir", "data/artifacts")
	v.SetDefault("store.ledger_dir", "data")
	v.SetDefault("export.dir", "data/dataset")
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.FAQURL == "" || c.Crawler.AgencyDirectoryURL == "" || c.Crawler.MinistryListURL == "" {
		return fmt.Errorf("crawler seed urls must all be set")
	}
	if c.Governor.BaseDelayMinSec < 0 || c.Governor.BaseDelayMaxSec < c.Governor.BaseDelayMinSec {
		return fmt.Errorf("governor base delay range is invalid")
	}
	if c.Governor.CautiousDelayMaxSec < c.Governor.CautiousDelayMinSec {
		return fmt.Errorf("governor cautious delay range is invalid")
	}
	if c.Governor.AbortThreshold <= 0 {
		return fmt.Errorf("governor.abort_threshold must be > 0")
	}
	if c.Governor.MaxAttempts <= 0 {
		return fmt.Errorf("governor.max_attempts must be > 0")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the server is enabled")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when a topic is configured")
	}
	if c.Export.GCSPrefix != "" && c.Export.GCSBucket == "" {
		return fmt.Errorf("export.gcs_bucket must be set when a prefix is configured")
	}
	return nil
}

// BaseDelayMin and friends convert the second-granularity knobs into
// durations for the governor.
func (c GovernorConfig) BaseDelayMin() time.Duration     { return secs(c.BaseDelayMinSec) }
func (c GovernorConfig) BaseDelayMax() time.Duration     { return secs(c.BaseDelayMaxSec) }
func (c GovernorConfig) JitterMax() time.Duration        { return secs(c.JitterMaxSec) }
func (c GovernorConfig) CautiousDelayMin() time.Duration { return secs(c.CautiousDelayMinSec) }
func (c GovernorConfig) CautiousDelayMax() time.Duration { return secs(c.CautiousDelayMaxSec) }
func (c GovernorConfig) BackoffPause() time.Duration     { return secs(c.BackoffPauseSec) }
func (c GovernorConfig) AttemptTimeout() time.Duration   { return secs(c.AttemptTimeoutSec) }

func secs(n int) time.Duration { return time.Duration(n) * time.Second }
