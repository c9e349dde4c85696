// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/records-crawler/internal/crawler"
)

// Navigator drivers.
const (
	DriverHeadless = "headless"
	DriverStatic   = "static"
)

// DefaultBaseURL is the portal crawled when none is configured.
const DefaultBaseURL = "https://lacity.nextrequest.com/requests/"

// Config captures all crawler configuration knobs loaded via Viper.
type Config struct {
	Portal    PortalConfig    `mapstructure:"portal"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Navigator NavigatorConfig `mapstructure:"navigator"`
	Export    ExportConfig    `mapstructure:"export"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// PortalConfig identifies the records portal.
type PortalConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// CrawlConfig governs the session and its batches.
type CrawlConfig struct {
	EarliestID             string        `mapstructure:"earliest_id"`
	TargetCount            int           `mapstructure:"target_count"`
	Backoff                time.Duration `mapstructure:"backoff"`
	ProgressEvery          int           `mapstructure:"progress_every"`
	MaxConsecutiveFailures int           `mapstructure:"max_consecutive_failures"`
	ResumeArchive          string        `mapstructure:"resume_archive"`
	Debug                  bool          `mapstructure:"debug"`
	RequestsPerSecond      float64       `mapstructure:"requests_per_second"`
}

// NavigatorConfig selects and tunes the page driver.
type NavigatorConfig struct {
	Driver        string        `mapstructure:"driver"`
	UserAgent     string        `mapstructure:"user_agent"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ExpandWait    time.Duration `mapstructure:"expand_wait"`
	RespectRobots bool          `mapstructure:"respect_robots"`
}

// ExportConfig sets the archive name and destination.
type ExportConfig struct {
	Name      string `mapstructure:"name"`
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"`
}

// MetricsConfig controls the optional metrics listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// flagKeys maps command-line flag names onto configuration keys.
var flagKeys = map[string]string{
	"base-url":          "portal.base_url",
	"earliest-id":       "crawl.earliest_id",
	"count":             "crawl.target_count",
	"backoff":           "crawl.backoff",
	"progress-every":    "crawl.progress_every",
	"max-failures":      "crawl.max_consecutive_failures",
	"resume":            "crawl.resume_archive",
	"debug":             "crawl.debug",
	"rps":               "crawl.requests_per_second",
	"driver":            "navigator.driver",
	"user-agent":        "navigator.user_agent",
	"name":              "export.name",
	"dir":               "export.dir",
	"gcs-bucket":        "export.gcs_bucket",
	"prefix":            "export.prefix",
	"log-file":          "logging.file",
	"log-level":         "logging.level",
	"dev":               "logging.development",
	"metrics-addr":      "metrics.addr",
	"navigator-timeout": "navigator.timeout",
}

// Load builds a Config from file, environment, and flags. Flags that were
// not set on the command line fall through to the other sources.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
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
	v.SetDefault("portal.base_url", DefaultBaseURL)
	v.SetDefault("crawl.earliest_id", "")
	v.SetDefault("crawl.target_count", crawler.Unbounded)
	v.SetDefault("crawl.backoff", 10*time.Second)
	v.SetDefault("crawl.progress_every", 100)
	v.SetDefault("crawl.max_consecutive_failures", 5)
	v.SetDefault("crawl.resume_archive", "")
	v.SetDefault("crawl.debug", false)
	v.SetDefault("crawl.requests_per_second", 0)
	v.SetDefault("navigator.driver", DriverHeadless)
	v.SetDefault("navigator.user_agent", "records-crawler/0.1")
	v.SetDefault("navigator.timeout", 45*time.Second)
	v.SetDefault("navigator.expand_wait", 100*time.Millisecond)
	v.SetDefault("navigator.respect_robots", false)
	v.SetDefault("export.name", "requests")
	v.SetDefault("export.dir", "data")
	v.SetDefault("export.gcs_bucket", "")
	v.SetDefault("export.prefix", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("logging.file", "")
	v.SetDefault("metrics.addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if _, err := crawler.ParseBaseURL(c.Portal.BaseURL); err != nil {
		return fmt.Errorf("portal.base_url: %w", err)
	}
	if c.Crawl.TargetCount < crawler.Unbounded {
		return fmt.Errorf("crawl.target_count must be >= %d", crawler.Unbounded)
	}
	if c.Crawl.Backoff < 0 {
		return errors.New("crawl.backoff must be >= 0")
	}
	if c.Crawl.ProgressEvery < 0 {
		return errors.New("crawl.progress_every must be >= 0")
	}
	if c.Crawl.MaxConsecutiveFailures < 0 {
		return errors.New("crawl.max_consecutive_failures must be >= 0")
	}
	if c.Crawl.RequestsPerSecond < 0 {
		return errors.New("crawl.requests_per_second must be >= 0")
	}
	switch c.Navigator.Driver {
	case DriverHeadless, DriverStatic:
	default:
		return fmt.Errorf("navigator.driver must be %q or %q, got %q", DriverHeadless, DriverStatic, c.Navigator.Driver)
	}
	if c.Navigator.Timeout <= 0 {
		return errors.New("navigator.timeout must be > 0")
	}
	if strings.TrimSpace(c.Export.Name) == "" {
		return errors.New("export.name is required")
	}
	if c.Export.GCSBucket == "" && strings.TrimSpace(c.Export.Dir) == "" {
		return errors.New("export.dir is required when export.gcs_bucket is empty")
	}
	return nil
}
