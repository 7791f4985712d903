// Package config loads the reaper's configuration from a file,
// environment variables, and defaults, following the same viper-based
// layering the teacher's config package used (file path search, typed
// defaults, env var binding), re-keyed to the reaper's own settings.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full set of settings the reaper needs for a run.
type Config struct {
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// CrawlerConfig controls crawl behavior.
type CrawlerConfig struct {
	Depth        int           `mapstructure:"depth"`
	Delay        time.Duration `mapstructure:"delay"`
	AllowXDomain bool          `mapstructure:"allow_xdomain"`
	UseTLS       bool          `mapstructure:"use_tls"`
	UserAgent    string        `mapstructure:"user_agent"`
	FollowRobots bool          `mapstructure:"follow_robots_txt"`
	LinksThresh  int           `mapstructure:"links_threshold"`
}

// StorageConfig controls where archived pages land.
type StorageConfig struct {
	ArchiveRoot string `mapstructure:"archive_root"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from configPath (or the default search path
// if empty), layering file values over defaults, then environment
// variables over those. Mirrors the teacher's Load/setDefaults/
// bindEnvVars structure.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("webreaper")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.webreaper")
	}

	setDefaults(v)
	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding config: %w", err)
	}
	cfg.Storage.ArchiveRoot = os.ExpandEnv(cfg.Storage.ArchiveRoot)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.depth", 5)
	v.SetDefault("crawler.delay", "1s")
	v.SetDefault("crawler.allow_xdomain", false)
	v.SetDefault("crawler.use_tls", false)
	v.SetDefault("crawler.user_agent", "WebReaper/1.0")
	v.SetDefault("crawler.follow_robots_txt", true)
	v.SetDefault("crawler.links_threshold", 500)

	v.SetDefault("storage.archive_root", "$HOME/WR_Reaped")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

func bindEnvVars(v *viper.Viper) {
	v.SetEnvPrefix("WEBREAPER")
	v.AutomaticEnv()
}

// Validate checks that the loaded configuration is usable.
func (c *Config) Validate() error {
	if c.Crawler.Depth <= 0 {
		return fmt.Errorf("config: crawler.depth must be positive")
	}
	if c.Crawler.Delay < 0 {
		return fmt.Errorf("config: crawler.delay must not be negative")
	}
	if c.Storage.ArchiveRoot == "" {
		return fmt.Errorf("config: storage.archive_root must be set")
	}
	return nil
}

// Options adapts Config to frontier.Options and wireconn's TLS flag.
type Options struct {
	cfg *Config
}

// NewOptions wraps cfg as an Options collaborator.
func NewOptions(cfg *Config) Options { return Options{cfg: cfg} }

func (o Options) AllowXDomain() bool  { return o.cfg.Crawler.AllowXDomain }
func (o Options) UseTLS() bool        { return o.cfg.Crawler.UseTLS }
func (o Options) Depth() int          { return o.cfg.Crawler.Depth }
func (o Options) Delay() int          { return int(o.cfg.Crawler.Delay / time.Second) }
func (o Options) LinksThreshold() int { return o.cfg.Crawler.LinksThresh }
func (o Options) UserAgent() string   { return o.cfg.Crawler.UserAgent }
func (o Options) FollowRobots() bool  { return o.cfg.Crawler.FollowRobots }
