package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides (ASSETPICKER_MAX_FOLDERS, ...).
const EnvPrefix = "ASSETPICKER"

// Config holds picker and crawler configuration.
type Config struct {
	PageURL            string        `mapstructure:"page_url"`
	PublicRoot         string        `mapstructure:"public_root"`
	HostPage           string        `mapstructure:"host_page"`
	MaxFolders         int           `mapstructure:"max_folders"`
	Timeout            time.Duration `mapstructure:"timeout"`
	UserAgent          string        `mapstructure:"user_agent"`
	ProbeCacheSize     int           `mapstructure:"probe_cache_size"`
	PipelineBufferSize int           `mapstructure:"pipeline_buffer_size"`
	BatchSize          int           `mapstructure:"batch_size"`
	DedupeMaxSize      int           `mapstructure:"dedupe_max_size"`
	OutputFile         string        `mapstructure:"output"`
	OutputFormat       string        `mapstructure:"format"` // csv, json, or dual
	ListenAddr         string        `mapstructure:"listen_addr"`
	MetricsAddr        string        `mapstructure:"metrics_addr"`
	LogFile            string        `mapstructure:"log_file"`
	Verbose            bool          `mapstructure:"verbose"`
}

// DefaultConfig returns defaults matching a static file server on localhost.
func DefaultConfig() *Config {
	return &Config{
		PageURL:            "http://localhost:8000/pages/index.html",
		PublicRoot:         "../public/",
		HostPage:           "index.html",
		MaxFolders:         50,
		Timeout:            10 * time.Second,
		UserAgent:          "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		ProbeCacheSize:     512,
		PipelineBufferSize: 256,
		BatchSize:          32,
		DedupeMaxSize:      100000,
		OutputFile:         "output/images.csv",
		OutputFormat:       "csv",
		ListenAddr:         ":8090",
		MetricsAddr:        "",
		LogFile:            "",
		Verbose:            false,
	}
}

// SetDefaults registers DefaultConfig values on v so env and file overrides layer on top.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("page_url", d.PageURL)
	v.SetDefault("public_root", d.PublicRoot)
	v.SetDefault("host_page", d.HostPage)
	v.SetDefault("max_folders", d.MaxFolders)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("probe_cache_size", d.ProbeCacheSize)
	v.SetDefault("pipeline_buffer_size", d.PipelineBufferSize)
	v.SetDefault("batch_size", d.BatchSize)
	v.SetDefault("dedupe_max_size", d.DedupeMaxSize)
	v.SetDefault("output", d.OutputFile)
	v.SetDefault("format", d.OutputFormat)
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("verbose", d.Verbose)
}

// Load reads configuration from v, an optional config file and the environment.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config %s: %w", configFile, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)
	return cfg, nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.PageURL == "" {
		return fmt.Errorf("page URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.PageURL)
	if err != nil {
		return fmt.Errorf("invalid page URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("page URL must include a host")
	}

	if c.PublicRoot == "" {
		return fmt.Errorf("public root cannot be empty")
	}
	if c.MaxFolders <= 0 {
		return fmt.Errorf("max folders must be positive")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if c.ProbeCacheSize <= 0 {
		return fmt.Errorf("probe cache size must be positive")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}
