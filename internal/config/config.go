package config

import (
	"errors"
	"fmt"
	"invictus/internal/constants"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

const envPrefix = "INVICTUS_"

type Config struct {
	// universe being harvested, e.g. s144-br
	ServerID  string `koanf:"server_id"`
	Community string `koanf:"community"`
	APIBase   string `koanf:"api_base"`

	// classified combat report feed; empty disables report ingestion
	ReportFeedURL string `koanf:"report_feed_url"`

	DBPath      string `koanf:"db_path"`
	ServerPort  string `koanf:"server_port"`
	MetricsPort string `koanf:"metrics_port"`
	LogLevel    string `koanf:"log_level"`
	TimeZone    string `koanf:"time_zone"`

	PassInterval time.Duration `koanf:"pass_interval"`
	FetchTimeout time.Duration `koanf:"fetch_timeout"`
	FetchRetries int           `koanf:"fetch_retries"`
	RetryBackoff time.Duration `koanf:"retry_backoff"`

	ForecastWindow    time.Duration `koanf:"forecast_window"`
	ForecastPeriod    time.Duration `koanf:"forecast_period"`
	ForecastHorizon   int           `koanf:"forecast_horizon"`
	ForecastStaleness time.Duration `koanf:"forecast_staleness"`
}

func Defaults() *Config {
	return &Config{
		ServerID:          "144",
		Community:         "br",
		DBPath:            "invictus.db",
		ServerPort:        "8080",
		MetricsPort:       "9091",
		LogLevel:          "info",
		TimeZone:          constants.DefaultTimeZone,
		PassInterval:      2 * time.Hour,
		FetchTimeout:      constants.ExternalAPITimeout,
		FetchRetries:      constants.ExternalAPIRetries,
		RetryBackoff:      constants.ExternalAPIBackoff,
		ForecastWindow:    14 * 24 * time.Hour,
		ForecastPeriod:    10 * time.Hour,
		ForecastHorizon:   15,
		ForecastStaleness: 14 * 24 * time.Hour,
	}
}

// Load layers defaults, an optional YAML file named by INVICTUS_CONFIG and
// INVICTUS_* environment variables (a .env file is read first when present).
func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	k := koanf.New(".")

	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := Defaults()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info().
		Str("server_id", cfg.ServerID).
		Str("community", cfg.Community).
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Dur("pass_interval", cfg.PassInterval).
		Bool("report_feed", cfg.ReportFeedURL != "").
		Msg("configuration loaded")

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerID == "" || c.Community == "" {
		return errors.New("server_id and community are required")
	}
	if c.PassInterval <= 0 {
		return fmt.Errorf("pass_interval must be positive, got %s", c.PassInterval)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be positive, got %s", c.FetchTimeout)
	}
	if c.FetchRetries < 0 {
		return fmt.Errorf("fetch_retries must not be negative, got %d", c.FetchRetries)
	}
	if c.RetryBackoff <= 0 {
		return fmt.Errorf("retry_backoff must be positive, got %s", c.RetryBackoff)
	}
	if c.ForecastPeriod <= 0 || c.ForecastHorizon <= 0 {
		return errors.New("forecast_period and forecast_horizon must be positive")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("invalid time_zone %q: %w", c.TimeZone, err)
	}
	return nil
}

// BaseURL is the public API root of the configured universe.
func (c *Config) BaseURL() string {
	if c.APIBase != "" {
		return strings.TrimRight(c.APIBase, "/")
	}
	return fmt.Sprintf("https://s%s-%s.ogame.gameforge.com/api", c.ServerID, c.Community)
}

// Location is the reference zone for time buckets. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

var Module = fx.Provide(Load)
