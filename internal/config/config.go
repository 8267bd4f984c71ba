package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config keeps runtime settings for the service.
type Config struct {
	HTTPAddr       string        `mapstructure:"http_addr"`
	TelegramToken  string        `mapstructure:"telegram_token"`
	DatabaseURL    string        `mapstructure:"database_url"`
	ReportInterval time.Duration `mapstructure:"report_interval"`
	DailyReportAt  string        `mapstructure:"daily_report_at"`
	SeedDemo       bool          `mapstructure:"seed_demo"`
	Timezone       string        `mapstructure:"timezone"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		HTTPAddr:    ":8080",
		DatabaseURL: ":memory:",
	}
}

// Load reads an optional YAML file, then environment variables on top.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = ":memory:"
	}
	if cfg.ReportInterval < 0 {
		return cfg, fmt.Errorf("report interval must not be negative")
	}
	if cfg.DailyReportAt != "" {
		if _, _, err := ParseClock(cfg.DailyReportAt); err != nil {
			return cfg, err
		}
	}
	if _, err := cfg.Location(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Location resolves Timezone, defaulting to the local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func loadFile(path string, cfg *Config) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return err
	}

	return v.Unmarshal(cfg)
}

func applyEnv(cfg *Config) error {
	if v := env("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := env("TELEGRAM_TOKEN"); v != "" {
		cfg.TelegramToken = v
	}
	if v := env("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := env("REPORT_INTERVAL_HOURS"); v != "" {
		interval, err := parseInterval(v)
		if err != nil {
			return err
		}
		cfg.ReportInterval = interval
	}
	if v := env("DAILY_REPORT_AT"); v != "" {
		cfg.DailyReportAt = v
	}
	if v := env("SEED_DEMO"); v != "" {
		seed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SEED_DEMO: %w", err)
		}
		cfg.SeedDemo = seed
	}
	if v := env("TZ_NAME"); v != "" {
		cfg.Timezone = v
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func parseInterval(raw string) (time.Duration, error) {
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0, fmt.Errorf("REPORT_INTERVAL_HOURS must be a positive number of hours, got %q", raw)
	}
	return hours, nil
}

// ParseClock parses an HH:MM wall-clock time.
func ParseClock(raw string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", raw)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return hour, minute, nil
}
