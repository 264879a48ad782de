// Package config loads ClubFlow settings from the environment and an
// optional YAML file.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "CLUBFLOW"

// Config captures the runtime configuration of the ClubFlow service.
type Config struct {
	Addr             string
	DatabasePath     string
	SessionTTL       time.Duration
	LogLevel         string
	LockTimeout      time.Duration
	Redis            RedisConfig
	RateLimit        RateLimitConfig
	FacilitySeedFile string
	Bootstrap        BootstrapConfig
	Calendar         CalendarConfig
}

// RedisConfig enables the distributed admission lock when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis server was configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// RateLimitConfig bounds requests per client.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// BootstrapConfig describes the administrator created on first start.
type BootstrapConfig struct {
	AdminEmail    string
	AdminPassword string
	ClubID        string
}

// Enabled reports whether both admin credentials were provided.
func (c BootstrapConfig) Enabled() bool {
	return c.AdminEmail != "" && c.AdminPassword != ""
}

// CalendarConfig controls the day view geometry.
type CalendarConfig struct {
	DayStartHour  int
	DayEndHour    int
	PixelsPerHour float64
}

// rawConfig mirrors the configuration keys as strings so that every invalid
// value can be reported at once.
type rawConfig struct {
	Addr              string `mapstructure:"ADDR"`
	DatabasePath      string `mapstructure:"DATABASE_PATH"`
	SessionTTL        string `mapstructure:"SESSION_TTL"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	LockTimeout       string `mapstructure:"LOCK_TIMEOUT"`
	RedisAddr         string `mapstructure:"REDIS_ADDR"`
	RedisPassword     string `mapstructure:"REDIS_PASSWORD"`
	RedisDB           string `mapstructure:"REDIS_DB"`
	RateLimitRPS      string `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    string `mapstructure:"RATE_LIMIT_BURST"`
	FacilitySeedFile  string `mapstructure:"FACILITY_SEED_FILE"`
	BootstrapEmail    string `mapstructure:"BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapPassword string `mapstructure:"BOOTSTRAP_ADMIN_PASSWORD"`
	BootstrapClub     string `mapstructure:"BOOTSTRAP_ADMIN_CLUB"`
	DayStartHour      string `mapstructure:"DAY_START_HOUR"`
	DayEndHour        string `mapstructure:"DAY_END_HOUR"`
	PixelsPerHour     string `mapstructure:"PIXELS_PER_HOUR"`
}

var defaults = map[string]string{
	"ADDR":                     ":8080",
	"DATABASE_PATH":            "",
	"SESSION_TTL":              "12h",
	"LOG_LEVEL":                "info",
	"LOCK_TIMEOUT":             "5s",
	"REDIS_ADDR":               "",
	"REDIS_PASSWORD":           "",
	"REDIS_DB":                 "0",
	"RATE_LIMIT_RPS":           "10",
	"RATE_LIMIT_BURST":         "20",
	"FACILITY_SEED_FILE":       "",
	"BOOTSTRAP_ADMIN_EMAIL":    "",
	"BOOTSTRAP_ADMIN_PASSWORD": "",
	"BOOTSTRAP_ADMIN_CLUB":     "default",
	"DAY_START_HOUR":           "6",
	"DAY_END_HOUR":             "24",
	"PIXELS_PER_HOUR":          "50",
}

// Load reads the configuration. Environment variables take precedence over
// the YAML file named by CLUBFLOW_CONFIG_FILE, which takes precedence over
// defaults. Missing required values and invalid values are reported together.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if file := strings.TrimSpace(v.GetString("CONFIG_FILE")); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return Config{}, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return raw.parse()
}

func (raw rawConfig) parse() (Config, error) {
	cfg := Config{
		Addr:             strings.TrimSpace(raw.Addr),
		DatabasePath:     strings.TrimSpace(raw.DatabasePath),
		LogLevel:         strings.ToLower(strings.TrimSpace(raw.LogLevel)),
		FacilitySeedFile: strings.TrimSpace(raw.FacilitySeedFile),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(raw.RedisAddr),
			Password: raw.RedisPassword,
		},
		Bootstrap: BootstrapConfig{
			AdminEmail:    strings.TrimSpace(raw.BootstrapEmail),
			AdminPassword: raw.BootstrapPassword,
			ClubID:        strings.TrimSpace(raw.BootstrapClub),
		},
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 4)
	name := func(key string) string { return EnvPrefix + "_" + key }

	if cfg.DatabasePath == "" {
		missing = append(missing, name("DATABASE_PATH"))
	}
	if cfg.Addr == "" {
		invalid = append(invalid, name("ADDR"))
	}

	duration := func(key, value string, target *time.Duration) {
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil || d <= 0 {
			invalid = append(invalid, name(key))
			return
		}
		*target = d
	}
	integer := func(key, value string, min, max int, target *int) {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < min || n > max {
			invalid = append(invalid, name(key))
			return
		}
		*target = n
	}
	positive := func(key, value string, target *float64) {
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || f <= 0 {
			invalid = append(invalid, name(key))
			return
		}
		*target = f
	}

	duration("SESSION_TTL", raw.SessionTTL, &cfg.SessionTTL)
	duration("LOCK_TIMEOUT", raw.LockTimeout, &cfg.LockTimeout)
	integer("REDIS_DB", raw.RedisDB, 0, 15, &cfg.Redis.DB)
	positive("RATE_LIMIT_RPS", raw.RateLimitRPS, &cfg.RateLimit.RPS)
	integer("RATE_LIMIT_BURST", raw.RateLimitBurst, 1, 1<<20, &cfg.RateLimit.Burst)
	integer("DAY_START_HOUR", raw.DayStartHour, 0, 23, &cfg.Calendar.DayStartHour)
	integer("DAY_END_HOUR", raw.DayEndHour, 1, 24, &cfg.Calendar.DayEndHour)
	positive("PIXELS_PER_HOUR", raw.PixelsPerHour, &cfg.Calendar.PixelsPerHour)

	if cfg.Calendar.DayEndHour != 0 && cfg.Calendar.DayEndHour <= cfg.Calendar.DayStartHour {
		invalid = append(invalid, name("DAY_END_HOUR"))
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		invalid = append(invalid, name("LOG_LEVEL"))
	}
	if (cfg.Bootstrap.AdminEmail == "") != (cfg.Bootstrap.AdminPassword == "") {
		missing = append(missing, name("BOOTSTRAP_ADMIN_EMAIL")+"/"+name("BOOTSTRAP_ADMIN_PASSWORD"))
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required configuration is missing: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("configuration values are invalid: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}
