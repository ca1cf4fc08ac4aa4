// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPort is used when neither the config file nor PORT set one.
const DefaultPort = "3000"

// Config holds the process configuration.
type Config struct {
	Port            string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	DatabaseURL          string
	JournalRetention     time.Duration
	JournalPruneInterval time.Duration

	AdminToken string

	RateLimit RateLimitConfig
}

// RateLimitRouteConfig holds configuration for a specific route type
type RateLimitRouteConfig struct {
	Requests int
	Period   time.Duration
	Burst    int
}

// RateLimitConfig holds all rate limiting configuration
type RateLimitConfig struct {
	Enabled         bool
	CleanupInterval time.Duration

	Crypto   RateLimitRouteConfig
	Generate RateLimitRouteConfig
	Admin    RateLimitRouteConfig

	BruteForceThreshold int
	BruteForceBan       time.Duration
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:                 DefaultPort,
		LogLevel:             "info",
		LogFormat:            "color",
		ShutdownTimeout:      10 * time.Second,
		JournalRetention:     30 * 24 * time.Hour,
		JournalPruneInterval: time.Hour,
		RateLimit: RateLimitConfig{
			Enabled:         true,
			CleanupInterval: 10 * time.Minute,
			Crypto:          RateLimitRouteConfig{Requests: 120, Period: time.Minute, Burst: 30},
			Generate:        RateLimitRouteConfig{Requests: 30, Period: time.Minute, Burst: 10},
			Admin:           RateLimitRouteConfig{Requests: 60, Period: time.Minute, Burst: 20},

			BruteForceThreshold: 5,
			BruteForceBan:       15 * time.Minute,
		},
	}
}

// Load builds the configuration from defaults, then the optional YAML file at
// path, then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadRateLimitConfig loads rate limiting configuration from environment variables
func LoadRateLimitConfig() RateLimitConfig {
	cfg := Default()
	cfg.applyEnv()
	return cfg.RateLimit
}

// Validate checks value ranges.
func (c Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %q", c.Port)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	if c.DatabaseURL != "" && c.JournalPruneInterval <= 0 {
		return fmt.Errorf("journal prune interval must be positive")
	}
	if c.RateLimit.Enabled {
		for name, r := range map[string]RateLimitRouteConfig{
			"crypto":   c.RateLimit.Crypto,
			"generate": c.RateLimit.Generate,
			"admin":    c.RateLimit.Admin,
		} {
			if r.Requests <= 0 || r.Period <= 0 || r.Burst <= 0 {
				return fmt.Errorf("rate limit %s: requests, period and burst must be positive", name)
			}
		}
	}
	return nil
}

// JournalEnabled reports whether a database is configured.
func (c Config) JournalEnabled() bool {
	return c.DatabaseURL != ""
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.LogLevel = getEnv("KEYGATE_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("KEYGATE_LOG_FORMAT", c.LogFormat)
	c.ShutdownTimeout = getEnvDuration("KEYGATE_SHUTDOWN_TIMEOUT", c.ShutdownTimeout)

	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.JournalRetention = getEnvDuration("KEYGATE_JOURNAL_RETENTION", c.JournalRetention)
	c.JournalPruneInterval = getEnvDuration("KEYGATE_JOURNAL_PRUNE_INTERVAL", c.JournalPruneInterval)

	c.AdminToken = getEnv("KEYGATE_ADMIN_TOKEN", c.AdminToken)

	rl := &c.RateLimit
	rl.Enabled = getEnvBool("KEYGATE_RATELIMIT_ENABLED", rl.Enabled)
	rl.CleanupInterval = getEnvDuration("KEYGATE_RATELIMIT_CLEANUP_INTERVAL", rl.CleanupInterval)
	rl.Crypto = routeFromEnv("CRYPTO", rl.Crypto)
	rl.Generate = routeFromEnv("GENERATE", rl.Generate)
	rl.Admin = routeFromEnv("ADMIN", rl.Admin)
	rl.BruteForceThreshold = getEnvInt("KEYGATE_RATELIMIT_BRUTEFORCE_THRESHOLD", rl.BruteForceThreshold)
	rl.BruteForceBan = getEnvDuration("KEYGATE_RATELIMIT_BRUTEFORCE_BAN", rl.BruteForceBan)
}

func routeFromEnv(name string, def RateLimitRouteConfig) RateLimitRouteConfig {
	prefix := "KEYGATE_RATELIMIT_" + name + "_"
	return RateLimitRouteConfig{
		Requests: getEnvInt(prefix+"REQUESTS", def.Requests),
		Period:   getEnvDuration(prefix+"PERIOD", def.Period),
		Burst:    getEnvInt(prefix+"BURST", def.Burst),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		if val == "false" || val == "0" || val == "no" {
			return false
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// fileConfig mirrors Config in the YAML file. Durations are Go duration strings.
type fileConfig struct {
	Server struct {
		Port            string `yaml:"port"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`

	Journal struct {
		Retention     string `yaml:"retention"`
		PruneInterval string `yaml:"prune_interval"`
	} `yaml:"journal"`

	Admin struct {
		Token string `yaml:"token"`
	} `yaml:"admin"`

	RateLimit struct {
		Enabled         *bool          `yaml:"enabled"`
		CleanupInterval string         `yaml:"cleanup_interval"`
		Crypto          fileRouteLimit `yaml:"crypto"`
		Generate        fileRouteLimit `yaml:"generate"`
		Admin           fileRouteLimit `yaml:"admin"`
		BruteForce      struct {
			Threshold int    `yaml:"threshold"`
			Ban       string `yaml:"ban"`
		} `yaml:"bruteforce"`
	} `yaml:"ratelimit"`
}

type fileRouteLimit struct {
	Requests int    `yaml:"requests"`
	Period   string `yaml:"period"`
	Burst    int    `yaml:"burst"`
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&c.Port, fc.Server.Port)
	setString(&c.LogLevel, fc.Log.Level)
	setString(&c.LogFormat, fc.Log.Format)
	setString(&c.DatabaseURL, fc.Database.URL)
	setString(&c.AdminToken, fc.Admin.Token)

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"server.shutdown_timeout", fc.Server.ShutdownTimeout, &c.ShutdownTimeout},
		{"journal.retention", fc.Journal.Retention, &c.JournalRetention},
		{"journal.prune_interval", fc.Journal.PruneInterval, &c.JournalPruneInterval},
		{"ratelimit.cleanup_interval", fc.RateLimit.CleanupInterval, &c.RateLimit.CleanupInterval},
		{"ratelimit.bruteforce.ban", fc.RateLimit.BruteForce.Ban, &c.RateLimit.BruteForceBan},
	}
	for _, d := range durations {
		if err := setDuration(d.dst, d.value); err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
	}

	if fc.RateLimit.Enabled != nil {
		c.RateLimit.Enabled = *fc.RateLimit.Enabled
	}
	if fc.RateLimit.BruteForce.Threshold != 0 {
		c.RateLimit.BruteForceThreshold = fc.RateLimit.BruteForce.Threshold
	}

	routes := []struct {
		name string
		src  fileRouteLimit
		dst  *RateLimitRouteConfig
	}{
		{"crypto", fc.RateLimit.Crypto, &c.RateLimit.Crypto},
		{"generate", fc.RateLimit.Generate, &c.RateLimit.Generate},
		{"admin", fc.RateLimit.Admin, &c.RateLimit.Admin},
	}
	for _, r := range routes {
		if r.src.Requests != 0 {
			r.dst.Requests = r.src.Requests
		}
		if r.src.Burst != 0 {
			r.dst.Burst = r.src.Burst
		}
		if err := setDuration(&r.dst.Period, r.src.Period); err != nil {
			return fmt.Errorf("invalid ratelimit.%s.period: %w", r.name, err)
		}
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
