package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type CasdoorConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Cert         string
	Organization string
	Application  string
}

// Enabled reports whether admin authentication can be set up.
func (c CasdoorConfig) Enabled() bool {
	return c.Endpoint != "" && c.ClientID != ""
}

type LogConfig struct {
	Level      slog.Level
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type OpenAIConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	RequestsPerSecond float64
}

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level
	Log         LogConfig

	DatabaseURL  string
	RedisURL     string
	KafkaBrokers string

	OpenAI  OpenAIConfig
	Casdoor CasdoorConfig

	SessionLockTTL         time.Duration
	AutoSubmitDelay        time.Duration
	StuckAnalysisThreshold time.Duration
	InsightCacheTTL        time.Duration
}

// LoadConfig reads .env when present, then the environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()
	return Load(os.Getenv)
}

// Load builds the configuration from a lookup function.
func Load(getenv func(string) string) (*Config, error) {
	l := loader{getenv: getenv}

	level, err := parseLevel(l.str("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:        l.str("PORT", "8080"),
		Environment: l.str("ENVIRONMENT", "development"),
		LogLevel:    level,
		Log: LogConfig{
			Level:      level,
			File:       l.str("LOG_FILE", ""),
			MaxSizeMB:  l.int("LOG_MAX_SIZE_MB", 100),
			MaxBackups: l.int("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: l.int("LOG_MAX_AGE_DAYS", 28),
		},
		DatabaseURL:  l.str("DATABASE_URL", ""),
		RedisURL:     l.str("REDIS_URL", ""),
		KafkaBrokers: l.str("KAFKA_BROKERS", ""),
		OpenAI: OpenAIConfig{
			APIKey:            l.str("OPENAI_API_KEY", ""),
			BaseURL:           l.str("OPENAI_BASE_URL", ""),
			Model:             l.str("OPENAI_MODEL", "gpt-4o-mini"),
			RequestsPerSecond: l.float("AI_REQUESTS_PER_SECOND", 2),
		},
		Casdoor: CasdoorConfig{
			Endpoint:     l.str("CASDOOR_ENDPOINT", ""),
			ClientID:     l.str("CASDOOR_CLIENT_ID", ""),
			ClientSecret: l.str("CASDOOR_CLIENT_SECRET", ""),
			Cert:         l.str("CASDOOR_CERTIFICATE", ""),
			Organization: l.str("CASDOOR_ORGANIZATION", ""),
			Application:  l.str("CASDOOR_APPLICATION", ""),
		},
		SessionLockTTL:         l.duration("SESSION_LOCK_TTL", 12*time.Hour),
		AutoSubmitDelay:        l.duration("AUTO_SUBMIT_DELAY", 500*time.Millisecond),
		StuckAnalysisThreshold: l.duration("STUCK_ANALYSIS_THRESHOLD", 5*time.Minute),
		InsightCacheTTL:        l.duration("INSIGHT_CACHE_TTL", 30*time.Minute),
	}

	// the certificate is usually pasted with escaped newlines
	cfg.Casdoor.Cert = strings.ReplaceAll(cfg.Casdoor.Cert, `\n`, "\n")

	for _, w := range l.warnings {
		slog.Warn("Invalid configuration value, using default", "key", w)
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}

type loader struct {
	getenv   func(string) string
	warnings []string
}

func (l *loader) str(key, def string) string {
	if v := strings.TrimSpace(l.getenv(key)); v != "" {
		return v
	}
	return def
}

func (l *loader) int(key string, def int) int {
	v := strings.TrimSpace(l.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		l.warnings = append(l.warnings, key)
		return def
	}
	return n
}

func (l *loader) float(key string, def float64) float64 {
	v := strings.TrimSpace(l.getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		l.warnings = append(l.warnings, key)
		return def
	}
	return f
}

func (l *loader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(l.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		l.warnings = append(l.warnings, key)
		return def
	}
	return d
}
