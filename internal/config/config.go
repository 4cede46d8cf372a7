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

const (
	DefaultBind                    = ":8080"
	DefaultMaxTagTitleLength       = 9
	DefaultIconCacheTTL            = 5 * time.Minute
	DefaultIconRoot                = "/srv/tagsmith/icons"
	DefaultMaxIconBytes      int64 = 1024 * 1024
	DefaultMaxIconPixels           = 4_000_000
)

const (
	envMaxTagTitleLength = "TAGSMITH_MAX_TAG_TITLE_LENGTH"
	envTagRulesFile      = "TAGSMITH_TAG_RULES_FILE"
)

type AuthMode string

const (
	AuthNone   AuthMode = "none"
	AuthAPIKey AuthMode = "apikey"
)

type Config struct {
	Bind               string
	DBDSN              string
	MaxTagTitleLength  int
	TagRulesFile       string
	IconCacheTTL       time.Duration
	IconRoot           string
	MaxIconBytes       int64
	MaxIconPixels      int
	AuthMode           AuthMode
	APIKeysFile        string
	CORSAllowedOrigins []string
	LogLevel           slog.Level
	SwaggerUIPath      string
	OpenAPIPath        string
	MetricsPath        string

	// Defaulted lists settings that were absent and fell back to a built-in value
	// the operator should know about.
	Defaulted []string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Bind:               getenv("TAGSMITH_BIND", DefaultBind),
		TagRulesFile:       os.Getenv(envTagRulesFile),
		IconRoot:           getenv("TAGSMITH_ICON_ROOT", DefaultIconRoot),
		MaxIconBytes:       getInt64("TAGSMITH_MAX_ICON_BYTES", DefaultMaxIconBytes),
		MaxIconPixels:      getInt("TAGSMITH_MAX_ICON_PIXELS", DefaultMaxIconPixels),
		AuthMode:           AuthMode(getenv("TAGSMITH_AUTH_MODE", string(AuthAPIKey))),
		CORSAllowedOrigins: splitAndTrim(os.Getenv("TAGSMITH_CORS_ALLOWED_ORIGINS")),
		SwaggerUIPath:      "/swagger",
		OpenAPIPath:        "/openapi.yaml",
		MetricsPath:        "/metrics",
	}

	cfg.DBDSN = os.Getenv("TAGSMITH_DB_DSN")
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("TAGSMITH_DB_DSN is required")
	}

	maxLen, set, err := lookupInt(envMaxTagTitleLength)
	if err != nil {
		return nil, err
	}
	switch {
	case !set:
		cfg.MaxTagTitleLength = DefaultMaxTagTitleLength
		cfg.Defaulted = append(cfg.Defaulted, envMaxTagTitleLength)
	case maxLen <= 0:
		return nil, fmt.Errorf("invalid %s: %d, must be positive", envMaxTagTitleLength, maxLen)
	default:
		cfg.MaxTagTitleLength = maxLen
	}

	if cfg.TagRulesFile == "" {
		cfg.Defaulted = append(cfg.Defaulted, envTagRulesFile)
	}

	ttl, err := getDuration("TAGSMITH_ICON_CACHE_TTL", DefaultIconCacheTTL)
	if err != nil {
		return nil, err
	}
	cfg.IconCacheTTL = ttl

	if err := cfg.LogLevel.UnmarshalText([]byte(getenv("TAGSMITH_LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid TAGSMITH_LOG_LEVEL: %w", err)
	}

	switch cfg.AuthMode {
	case AuthNone, AuthAPIKey:
	default:
		return nil, fmt.Errorf("invalid TAGSMITH_AUTH_MODE: %s", cfg.AuthMode)
	}

	if cfg.AuthMode == AuthAPIKey {
		cfg.APIKeysFile = getenv("TAGSMITH_API_KEYS_FILE", "api-keys.yaml")
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}

// lookupInt distinguishes an absent variable from a malformed one.
func lookupInt(key string) (int, bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, true, fmt.Errorf("invalid %s: %w", key, err)
	}
	return i, true, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitAndTrim(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
