// Package config provides environment-variable configuration loading
// for the orchestrator engine, following the teacher's small-accessor
// pattern without its Marble/TEE secret-store indirection (out of
// scope here).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds process-wide settings read once at startup.
type Config struct {
	ListenAddr                 string
	LogLevel                   string
	LogFormat                  string
	DefaultStepTimeout         time.Duration
	DefaultVerificationTimeout time.Duration
	CatalogDSN                 string
	RedisAddr                  string
	CORSAllowedOrigins         []string
	RateLimitRPS               int
	RateLimitBurst             int
	MaxUploadBytes             int64
}

// DefaultMaxUploadBytes is the spec's 50 MiB environment-file upload
// ceiling (spec.md §6 "Limits").
const DefaultMaxUploadBytes = 50 << 20

// Load assembles a Config from the process environment, applying the
// default given beside each variable name below.
func Load() Config {
	return Config{
		ListenAddr:                 EnvString("LISTEN_ADDR", ":8080"),
		LogLevel:                   EnvString("LOG_LEVEL", "info"),
		LogFormat:                  EnvString("LOG_FORMAT", "json"),
		DefaultStepTimeout:         EnvDuration("DEFAULT_STEP_TIMEOUT", 30*time.Second),
		DefaultVerificationTimeout: EnvDuration("DEFAULT_VERIFICATION_TIMEOUT", 10*time.Second),
		CatalogDSN:                 EnvString("CATALOG_DSN", ""),
		RedisAddr:                  EnvString("REDIS_ADDR", "localhost:6379"),
		CORSAllowedOrigins:         EnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:               EnvInt("RATE_LIMIT_RPS", 50),
		RateLimitBurst:             EnvInt("RATE_LIMIT_BURST", 100),
		MaxUploadBytes:             EnvInt64("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes),
	}
}

// EnvString reads envKey, returning def when unset or blank.
func EnvString(envKey, def string) string {
	v := strings.TrimSpace(os.Getenv(envKey))
	if v == "" {
		return def
	}
	return v
}

// EnvInt reads envKey as an int, returning def when unset or invalid.
func EnvInt(envKey string, def int) int {
	v := strings.TrimSpace(os.Getenv(envKey))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// EnvInt64 reads envKey as an int64, returning def when unset or invalid.
func EnvInt64(envKey string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(envKey))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// EnvBool reads envKey as a bool, returning def when unset or invalid.
func EnvBool(envKey string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(envKey))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// EnvDuration reads envKey as a time.Duration, returning def when unset
// or invalid.
func EnvDuration(envKey string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(envKey))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// EnvStringSlice reads envKey as a comma-separated list, returning def
// when unset.
func EnvStringSlice(envKey string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(envKey))
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
