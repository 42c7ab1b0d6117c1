package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	os.Clearenv()
	cfg := Load()
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.DefaultStepTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 50, cfg.RateLimitRPS)
}

func TestLoadFromEnv(t *testing.T) {
	os.Clearenv()
	os.Setenv("LISTEN_ADDR", ":9090")
	os.Setenv("DEFAULT_STEP_TIMEOUT", "5s")
	os.Setenv("CORS_ALLOWED_ORIGINS", "https://a.test, https://b.test")
	os.Setenv("RATE_LIMIT_RPS", "notanumber")
	defer os.Clearenv()

	cfg := Load()
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 5*time.Second, cfg.DefaultStepTimeout)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 50, cfg.RateLimitRPS) // invalid int falls back to default
}

func TestEnvBool(t *testing.T) {
	os.Clearenv()
	assert.True(t, EnvBool("FEATURE_X", true))
	os.Setenv("FEATURE_X", "false")
	defer os.Clearenv()
	assert.False(t, EnvBool("FEATURE_X", true))
}
