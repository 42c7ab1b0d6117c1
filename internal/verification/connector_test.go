package verification

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stepflow/orchestrator/internal/domain"
)

func TestFactoryForResolvesByEnvironmentConnectorType(t *testing.T) {
	conn := &fakeConnector{connType: "redis"}
	factory := NewFactory(conn)
	env := testEnv("cache", "redis")

	driver, cfg, ok := factory.For(env, "cache")
	assert.True(t, ok)
	assert.Equal(t, conn, driver)
	assert.Equal(t, "cache", cfg.Name)
}

func TestFactoryForUnknownConnectorName(t *testing.T) {
	factory := NewFactory()
	env := testEnv("cache", "redis")

	_, _, ok := factory.For(env, "missing")
	assert.False(t, ok)
}

func TestFactoryForUnregisteredDriverType(t *testing.T) {
	factory := NewFactory()
	env := testEnv("cache", "redis")

	_, _, ok := factory.For(env, "cache")
	assert.False(t, ok)
}
