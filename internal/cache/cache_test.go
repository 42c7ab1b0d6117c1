package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepflow/orchestrator/internal/domain"
)

func TestGetMissOnEmptyCache(t *testing.T) {
	c := New()
	_, ok := c.Get("step-1")
	assert.False(t, ok)
}

func TestSetAndGetWithZeroTTLNeverExpires(t *testing.T) {
	c := New()
	c.Set("step-1", domain.StepExecutionResult{StepID: "step-1", Status: domain.StepSuccess}, 0)

	result, ok := c.Get("step-1")
	require.True(t, ok)
	assert.Equal(t, domain.StepSuccess, result.Status)

	time.Sleep(5 * time.Millisecond)
	_, ok = c.Get("step-1")
	assert.True(t, ok)
}

func TestSetAndGetExpiresAfterTTL(t *testing.T) {
	c := New()
	c.Set("step-1", domain.StepExecutionResult{StepID: "step-1"}, 5*time.Millisecond)

	_, ok := c.Get("step-1")
	assert.True(t, ok)

	time.Sleep(10 * time.Millisecond)
	_, ok = c.Get("step-1")
	assert.False(t, ok)
}

func TestInvalidateRemovesEntry(t *testing.T) {
	c := New()
	c.Set("step-1", domain.StepExecutionResult{StepID: "step-1"}, 0)
	c.Invalidate("step-1")

	_, ok := c.Get("step-1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}
