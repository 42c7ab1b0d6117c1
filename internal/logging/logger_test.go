package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceIDRoundTrip(t *testing.T) {
	ctx := WithTraceID(context.Background(), "abc-123")
	assert.Equal(t, "abc-123", GetTraceID(ctx))
	assert.Equal(t, "", GetTraceID(context.Background()))
}

func TestRunIDRoundTrip(t *testing.T) {
	ctx := WithRunID(context.Background(), "run-1")
	assert.Equal(t, "run-1", GetRunID(ctx))
}

func TestNewTraceIDIsUnique(t *testing.T) {
	a := NewTraceID()
	b := NewTraceID()
	assert.NotEqual(t, a, b)
	require.NotEmpty(t, a)
}

func TestNewFallsBackToInfoOnBadLevel(t *testing.T) {
	l := New("svc", "not-a-level", "json")
	assert.Equal(t, "info", l.Logger.GetLevel().String())
}

func TestDefaultLazyInit(t *testing.T) {
	defaultLogger = nil
	l := Default()
	require.NotNil(t, l)
}
