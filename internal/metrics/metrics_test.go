package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestNewWithRegistryRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("stepflow-test", reg)
	require.NotNil(t, m)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestRecordStepAndRetry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("stepflow-test", reg)

	m.RecordStep("create-user", "SUCCESS", 120*time.Millisecond)
	m.RecordRetry("create-user")
	m.RecordRetry("create-user")

	metric := &dto.Metric{}
	require.NoError(t, m.StepRetriesTotal.WithLabelValues("create-user").Write(metric))
	require.Equal(t, float64(2), metric.GetCounter().GetValue())
}

func TestRecordVerification(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("stepflow-test", reg)

	m.RecordVerification("redis", true)
	m.RecordVerification("redis", false)

	passed := &dto.Metric{}
	require.NoError(t, m.VerificationsTotal.WithLabelValues("redis", "true").Write(passed))
	require.Equal(t, float64(1), passed.GetCounter().GetValue())
}

func TestGlobalIsSingleton(t *testing.T) {
	a := Global()
	b := Global()
	require.Same(t, a, b)
}
