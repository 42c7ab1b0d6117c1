package manualinput

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepflow/orchestrator/internal/domain"
)

func TestResolveScheduledFillsDefaults(t *testing.T) {
	broker := New(domain.TriggerScheduled)
	def := "staging"
	fields := []domain.InputField{{Name: "env", DefaultValue: &def}}

	values, warnings, err := broker.Resolve(context.Background(), "run-1", fields, false, func([]domain.InputField) {
		t.Fatal("scheduled run must not emit input-required")
	})

	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "staging", values["env"])
}

func TestResolveScheduledWithoutDefaultWarns(t *testing.T) {
	broker := New(domain.TriggerScheduled)
	fields := []domain.InputField{{Name: "env"}}

	values, warnings, err := broker.Resolve(context.Background(), "run-1", fields, false, nil)

	require.NoError(t, err)
	assert.Equal(t, "", values["env"])
	require.Len(t, warnings, 1)
}

func TestResolveManualBlocksUntilSubmit(t *testing.T) {
	broker := New(domain.TriggerManual)
	fields := []domain.InputField{{Name: "confirm"}}

	var emitted []domain.InputField
	var wg sync.WaitGroup
	wg.Add(1)

	var values map[string]string
	var err error
	go func() {
		defer wg.Done()
		values, _, err = broker.Resolve(context.Background(), "run-1", fields, false, func(f []domain.InputField) {
			emitted = f
		})
	}()

	require.Eventually(t, func() bool { return emitted != nil }, time.Second, time.Millisecond)
	broker.Submit(map[string]string{"confirm": "yes"})
	wg.Wait()

	require.NoError(t, err)
	assert.Equal(t, "yes", values["confirm"])
	assert.Len(t, emitted, 1)
}

func TestResolveManualReuseSkipsRePrompt(t *testing.T) {
	broker := New(domain.TriggerManual)
	broker.Submit(map[string]string{"token": "abc"})

	fields := []domain.InputField{{Name: "token"}}
	values, _, err := broker.Resolve(context.Background(), "run-1", fields, true, func([]domain.InputField) {
		t.Fatal("reused field must not prompt again")
	})

	require.NoError(t, err)
	assert.Equal(t, "abc", values["token"])
}

func TestResolveManualWithoutReuseRePromptsDespitePriorSubmission(t *testing.T) {
	broker := New(domain.TriggerManual)
	broker.Submit(map[string]string{"token": "abc"})

	fields := []domain.InputField{{Name: "token"}}
	var prompted bool
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		values, _, err := broker.Resolve(context.Background(), "run-1", fields, false, func(f []domain.InputField) {
			prompted = true
		})
		assert.NoError(t, err)
		assert.Equal(t, "fresh", values["token"])
	}()

	require.Eventually(t, func() bool { return prompted }, time.Second, time.Millisecond)
	broker.Submit(map[string]string{"token": "fresh"})
	wg.Wait()
}

func TestResolveCancelledByContext(t *testing.T) {
	broker := New(domain.TriggerManual)
	fields := []domain.InputField{{Name: "confirm"}}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, _, err := broker.Resolve(ctx, "run-1", fields, false, func([]domain.InputField) {})
	assert.Error(t, err)
}

func TestCloseReleasesPendingWaitersAsCancelled(t *testing.T) {
	broker := New(domain.TriggerManual)
	fields := []domain.InputField{{Name: "confirm"}}

	var wg sync.WaitGroup
	wg.Add(1)
	var err error
	go func() {
		defer wg.Done()
		_, _, err = broker.Resolve(context.Background(), "run-1", fields, false, func([]domain.InputField) {})
	}()

	time.Sleep(10 * time.Millisecond)
	broker.Close()
	wg.Wait()

	require.Error(t, err)
}

func TestSubmitAfterCloseIsIgnored(t *testing.T) {
	broker := New(domain.TriggerManual)
	broker.Close()
	broker.Submit(map[string]string{"x": "y"})

	_, ok := broker.get("x")
	assert.False(t, ok)
}
