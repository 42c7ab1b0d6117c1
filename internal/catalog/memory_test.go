package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepflow/orchestrator/internal/domain"
)

func TestMemoryStoreSuiteCRUDAndTombstone(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	suite := &domain.Suite{ID: "s1", Name: "checkout"}
	require.NoError(t, store.SaveSuite(ctx, suite))

	got, err := store.Suite(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "checkout", got.Name)

	require.NoError(t, store.DeleteSuite(ctx, "s1"))
	_, err = store.Suite(ctx, "s1")
	assert.Error(t, err)
}

func TestMemoryStoreListRunsMostRecentFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.SaveRun(ctx, &domain.Run{ID: "r1", SuiteID: "s1"}))
	require.NoError(t, store.SaveRun(ctx, &domain.Run{ID: "r2", SuiteID: "s1"}))
	require.NoError(t, store.SaveRun(ctx, &domain.Run{ID: "r3", SuiteID: "other"}))

	runs, err := store.ListRuns(ctx, "s1", 0, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].ID)
	assert.Equal(t, "r1", runs[1].ID)
}

func TestNormalizePage(t *testing.T) {
	assert.Equal(t, DefaultPageSize, NormalizePage(0))
	assert.Equal(t, MaxPageSize, NormalizePage(1000))
	assert.Equal(t, 25, NormalizePage(25))
}
