package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepflow/orchestrator/internal/apierr"
	"github.com/stepflow/orchestrator/internal/domain"
)

func step(id, name string, sortOrder int, deps ...string) domain.Step {
	var dependencies []domain.Dependency
	for _, d := range deps {
		dependencies = append(dependencies, domain.Dependency{DependsOnStepID: d})
	}
	return domain.Step{ID: id, Name: name, SortOrder: sortOrder, Dependencies: dependencies}
}

func TestForSuiteOrdersByDependency(t *testing.T) {
	suite := &domain.Suite{ID: "s1", Steps: []domain.Step{
		step("B", "B", 1, "A"),
		step("A", "A", 0),
	}}

	plan, err := ForSuite(suite)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "A", plan.Steps[0].ID)
	assert.Equal(t, "B", plan.Steps[1].ID)
}

func TestForSuiteTieBreaksBySortOrder(t *testing.T) {
	suite := &domain.Suite{ID: "s1", Steps: []domain.Step{
		step("C", "C", 2),
		step("A", "A", 0),
		step("B", "B", 1),
	}}

	plan, err := ForSuite(suite)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{plan.Steps[0].ID, plan.Steps[1].ID, plan.Steps[2].ID})
}

func TestForSuiteExcludesDependencyOnlyUnlessPulled(t *testing.T) {
	onlyDep := step("X", "X", 0)
	onlyDep.DependencyOnly = true
	suite := &domain.Suite{ID: "s1", Steps: []domain.Step{
		onlyDep,
		step("Y", "Y", 1),
	}}

	plan, err := ForSuite(suite)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "Y", plan.Steps[0].ID)
}

func TestForStepPullsDependencyOnlyPredecessor(t *testing.T) {
	onlyDep := step("X", "X", 0)
	onlyDep.DependencyOnly = true
	suite := &domain.Suite{ID: "s1", Steps: []domain.Step{
		onlyDep,
		step("Y", "Y", 1, "X"),
	}}

	plan, err := ForStep(suite, "Y")
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "X", plan.Steps[0].ID)
	assert.Equal(t, "Y", plan.Steps[1].ID)
}

func TestForSuiteDetectsCycle(t *testing.T) {
	suite := &domain.Suite{ID: "s1", Steps: []domain.Step{
		step("A", "A", 0, "B"),
		step("B", "B", 1, "A"),
	}}

	_, err := ForSuite(suite)
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.KindCycleDetected))
}

func TestForStepUnknownTargetIsNotFound(t *testing.T) {
	suite := &domain.Suite{ID: "s1"}
	_, err := ForStep(suite, "missing")
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.KindNotFound))
}
