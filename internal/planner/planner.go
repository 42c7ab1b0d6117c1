// Package planner validates a suite's step dependency graph and
// computes the ordered subset of steps needed to satisfy a run target:
// transitive closure over predecessors followed by a topological sort
// with cycle detection, tie-broken by ascending sort order.
package planner

import (
	"sort"

	"github.com/stepflow/orchestrator/internal/apierr"
	"github.com/stepflow/orchestrator/internal/domain"
)

// Plan is the immutable ordered list of steps the Run Coordinator
// iterates for one run.
type Plan struct {
	Steps []domain.Step
}

// ForSuite plans every non-dependencyOnly step in the suite.
func ForSuite(suite *domain.Suite) (*Plan, error) {
	targets := make([]string, 0, len(suite.Steps))
	for _, s := range suite.Steps {
		if !s.DependencyOnly {
			targets = append(targets, s.ID)
		}
	}
	return forTargets(suite, targets)
}

// ForStep plans the single target step plus its transitive predecessors.
func ForStep(suite *domain.Suite, targetStepID string) (*Plan, error) {
	if _, ok := suite.StepByID(targetStepID); !ok {
		return nil, apierr.NotFound("step", targetStepID)
	}
	return forTargets(suite, []string{targetStepID})
}

func forTargets(suite *domain.Suite, targetIDs []string) (*Plan, error) {
	byID := make(map[string]*domain.Step, len(suite.Steps))
	for i := range suite.Steps {
		byID[suite.Steps[i].ID] = &suite.Steps[i]
	}

	needed := make(map[string]bool)
	var collect func(id string) error
	collect = func(id string) error {
		if needed[id] {
			return nil
		}
		step, ok := byID[id]
		if !ok {
			return apierr.NotFound("step", id)
		}
		needed[id] = true
		for _, dep := range step.Dependencies {
			if err := collect(dep.DependsOnStepID); err != nil {
				return err
			}
		}
		return nil
	}
	for _, id := range targetIDs {
		if err := collect(id); err != nil {
			return nil, err
		}
	}

	order, err := topoSort(suite, byID, needed)
	if err != nil {
		return nil, err
	}
	return &Plan{Steps: order}, nil
}

// topoSort performs Kahn's algorithm over the needed subgraph, tie-breaking
// ready nodes by ascending SortOrder, and reports CYCLE_DETECTED if any
// node never becomes ready.
func topoSort(suite *domain.Suite, byID map[string]*domain.Step, needed map[string]bool) ([]domain.Step, error) {
	inDegree := make(map[string]int, len(needed))
	dependents := make(map[string][]string, len(needed))

	for id := range needed {
		inDegree[id] = 0
	}
	for id := range needed {
		step := byID[id]
		for _, dep := range step.Dependencies {
			if !needed[dep.DependsOnStepID] {
				continue
			}
			inDegree[id]++
			dependents[dep.DependsOnStepID] = append(dependents[dep.DependsOnStepID], id)
		}
	}

	var ready []string
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}

	var ordered []domain.Step
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			return byID[ready[i]].SortOrder < byID[ready[j]].SortOrder
		})
		next := ready[0]
		ready = ready[1:]

		ordered = append(ordered, *byID[next])

		for _, dep := range dependents[next] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(ordered) != len(needed) {
		return nil, apierr.CycleDetected(suite.ID)
	}
	return ordered, nil
}
