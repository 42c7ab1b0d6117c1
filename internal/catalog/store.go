// Package catalog defines the Catalog Store contract — persistence for
// suites, environments, schedules and run records — and ships two
// adapters: an in-memory store for tests and single-process use, and a
// Postgres-backed reference adapter for the standalone binary. Per
// spec.md §1 the catalog store is an external collaborator: only its
// contract matters to the engine, which reads a fully-hydrated suite
// snapshot and writes run results.
package catalog

import (
	"context"

	"github.com/stepflow/orchestrator/internal/domain"
)

// Store is the persistence contract the engine and control plane read
// and write through. Implementations own tombstoning (soft-delete) for
// environments, suites and schedules; runs are hard-retained.
type Store interface {
	// Suite returns a suite by ID, fully hydrated with its steps.
	Suite(ctx context.Context, id string) (*domain.Suite, error)
	// ListSuites returns every non-deleted suite, paginated.
	ListSuites(ctx context.Context, offset, limit int) ([]domain.Suite, error)
	// SaveSuite creates or replaces a suite.
	SaveSuite(ctx context.Context, suite *domain.Suite) error
	// DeleteSuite tombstones a suite.
	DeleteSuite(ctx context.Context, id string) error

	// Environment returns an environment by ID.
	Environment(ctx context.Context, id string) (*domain.Environment, error)
	// ListEnvironments returns every non-deleted environment, paginated.
	ListEnvironments(ctx context.Context, offset, limit int) ([]domain.Environment, error)
	// SaveEnvironment creates or replaces an environment.
	SaveEnvironment(ctx context.Context, env *domain.Environment) error
	// DeleteEnvironment tombstones an environment.
	DeleteEnvironment(ctx context.Context, id string) error

	// Schedule returns a schedule by ID.
	Schedule(ctx context.Context, id string) (*domain.Schedule, error)
	// ListSchedules returns every non-deleted schedule.
	ListSchedules(ctx context.Context) ([]domain.Schedule, error)
	// SaveSchedule creates or replaces a schedule.
	SaveSchedule(ctx context.Context, sched *domain.Schedule) error
	// DeleteSchedule tombstones a schedule.
	DeleteSchedule(ctx context.Context, id string) error

	// SaveRun persists a run record (created RUNNING, later overwritten
	// at its terminal state). Runs are hard-retained, never tombstoned.
	SaveRun(ctx context.Context, run *domain.Run) error
	// Run returns a run by ID.
	Run(ctx context.Context, id string) (*domain.Run, error)
	// ListRuns returns runs for a suite, most recent first, paginated.
	ListRuns(ctx context.Context, suiteID string, offset, limit int) ([]domain.Run, error)
}

// Pagination defaults per spec.md §6 "Limits".
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// NormalizePage clamps a requested page size into [1, MaxPageSize],
// substituting DefaultPageSize when limit is 0.
func NormalizePage(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
