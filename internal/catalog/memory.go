package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stepflow/orchestrator/internal/apierr"
	"github.com/stepflow/orchestrator/internal/domain"
)

// MemoryStore is an in-process Store backed by plain maps, guarded by a
// single mutex. Used by the control plane's test suite and as the
// zero-configuration default when CATALOG_DSN is unset.
type MemoryStore struct {
	mu           sync.RWMutex
	suites       map[string]domain.Suite
	environments map[string]domain.Environment
	schedules    map[string]domain.Schedule
	runs         map[string]domain.Run
	runOrder     []string
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		suites:       make(map[string]domain.Suite),
		environments: make(map[string]domain.Environment),
		schedules:    make(map[string]domain.Schedule),
		runs:         make(map[string]domain.Run),
	}
}

func (s *MemoryStore) Suite(_ context.Context, id string) (*domain.Suite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	suite, ok := s.suites[id]
	if !ok || suite.DeletedAt != nil {
		return nil, apierr.NotFound("suite", id)
	}
	return &suite, nil
}

func (s *MemoryStore) ListSuites(_ context.Context, offset, limit int) ([]domain.Suite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]domain.Suite, 0, len(s.suites))
	for _, suite := range s.suites {
		if suite.DeletedAt == nil {
			all = append(all, suite)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginateSuites(all, offset, limit), nil
}

func (s *MemoryStore) SaveSuite(_ context.Context, suite *domain.Suite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suites[suite.ID] = *suite
	return nil
}

func (s *MemoryStore) DeleteSuite(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	suite, ok := s.suites[id]
	if !ok {
		return apierr.NotFound("suite", id)
	}
	now := stamp()
	suite.DeletedAt = &now
	s.suites[id] = suite
	return nil
}

func (s *MemoryStore) Environment(_ context.Context, id string) (*domain.Environment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	env, ok := s.environments[id]
	if !ok || env.DeletedAt != nil {
		return nil, apierr.NotFound("environment", id)
	}
	return &env, nil
}

func (s *MemoryStore) ListEnvironments(_ context.Context, offset, limit int) ([]domain.Environment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]domain.Environment, 0, len(s.environments))
	for _, env := range s.environments {
		if env.DeletedAt == nil {
			all = append(all, env)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginateEnvironments(all, offset, limit), nil
}

func (s *MemoryStore) SaveEnvironment(_ context.Context, env *domain.Environment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.environments[env.ID] = *env
	return nil
}

func (s *MemoryStore) DeleteEnvironment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	env, ok := s.environments[id]
	if !ok {
		return apierr.NotFound("environment", id)
	}
	now := stamp()
	env.DeletedAt = &now
	s.environments[id] = env
	return nil
}

func (s *MemoryStore) Schedule(_ context.Context, id string) (*domain.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sched, ok := s.schedules[id]
	if !ok || sched.DeletedAt != nil {
		return nil, apierr.NotFound("schedule", id)
	}
	return &sched, nil
}

func (s *MemoryStore) ListSchedules(_ context.Context) ([]domain.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]domain.Schedule, 0, len(s.schedules))
	for _, sched := range s.schedules {
		if sched.DeletedAt == nil {
			all = append(all, sched)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

func (s *MemoryStore) SaveSchedule(_ context.Context, sched *domain.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[sched.ID] = *sched
	return nil
}

func (s *MemoryStore) DeleteSchedule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sched, ok := s.schedules[id]
	if !ok {
		return apierr.NotFound("schedule", id)
	}
	now := stamp()
	sched.DeletedAt = &now
	s.schedules[id] = sched
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; !exists {
		s.runOrder = append(s.runOrder, run.ID)
	}
	s.runs[run.ID] = *run
	return nil
}

func (s *MemoryStore) Run(_ context.Context, id string) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, apierr.NotFound("run", id)
	}
	return &run, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, suiteID string, offset, limit int) ([]domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []domain.Run
	for i := len(s.runOrder) - 1; i >= 0; i-- {
		run := s.runs[s.runOrder[i]]
		if run.SuiteID == suiteID {
			matched = append(matched, run)
		}
	}
	return paginateRuns(matched, offset, limit), nil
}

func paginateSuites(all []domain.Suite, offset, limit int) []domain.Suite {
	limit = NormalizePage(limit)
	if offset < 0 || offset >= len(all) {
		return []domain.Suite{}
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

func paginateEnvironments(all []domain.Environment, offset, limit int) []domain.Environment {
	limit = NormalizePage(limit)
	if offset < 0 || offset >= len(all) {
		return []domain.Environment{}
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

func paginateRuns(all []domain.Run, offset, limit int) []domain.Run {
	limit = NormalizePage(limit)
	if offset < 0 || offset >= len(all) {
		return []domain.Run{}
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

func stamp() time.Time { return time.Now() }
