package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/stepflow/orchestrator/internal/cache"
	"github.com/stepflow/orchestrator/internal/domain"
	"github.com/stepflow/orchestrator/internal/executor"
	"github.com/stepflow/orchestrator/internal/extractor"
	"github.com/stepflow/orchestrator/internal/manualinput"
	"github.com/stepflow/orchestrator/internal/placeholder"
	"github.com/stepflow/orchestrator/internal/verification"
)

// runState is the mutable state owned by the single goroutine driving
// one run: the response cache, the per-step producing contexts consumed
// by later {{StepName.path}} placeholders, and the terminal result of
// every step executed so far this run.
type runState struct {
	run    *domain.Run
	suite  *domain.Suite
	env    *domain.Environment
	sink   EventSink
	broker *manualinput.Broker
	cache  *cache.Cache

	stepContexts map[string]placeholder.StepContext // keyed by step Name
	results      map[string]domain.StepExecutionResult // keyed by step ID
}

func newRunState(run *domain.Run, suite *domain.Suite, env *domain.Environment, sink EventSink, broker *manualinput.Broker) *runState {
	return &runState{
		run:          run,
		suite:        suite,
		env:          env,
		sink:         sink,
		broker:       broker,
		cache:        cache.New(),
		stepContexts: make(map[string]placeholder.StepContext),
		results:      make(map[string]domain.StepExecutionResult),
	}
}

func (rs *runState) emit(kind EventKind, payload interface{}) {
	if rs.sink != nil {
		rs.sink.Emit(Event{Kind: kind, Payload: payload})
	}
}

func (rs *runState) placeholderContext(manualInputValues map[string]string) placeholder.Context {
	return placeholder.Context{
		Environment:       rs.env,
		StepContexts:      rs.stepContexts,
		ManualInputValues: manualInputValues,
	}
}

// dependencyStatus reports the terminal status already recorded for
// depStepID this run, and whether it has run at all yet.
func (rs *runState) dependencyStatus(depStepID string) (domain.StepStatus, bool) {
	r, ok := rs.results[depStepID]
	if !ok {
		return "", false
	}
	return r.Status, true
}

// blockedBySkippedDependency reports whether any of step's declared
// dependencies carries a status that must propagate as SKIPPED:
// ERROR, VERIFICATION_FAILED, or (transitively) SKIPPED itself.
func (rs *runState) blockedBySkippedDependency(step *domain.Step) bool {
	for _, dep := range step.Dependencies {
		status, ok := rs.dependencyStatus(dep.DependsOnStepID)
		if !ok {
			continue
		}
		if status.IsTerminalFailure() || status == domain.StepSkipped {
			return true
		}
	}
	return false
}

// reuseManualInput reports whether any declared dependency edge of step
// asks the broker to silently reuse values already submitted this run.
func reuseManualInput(step *domain.Step) bool {
	for _, dep := range step.Dependencies {
		if dep.ReuseManualInput {
			return true
		}
	}
	return false
}

// collectManualInputFields scans every templated field of step for
// #{name[:default]} tokens, de-duplicated by name.
func collectManualInputFields(step *domain.Step) []domain.InputField {
	var fields []domain.InputField
	seen := map[string]bool{}

	add := func(template string) {
		for _, f := range placeholder.CollectManualInputNames(template) {
			if seen[f.Name] {
				continue
			}
			seen[f.Name] = true
			fields = append(fields, f)
		}
	}

	add(step.URL)
	for _, h := range step.Headers {
		add(h.Value)
	}
	for _, q := range step.QueryParams {
		add(q.Value)
	}
	add(step.Body)
	for _, f := range step.FormFields {
		add(f.Value)
	}
	return fields
}

// cacheTTL converts a step's CacheTtlSeconds into a time.Duration,
// where 0 means "valid for the remainder of the run" per spec §3/§4.3.
func cacheTTL(step *domain.Step) time.Duration {
	if step.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(step.CacheTTLSeconds) * time.Second
}

// store records result as step's terminal outcome for this run,
// publishes its producing-step context for later placeholder
// resolution, and emits the `step` event.
func (rs *runState) store(step *domain.Step, result domain.StepExecutionResult) domain.StepExecutionResult {
	rs.results[step.ID] = result
	rs.stepContexts[step.Name] = placeholder.StepContext{
		ExtractedVariables: result.ExtractedVariables,
		Implicit:           extractor.BuildImplicitTree(result),
	}
	rs.run.Results = append(rs.run.Results, result)
	rs.emit(EventStep, result)
	return result
}

func skippedResult(step *domain.Step) domain.StepExecutionResult {
	return domain.StepExecutionResult{
		StepID:   step.ID,
		StepName: step.Name,
		Status:   domain.StepSkipped,
	}
}

// executeOnce runs one step to a terminal status: manual input
// resolution, pre-listen setup, HTTP execution with retry, extraction,
// and post-step verification. It does not consult or update the
// response cache or the run's result map — callers (runOne) own that.
func (d *Driver) executeOnce(ctx context.Context, rs *runState, step *domain.Step) domain.StepExecutionResult {
	fields := collectManualInputFields(step)
	reuse := reuseManualInput(step)

	emit := func(pending []domain.InputField) {
		rs.emit(EventInputRequired, InputRequiredPayload{
			RunID:    rs.run.ID,
			StepID:   step.ID,
			StepName: step.Name,
			Fields:   withCachedHints(pending, rs.broker),
		})
	}

	manualValues, warnings, err := rs.broker.Resolve(ctx, rs.run.ID, fields, reuse, emit)
	if err != nil {
		return errorResult(step, err)
	}

	phCtx := rs.placeholderContext(manualValues)

	pending, err := d.startPreListens(ctx, step, rs.env)
	if err != nil {
		r := errorResult(step, err)
		r.Warnings = warnings
		return r
	}

	outcome := executor.Execute(ctx, d.httpClient, step, rs.env, phCtx, d.stepTimeout)
	result := outcome.Result
	result.Warnings = append(result.Warnings, warnings...)

	bindings, extractWarnings := extractor.Extract(step, result)
	result.ExtractedVariables = bindings
	result.Warnings = append(result.Warnings, extractWarnings...)

	result.VerificationResults = d.runVerifications(ctx, step, rs.env, pending)
	if result.Status != domain.StepError {
		for _, vr := range result.VerificationResults {
			if !vr.Passed {
				result.Status = domain.StepVerificationFailed
				break
			}
		}
	}

	for _, sideEffectID := range outcome.SideEffects {
		d.pullSideEffect(ctx, rs, sideEffectID)
	}

	return result
}

// withCachedHints attaches the run's already-submitted value (if any)
// for each field's name as the `cachedValue` hint; the submission's
// own value still wins once it arrives.
func withCachedHints(fields []domain.InputField, broker *manualinput.Broker) []domain.InputField {
	out := make([]domain.InputField, len(fields))
	for i, f := range fields {
		out[i] = f
		if v, ok := broker.Peek(f.Name); ok {
			cached := v
			out[i].CachedValue = &cached
		}
	}
	return out
}

func errorResult(step *domain.Step, err error) domain.StepExecutionResult {
	return domain.StepExecutionResult{
		StepID:       step.ID,
		StepName:     step.Name,
		Status:       domain.StepError,
		ErrorMessage: err.Error(),
	}
}

// startPreListens starts every preListen=true verification's listener
// before the HTTP call is issued, serialized so a fast-arriving event
// cannot be missed.
func (d *Driver) startPreListens(ctx context.Context, step *domain.Step, env *domain.Environment) (map[int]*verification.PendingListen, error) {
	pending := make(map[int]*verification.PendingListen)
	for i, v := range step.Verifications {
		if !v.PreListen {
			continue
		}
		p, err := verification.StartPreListen(ctx, d.verificationFactory, env, v)
		if err != nil {
			return nil, err
		}
		pending[i] = p
	}
	return pending, nil
}

func (d *Driver) runVerifications(ctx context.Context, step *domain.Step, env *domain.Environment, pending map[int]*verification.PendingListen) []domain.VerificationResult {
	if len(step.Verifications) == 0 {
		return nil
	}
	results := make([]domain.VerificationResult, len(step.Verifications))
	for i, v := range step.Verifications {
		result := verification.Run(ctx, d.verificationFactory, env, v, pending[i])
		results[i] = result
		if d.logger != nil {
			d.logger.LogVerification(ctx, "", step.ID, v.ConnectorName, result.Passed, verificationErr(result))
		}
		if d.metrics != nil {
			d.metrics.RecordVerification(v.ConnectorName, result.Passed)
		}
	}
	return results
}

func verificationErr(r domain.VerificationResult) error {
	if r.Error == "" {
		return nil
	}
	return errors.New(r.Error)
}
