package executor

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/stepflow/orchestrator/internal/apierr"
	"github.com/stepflow/orchestrator/internal/domain"
	"github.com/stepflow/orchestrator/internal/placeholder"
	"github.com/stepflow/orchestrator/internal/resilience"
)

// maxResponseBody caps how much of a response body is read into memory.
const maxResponseBody = 10 << 20 // 10 MiB

// Outcome is the result of executing one step, including any side
// effects the matched response handlers enqueued.
type Outcome struct {
	Result      domain.StepExecutionResult
	SideEffects []string // step IDs enqueued by FIRE_SIDE_EFFECT handlers
}

// Execute resolves, issues, and classifies one step's HTTP call,
// driving the RETRY loop per the step's response handlers.
func Execute(ctx context.Context, client *http.Client, step *domain.Step, env *domain.Environment, phCtx placeholder.Context, timeout time.Duration) Outcome {
	resolved, err := Resolve(step, env, phCtx)
	if err != nil {
		return Outcome{Result: errorResult(step, err)}
	}

	start := time.Now()
	var sideEffects []string

	last := doAttempt(ctx, client, resolved, timeout)

	for {
		handler, effects := SelectHandler(step.ResponseHandlers, last.statusCode)
		for _, h := range effects {
			sideEffects = append(sideEffects, h.SideEffectStepID)
		}

		if handler == nil {
			return Outcome{Result: finalize(step, resolved, last, domain.StepError, "no response handler matched", start), SideEffects: sideEffects}
		}

		switch handler.Action {
		case domain.ActionSuccess:
			return Outcome{Result: finalize(step, resolved, last, domain.StepSuccess, "", start), SideEffects: sideEffects}

		case domain.ActionError:
			return Outcome{Result: finalize(step, resolved, last, domain.StepError, last.errMessage, start), SideEffects: sideEffects}

		case domain.ActionRetry:
			retried, ok := retryLoop(ctx, client, resolved, timeout, *handler, last)
			if !ok {
				return Outcome{Result: finalize(step, resolved, retried, domain.StepError, apierr.RetryExhausted(handler.RetryCount+1).Error(), start), SideEffects: sideEffects}
			}
			last = retried
			continue

		default:
			return Outcome{Result: finalize(step, resolved, last, domain.StepError, "unknown handler action", start), SideEffects: sideEffects}
		}
	}
}

// retryLoop re-issues the request up to handler.RetryCount additional
// times, waiting RetryDelaySeconds between attempts, stopping as soon
// as a different handler would classify the result (i.e. the response
// no longer matches this RETRY handler). initial is the attempt
// Execute already made (the one that selected this RETRY handler in
// the first place), so the loop re-classifies it as attempt 1 instead
// of discarding it and starting from a zero-value result.
func retryLoop(ctx context.Context, client *http.Client, resolved ResolvedRequest, timeout time.Duration, handler domain.ResponseHandler, initial attemptResult) (attemptResult, bool) {
	cfg := resilience.RetryConfig{
		MaxAttempts:  handler.RetryCount + 1,
		InitialDelay: time.Duration(handler.RetryDelaySeconds) * time.Second,
		MaxDelay:     time.Duration(handler.RetryDelaySeconds) * time.Second,
		Multiplier:   1, // fixed delay per spec §4.4, not exponential
	}

	last := initial
	matched := false

	_ = resilience.Retry(ctx, cfg, func(attemptNum int) error {
		if attemptNum > 1 {
			last = doAttempt(ctx, client, resolved, timeout)
		}
		matched = matchCode(handler.MatchCode, last.statusCode)
		if matched {
			return errStillMatching // keep retrying while still matching this RETRY handler
		}
		return nil // classification changed; stop retrying
	})

	if matched {
		// exhausted retryCount while still matching RETRY's pattern
		return last, false
	}
	return last, true
}

var errStillMatching = apierr.New(apierr.KindRetryExhausted, "response still matches retry handler")

type attemptResult struct {
	statusCode int
	headers    http.Header
	body       []byte
	duration   time.Duration
	errMessage string
}

func doAttempt(ctx context.Context, client *http.Client, resolved ResolvedRequest, timeout time.Duration) attemptResult {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, resolved.Method, buildURL(resolved), bytes.NewReader(resolved.Body))
	if err != nil {
		return attemptResult{statusCode: 0, errMessage: err.Error(), duration: time.Since(start)}
	}
	req.Header = resolved.Headers.Clone()

	resp, err := client.Do(req)
	if err != nil {
		return attemptResult{statusCode: 0, errMessage: err.Error(), duration: time.Since(start)}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	return attemptResult{
		statusCode: resp.StatusCode,
		headers:    resp.Header.Clone(),
		body:       body,
		duration:   time.Since(start),
	}
}

func buildURL(resolved ResolvedRequest) string {
	if len(resolved.QueryParams) == 0 {
		return resolved.URL
	}
	u, err := url.Parse(resolved.URL)
	if err != nil {
		return resolved.URL
	}
	q := u.Query()
	for k, v := range resolved.QueryParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func finalize(step *domain.Step, resolved ResolvedRequest, attempt attemptResult, status domain.StepStatus, errMessage string, start time.Time) domain.StepExecutionResult {
	return domain.StepExecutionResult{
		StepID:          step.ID,
		StepName:        step.Name,
		Status:          status,
		ResponseCode:    attempt.statusCode,
		ResponseBody:    string(attempt.body),
		ResponseHeaders: attempt.headers,
		DurationMs:      time.Since(start).Milliseconds(),
		ErrorMessage:    errMessage,
		RequestURL:      buildURL(resolved),
		RequestBody:     string(resolved.Body),
		RequestHeaders:  resolved.Headers,
		RequestQueryParams: resolved.QueryParams,
		Warnings:        resolved.Warnings,
	}
}

func errorResult(step *domain.Step, err error) domain.StepExecutionResult {
	return domain.StepExecutionResult{
		StepID:       step.ID,
		StepName:     step.Name,
		Status:       domain.StepError,
		ResponseCode: 0,
		ErrorMessage: err.Error(),
	}
}
