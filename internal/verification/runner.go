package verification

import (
	"context"
	"errors"
	"time"

	"github.com/stepflow/orchestrator/internal/apierr"
	"github.com/stepflow/orchestrator/internal/domain"
)

// PendingListen is a started pre-listen subscription, captured before
// the step's HTTP call and awaited afterward.
type PendingListen struct {
	connectorName string
	listener      Listener
}

// StartPreListen starts v's listener before the step's HTTP call, per
// the coordinator's requirement that the subscription begin before the
// request is issued so a fast-arriving event cannot be missed. It is a
// no-op returning nil for verifications with preListen=false.
func StartPreListen(ctx context.Context, factory *Factory, env *domain.Environment, v domain.Verification) (*PendingListen, error) {
	if !v.PreListen {
		return nil, nil
	}

	driver, conn, ok := factory.For(env, v.ConnectorName)
	if !ok {
		return nil, unknownConnectorErr(v.ConnectorName)
	}

	listener, err := driver.Listen(ctx, conn.Config, v.Query)
	if err != nil {
		return nil, err
	}
	return &PendingListen{connectorName: v.ConnectorName, listener: listener}, nil
}

// Run executes v's assertion phase: if pending is non-nil, it awaits
// the already-started subscription; otherwise it dispatches a fresh
// query. Assertions are evaluated in declared order against the
// driver's JSON result. The verification passes iff the driver
// returned without error, every assertion passed, and the overall
// elapsed time is within v.TimeoutSeconds.
func Run(ctx context.Context, factory *Factory, env *domain.Environment, v domain.Verification, pending *PendingListen) domain.VerificationResult {
	start := time.Now()

	overall := time.Duration(v.TimeoutSeconds) * time.Second
	if overall <= 0 {
		overall = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, overall)
	defer cancel()

	queryTimeout := time.Duration(v.QueryTimeoutSeconds) * time.Second
	if queryTimeout <= 0 {
		queryTimeout = overall
	}

	result, err := dispatch(runCtx, factory, env, v, pending, queryTimeout)
	elapsed := time.Since(start)

	if err != nil {
		return domain.VerificationResult{
			ConnectorName: v.ConnectorName,
			Passed:        false,
			DurationMs:    elapsed.Milliseconds(),
			Error:         err.Error(),
		}
	}

	var failures []string
	for _, a := range v.Assertions {
		ok, reason := EvaluateAssertion(result, a)
		if !ok {
			failures = append(failures, reason)
		}
	}

	withinBudget := elapsed <= overall
	if !withinBudget {
		failures = append(failures, "verification exceeded timeoutSeconds budget")
	}

	return domain.VerificationResult{
		ConnectorName: v.ConnectorName,
		Passed:        len(failures) == 0,
		DurationMs:    elapsed.Milliseconds(),
		Failures:      failures,
	}
}

func dispatch(ctx context.Context, factory *Factory, env *domain.Environment, v domain.Verification, pending *PendingListen, queryTimeout time.Duration) (string, error) {
	if pending != nil {
		return pending.listener.Await(ctx, queryTimeout)
	}

	driver, conn, ok := factory.For(env, v.ConnectorName)
	if !ok {
		return "", unknownConnectorErr(v.ConnectorName)
	}
	return driver.Execute(ctx, conn.Config, v.Query, queryTimeout)
}

func unknownConnectorErr(name string) error {
	return apierr.VerificationQuery(name, errors.New("connector not configured in environment"))
}
