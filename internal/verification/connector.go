// Package verification runs pre-listen and post-step infrastructure
// checks against connectors, then evaluates assertions against the
// driver's JSON result.
package verification

import (
	"context"
	"time"

	"github.com/stepflow/orchestrator/internal/domain"
)

// Connector dispatches a verification query to one external system
// type and returns its result as a JSON string, the shape every
// assertion is evaluated against.
type Connector interface {
	// Type is the connector kind this driver serves (e.g. "redis", "postgres").
	Type() string

	// Execute runs resolvedQuery against config within queryTimeout and
	// returns the result as a JSON-encoded string.
	Execute(ctx context.Context, config map[string]string, resolvedQuery string, queryTimeout time.Duration) (string, error)

	// Listen starts a pre-listen subscription (for preListen=true
	// verifications) and returns a Listener whose Await blocks until
	// either a matching event arrives or ctx is done, returning the JSON
	// result.
	// Drivers with no subscription concept (SQL, Redis GET) return a
	// listener that simply re-executes the query.
	Listen(ctx context.Context, config map[string]string, resolvedQuery string) (Listener, error)
}

// Listener is returned by Connector.Listen; Await blocks for the
// subscribed event or ctx cancellation.
type Listener interface {
	Await(ctx context.Context, queryTimeout time.Duration) (string, error)
}

// Factory resolves a verification's connectorName to a Connector via
// the environment's declared connector type.
type Factory struct {
	drivers map[string]Connector
}

// NewFactory builds a Factory from a set of registered drivers, keyed
// by their Type().
func NewFactory(drivers ...Connector) *Factory {
	f := &Factory{drivers: make(map[string]Connector, len(drivers))}
	for _, d := range drivers {
		f.drivers[d.Type()] = d
	}
	return f
}

// For resolves the connector declared on env under name.
func (f *Factory) For(env *domain.Environment, name string) (Connector, domain.Connector, bool) {
	conn, ok := env.Connector(name)
	if !ok {
		return nil, domain.Connector{}, false
	}
	driver, ok := f.drivers[conn.Type]
	return driver, conn, ok
}

// pollListener is a Listener that re-runs the query on Await, used by
// drivers with no native subscription primitive (SQL, Redis GET/HGET).
type pollListener struct {
	connector Connector
	config    map[string]string
	query     string
}

func (p *pollListener) Await(ctx context.Context, queryTimeout time.Duration) (string, error) {
	return p.connector.Execute(ctx, p.config, p.query, queryTimeout)
}
