package verification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepflow/orchestrator/internal/domain"
)

type fakeConnector struct {
	connType  string
	result    string
	executeErr error
	listener  Listener
}

func (f *fakeConnector) Type() string { return f.connType }

func (f *fakeConnector) Execute(ctx context.Context, config map[string]string, resolvedQuery string, queryTimeout time.Duration) (string, error) {
	return f.result, f.executeErr
}

func (f *fakeConnector) Listen(ctx context.Context, config map[string]string, resolvedQuery string) (Listener, error) {
	return f.listener, nil
}

type fakeListener struct {
	result string
	err    error
}

func (l *fakeListener) Await(ctx context.Context, queryTimeout time.Duration) (string, error) {
	return l.result, l.err
}

func testEnv(connectorName, connType string) *domain.Environment {
	return &domain.Environment{
		Connectors: []domain.Connector{{Name: connectorName, Type: connType, Config: map[string]string{}}},
	}
}

func TestRunPassesWhenAssertionsHold(t *testing.T) {
	conn := &fakeConnector{connType: "redis", result: `{"value":"ok"}`}
	factory := NewFactory(conn)
	env := testEnv("cache", "redis")

	v := domain.Verification{
		ConnectorName:  "cache",
		Query:          "command=GET\nkey=foo",
		TimeoutSeconds: 5,
		Assertions:     []domain.Assertion{{JSONPath: "value", Operator: domain.OpEquals, ExpectedValue: "ok"}},
	}

	result := Run(context.Background(), factory, env, v, nil)
	assert.True(t, result.Passed)
	assert.Empty(t, result.Failures)
}

func TestRunFailsWhenAssertionFails(t *testing.T) {
	conn := &fakeConnector{connType: "redis", result: `{"value":"bad"}`}
	factory := NewFactory(conn)
	env := testEnv("cache", "redis")

	v := domain.Verification{
		ConnectorName:  "cache",
		Query:          "command=GET\nkey=foo",
		TimeoutSeconds: 5,
		Assertions:     []domain.Assertion{{JSONPath: "value", Operator: domain.OpEquals, ExpectedValue: "ok"}},
	}

	result := Run(context.Background(), factory, env, v, nil)
	assert.False(t, result.Passed)
	require.Len(t, result.Failures, 1)
}

func TestRunFailsOnDriverError(t *testing.T) {
	conn := &fakeConnector{connType: "redis", executeErr: assertErr("boom")}
	factory := NewFactory(conn)
	env := testEnv("cache", "redis")

	v := domain.Verification{ConnectorName: "cache", TimeoutSeconds: 5}

	result := Run(context.Background(), factory, env, v, nil)
	assert.False(t, result.Passed)
	assert.NotEmpty(t, result.Error)
}

func TestRunUnknownConnectorFails(t *testing.T) {
	factory := NewFactory()
	env := testEnv("cache", "redis")

	v := domain.Verification{ConnectorName: "missing", TimeoutSeconds: 5}

	result := Run(context.Background(), factory, env, v, nil)
	assert.False(t, result.Passed)
	assert.NotEmpty(t, result.Error)
}

func TestStartPreListenNoOpWhenNotPreListen(t *testing.T) {
	factory := NewFactory()
	env := testEnv("cache", "redis")

	pending, err := StartPreListen(context.Background(), factory, env, domain.Verification{ConnectorName: "cache"})
	assert.NoError(t, err)
	assert.Nil(t, pending)
}

func TestPreListenAwaitsStartedSubscription(t *testing.T) {
	conn := &fakeConnector{connType: "kafka", listener: &fakeListener{result: `{"event":"created"}`}}
	factory := NewFactory(conn)
	env := testEnv("bus", "kafka")

	v := domain.Verification{
		ConnectorName:  "bus",
		PreListen:      true,
		TimeoutSeconds: 5,
		Assertions:     []domain.Assertion{{JSONPath: "event", Operator: domain.OpEquals, ExpectedValue: "created"}},
	}

	pending, err := StartPreListen(context.Background(), factory, env, v)
	require.NoError(t, err)
	require.NotNil(t, pending)

	result := Run(context.Background(), factory, env, v, pending)
	assert.True(t, result.Passed)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
