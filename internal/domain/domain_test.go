package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvironmentLookups(t *testing.T) {
	env := &Environment{
		Variables: []Variable{{Key: "TOKEN", Value: "abc", ValueType: ValueTypeStatic}},
		Files:     []File{{Key: "payload", Filename: "p.json"}},
		Connectors: []Connector{{Name: "primary-redis", Type: "redis"}},
	}

	v, ok := env.Variable("TOKEN")
	assert.True(t, ok)
	assert.Equal(t, "abc", v.Value)

	_, ok = env.Variable("MISSING")
	assert.False(t, ok)

	f, ok := env.File("payload")
	assert.True(t, ok)
	assert.Equal(t, "p.json", f.Filename)

	c, ok := env.Connector("primary-redis")
	assert.True(t, ok)
	assert.Equal(t, "redis", c.Type)
}

func TestStepDisablesDefaultHeaderCaseInsensitive(t *testing.T) {
	s := &Step{DisabledDefaultHeaders: []string{"Authorization"}}
	assert.True(t, s.DisablesDefaultHeader("authorization"))
	assert.True(t, s.DisablesDefaultHeader("AUTHORIZATION"))
	assert.False(t, s.DisablesDefaultHeader("X-Other"))
}

func TestSuiteStepLookups(t *testing.T) {
	suite := &Suite{Steps: []Step{{ID: "s1", Name: "login"}, {ID: "s2", Name: "me"}}}

	step, ok := suite.StepByID("s2")
	assert.True(t, ok)
	assert.Equal(t, "me", step.Name)

	step, ok = suite.StepByName("login")
	assert.True(t, ok)
	assert.Equal(t, "s1", step.ID)

	_, ok = suite.StepByID("missing")
	assert.False(t, ok)
}

func TestStepStatusIsTerminalFailure(t *testing.T) {
	assert.True(t, StepError.IsTerminalFailure())
	assert.True(t, StepVerificationFailed.IsTerminalFailure())
	assert.False(t, StepSuccess.IsTerminalFailure())
	assert.False(t, StepSkipped.IsTerminalFailure())
}
