package verification

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stepflow/orchestrator/internal/domain"
)

const sampleResult = `{"status":"active","count":3,"tags":["a","b"]}`

func TestEvaluateAssertionEquals(t *testing.T) {
	ok, _ := EvaluateAssertion(sampleResult, domain.Assertion{JSONPath: "status", Operator: domain.OpEquals, ExpectedValue: "active"})
	assert.True(t, ok)

	ok, reason := EvaluateAssertion(sampleResult, domain.Assertion{JSONPath: "status", Operator: domain.OpEquals, ExpectedValue: "inactive"})
	assert.False(t, ok)
	assert.NotEmpty(t, reason)
}

func TestEvaluateAssertionNotEquals(t *testing.T) {
	ok, _ := EvaluateAssertion(sampleResult, domain.Assertion{JSONPath: "status", Operator: domain.OpNotEquals, ExpectedValue: "inactive"})
	assert.True(t, ok)
}

func TestEvaluateAssertionContains(t *testing.T) {
	ok, _ := EvaluateAssertion(sampleResult, domain.Assertion{JSONPath: "status", Operator: domain.OpContains, ExpectedValue: "activ"})
	assert.True(t, ok)

	ok, _ = EvaluateAssertion(sampleResult, domain.Assertion{JSONPath: "status", Operator: domain.OpNotContains, ExpectedValue: "xyz"})
	assert.True(t, ok)
}

func TestEvaluateAssertionRegex(t *testing.T) {
	ok, _ := EvaluateAssertion(sampleResult, domain.Assertion{JSONPath: "status", Operator: domain.OpRegex, ExpectedValue: "^act"})
	assert.True(t, ok)
}

func TestEvaluateAssertionInvalidRegex(t *testing.T) {
	ok, reason := EvaluateAssertion(sampleResult, domain.Assertion{JSONPath: "status", Operator: domain.OpRegex, ExpectedValue: "("})
	assert.False(t, ok)
	assert.Contains(t, reason, "invalid regex")
}

func TestEvaluateAssertionNumericOperators(t *testing.T) {
	ok, _ := EvaluateAssertion(sampleResult, domain.Assertion{JSONPath: "count", Operator: domain.OpGT, ExpectedValue: "2"})
	assert.True(t, ok)

	ok, _ = EvaluateAssertion(sampleResult, domain.Assertion{JSONPath: "count", Operator: domain.OpLT, ExpectedValue: "2"})
	assert.False(t, ok)

	ok, _ = EvaluateAssertion(sampleResult, domain.Assertion{JSONPath: "count", Operator: domain.OpGTE, ExpectedValue: "3"})
	assert.True(t, ok)

	ok, _ = EvaluateAssertion(sampleResult, domain.Assertion{JSONPath: "count", Operator: domain.OpLTE, ExpectedValue: "3"})
	assert.True(t, ok)
}

func TestEvaluateAssertionNumericNonNumericFails(t *testing.T) {
	ok, reason := EvaluateAssertion(sampleResult, domain.Assertion{JSONPath: "status", Operator: domain.OpGT, ExpectedValue: "2"})
	assert.False(t, ok)
	assert.Contains(t, reason, "not numeric")
}

func TestEvaluateAssertionExistsAndNotExists(t *testing.T) {
	ok, _ := EvaluateAssertion(sampleResult, domain.Assertion{JSONPath: "status", Operator: domain.OpExists})
	assert.True(t, ok)

	ok, _ = EvaluateAssertion(sampleResult, domain.Assertion{JSONPath: "missing", Operator: domain.OpNotExists})
	assert.True(t, ok)

	ok, _ = EvaluateAssertion(sampleResult, domain.Assertion{JSONPath: "missing", Operator: domain.OpExists})
	assert.False(t, ok)
}
