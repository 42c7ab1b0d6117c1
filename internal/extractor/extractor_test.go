package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stepflow/orchestrator/internal/domain"
)

func TestExtractStatusCode(t *testing.T) {
	step := &domain.Step{ExtractedVariables: []domain.ExtractedVariable{
		{VariableName: "code", Source: domain.SourceStatusCode},
	}}
	result := domain.StepExecutionResult{ResponseCode: 201}

	bindings, warnings := Extract(step, result)
	assert.Empty(t, warnings)
	assert.Equal(t, "201", bindings["code"])
}

func TestExtractRequestURL(t *testing.T) {
	step := &domain.Step{ExtractedVariables: []domain.ExtractedVariable{
		{VariableName: "url", Source: domain.SourceRequestURL},
	}}
	result := domain.StepExecutionResult{RequestURL: "https://api.example.com/users/1"}

	bindings, _ := Extract(step, result)
	assert.Equal(t, "https://api.example.com/users/1", bindings["url"])
}

func TestExtractResponseHeaderCaseInsensitive(t *testing.T) {
	step := &domain.Step{ExtractedVariables: []domain.ExtractedVariable{
		{VariableName: "reqId", Source: domain.SourceResponseHeader, JSONPath: "x-request-id"},
	}}
	result := domain.StepExecutionResult{ResponseHeaders: map[string][]string{"X-Request-Id": {"abc-123"}}}

	bindings, warnings := Extract(step, result)
	assert.Empty(t, warnings)
	assert.Equal(t, "abc-123", bindings["reqId"])
}

func TestExtractResponseBodyJSONPath(t *testing.T) {
	step := &domain.Step{ExtractedVariables: []domain.ExtractedVariable{
		{VariableName: "userId", Source: domain.SourceResponseBody, JSONPath: "$.user.id"},
	}}
	result := domain.StepExecutionResult{ResponseBody: `{"user":{"id":"u-42"}}`}

	bindings, warnings := Extract(step, result)
	assert.Empty(t, warnings)
	assert.Equal(t, "u-42", bindings["userId"])
}

func TestExtractMissingFieldBindsEmptyWithWarning(t *testing.T) {
	step := &domain.Step{ExtractedVariables: []domain.ExtractedVariable{
		{VariableName: "missing", Source: domain.SourceResponseBody, JSONPath: "$.nope"},
	}}
	result := domain.StepExecutionResult{ResponseBody: `{"user":{"id":"u-42"}}`}

	bindings, warnings := Extract(step, result)
	assert.Len(t, warnings, 1)
	assert.Equal(t, "", bindings["missing"])
}

func TestExtractQueryParam(t *testing.T) {
	step := &domain.Step{ExtractedVariables: []domain.ExtractedVariable{
		{VariableName: "page", Source: domain.SourceQueryParam, JSONPath: "page"},
	}}
	result := domain.StepExecutionResult{RequestQueryParams: map[string]string{"page": "2"}}

	bindings, warnings := Extract(step, result)
	assert.Empty(t, warnings)
	assert.Equal(t, "2", bindings["page"])
}

func TestExtractRequestBodyJSONPath(t *testing.T) {
	step := &domain.Step{ExtractedVariables: []domain.ExtractedVariable{
		{VariableName: "name", Source: domain.SourceRequestBody, JSONPath: "$.name"},
	}}
	result := domain.StepExecutionResult{RequestBody: `{"name":"widget"}`}

	bindings, _ := Extract(step, result)
	assert.Equal(t, "widget", bindings["name"])
}

func TestBuildImplicitTreeNavigable(t *testing.T) {
	result := domain.StepExecutionResult{
		ResponseCode: 200,
		ResponseBody: `{"id":"u1"}`,
		ResponseHeaders: map[string][]string{"Content-Type": {"application/json"}},
		RequestURL:   "https://api.example.com/users",
	}

	tree := BuildImplicitTree(result)
	m, ok := tree.(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, 200, m["status"])

	request, ok := m["request"].(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, "https://api.example.com/users", request["url"])
}
