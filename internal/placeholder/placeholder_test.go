package placeholder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepflow/orchestrator/internal/domain"
)

func TestResolveStaticEnvVar(t *testing.T) {
	env := &domain.Environment{Variables: []domain.Variable{
		{Key: "BASE_URL", Value: "https://api.test", ValueType: domain.ValueTypeStatic},
	}}

	r := Resolve("${BASE_URL}/users", Context{Environment: env})
	assert.Equal(t, "https://api.test/users", r.Value)
	assert.Empty(t, r.Warnings)
}

func TestResolveVariableIndirectionOneLevel(t *testing.T) {
	env := &domain.Environment{Variables: []domain.Variable{
		{Key: "ALIAS", Value: "TARGET", ValueType: domain.ValueTypeVariable},
		{Key: "TARGET", Value: "resolved-value", ValueType: domain.ValueTypeStatic},
	}}

	r := Resolve("${ALIAS}", Context{Environment: env})
	assert.Equal(t, "resolved-value", r.Value)
}

func TestResolveUnknownVariableLeftLiteralWithWarning(t *testing.T) {
	r := Resolve("${MISSING}", Context{Environment: &domain.Environment{}})
	assert.Equal(t, "${MISSING}", r.Value)
	require.Len(t, r.Warnings, 1)
}

func TestResolveFileRefLeftForExecutor(t *testing.T) {
	r := Resolve("${FILE:payload}", Context{Environment: &domain.Environment{}})
	assert.Equal(t, "${FILE:payload}", r.Value)
	assert.Equal(t, []string{"payload"}, r.FileRefs)
	assert.Empty(t, r.Warnings)
}

func TestResolveStepExtractedVariable(t *testing.T) {
	ctx := Context{
		StepContexts: map[string]StepContext{
			"Login": {ExtractedVariables: map[string]string{"token": "abc123"}},
		},
	}
	r := Resolve("Bearer {{Login.token}}", ctx)
	assert.Equal(t, "Bearer abc123", r.Value)
}

func TestResolveStepImplicitJSONPath(t *testing.T) {
	ctx := Context{
		StepContexts: map[string]StepContext{
			"Login": {Implicit: map[string]interface{}{
				"response": map[string]interface{}{"id": "u1"},
			}},
		},
	}
	r := Resolve("{{Login.response.id}}", ctx)
	assert.Equal(t, "u1", r.Value)
}

func TestResolveManualInputSubmittedValueWins(t *testing.T) {
	ctx := Context{ManualInputValues: map[string]string{"otp": "999111"}}
	r := Resolve("#{otp:000000}", ctx)
	assert.Equal(t, "999111", r.Value)
}

func TestResolveManualInputFallsBackToDefault(t *testing.T) {
	r := Resolve("#{otp:000000}", Context{})
	assert.Equal(t, "000000", r.Value)
}

func TestResolveManualInputMissingWithoutDefaultWarns(t *testing.T) {
	r := Resolve("#{otp}", Context{})
	assert.Equal(t, "", r.Value)
	require.Len(t, r.Warnings, 1)
}

func TestCollectManualInputNamesDeduplicates(t *testing.T) {
	fields := CollectManualInputNames("#{otp:000000} and again #{otp:000000} plus #{captcha}")
	require.Len(t, fields, 2)
	assert.Equal(t, "otp", fields[0].Name)
	require.NotNil(t, fields[0].DefaultValue)
	assert.Equal(t, "000000", *fields[0].DefaultValue)
	assert.Equal(t, "captcha", fields[1].Name)
	assert.Nil(t, fields[1].DefaultValue)
}

func TestResolveUnbalancedPlaceholderLeftLiteral(t *testing.T) {
	r := Resolve("${unterminated", Context{})
	assert.Equal(t, "${unterminated", r.Value)
	require.Len(t, r.Warnings, 1)
}
