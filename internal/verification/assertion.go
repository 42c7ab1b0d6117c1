package verification

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/stepflow/orchestrator/internal/domain"
)

// EvaluateAssertion checks one assertion against result, the JSON
// string returned by a connector's Execute/Listen call.
func EvaluateAssertion(result string, a domain.Assertion) (bool, string) {
	value := gjson.Get(result, a.JSONPath)

	switch a.Operator {
	case domain.OpExists:
		return value.Exists(), fmt.Sprintf("%s does not exist", a.JSONPath)

	case domain.OpNotExists:
		return !value.Exists(), fmt.Sprintf("%s exists", a.JSONPath)

	case domain.OpEquals:
		return value.String() == a.ExpectedValue, fmt.Sprintf("expected %q, got %q", a.ExpectedValue, value.String())

	case domain.OpNotEquals:
		return value.String() != a.ExpectedValue, fmt.Sprintf("expected value other than %q", a.ExpectedValue)

	case domain.OpContains:
		return strings.Contains(value.String(), a.ExpectedValue), fmt.Sprintf("%q does not contain %q", value.String(), a.ExpectedValue)

	case domain.OpNotContains:
		return !strings.Contains(value.String(), a.ExpectedValue), fmt.Sprintf("%q contains %q", value.String(), a.ExpectedValue)

	case domain.OpRegex:
		re, err := regexp.Compile(a.ExpectedValue)
		if err != nil {
			return false, fmt.Sprintf("invalid regex %q: %v", a.ExpectedValue, err)
		}
		return re.MatchString(value.String()), fmt.Sprintf("%q does not match /%s/", value.String(), a.ExpectedValue)

	case domain.OpGT, domain.OpLT, domain.OpGTE, domain.OpLTE:
		return evaluateNumeric(value, a)

	default:
		return false, fmt.Sprintf("unknown operator %q", a.Operator)
	}
}

func evaluateNumeric(value gjson.Result, a domain.Assertion) (bool, string) {
	actual, err := strconv.ParseFloat(value.String(), 64)
	if err != nil {
		return false, fmt.Sprintf("actual value %q is not numeric", value.String())
	}
	expected, err := strconv.ParseFloat(a.ExpectedValue, 64)
	if err != nil {
		return false, fmt.Sprintf("expected value %q is not numeric", a.ExpectedValue)
	}

	switch a.Operator {
	case domain.OpGT:
		return actual > expected, fmt.Sprintf("%v is not > %v", actual, expected)
	case domain.OpLT:
		return actual < expected, fmt.Sprintf("%v is not < %v", actual, expected)
	case domain.OpGTE:
		return actual >= expected, fmt.Sprintf("%v is not >= %v", actual, expected)
	case domain.OpLTE:
		return actual <= expected, fmt.Sprintf("%v is not <= %v", actual, expected)
	default:
		return false, "unreachable"
	}
}
