// Package extractor computes a finished step's extracted-variable
// bindings from its resolved request and response, per the
// (source, jsonPath) table declared on the step.
package extractor

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/stepflow/orchestrator/internal/domain"
	"github.com/stepflow/orchestrator/internal/jsonpath"
)

// Extract computes every declared extracted variable's value, along
// with any warnings for fields that could not be resolved.
func Extract(step *domain.Step, result domain.StepExecutionResult) (map[string]string, []string) {
	bindings := make(map[string]string, len(step.ExtractedVariables))
	var warnings []string

	var parsedBody interface{}
	bodyParsed := json.Unmarshal([]byte(result.ResponseBody), &parsedBody) == nil

	var parsedRequestBody interface{}
	requestBodyParsed := json.Unmarshal([]byte(result.RequestBody), &parsedRequestBody) == nil

	for _, ev := range step.ExtractedVariables {
		value, ok := extractOne(ev, result, parsedBody, bodyParsed, parsedRequestBody, requestBodyParsed)
		if !ok {
			warnings = append(warnings, "could not extract "+ev.VariableName+" from "+string(ev.Source))
			value = ""
		}
		bindings[ev.VariableName] = value
	}

	return bindings, warnings
}

func extractOne(ev domain.ExtractedVariable, result domain.StepExecutionResult, parsedBody interface{}, bodyParsed bool, parsedRequestBody interface{}, requestBodyParsed bool) (string, bool) {
	switch ev.Source {
	case domain.SourceStatusCode:
		return strconv.Itoa(result.ResponseCode), true

	case domain.SourceRequestURL:
		return result.RequestURL, true

	case domain.SourceResponseHeader:
		return firstHeaderValue(result.ResponseHeaders, ev.JSONPath)

	case domain.SourceRequestHeader:
		return firstHeaderValue(result.RequestHeaders, ev.JSONPath)

	case domain.SourceQueryParam:
		v, ok := result.RequestQueryParams[ev.JSONPath]
		return v, ok

	case domain.SourceResponseBody:
		if !bodyParsed {
			return result.ResponseBody, ev.JSONPath == "$" || ev.JSONPath == ""
		}
		v, err := jsonpath.Eval(parsedBody, ev.JSONPath)
		return jsonpath.Stringify(v, err), err == nil

	case domain.SourceRequestBody:
		if !requestBodyParsed {
			return result.RequestBody, ev.JSONPath == "$" || ev.JSONPath == ""
		}
		v, err := jsonpath.Eval(parsedRequestBody, ev.JSONPath)
		return jsonpath.Stringify(v, err), err == nil

	default:
		return "", false
	}
}

func firstHeaderValue(headers map[string][]string, key string) (string, bool) {
	for k, values := range headers {
		if strings.EqualFold(k, key) && len(values) > 0 {
			return values[0], true
		}
	}
	return "", false
}

// BuildImplicitTree assembles the producing-step context consumed by
// later {{StepName.path}} placeholders: response, status, headers,
// and request.* as a navigable tree for the JSON path evaluator.
func BuildImplicitTree(result domain.StepExecutionResult) interface{} {
	var response interface{}
	if err := json.Unmarshal([]byte(result.ResponseBody), &response); err != nil {
		response = result.ResponseBody
	}

	return map[string]interface{}{
		"response": response,
		"status":   result.ResponseCode,
		"headers":  headersToMap(result.ResponseHeaders),
		"request": map[string]interface{}{
			"body":    result.RequestBody,
			"url":     result.RequestURL,
			"headers": headersToMap(result.RequestHeaders),
			"query":   result.RequestQueryParams,
		},
	}
}

func headersToMap(headers map[string][]string) map[string]interface{} {
	out := make(map[string]interface{}, len(headers))
	for k, v := range headers {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
