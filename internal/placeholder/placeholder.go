// Package placeholder implements the four-family placeholder resolver
// described for step templates: environment variables (${NAME}), file
// references (${FILE:key}), producing-step JSON paths ({{Step.path}}),
// and manual input tokens (#{name[:default]}). Resolution is a single
// left-to-right scan; nested placeholders inside an expansion are not
// re-scanned.
package placeholder

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stepflow/orchestrator/internal/domain"
	"github.com/stepflow/orchestrator/internal/jsonpath"
)

// StepContext is the producing-step context consulted by {{Step.path}}
// placeholders: declared extracted variables plus the implicit tree
// (response, status, headers, request.*).
type StepContext struct {
	ExtractedVariables map[string]string
	Implicit           interface{} // map[string]interface{} once marshaled/unmarshaled
}

// Context carries everything a single Resolve call needs.
type Context struct {
	Environment        *domain.Environment
	StepContexts       map[string]StepContext
	ManualInputValues  map[string]string
}

// Result is the outcome of resolving one template string.
type Result struct {
	Value      string
	Warnings   []string
	FileRefs   []string // ${FILE:key} tokens left for the HTTP executor
}

// Resolve expands all four placeholder families found in template.
func Resolve(template string, ctx Context) Result {
	var out strings.Builder
	var warnings []string
	var fileRefs []string

	s := template
	i := 0
	for i < len(s) {
		switch {
		case strings.HasPrefix(s[i:], "${FILE:"):
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				out.WriteString(s[i:])
				warnings = append(warnings, "unbalanced ${FILE: placeholder")
				i = len(s)
				continue
			}
			token := s[i : i+end+1]
			key := s[i+len("${FILE:") : i+end]
			fileRefs = append(fileRefs, key)
			out.WriteString(token) // left for the HTTP executor to substitute
			i += end + 1

		case strings.HasPrefix(s[i:], "${"):
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				out.WriteString(s[i:])
				warnings = append(warnings, "unbalanced ${ placeholder")
				i = len(s)
				continue
			}
			name := s[i+2 : i+end]
			value, ok := resolveEnvVar(ctx.Environment, name)
			if !ok {
				out.WriteString(s[i : i+end+1])
				warnings = append(warnings, "unresolved variable "+name)
			} else {
				out.WriteString(value)
			}
			i += end + 1

		case strings.HasPrefix(s[i:], "{{"):
			end := strings.Index(s[i:], "}}")
			if end < 0 {
				out.WriteString(s[i:])
				warnings = append(warnings, "unbalanced {{ placeholder")
				i = len(s)
				continue
			}
			expr := s[i+2 : i+end]
			value, ok := resolveStepPath(ctx.StepContexts, expr)
			if !ok {
				out.WriteString(s[i : i+end+2])
				warnings = append(warnings, "unresolved step reference "+expr)
			} else {
				out.WriteString(value)
			}
			i += end + 2

		case strings.HasPrefix(s[i:], "#{"):
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				out.WriteString(s[i:])
				warnings = append(warnings, "unbalanced #{ placeholder")
				i = len(s)
				continue
			}
			expr := s[i+2 : i+end]
			name, def, hasDef := splitNameDefault(expr)
			value, ok := ctx.ManualInputValues[name]
			switch {
			case ok:
				out.WriteString(value)
			case hasDef:
				out.WriteString(def)
			default:
				warnings = append(warnings, "manual input not submitted for "+name)
			}
			i += end + 1

		default:
			out.WriteByte(s[i])
			i++
		}
	}

	return Result{Value: out.String(), Warnings: warnings, FileRefs: fileRefs}
}

func splitNameDefault(expr string) (name, def string, hasDefault bool) {
	idx := strings.IndexByte(expr, ':')
	if idx < 0 {
		return expr, "", false
	}
	return expr[:idx], expr[idx+1:], true
}

func resolveEnvVar(env *domain.Environment, name string) (string, bool) {
	if env == nil {
		return "", false
	}
	v, ok := env.Variable(name)
	if !ok {
		return "", false
	}
	return expandValue(env, v)
}

// expandValue renders v's value according to its value type. VARIABLE
// indirection recurses exactly one level: the target variable's raw
// value is used even if that target is itself VARIABLE-typed.
func expandValue(env *domain.Environment, v domain.Variable) (string, bool) {
	switch v.ValueType {
	case domain.ValueTypeUUID:
		return uuid.New().String(), true
	case domain.ValueTypeISOTimestamp:
		return time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"), true
	case domain.ValueTypeVariable:
		target, ok := env.Variable(v.Value)
		if !ok {
			return "", false
		}
		return target.Value, true
	default: // STATIC
		return v.Value, true
	}
}

func resolveStepPath(stepContexts map[string]StepContext, expr string) (string, bool) {
	dot := strings.IndexByte(expr, '.')
	if dot < 0 {
		return "", false
	}
	stepName := expr[:dot]
	path := expr[dot+1:]

	sc, ok := stepContexts[stepName]
	if !ok {
		return "", false
	}

	// A bare identifier matching a declared extracted variable wins
	// before falling back to the implicit tree.
	if !strings.ContainsAny(path, ".[") {
		if v, ok := sc.ExtractedVariables[path]; ok {
			return v, true
		}
	}

	v, err := jsonpath.Eval(sc.Implicit, "$."+path)
	if err != nil {
		return "", false
	}
	return jsonpath.Stringify(v, nil), true
}

// CollectManualInputNames scans template for #{name[:default]} tokens
// without resolving anything, used by the Manual Input Broker to build
// the fields list before execution.
func CollectManualInputNames(template string) []domain.InputField {
	var fields []domain.InputField
	seen := map[string]bool{}

	s := template
	i := 0
	for i < len(s) {
		if strings.HasPrefix(s[i:], "#{") {
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				break
			}
			expr := s[i+2 : i+end]
			name, def, hasDef := splitNameDefault(expr)
			if !seen[name] {
				seen[name] = true
				var defPtr *string
				if hasDef {
					d := def
					defPtr = &d
				}
				fields = append(fields, domain.InputField{Name: name, DefaultValue: defPtr})
			}
			i += end + 1
			continue
		}
		i++
	}
	return fields
}
