// Package jsonpath implements the restricted JSON path grammar used
// throughout the engine: `$` root, `.field`, `[N]` integer index, and
// the terminal functions `.length()` / `.size()`. It deliberately does
// not support filters, unions, or recursive descent — those belong to
// general-purpose JSONPath implementations, not this contract.
package jsonpath

import (
	"errors"
	"strconv"
	"strings"
)

// ErrNotFound is returned by Eval when the path does not resolve
// against the given document.
var ErrNotFound = errors.New("jsonpath: path not found")

type tokenKind int

const (
	tokenField tokenKind = iota
	tokenIndex
	tokenLength
)

type token struct {
	kind  tokenKind
	field string
	index int
}

// Parse tokenizes a path expression into its segments. The leading `$`
// is optional; both "$.a.b" and "a.b" parse identically.
func Parse(path string) ([]token, error) {
	p := strings.TrimSpace(path)
	p = strings.TrimPrefix(p, "$")

	var tokens []token
	i := 0
	for i < len(p) {
		switch {
		case p[i] == '.':
			i++
			start := i
			for i < len(p) && p[i] != '.' && p[i] != '[' {
				i++
			}
			field := p[start:i]
			if field == "" {
				return nil, errors.New("jsonpath: empty field segment")
			}
			if field == "length()" || field == "size()" {
				tokens = append(tokens, token{kind: tokenLength})
				continue
			}
			tokens = append(tokens, token{kind: tokenField, field: field})
		case p[i] == '[':
			end := strings.IndexByte(p[i:], ']')
			if end < 0 {
				return nil, errors.New("jsonpath: unterminated index segment")
			}
			raw := p[i+1 : i+end]
			idx, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return nil, errors.New("jsonpath: non-integer index " + raw)
			}
			tokens = append(tokens, token{kind: tokenIndex, index: idx})
			i += end + 1
		default:
			// Bare leading identifier with no "." separator, e.g. "field.path".
			start := i
			for i < len(p) && p[i] != '.' && p[i] != '[' {
				i++
			}
			field := p[start:i]
			if field == "" {
				return nil, errors.New("jsonpath: malformed path " + path)
			}
			tokens = append(tokens, token{kind: tokenField, field: field})
		}
	}
	return tokens, nil
}

// Eval navigates doc (the result of a JSON unmarshal: map[string]interface{},
// []interface{}, or a scalar) per path, returning the resolved value.
func Eval(doc interface{}, path string) (interface{}, error) {
	tokens, err := Parse(path)
	if err != nil {
		return nil, err
	}

	current := doc
	for idx, tok := range tokens {
		switch tok.kind {
		case tokenField:
			m, ok := current.(map[string]interface{})
			if !ok {
				return nil, ErrNotFound
			}
			v, ok := m[tok.field]
			if !ok {
				return nil, ErrNotFound
			}
			current = v
		case tokenIndex:
			arr, ok := current.([]interface{})
			if !ok {
				return nil, ErrNotFound
			}
			i := tok.index
			if i < 0 {
				i += len(arr)
			}
			if i < 0 || i >= len(arr) {
				return nil, ErrNotFound
			}
			current = arr[i]
		case tokenLength:
			if idx != len(tokens)-1 {
				return nil, errors.New("jsonpath: length()/size() must be terminal")
			}
			return length(current)
		}
	}
	return current, nil
}

func length(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case []interface{}:
		return len(t), nil
	case string:
		return len(t), nil
	case map[string]interface{}:
		return len(t), nil
	default:
		return nil, ErrNotFound
	}
}

// Exists reports whether path resolves against doc without error.
func Exists(doc interface{}, path string) bool {
	_, err := Eval(doc, path)
	return err == nil
}

// Stringify renders a resolved value the way a placeholder expansion
// does: strings pass through unquoted, everything else is rendered by
// toCompactString (stringify.go), and nil/not-found becomes the empty
// string.
func Stringify(v interface{}, err error) string {
	if err != nil || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return toCompactString(v)
}
