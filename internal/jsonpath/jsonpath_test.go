package jsonpath

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unmarshal(t *testing.T, s string) interface{} {
	t.Helper()
	var v interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestEvalField(t *testing.T) {
	doc := unmarshal(t, `{"t":"abc","nested":{"value":42}}`)

	v, err := Eval(doc, "$.t")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	v, err = Eval(doc, "$.nested.value")
	require.NoError(t, err)
	assert.Equal(t, float64(42), v)
}

func TestEvalIndex(t *testing.T) {
	doc := unmarshal(t, `{"items":[{"id":1},{"id":2}]}`)

	v, err := Eval(doc, "$.items[1].id")
	require.NoError(t, err)
	assert.Equal(t, float64(2), v)
}

func TestEvalLength(t *testing.T) {
	doc := unmarshal(t, `{"items":[1,2,3],"name":"hello"}`)

	v, err := Eval(doc, "$.items.length()")
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	v, err = Eval(doc, "$.name.size()")
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}

func TestEvalMissingKeyIsNotFound(t *testing.T) {
	doc := unmarshal(t, `{"a":1}`)
	_, err := Eval(doc, "$.missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEvalRejectsNonTerminalLength(t *testing.T) {
	doc := unmarshal(t, `{"items":[1,2,3]}`)
	_, err := Eval(doc, "$.items.length().extra")
	assert.Error(t, err)
}

func TestExists(t *testing.T) {
	doc := unmarshal(t, `{"a":1}`)
	assert.True(t, Exists(doc, "$.a"))
	assert.False(t, Exists(doc, "$.b"))
}

func TestStringifyHandlesScalarsAndMissing(t *testing.T) {
	assert.Equal(t, "abc", Stringify("abc", nil))
	assert.Equal(t, "42", Stringify(float64(42), nil))
	assert.Equal(t, "", Stringify(nil, ErrNotFound))
}

func TestParseWithoutDollarPrefix(t *testing.T) {
	doc := unmarshal(t, `{"a":{"b":1}}`)
	v, err := Eval(doc, "a.b")
	require.NoError(t, err)
	assert.Equal(t, float64(1), v)
}
