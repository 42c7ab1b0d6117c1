package jsonpath

import (
	"encoding/json"
	"strconv"
)

// toCompactString renders non-string scalars and subtrees using the
// same formatting rules json.Marshal would, without introducing a
// dependency for what is otherwise a one-line concern.
func toCompactString(v interface{}) string {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
