package verification

import (
	"encoding/json"
	"strings"
)

// parseDirectives splits a resolved query into its key=value
// directives, accepting either newline or whitespace separation (e.g.
// "topic=events key=k1" or "topic=events\nkey=k1"), the format the
// Kafka and RabbitMQ connectors take.
func parseDirectives(query string) map[string]string {
	directives := make(map[string]string)
	for _, field := range strings.Fields(query) {
		key, value, found := strings.Cut(field, "=")
		if !found {
			continue
		}
		directives[key] = value
	}
	return directives
}

func toJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
