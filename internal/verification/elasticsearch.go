package verification

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stepflow/orchestrator/internal/apierr"
)

// ElasticsearchConnector verifies against an Elasticsearch (or
// OpenSearch) cluster over its HTTP API. The resolved query is
// `METHOD /path [body]`: the method and path are the first two
// whitespace-separated tokens, everything after is passed as the
// request body verbatim. Config carries `baseUrl` and optionally
// `username`/`password`. Result is the raw JSON of the HTTP response.
type ElasticsearchConnector struct {
	client *http.Client
}

// NewElasticsearchConnector builds an ElasticsearchConnector sharing
// one HTTP client across calls.
func NewElasticsearchConnector() *ElasticsearchConnector {
	return &ElasticsearchConnector{client: &http.Client{}}
}

func (c *ElasticsearchConnector) Type() string { return "elasticsearch" }

func (c *ElasticsearchConnector) Execute(ctx context.Context, config map[string]string, resolvedQuery string, queryTimeout time.Duration) (string, error) {
	method, path, body, err := parseESQuery(resolvedQuery)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	url := strings.TrimRight(config["baseUrl"], "/") + path
	req, reqErr := http.NewRequestWithContext(ctx, method, url, bytes.NewBufferString(body))
	if reqErr != nil {
		return "", apierr.Internal("failed to build elasticsearch request", reqErr)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user, pass := config["username"], config["password"]; user != "" {
		req.SetBasicAuth(user, pass)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", apierr.VerificationQuery("elasticsearch", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", apierr.VerificationQuery("elasticsearch", err)
	}
	if resp.StatusCode >= 300 {
		return "", apierr.VerificationQuery("elasticsearch", errStatus(resp.StatusCode, string(respBody)))
	}

	return string(respBody), nil
}

func (c *ElasticsearchConnector) Listen(ctx context.Context, config map[string]string, resolvedQuery string) (Listener, error) {
	return &pollListener{connector: c, config: config, query: resolvedQuery}, nil
}

func parseESQuery(resolvedQuery string) (method, path, body string, err error) {
	trimmed := strings.TrimLeft(resolvedQuery, " \t\n")
	methodEnd := strings.IndexAny(trimmed, " \t\n")
	if methodEnd < 0 {
		return "", "", "", apierr.Validation("elasticsearch verification requires METHOD /path")
	}
	method = strings.ToUpper(trimmed[:methodEnd])

	rest := strings.TrimLeft(trimmed[methodEnd:], " \t\n")
	pathEnd := strings.IndexAny(rest, " \t\n")
	if pathEnd < 0 {
		return method, rest, "", nil
	}
	path = rest[:pathEnd]
	body = strings.TrimLeft(rest[pathEnd:], " \t\n")
	return method, path, body, nil
}

func errStatus(code int, body string) error {
	return apierr.Validation(httpStatusMessage(code, body))
}

func httpStatusMessage(code int, body string) string {
	const maxLen = 500
	if len(body) > maxLen {
		body = body[:maxLen] + "...(truncated)"
	}
	return "elasticsearch returned HTTP " + strconv.Itoa(code) + ": " + body
}
