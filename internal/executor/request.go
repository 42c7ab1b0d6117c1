// Package executor builds and issues the HTTP request for one resolved
// step, matches the response against the step's response handlers, and
// drives the retry loop for RETRY actions.
package executor

import (
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/stepflow/orchestrator/internal/apierr"
	"github.com/stepflow/orchestrator/internal/domain"
	"github.com/stepflow/orchestrator/internal/placeholder"
)

// ResolvedRequest is a step's HTTP request after placeholder expansion.
type ResolvedRequest struct {
	Method      string
	URL         string
	Headers     http.Header
	QueryParams map[string]string
	Body        []byte
	ContentType string
	Warnings    []string
}

// Resolve expands every templated field of step (URL, headers, query
// params, body/form fields) against ctx, applying environment default
// headers first (skipping any listed in DisabledDefaultHeaders), then
// step headers (case-insensitive override).
func Resolve(step *domain.Step, env *domain.Environment, ctx placeholder.Context) (ResolvedRequest, error) {
	var warnings []string

	urlResult := placeholder.Resolve(step.URL, ctx)
	warnings = append(warnings, urlResult.Warnings...)

	headers := http.Header{}
	if env != nil {
		for _, h := range env.DefaultHeaders {
			if step.DisablesDefaultHeader(h.Key) {
				continue
			}
			r := placeholder.Resolve(h.Value, ctx)
			warnings = append(warnings, r.Warnings...)
			headers.Set(h.Key, r.Value)
		}
	}
	for _, h := range step.Headers {
		r := placeholder.Resolve(h.Value, ctx)
		warnings = append(warnings, r.Warnings...)
		headers.Set(h.Key, r.Value)
	}

	queryParams := make(map[string]string, len(step.QueryParams))
	for _, q := range step.QueryParams {
		r := placeholder.Resolve(q.Value, ctx)
		warnings = append(warnings, r.Warnings...)
		queryParams[q.Key] = r.Value
	}

	var body []byte
	contentType := ""

	switch step.BodyType {
	case domain.BodyTypeJSON:
		r := placeholder.Resolve(step.Body, ctx)
		warnings = append(warnings, r.Warnings...)
		body = []byte(r.Value)
		contentType = "application/json"

	case domain.BodyTypeFormData:
		buf, ct, formWarnings, err := buildMultipart(step, env, ctx)
		if err != nil {
			return ResolvedRequest{}, err
		}
		warnings = append(warnings, formWarnings...)
		body = buf
		contentType = ct
	}

	if userCT := headers.Get("Content-Type"); userCT != "" {
		contentType = userCT
	} else if contentType != "" {
		headers.Set("Content-Type", contentType)
	}

	return ResolvedRequest{
		Method:      string(step.Method),
		URL:         urlResult.Value,
		Headers:     headers,
		QueryParams: queryParams,
		Body:        body,
		ContentType: contentType,
		Warnings:    warnings,
	}, nil
}

func buildMultipart(step *domain.Step, env *domain.Environment, ctx placeholder.Context) ([]byte, string, []string, error) {
	var buf strings.Builder
	writer := multipart.NewWriter(&buf)
	var warnings []string

	for _, field := range step.FormFields {
		switch field.Type {
		case domain.FormFieldFile:
			r := placeholder.Resolve(field.Value, ctx)
			warnings = append(warnings, r.Warnings...)
			if len(r.FileRefs) == 0 {
				return nil, "", nil, apierr.Resolution(field.Value).WithDetails("field", field.Key)
			}
			key := r.FileRefs[0]
			file, ok := env.File(key)
			if !ok {
				return nil, "", nil, apierr.Resolution("${FILE:" + key + "}").WithDetails("field", field.Key)
			}
			part, err := writer.CreateFormFile(field.Key, file.Filename)
			if err != nil {
				return nil, "", nil, apierr.Internal("failed to create form file part", err)
			}
			if _, err := part.Write(file.Data); err != nil {
				return nil, "", nil, apierr.Internal("failed to write form file part", err)
			}

		default: // text
			r := placeholder.Resolve(field.Value, ctx)
			warnings = append(warnings, r.Warnings...)
			if err := writer.WriteField(field.Key, r.Value); err != nil {
				return nil, "", nil, apierr.Internal("failed to write form field", err)
			}
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", nil, apierr.Internal("failed to finalize multipart body", err)
	}

	return []byte(buf.String()), writer.FormDataContentType(), warnings, nil
}

// SelectHandler scans handlers in ascending priority. Handlers whose
// action is FIRE_SIDE_EFFECT match without finalizing the step: they
// are collected and scanning continues until a finalizing handler
// (SUCCESS/ERROR/RETRY) matches, or the list is exhausted — in which
// case the step classifies as ERROR.
func SelectHandler(handlers []domain.ResponseHandler, statusCode int) (final *domain.ResponseHandler, sideEffects []domain.ResponseHandler) {
	sorted := make([]domain.ResponseHandler, len(handlers))
	copy(sorted, handlers)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return !isRange(sorted[i].MatchCode) && isRange(sorted[j].MatchCode)
	})

	for i := range sorted {
		h := sorted[i]
		if !matchCode(h.MatchCode, statusCode) {
			continue
		}
		if h.Action == domain.ActionFireSideEffect {
			sideEffects = append(sideEffects, h)
			continue
		}
		hCopy := h
		return &hCopy, sideEffects
	}
	return nil, sideEffects
}

func isRange(matchCode string) bool {
	return strings.HasSuffix(strings.ToLower(matchCode), "xx")
}

// matchCode reports whether statusCode satisfies matchCode, either an
// exact numeric code or a range pattern like "2xx". A synthetic status
// of 0 (HTTP I/O failure) is treated as satisfying the "5xx" range so a
// step can opt into retrying connection errors.
func matchCode(matchCode string, statusCode int) bool {
	lower := strings.ToLower(strings.TrimSpace(matchCode))
	if isRange(lower) {
		prefix := lower[:1]
		if prefix == "5" && statusCode == 0 {
			return true
		}
		if statusCode < 100 || statusCode > 599 {
			return false
		}
		return strings.HasPrefix(strconv.Itoa(statusCode), prefix)
	}
	return lower == strconv.Itoa(statusCode)
}
