package apierr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAndError(t *testing.T) {
	e := New(KindValidation, "bad input")
	assert.Equal(t, "[VALIDATION] bad input", e.Error())
	assert.Equal(t, http.StatusBadRequest, e.HTTPStatus)
}

func TestWrapUnwrap(t *testing.T) {
	inner := errors.New("boom")
	e := Wrap(KindHTTPIO, "request failed", inner)
	assert.ErrorIs(t, e, inner)
	assert.Contains(t, e.Error(), "boom")
}

func TestWithDetails(t *testing.T) {
	e := NotFound("suite", "abc")
	assert.Equal(t, "abc", e.Details["id"])
}

func TestAsAndIs(t *testing.T) {
	base := CycleDetected("suite-1")
	wrapped := errors.New("context: " + base.Error())
	assert.Nil(t, As(wrapped))

	var err error = base
	assert.True(t, Is(err, KindCycleDetected))
	assert.False(t, Is(err, KindAssertion))
}

func TestHTTPStatusDefaultsTo500(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
}
