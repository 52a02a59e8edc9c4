package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, Code(NotFound("timesheet", "ts-1")))
	assert.Equal(t, ErrCodeInvalidTransition, Code(InvalidTransition("frozen", "cannot change")))
	assert.Equal(t, ErrCodeValidation, Code(InvalidInput("reason", "required")))
	assert.Equal(t, ErrCodeInternal, Code(fmt.Errorf("plain error")))
}

func TestCode_Wrapped(t *testing.T) {
	inner := NotFound("project", "p-1")
	outer := fmt.Errorf("fetching project: %w", inner)

	assert.Equal(t, ErrCodeNotFound, Code(outer))
	assert.True(t, IsNotFound(outer))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NotFound("timesheet", "ts-1"), http.StatusNotFound},
		{InvalidTransition("billed", "already billed"), http.StatusConflict},
		{InvalidInput("reason", "too short"), http.StatusBadRequest},
		{New(ErrCodeUnauthorized, "not your timesheet"), http.StatusForbidden},
		{Storage(fmt.Errorf("conn refused"), "tx failed"), http.StatusServiceUnavailable},
		{fmt.Errorf("plain error"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err))
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "timesheet not found: ts-1", Message(NotFound("timesheet", "ts-1")))

	// Storage and uncoded errors never leak their cause.
	assert.Equal(t, "internal error", Message(Storage(fmt.Errorf("dsn=secret"), "tx failed")))
	assert.Equal(t, "internal error", Message(fmt.Errorf("dsn=secret")))
}

func TestWrapUnwrap(t *testing.T) {
	cause := fmt.Errorf("row scan failed")
	err := Wrap(cause, ErrCodeStorage, "loading timesheet")

	assert.Equal(t, cause, err.Unwrap())
	assert.Contains(t, err.Error(), "STORAGE")
	assert.Contains(t, err.Error(), "row scan failed")
}
