package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clockwise-hq/be-ts-approvals/internal/common/logger"
)

// Boundary validation only: these requests are refused before any service
// call, so the handler can run with zero-value services.
func newBoundaryHandler() *HTTPHandler {
	return NewHTTPHandler(nil, nil, nil, logger.Nop())
}

func TestReject_ReasonTooShort(t *testing.T) {
	h := newBoundaryHandler()

	body := `{"timesheet_id":"ts-1","project_id":"p-1","approver_id":"mgr-1","approver_role":"manager","reason":"no"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/approvals/reject", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Reject(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "at least 5 characters")
}

func TestReject_WhitespaceReasonRefused(t *testing.T) {
	h := newBoundaryHandler()

	body := `{"timesheet_id":"ts-1","project_id":"p-1","approver_id":"mgr-1","approver_role":"manager","reason":"        "}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/approvals/reject", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Reject(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApprove_MissingFields(t *testing.T) {
	h := newBoundaryHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/approvals/approve", strings.NewReader(`{"timesheet_id":"ts-1"}`))
	rec := httptest.NewRecorder()

	h.Approve(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApprove_MalformedBody(t *testing.T) {
	h := newBoundaryHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/approvals/approve", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()

	h.Approve(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProjectWeek_DateValidation(t *testing.T) {
	h := newBoundaryHandler()

	t.Run("malformed week_start", func(t *testing.T) {
		body := `{"project_id":"p-1","week_start":"02/03/2025","week_end":"2025-02-09"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/approvals/project-week/approve", strings.NewReader(body))
		rec := httptest.NewRecorder()

		h.ApproveProjectWeek(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "week_start")
	})

	t.Run("end before start", func(t *testing.T) {
		body := `{"project_id":"p-1","week_start":"2025-02-09","week_end":"2025-02-03"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/approvals/project-week/approve", strings.NewReader(body))
		rec := httptest.NewRecorder()

		h.ApproveProjectWeek(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetApprovalHistory_RequiresTimesheetID(t *testing.T) {
	h := newBoundaryHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/approvals/history", nil)
	rec := httptest.NewRecorder()

	h.GetApprovalHistory(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
