package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/clockwise-hq/be-ts-approvals/internal/common/errors"
	"github.com/clockwise-hq/be-ts-approvals/internal/common/logger"
	"github.com/clockwise-hq/be-ts-approvals/internal/repository"
	"github.com/clockwise-hq/be-ts-approvals/internal/service"
)

// minReasonLength is the boundary check on rejection reasons; the core only
// requires non-empty.
const minReasonLength = 5

// HTTPHandler exposes the approval workflow to controllers.
type HTTPHandler struct {
	approvals  *service.ApprovalService
	bulk       *service.BulkService
	finalizers *service.FinalizerService
	log        *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(
	approvals *service.ApprovalService,
	bulk *service.BulkService,
	finalizers *service.FinalizerService,
	log *logger.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		approvals:  approvals,
		bulk:       bulk,
		finalizers: finalizers,
		log:        log,
	}
}

// ── Single-record operations ──────────────────────────────────────────────────

type approvalRequest struct {
	TimesheetID  string `json:"timesheet_id"`
	ProjectID    string `json:"project_id"`
	ApproverID   string `json:"approver_id"`
	ApproverRole string `json:"approver_role"`
	Reason       string `json:"reason,omitempty"`
}

// Approve handles POST /api/v1/approvals/approve.
func (h *HTTPHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req approvalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TimesheetID == "" || req.ProjectID == "" || req.ApproverID == "" {
		http.Error(w, "timesheet_id, project_id and approver_id are required", http.StatusBadRequest)
		return
	}

	result, err := h.approvals.Approve(r.Context(), &service.ApproveRequest{
		TimesheetID:  req.TimesheetID,
		ProjectID:    req.ProjectID,
		ApproverID:   req.ApproverID,
		ApproverRole: repository.Role(req.ApproverRole),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// Reject handles POST /api/v1/approvals/reject.
func (h *HTTPHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req approvalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(strings.TrimSpace(req.Reason)) < minReasonLength {
		h.writeError(w, errors.InvalidInput("reason",
			"rejection reason must be at least 5 characters"))
		return
	}

	result, err := h.approvals.Reject(r.Context(), &service.RejectRequest{
		TimesheetID:  req.TimesheetID,
		ProjectID:    req.ProjectID,
		ApproverID:   req.ApproverID,
		ApproverRole: repository.Role(req.ApproverRole),
		Reason:       req.Reason,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// ── Bulk project-week operations ──────────────────────────────────────────────

type projectWeekRequest struct {
	ProjectID    string `json:"project_id"`
	WeekStart    string `json:"week_start"`
	WeekEnd      string `json:"week_end"`
	ApproverID   string `json:"approver_id"`
	ApproverRole string `json:"approver_role"`
	Reason       string `json:"reason,omitempty"`
}

func (h *HTTPHandler) decodeProjectWeek(w http.ResponseWriter, r *http.Request) (*service.ProjectWeekRequest, bool) {
	var req projectWeekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return nil, false
	}

	weekStart, err := time.Parse("2006-01-02", req.WeekStart)
	if err != nil {
		h.writeError(w, errors.InvalidInput("week_start", "invalid date format, expected YYYY-MM-DD"))
		return nil, false
	}
	weekEnd, err := time.Parse("2006-01-02", req.WeekEnd)
	if err != nil {
		h.writeError(w, errors.InvalidInput("week_end", "invalid date format, expected YYYY-MM-DD"))
		return nil, false
	}
	if weekEnd.Before(weekStart) {
		h.writeError(w, errors.InvalidInput("week_end", "week end cannot be before week start"))
		return nil, false
	}

	return &service.ProjectWeekRequest{
		ProjectID:    req.ProjectID,
		WeekStart:    weekStart,
		WeekEnd:      weekEnd,
		ApproverID:   req.ApproverID,
		ApproverRole: repository.Role(req.ApproverRole),
		Reason:       req.Reason,
	}, true
}

// ApproveProjectWeek handles POST /api/v1/approvals/project-week/approve.
func (h *HTTPHandler) ApproveProjectWeek(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeProjectWeek(w, r)
	if !ok {
		return
	}

	result, err := h.bulk.ApproveProjectWeek(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// RejectProjectWeek handles POST /api/v1/approvals/project-week/reject.
func (h *HTTPHandler) RejectProjectWeek(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeProjectWeek(w, r)
	if !ok {
		return
	}
	if len(strings.TrimSpace(req.Reason)) < minReasonLength {
		h.writeError(w, errors.InvalidInput("reason",
			"rejection reason must be at least 5 characters"))
		return
	}

	result, err := h.bulk.RejectProjectWeek(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// FreezeProjectWeek handles POST /api/v1/approvals/project-week/freeze.
// A refused freeze still returns the per-user failure list, with a conflict
// status.
func (h *HTTPHandler) FreezeProjectWeek(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeProjectWeek(w, r)
	if !ok {
		return
	}

	result, err := h.bulk.FreezeProjectWeek(r.Context(), req)
	if err != nil {
		if result != nil {
			h.writeJSON(w, errors.HTTPStatus(err), result)
			return
		}
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// ── Submission and finalizers ─────────────────────────────────────────────────

// SubmitTimesheet handles POST /api/v1/timesheets/submit.
func (h *HTTPHandler) SubmitTimesheet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TimesheetID string `json:"timesheet_id"`
		UserID      string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.approvals.RegisterSubmission(r.Context(), req.TimesheetID, req.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// BillTimesheet handles POST /api/v1/timesheets/bill.
func (h *HTTPHandler) BillTimesheet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TimesheetID       string `json:"timesheet_id"`
		BillingSnapshotID string `json:"billing_snapshot_id"`
		ActorID           string `json:"actor_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.finalizers.MarkTimesheetBilled(r.Context(), req.TimesheetID, req.BillingSnapshotID, req.ActorID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "billed"})
}

type bulkFinalizeRequest struct {
	TimesheetIDs      []string `json:"timesheet_ids"`
	BillingSnapshotID string   `json:"billing_snapshot_id,omitempty"`
	ActorID           string   `json:"actor_id"`
}

// BulkVerify handles POST /api/v1/timesheets/bulk-verify.
func (h *HTTPHandler) BulkVerify(w http.ResponseWriter, r *http.Request) {
	var req bulkFinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result := h.finalizers.BulkVerify(r.Context(), req.TimesheetIDs, req.ActorID)
	h.writeJSON(w, http.StatusOK, result)
}

// BulkBill handles POST /api/v1/timesheets/bulk-bill.
func (h *HTTPHandler) BulkBill(w http.ResponseWriter, r *http.Request) {
	var req bulkFinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result := h.finalizers.BulkBill(r.Context(), req.TimesheetIDs, req.BillingSnapshotID, req.ActorID)
	h.writeJSON(w, http.StatusOK, result)
}

// ── Queries ───────────────────────────────────────────────────────────────────

// GetApprovalHistory handles GET /api/v1/approvals/history.
func (h *HTTPHandler) GetApprovalHistory(w http.ResponseWriter, r *http.Request) {
	timesheetID := r.URL.Query().Get("timesheet_id")
	if timesheetID == "" {
		http.Error(w, "timesheet_id is required", http.StatusBadRequest)
		return
	}

	history, err := h.approvals.GetApprovalHistory(r.Context(), timesheetID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"timesheet_id": timesheetID,
		"history":      history,
	})
}

// ── Response helpers ──────────────────────────────────────────────────────────

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Request failed")
	}
	h.writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   string(errors.Code(err)),
		"message": errors.Message(err),
	})
}
