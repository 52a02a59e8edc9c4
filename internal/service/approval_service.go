package service

import (
	"context"
	"fmt"
	"time"

	"github.com/clockwise-hq/be-ts-approvals/internal/client"
	"github.com/clockwise-hq/be-ts-approvals/internal/common/errors"
	"github.com/clockwise-hq/be-ts-approvals/internal/common/logger"
	"github.com/clockwise-hq/be-ts-approvals/internal/repository"
)

// Store is the persistence surface the approval services depend on. The
// postgres implementation lives in repository.Store; tests substitute an
// in-memory fake.
type Store interface {
	GetTimesheet(ctx context.Context, id string) (*repository.Timesheet, error)
	ListTimesheetsForProjectWeek(ctx context.Context, projectID string, weekStart, weekEnd time.Time) ([]*repository.Timesheet, error)
	ListProjectApprovals(ctx context.Context, timesheetID string) ([]*repository.ProjectApproval, error)
	ListApprovalHistory(ctx context.Context, timesheetID string) ([]*repository.ApprovalHistory, error)
	MutateTimesheet(ctx context.Context, timesheetID string, fn func(ts *repository.Timesheet, approvals []*repository.ProjectApproval) (*repository.ChangeSet, error)) error
	ApplySubmission(ctx context.Context, ts *repository.Timesheet, create, update []*repository.ProjectApproval) error
}

// EventPublisher forwards post-action events to the notification sink.
// Publishing is fire-and-forget; failures never interrupt an approval.
type EventPublisher interface {
	PublishTimesheetEvent(ctx context.Context, eventType, timesheetID, actorID string, payload map[string]interface{})
}

const bulkApprovalNote = "bulk project-week approval"

// ApprovalService applies single-record approve/reject actions on the
// approval ledger, enforcing role and state preconditions, recomputing the
// timesheet-level status from the full ledger, and writing one history row
// per successful action. Each call reads, derives and writes inside one
// store mutation, so the derivation always sees the ledger it is about to
// change.
type ApprovalService struct {
	store    Store
	projects client.ProjectsClientInterface
	identity client.IdentityClientInterface
	entries  client.TimeEntriesClientInterface
	events   EventPublisher
	log      *logger.Logger
}

// NewApprovalService creates a new ApprovalService.
func NewApprovalService(
	store Store,
	projects client.ProjectsClientInterface,
	identity client.IdentityClientInterface,
	entries client.TimeEntriesClientInterface,
	events EventPublisher,
	log *logger.Logger,
) *ApprovalService {
	return &ApprovalService{
		store:    store,
		projects: projects,
		identity: identity,
		entries:  entries,
		events:   events,
		log:      log,
	}
}

// ApproveRequest identifies one (timesheet, project, tier) approval action.
type ApproveRequest struct {
	TimesheetID  string
	ProjectID    string
	ApproverID   string
	ApproverRole repository.Role
}

// RejectRequest is an ApproveRequest plus the mandatory rejection reason.
type RejectRequest struct {
	TimesheetID  string
	ProjectID    string
	ApproverID   string
	ApproverRole repository.Role
	Reason       string
}

// ApprovalResult is the outcome reported to controllers.
type ApprovalResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	AllApproved bool   `json:"all_approved"`
	NewStatus   string `json:"new_status"`
}

// ── Approve ───────────────────────────────────────────────────────────────────

// Approve applies one approval for one (timesheet, project, tier).
func (s *ApprovalService) Approve(ctx context.Context, req *ApproveRequest) (*ApprovalResult, error) {
	return s.approve(ctx, req, nil)
}

// approve is the shared core used by both the single-record and bulk paths.
// note, when set, is recorded on the history row (e.g. bulk annotation).
//
// The timesheet is pre-read outside the transaction only to resolve the
// owner for the role lookup; every guard is re-evaluated on the locked
// in-transaction read before anything is written.
func (s *ApprovalService) approve(ctx context.Context, req *ApproveRequest, note *string) (*ApprovalResult, error) {
	pre, err := s.store.GetTimesheet(ctx, req.TimesheetID)
	if err != nil {
		return nil, err
	}
	if pre.IsFrozen || pre.Status == repository.StatusBilled {
		return nil, errors.InvalidTransition(string(pre.Status), "timesheet is already frozen")
	}

	project, err := s.projects.GetProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	owner, err := s.identity.GetUser(ctx, pre.UserID)
	if err != nil {
		return nil, err
	}
	ownerRole := repository.Role(owner.Role)

	var (
		result       *ApprovalResult
		statusBefore repository.TimesheetStatus
		statusAfter  repository.TimesheetStatus
	)
	err = s.store.MutateTimesheet(ctx, req.TimesheetID, func(ts *repository.Timesheet, approvals []*repository.ProjectApproval) (*repository.ChangeSet, error) {
		if ts.IsFrozen || ts.Status == repository.StatusBilled {
			return nil, errors.InvalidTransition(string(ts.Status), "timesheet is already frozen")
		}
		pa := findApproval(approvals, req.ProjectID)
		if pa == nil {
			return nil, errors.NotFound("project_approval", req.TimesheetID+"/"+req.ProjectID)
		}

		statusBefore = ts.Status
		now := time.Now()
		historyNote := note
		allApproved := false

		switch req.ApproverRole {
		case repository.RoleLead:
			if ownerRole != repository.RoleEmployee {
				return nil, errors.New(errors.ErrCodeInvalidTransition,
					fmt.Sprintf("a lead may only review employee timesheets (owner role is %s)", ownerRole))
			}
			if pa.LeadStatus == repository.TierNotRequired {
				return nil, errors.New(errors.ErrCodeInvalidTransition,
					"lead approval is not required for this project")
			}
			if pa.LeadStatus == repository.TierApproved {
				return nil, errors.New(errors.ErrCodeInvalidTransition,
					"lead tier is already approved for this project")
			}

			pa.LeadStatus = repository.TierApproved
			pa.LeadApprovedBy = &req.ApproverID
			pa.LeadApprovedAt = &now
			pa.LeadRejectionReason = nil
			if project.LeadApprovalAutoEscalates {
				pa.ManagerStatus = repository.TierApproved
				pa.ManagerApprovedBy = &req.ApproverID
				pa.ManagerApprovedAt = &now
				pa.ManagerRejectionReason = nil
			}

			newStatus := deriveAfterLead(ts.Status, approvals, project.LeadApprovalAutoEscalates)
			if newStatus != ts.Status {
				ts.Status = newStatus
				ts.LeadApproverID = &req.ApproverID
				ts.LeadApprovedAt = &now
				ts.LeadRejectionReason = nil
				ts.LeadRejectedAt = nil
				ts.ManagementRejectionReason = nil
				ts.ManagementRejectedAt = nil
				if newStatus == repository.StatusManagerApproved {
					ts.ManagerApproverID = &req.ApproverID
					ts.ManagerApprovedAt = &now
				}
			}
			allApproved = AllLeadsApproved(approvals)

		case repository.RoleManager, repository.RoleSuperAdmin:
			if err := s.checkManagerPrecondition(ts.Status, ownerRole); err != nil {
				return nil, err
			}
			// After a management bounce-back the reset excluded the triggering
			// entry, so its manager tier may still read approved; the
			// re-approval must go through anyway.
			reapproval := ts.Status == repository.StatusManagementRejected
			if pa.ManagerStatus == repository.TierApproved && !reapproval {
				return nil, errors.New(errors.ErrCodeInvalidTransition,
					"manager tier is already approved for this project")
			}

			// Direct approval of a submitted employee timesheet skips the lead
			// step: the lead tier is retro-marked not_required and the bypass is
			// recorded on the history row.
			if ts.Status == repository.StatusSubmitted &&
				ownerRole == repository.RoleEmployee &&
				pa.LeadStatus == repository.TierPending {
				pa.LeadStatus = repository.TierNotRequired
				historyNote = joinNote(historyNote, "lead step bypassed by direct manager approval")
			}

			// The management tier on the triggering entry restarts with the
			// re-approval; the rejection reset left it rejected.
			if reapproval {
				if pa.ManagementStatus != repository.TierNotRequired {
					pa.ManagementStatus = repository.TierPending
				}
				pa.ManagementApprovedBy = nil
				pa.ManagementApprovedAt = nil
				pa.ManagementRejectionReason = nil
			}

			pa.ManagerStatus = repository.TierApproved
			pa.ManagerApprovedBy = &req.ApproverID
			pa.ManagerApprovedAt = &now
			pa.ManagerRejectionReason = nil

			newStatus := deriveAfterManager(ts.Status, approvals, ownerRole)
			if newStatus != ts.Status {
				ts.Status = newStatus
				ts.ManagerApproverID = &req.ApproverID
				ts.ManagerApprovedAt = &now
				ts.ManagerRejectionReason = nil
				ts.ManagerRejectedAt = nil
				ts.ManagementRejectionReason = nil
				ts.ManagementRejectedAt = nil
			}
			allApproved = AllManagersApproved(approvals)

		case repository.RoleManagement:
			if ts.Status != repository.StatusManagerApproved && ts.Status != repository.StatusManagementPending {
				return nil, errors.InvalidTransition(string(ts.Status),
					"management approval requires status manager_approved or management_pending")
			}

			pa.ManagementStatus = repository.TierApproved
			pa.ManagementApprovedBy = &req.ApproverID
			pa.ManagementApprovedAt = &now
			pa.ManagementRejectionReason = nil

			// Management approval is the freeze: there is no management_approved
			// resting state.
			ts.Status = repository.StatusFrozen
			ts.IsFrozen = true
			ts.VerifiedBy = &req.ApproverID
			ts.VerifiedAt = &now
			ts.ManagementRejectionReason = nil
			ts.ManagementRejectedAt = nil
			allApproved = true

		default:
			return nil, errors.InvalidInput("approver_role",
				fmt.Sprintf("role %q cannot approve timesheets", req.ApproverRole))
		}

		history := &repository.ApprovalHistory{
			TimesheetID:  ts.ID,
			ProjectID:    req.ProjectID,
			ActorID:      req.ApproverID,
			ActorRole:    req.ApproverRole,
			Action:       repository.ActionApproved,
			StatusBefore: statusBefore,
			StatusAfter:  ts.Status,
			Note:         historyNote,
		}

		statusAfter = ts.Status
		result = &ApprovalResult{
			Success:     true,
			Message:     fmt.Sprintf("%s approval recorded", req.ApproverRole),
			AllApproved: allApproved,
			NewStatus:   string(ts.Status),
		}
		return &repository.ChangeSet{
			Approvals: []*repository.ProjectApproval{pa},
			Timesheet: ts,
			History:   []*repository.ApprovalHistory{history},
		}, nil
	})
	if err != nil {
		if errors.Code(err) == errors.ErrCodeStorage {
			s.log.Error().Err(err).
				Str("timesheet_id", req.TimesheetID).
				Str("project_id", req.ProjectID).
				Str("role", string(req.ApproverRole)).
				Msg("Failed to persist approval")
		}
		return nil, err
	}

	s.publish(ctx, eventTypeFor(statusAfter), req.TimesheetID, req.ApproverID, map[string]interface{}{
		"project_id": req.ProjectID,
		"new_status": string(statusAfter),
	})

	s.log.Info().
		Str("timesheet_id", req.TimesheetID).
		Str("project_id", req.ProjectID).
		Str("role", string(req.ApproverRole)).
		Str("status_before", string(statusBefore)).
		Str("status_after", string(statusAfter)).
		Msg("Approval recorded")

	return result, nil
}

// checkManagerPrecondition validates the states a manager (or super_admin
// override) may approve from.
func (s *ApprovalService) checkManagerPrecondition(status repository.TimesheetStatus, ownerRole repository.Role) error {
	switch status {
	case repository.StatusLeadApproved, repository.StatusManagementRejected:
		return nil
	case repository.StatusSubmitted:
		switch ownerRole {
		case repository.RoleEmployee, repository.RoleLead, repository.RoleManager:
			return nil
		}
		return errors.New(errors.ErrCodeInvalidTransition,
			fmt.Sprintf("manager approval from submitted requires an employee, lead or manager owner (owner role is %s)", ownerRole))
	default:
		return errors.InvalidTransition(string(status),
			"manager approval requires status lead_approved, submitted, or management_rejected")
	}
}

// ── Reject ────────────────────────────────────────────────────────────────────

// Reject applies one rejection for one (timesheet, project, tier) and runs
// the rejection reset protocol across the timesheet's other ledger entries.
func (s *ApprovalService) Reject(ctx context.Context, req *RejectRequest) (*ApprovalResult, error) {
	return s.reject(ctx, req, nil)
}

func (s *ApprovalService) reject(ctx context.Context, req *RejectRequest, note *string) (*ApprovalResult, error) {
	if req.Reason == "" {
		return nil, errors.InvalidInput("reason", "rejection reason is required")
	}

	var (
		result      *ApprovalResult
		statusAfter repository.TimesheetStatus
	)
	err := s.store.MutateTimesheet(ctx, req.TimesheetID, func(ts *repository.Timesheet, approvals []*repository.ProjectApproval) (*repository.ChangeSet, error) {
		if ts.IsFrozen || ts.Status == repository.StatusBilled {
			return nil, errors.InvalidTransition(string(ts.Status), "a frozen timesheet cannot be rejected")
		}
		pa := findApproval(approvals, req.ProjectID)
		if pa == nil {
			return nil, errors.NotFound("project_approval", req.TimesheetID+"/"+req.ProjectID)
		}

		statusBefore := ts.Status
		now := time.Now()
		reason := req.Reason

		switch req.ApproverRole {
		case repository.RoleLead:
			pa.LeadStatus = repository.TierRejected
			pa.LeadRejectionReason = &reason
			pa.LeadApprovedBy = nil
			pa.LeadApprovedAt = nil
			ts.LeadRejectionReason = &reason
			ts.LeadRejectedAt = &now
		case repository.RoleManager, repository.RoleSuperAdmin:
			pa.ManagerStatus = repository.TierRejected
			pa.ManagerRejectionReason = &reason
			pa.ManagerApprovedBy = nil
			pa.ManagerApprovedAt = nil
			ts.ManagerRejectionReason = &reason
			ts.ManagerRejectedAt = &now
		case repository.RoleManagement:
			pa.ManagementStatus = repository.TierRejected
			pa.ManagementRejectionReason = &reason
			pa.ManagementApprovedBy = nil
			pa.ManagementApprovedAt = nil
			ts.ManagementRejectionReason = &reason
			ts.ManagementRejectedAt = &now
		default:
			return nil, errors.InvalidInput("approver_role",
				fmt.Sprintf("role %q cannot reject timesheets", req.ApproverRole))
		}

		// Rejection invalidates every other entry's progress: approvals are a
		// conjunction across projects and tiers, so the review restarts. The
		// triggering project is excluded so the just-written rejection survives.
		for _, other := range approvals {
			if other.ProjectID == req.ProjectID {
				continue
			}
			resetApproval(other)
		}

		ts.Status = rejectedStatusFor(req.ApproverRole)
		ts.LeadApproverID = nil
		ts.LeadApprovedAt = nil
		ts.ManagerApproverID = nil
		ts.ManagerApprovedAt = nil
		ts.VerifiedBy = nil
		ts.VerifiedAt = nil

		history := &repository.ApprovalHistory{
			TimesheetID:  ts.ID,
			ProjectID:    req.ProjectID,
			ActorID:      req.ApproverID,
			ActorRole:    req.ApproverRole,
			Action:       repository.ActionRejected,
			StatusBefore: statusBefore,
			StatusAfter:  ts.Status,
			Reason:       &reason,
			Note:         note,
		}

		statusAfter = ts.Status
		result = &ApprovalResult{
			Success:   true,
			Message:   fmt.Sprintf("%s rejection recorded", req.ApproverRole),
			NewStatus: string(ts.Status),
		}
		return &repository.ChangeSet{
			Approvals: approvals,
			Timesheet: ts,
			History:   []*repository.ApprovalHistory{history},
		}, nil
	})
	if err != nil {
		if errors.Code(err) == errors.ErrCodeStorage {
			s.log.Error().Err(err).
				Str("timesheet_id", req.TimesheetID).
				Str("project_id", req.ProjectID).
				Msg("Failed to persist rejection")
		}
		return nil, err
	}

	s.publish(ctx, "timesheet_rejected", req.TimesheetID, req.ApproverID, map[string]interface{}{
		"project_id": req.ProjectID,
		"new_status": string(statusAfter),
		"reason":     req.Reason,
	})

	s.log.Info().
		Str("timesheet_id", req.TimesheetID).
		Str("project_id", req.ProjectID).
		Str("role", string(req.ApproverRole)).
		Str("status_after", string(statusAfter)).
		Msg("Rejection recorded")

	return result, nil
}

// ── Submission registration ───────────────────────────────────────────────────

// RegisterSubmission creates the ledger entries for a timesheet on
// submission: one per project with entries, lead tier pending or
// not_required depending on whether the project has a lead. Resubmission
// after a rejection returns rejected tiers to pending on existing entries
// and clears the prior round's rejection context from the timesheet.
func (s *ApprovalService) RegisterSubmission(ctx context.Context, timesheetID, actorID string) (*ApprovalResult, error) {
	ts, err := s.store.GetTimesheet(ctx, timesheetID)
	if err != nil {
		return nil, err
	}
	switch ts.Status {
	case repository.StatusDraft,
		repository.StatusLeadRejected,
		repository.StatusManagerRejected,
		repository.StatusManagementRejected:
		// submittable
	default:
		return nil, errors.InvalidTransition(string(ts.Status),
			"submission requires status draft or a rejected status")
	}

	hours, err := s.entries.GetProjectHours(ctx, timesheetID)
	if err != nil {
		return nil, err
	}
	if len(hours) == 0 {
		return nil, errors.InvalidInput("timesheet", "timesheet has no time entries")
	}

	existing, err := s.store.ListProjectApprovals(ctx, timesheetID)
	if err != nil {
		return nil, err
	}

	var toCreate, toUpdate []*repository.ProjectApproval
	total := 0.0
	for projectID, ph := range hours {
		total += ph.TotalHours

		if pa := findApproval(existing, projectID); pa != nil {
			resetApproval(pa)
			pa.EntryCount = ph.EntryCount
			pa.TotalHours = ph.TotalHours
			toUpdate = append(toUpdate, pa)
			continue
		}

		project, err := s.projects.GetProject(ctx, projectID)
		if err != nil {
			return nil, err
		}
		leadStatus := repository.TierPending
		if project.LeadID == nil {
			leadStatus = repository.TierNotRequired
		}
		toCreate = append(toCreate, &repository.ProjectApproval{
			TimesheetID:      timesheetID,
			ProjectID:        projectID,
			LeadStatus:       leadStatus,
			ManagerStatus:    repository.TierPending,
			ManagementStatus: repository.TierPending,
			EntryCount:       ph.EntryCount,
			TotalHours:       ph.TotalHours,
		})
	}

	ts.Status = repository.StatusSubmitted
	ts.TotalHours = total
	ts.LeadRejectionReason = nil
	ts.LeadRejectedAt = nil
	ts.ManagerRejectionReason = nil
	ts.ManagerRejectedAt = nil
	ts.ManagementRejectionReason = nil
	ts.ManagementRejectedAt = nil

	if err := s.store.ApplySubmission(ctx, ts, toCreate, toUpdate); err != nil {
		s.log.Error().Err(err).Str("timesheet_id", timesheetID).Msg("Failed to register submission")
		return nil, err
	}

	s.publish(ctx, "timesheet_submitted", ts.ID, actorID, map[string]interface{}{
		"projects":    len(hours),
		"total_hours": total,
	})

	return &ApprovalResult{
		Success:   true,
		Message:   fmt.Sprintf("timesheet submitted across %d projects", len(hours)),
		NewStatus: string(ts.Status),
	}, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

// GetApprovalHistory returns the full audit trail for a timesheet,
// oldest-first.
func (s *ApprovalService) GetApprovalHistory(ctx context.Context, timesheetID string) ([]*repository.ApprovalHistory, error) {
	if _, err := s.store.GetTimesheet(ctx, timesheetID); err != nil {
		return nil, err
	}
	return s.store.ListApprovalHistory(ctx, timesheetID)
}

// ── Internal helpers ──────────────────────────────────────────────────────────

func (s *ApprovalService) publish(ctx context.Context, eventType, timesheetID, actorID string, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	s.events.PublishTimesheetEvent(ctx, eventType, timesheetID, actorID, payload)
}

func eventTypeFor(status repository.TimesheetStatus) string {
	if status == repository.StatusFrozen {
		return "timesheet_frozen"
	}
	return "timesheet_approved"
}

func findApproval(approvals []*repository.ProjectApproval, projectID string) *repository.ProjectApproval {
	for _, pa := range approvals {
		if pa.ProjectID == projectID {
			return pa
		}
	}
	return nil
}

func joinNote(existing *string, note string) *string {
	if existing == nil {
		return &note
	}
	combined := *existing + "; " + note
	return &combined
}
