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

// BulkService fans the single-record operations out across every timesheet
// of one project-week. Items are processed independently: a business-rule
// failure on one timesheet never aborts the batch, a storage failure does.
type BulkService struct {
	store     Store
	projects  client.ProjectsClientInterface
	identity  client.IdentityClientInterface
	approvals *ApprovalService
	log       *logger.Logger
}

// NewBulkService creates a new BulkService.
func NewBulkService(
	store Store,
	projects client.ProjectsClientInterface,
	identity client.IdentityClientInterface,
	approvals *ApprovalService,
	log *logger.Logger,
) *BulkService {
	return &BulkService{
		store:     store,
		projects:  projects,
		identity:  identity,
		approvals: approvals,
		log:       log,
	}
}

// ProjectWeekRequest scopes a bulk operation to one project and week range.
type ProjectWeekRequest struct {
	ProjectID    string
	WeekStart    time.Time
	WeekEnd      time.Time
	ApproverID   string
	ApproverRole repository.Role
	Reason       string
}

// ProjectWeekInfo labels the batch for display ("Feb 3-9, 2025").
type ProjectWeekInfo struct {
	ProjectName string `json:"project_name"`
	WeekLabel   string `json:"week_label"`
}

// ProjectWeekResult aggregates a bulk approve/reject outcome.
type ProjectWeekResult struct {
	Success            bool            `json:"success"`
	Message            string          `json:"message"`
	AffectedUsers      int             `json:"affected_users"`
	AffectedTimesheets int             `json:"affected_timesheets"`
	ProjectWeek        ProjectWeekInfo `json:"project_week"`
}

// FreezeFailure identifies a user whose timesheet could not be frozen.
type FreezeFailure struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Reason   string `json:"reason"`
}

// FreezeResult aggregates a bulk freeze outcome.
type FreezeResult struct {
	Success      bool            `json:"success"`
	Message      string          `json:"message"`
	FrozenCount  int             `json:"frozen_count"`
	SkippedCount int             `json:"skipped_count"`
	Failed       []FreezeFailure `json:"failed"`
}

// ── Bulk approve / reject ─────────────────────────────────────────────────────

// ApproveProjectWeek applies the single-record approval to every in-scope
// timesheet of the project-week.
func (s *BulkService) ApproveProjectWeek(ctx context.Context, req *ProjectWeekRequest) (*ProjectWeekResult, error) {
	project, sheets, err := s.collect(ctx, req)
	if err != nil {
		return nil, err
	}

	note := bulkApprovalNote
	users := make(map[string]struct{})
	affected := 0
	for _, ts := range sheets {
		_, err := s.approvals.approve(ctx, &ApproveRequest{
			TimesheetID:  ts.ID,
			ProjectID:    req.ProjectID,
			ApproverID:   req.ApproverID,
			ApproverRole: req.ApproverRole,
		}, &note)
		if err != nil {
			if errors.Code(err) == errors.ErrCodeStorage {
				return nil, err
			}
			s.log.Debug().Err(err).
				Str("timesheet_id", ts.ID).
				Str("user_id", ts.UserID).
				Msg("Bulk approve: item skipped")
			continue
		}
		affected++
		users[ts.UserID] = struct{}{}
	}

	return &ProjectWeekResult{
		Success:            true,
		Message:            fmt.Sprintf("approved %d timesheets for %s", affected, project.Name),
		AffectedUsers:      len(users),
		AffectedTimesheets: affected,
		ProjectWeek: ProjectWeekInfo{
			ProjectName: project.Name,
			WeekLabel:   weekLabel(req.WeekStart, req.WeekEnd),
		},
	}, nil
}

// RejectProjectWeek applies the single-record rejection to every in-scope
// timesheet of the project-week.
func (s *BulkService) RejectProjectWeek(ctx context.Context, req *ProjectWeekRequest) (*ProjectWeekResult, error) {
	if req.Reason == "" {
		return nil, errors.InvalidInput("reason", "rejection reason is required")
	}

	project, sheets, err := s.collect(ctx, req)
	if err != nil {
		return nil, err
	}

	note := "bulk project-week rejection"
	users := make(map[string]struct{})
	affected := 0
	for _, ts := range sheets {
		_, err := s.approvals.reject(ctx, &RejectRequest{
			TimesheetID:  ts.ID,
			ProjectID:    req.ProjectID,
			ApproverID:   req.ApproverID,
			ApproverRole: req.ApproverRole,
			Reason:       req.Reason,
		}, &note)
		if err != nil {
			if errors.Code(err) == errors.ErrCodeStorage {
				return nil, err
			}
			s.log.Debug().Err(err).
				Str("timesheet_id", ts.ID).
				Str("user_id", ts.UserID).
				Msg("Bulk reject: item skipped")
			continue
		}
		affected++
		users[ts.UserID] = struct{}{}
	}

	return &ProjectWeekResult{
		Success:            true,
		Message:            fmt.Sprintf("rejected %d timesheets for %s", affected, project.Name),
		AffectedUsers:      len(users),
		AffectedTimesheets: affected,
		ProjectWeek: ProjectWeekInfo{
			ProjectName: project.Name,
			WeekLabel:   weekLabel(req.WeekStart, req.WeekEnd),
		},
	}, nil
}

// ── Bulk freeze ───────────────────────────────────────────────────────────────

// FreezeProjectWeek freezes every eligible timesheet of the project-week.
// Before touching anything it verifies that no in-scope timesheet is still
// contested (submitted or bounced back by a rejection); if any is, the whole
// batch is refused with the offending users and zero side effects.
func (s *BulkService) FreezeProjectWeek(ctx context.Context, req *ProjectWeekRequest) (*FreezeResult, error) {
	_, sheets, err := s.collect(ctx, req)
	if err != nil {
		return nil, err
	}

	var contested []FreezeFailure
	for _, ts := range sheets {
		switch ts.Status {
		case repository.StatusSubmitted,
			repository.StatusManagerRejected,
			repository.StatusManagementRejected:
			contested = append(contested, FreezeFailure{
				UserID:   ts.UserID,
				UserName: s.userName(ctx, ts.UserID),
				Reason:   fmt.Sprintf("timesheet is still %s", ts.Status),
			})
		}
	}
	if len(contested) > 0 {
		res := &FreezeResult{
			Success: false,
			Message: fmt.Sprintf("freeze refused: %d timesheets are still contested", len(contested)),
			Failed:  contested,
		}
		return res, errors.New(errors.ErrCodeInvalidTransition, res.Message)
	}

	note := "bulk project-week freeze"
	res := &FreezeResult{Success: true, Failed: []FreezeFailure{}}
	for _, ts := range sheets {
		if ts.IsFrozen || ts.Status == repository.StatusBilled {
			res.SkippedCount++
			continue
		}

		_, err := s.approvals.approve(ctx, &ApproveRequest{
			TimesheetID:  ts.ID,
			ProjectID:    req.ProjectID,
			ApproverID:   req.ApproverID,
			ApproverRole: repository.RoleManagement,
		}, &note)
		switch {
		case err == nil:
			res.FrozenCount++
		case errors.Code(err) == errors.ErrCodeStorage:
			return nil, err
		case errors.IsInvalidTransition(err):
			res.SkippedCount++
			s.log.Debug().Err(err).Str("timesheet_id", ts.ID).Msg("Bulk freeze: item skipped")
		default:
			res.Failed = append(res.Failed, FreezeFailure{
				UserID:   ts.UserID,
				UserName: s.userName(ctx, ts.UserID),
				Reason:   errors.Message(err),
			})
		}
	}

	res.Message = fmt.Sprintf("froze %d timesheets (%d skipped, %d failed)",
		res.FrozenCount, res.SkippedCount, len(res.Failed))
	return res, nil
}

// ── Internal helpers ──────────────────────────────────────────────────────────

// collect resolves the project and the in-scope timesheet set, failing with
// NotFound when either is absent.
func (s *BulkService) collect(ctx context.Context, req *ProjectWeekRequest) (*client.Project, []*repository.Timesheet, error) {
	project, err := s.projects.GetProject(ctx, req.ProjectID)
	if err != nil {
		return nil, nil, err
	}

	sheets, err := s.store.ListTimesheetsForProjectWeek(ctx, req.ProjectID, req.WeekStart, req.WeekEnd)
	if err != nil {
		return nil, nil, err
	}
	if len(sheets) == 0 {
		return nil, nil, errors.NotFound("timesheets",
			fmt.Sprintf("project %s, week %s", req.ProjectID, weekLabel(req.WeekStart, req.WeekEnd)))
	}
	return project, sheets, nil
}

func (s *BulkService) userName(ctx context.Context, userID string) string {
	user, err := s.identity.GetUser(ctx, userID)
	if err != nil {
		return ""
	}
	return user.Name
}

// weekLabel renders a human-readable week range: "Feb 3-9, 2025",
// "Jan 27 - Feb 2, 2025" across months, "Dec 29, 2025 - Jan 4, 2026" across
// years.
func weekLabel(start, end time.Time) string {
	switch {
	case start.Year() != end.Year():
		return fmt.Sprintf("%s %d, %d - %s %d, %d",
			start.Format("Jan"), start.Day(), start.Year(),
			end.Format("Jan"), end.Day(), end.Year())
	case start.Month() != end.Month():
		return fmt.Sprintf("%s %d - %s %d, %d",
			start.Format("Jan"), start.Day(),
			end.Format("Jan"), end.Day(), end.Year())
	default:
		return fmt.Sprintf("%s %d-%d, %d",
			start.Format("Jan"), start.Day(), end.Day(), end.Year())
	}
}
