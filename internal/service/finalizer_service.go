package service

import (
	"context"
	"time"

	"github.com/clockwise-hq/be-ts-approvals/internal/common/errors"
	"github.com/clockwise-hq/be-ts-approvals/internal/common/logger"
	"github.com/clockwise-hq/be-ts-approvals/internal/repository"
)

// FinalizerService owns the terminal transitions: marking frozen timesheets
// billed, and the best-effort bulk verify/bill loops.
type FinalizerService struct {
	store  Store
	events EventPublisher
	log    *logger.Logger
}

// NewFinalizerService creates a new FinalizerService.
func NewFinalizerService(store Store, events EventPublisher, log *logger.Logger) *FinalizerService {
	return &FinalizerService{store: store, events: events, log: log}
}

// BulkFinalizeResult reports a best-effort finalizer loop outcome.
type BulkFinalizeResult struct {
	ProcessedCount int `json:"processed_count"`
	FailedCount    int `json:"failed_count"`
}

// MarkTimesheetBilled moves a frozen timesheet to billed and attaches the
// billing snapshot. Re-billing an already billed timesheet is refused; the
// caller must not rely on silent idempotency.
func (s *FinalizerService) MarkTimesheetBilled(ctx context.Context, timesheetID, billingSnapshotID, actorID string) error {
	err := s.store.MutateTimesheet(ctx, timesheetID, func(ts *repository.Timesheet, _ []*repository.ProjectApproval) (*repository.ChangeSet, error) {
		if ts.Status == repository.StatusBilled {
			return nil, errors.InvalidTransition(string(ts.Status), "timesheet is already billed")
		}
		if ts.Status != repository.StatusFrozen {
			return nil, errors.InvalidTransition(string(ts.Status), "billing requires status frozen")
		}

		now := time.Now()
		ts.Status = repository.StatusBilled
		ts.BilledAt = &now
		if billingSnapshotID != "" {
			ts.BillingSnapshotID = &billingSnapshotID
		}
		return &repository.ChangeSet{Timesheet: ts}, nil
	})
	if err != nil {
		return err
	}

	if s.events != nil {
		s.events.PublishTimesheetEvent(ctx, "timesheet_billed", timesheetID, actorID, map[string]interface{}{
			"billing_snapshot_id": billingSnapshotID,
		})
	}

	s.log.Info().
		Str("timesheet_id", timesheetID).
		Str("billing_snapshot_id", billingSnapshotID).
		Msg("Timesheet billed")
	return nil
}

// BulkVerify freezes every eligible timesheet in the list, approving the
// management tier on each of its ledger entries. Per-id failures are logged
// and counted; the loop never stops early.
func (s *FinalizerService) BulkVerify(ctx context.Context, timesheetIDs []string, actorID string) *BulkFinalizeResult {
	res := &BulkFinalizeResult{}
	for _, id := range timesheetIDs {
		if err := s.verifyOne(ctx, id, actorID); err != nil {
			res.FailedCount++
			s.log.Warn().Err(err).Str("timesheet_id", id).Msg("Bulk verify: timesheet failed")
			continue
		}
		res.ProcessedCount++
	}
	return res
}

func (s *FinalizerService) verifyOne(ctx context.Context, timesheetID, actorID string) error {
	err := s.store.MutateTimesheet(ctx, timesheetID, func(ts *repository.Timesheet, approvals []*repository.ProjectApproval) (*repository.ChangeSet, error) {
		if ts.Status != repository.StatusManagerApproved && ts.Status != repository.StatusManagementPending {
			return nil, errors.InvalidTransition(string(ts.Status),
				"verification requires status manager_approved or management_pending")
		}

		statusBefore := ts.Status
		now := time.Now()
		note := "bulk verification"
		var history []*repository.ApprovalHistory
		for _, pa := range approvals {
			if pa.ManagementStatus == repository.TierNotRequired {
				continue
			}
			pa.ManagementStatus = repository.TierApproved
			pa.ManagementApprovedBy = &actorID
			pa.ManagementApprovedAt = &now
			pa.ManagementRejectionReason = nil
			history = append(history, &repository.ApprovalHistory{
				TimesheetID:  ts.ID,
				ProjectID:    pa.ProjectID,
				ActorID:      actorID,
				ActorRole:    repository.RoleManagement,
				Action:       repository.ActionApproved,
				StatusBefore: statusBefore,
				StatusAfter:  repository.StatusFrozen,
				Note:         &note,
			})
		}

		ts.Status = repository.StatusFrozen
		ts.IsFrozen = true
		ts.VerifiedBy = &actorID
		ts.VerifiedAt = &now

		return &repository.ChangeSet{
			Approvals: approvals,
			Timesheet: ts,
			History:   history,
		}, nil
	})
	if err != nil {
		return err
	}

	if s.events != nil {
		s.events.PublishTimesheetEvent(ctx, "timesheet_frozen", timesheetID, actorID, nil)
	}
	return nil
}

// BulkBill marks every frozen timesheet in the list billed. Per-id failures
// are logged and counted; the loop never stops early.
func (s *FinalizerService) BulkBill(ctx context.Context, timesheetIDs []string, billingSnapshotID, actorID string) *BulkFinalizeResult {
	res := &BulkFinalizeResult{}
	for _, id := range timesheetIDs {
		if err := s.MarkTimesheetBilled(ctx, id, billingSnapshotID, actorID); err != nil {
			res.FailedCount++
			s.log.Warn().Err(err).Str("timesheet_id", id).Msg("Bulk bill: timesheet failed")
			continue
		}
		res.ProcessedCount++
	}
	return res
}
