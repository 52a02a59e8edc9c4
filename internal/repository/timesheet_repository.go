package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clockwise-hq/be-ts-approvals/internal/common/database"
	"github.com/clockwise-hq/be-ts-approvals/internal/common/errors"
)

// TimesheetRepository reads timesheets and writes their approval/status
// fields. Timesheet creation and entry editing live in the timesheets
// service; this repository only ever updates the workflow-owned columns.
type TimesheetRepository struct {
	db *database.DB
}

// NewTimesheetRepository creates a new TimesheetRepository.
func NewTimesheetRepository(db *database.DB) *TimesheetRepository {
	return &TimesheetRepository{db: db}
}

const timesheetColumns = `
	id, user_id, week_start, week_end, total_hours, status,
	lead_approver_id, lead_approved_at, lead_rejection_reason, lead_rejected_at,
	manager_approver_id, manager_approved_at, manager_rejection_reason, manager_rejected_at,
	verified_by, verified_at, management_rejection_reason, management_rejected_at,
	is_frozen, billing_snapshot_id, billed_at,
	deleted_at, created_at, updated_at`

// GetByID retrieves a timesheet by primary key. Soft-deleted rows are
// treated as absent.
func (r *TimesheetRepository) GetByID(ctx context.Context, id string) (*Timesheet, error) {
	return r.getByID(ctx, r.db, id)
}

// getByID runs against q so the store can read inside a transaction, after
// the row lock.
func (r *TimesheetRepository) getByID(ctx context.Context, q database.Querier, id string) (*Timesheet, error) {
	query := `
		SELECT ` + timesheetColumns + `
		FROM timesheets
		WHERE id = $1 AND deleted_at IS NULL
	`

	ts, err := r.scanTimesheet(q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("timesheet", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorage, "failed to get timesheet")
	}
	return ts, nil
}

// ListForProjectWeek returns every live timesheet whose week falls entirely
// inside [weekStart, weekEnd] and which has a ledger entry for the project.
func (r *TimesheetRepository) ListForProjectWeek(ctx context.Context, projectID string, weekStart, weekEnd time.Time) ([]*Timesheet, error) {
	query := `
		SELECT t.id, t.user_id, t.week_start, t.week_end, t.total_hours, t.status,
		       t.lead_approver_id, t.lead_approved_at, t.lead_rejection_reason, t.lead_rejected_at,
		       t.manager_approver_id, t.manager_approved_at, t.manager_rejection_reason, t.manager_rejected_at,
		       t.verified_by, t.verified_at, t.management_rejection_reason, t.management_rejected_at,
		       t.is_frozen, t.billing_snapshot_id, t.billed_at,
		       t.deleted_at, t.created_at, t.updated_at
		FROM timesheets t
		JOIN project_approvals pa ON pa.timesheet_id = t.id
		WHERE pa.project_id = $1
		  AND t.week_start >= $2
		  AND t.week_end <= $3
		  AND t.deleted_at IS NULL
		ORDER BY t.user_id ASC, t.week_start ASC
	`

	rows, err := r.db.Query(ctx, query, projectID, weekStart, weekEnd)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorage, "failed to list timesheets for project week")
	}
	defer rows.Close()

	var sheets []*Timesheet
	for rows.Next() {
		ts, err := r.scanTimesheet(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStorage, "failed to scan timesheet")
		}
		sheets = append(sheets, ts)
	}
	return sheets, rows.Err()
}

// Update writes the workflow-owned columns of a timesheet. Runs against q so
// it participates in the caller's transaction.
func (r *TimesheetRepository) Update(ctx context.Context, q database.Querier, ts *Timesheet) error {
	query := `
		UPDATE timesheets
		SET status                      = $2,
		    lead_approver_id            = $3,
		    lead_approved_at            = $4,
		    lead_rejection_reason       = $5,
		    lead_rejected_at            = $6,
		    manager_approver_id         = $7,
		    manager_approved_at         = $8,
		    manager_rejection_reason    = $9,
		    manager_rejected_at         = $10,
		    verified_by                 = $11,
		    verified_at                 = $12,
		    management_rejection_reason = $13,
		    management_rejected_at      = $14,
		    is_frozen                   = $15,
		    billing_snapshot_id         = $16,
		    billed_at                   = $17,
		    updated_at                  = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at
	`

	err := q.QueryRow(ctx, query,
		ts.ID,
		ts.Status,
		ts.LeadApproverID,
		ts.LeadApprovedAt,
		ts.LeadRejectionReason,
		ts.LeadRejectedAt,
		ts.ManagerApproverID,
		ts.ManagerApprovedAt,
		ts.ManagerRejectionReason,
		ts.ManagerRejectedAt,
		ts.VerifiedBy,
		ts.VerifiedAt,
		ts.ManagementRejectionReason,
		ts.ManagementRejectedAt,
		ts.IsFrozen,
		ts.BillingSnapshotID,
		ts.BilledAt,
	).Scan(&ts.UpdatedAt)
	if err == pgx.ErrNoRows {
		return errors.NotFound("timesheet", ts.ID)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorage, "failed to update timesheet")
	}
	return nil
}

// LockForUpdate takes a row lock on the timesheet inside the transaction so
// concurrent operations on the same timesheet serialize. No-op effect under
// best-effort policy where q is the bare pool.
func (r *TimesheetRepository) LockForUpdate(ctx context.Context, q database.Querier, id string) error {
	var locked string
	err := q.QueryRow(ctx, `SELECT id FROM timesheets WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err == pgx.ErrNoRows {
		return errors.NotFound("timesheet", id)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorage, "failed to lock timesheet")
	}
	return nil
}

// ── scan helpers ──────────────────────────────────────────────────────────────

type timesheetScanner interface {
	Scan(dest ...any) error
}

func (r *TimesheetRepository) scanTimesheet(row timesheetScanner) (*Timesheet, error) {
	ts := &Timesheet{}
	err := row.Scan(
		&ts.ID,
		&ts.UserID,
		&ts.WeekStart,
		&ts.WeekEnd,
		&ts.TotalHours,
		&ts.Status,
		&ts.LeadApproverID,
		&ts.LeadApprovedAt,
		&ts.LeadRejectionReason,
		&ts.LeadRejectedAt,
		&ts.ManagerApproverID,
		&ts.ManagerApprovedAt,
		&ts.ManagerRejectionReason,
		&ts.ManagerRejectedAt,
		&ts.VerifiedBy,
		&ts.VerifiedAt,
		&ts.ManagementRejectionReason,
		&ts.ManagementRejectedAt,
		&ts.IsFrozen,
		&ts.BillingSnapshotID,
		&ts.BilledAt,
		&ts.DeletedAt,
		&ts.CreatedAt,
		&ts.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return ts, nil
}
