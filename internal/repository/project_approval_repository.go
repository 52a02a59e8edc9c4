package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/clockwise-hq/be-ts-approvals/internal/common/database"
	"github.com/clockwise-hq/be-ts-approvals/internal/common/errors"
)

// ProjectApprovalRepository handles the approval ledger: one row per
// (timesheet, project) pair. Rows are created on submission and updated by
// the approval service; they are deleted only alongside their timesheet.
type ProjectApprovalRepository struct {
	db *database.DB
}

// NewProjectApprovalRepository creates a new ProjectApprovalRepository.
func NewProjectApprovalRepository(db *database.DB) *ProjectApprovalRepository {
	return &ProjectApprovalRepository{db: db}
}

const projectApprovalColumns = `
	id, timesheet_id, project_id,
	lead_status, lead_approved_by, lead_approved_at, lead_rejection_reason,
	manager_status, manager_approved_by, manager_approved_at, manager_rejection_reason,
	management_status, management_approved_by, management_approved_at, management_rejection_reason,
	entry_count, total_hours, created_at, updated_at`

// Create inserts a ledger entry. Runs against q so submission can create all
// of a timesheet's entries in one transaction.
func (r *ProjectApprovalRepository) Create(ctx context.Context, q database.Querier, pa *ProjectApproval) error {
	query := `
		INSERT INTO project_approvals
		    (timesheet_id, project_id,
		     lead_status, manager_status, management_status,
		     entry_count, total_hours)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		pa.TimesheetID,
		pa.ProjectID,
		pa.LeadStatus,
		pa.ManagerStatus,
		pa.ManagementStatus,
		pa.EntryCount,
		pa.TotalHours,
	).Scan(&pa.ID, &pa.CreatedAt, &pa.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorage, "failed to create project approval")
	}
	return nil
}

// ListByTimesheet returns every ledger entry for a timesheet.
func (r *ProjectApprovalRepository) ListByTimesheet(ctx context.Context, timesheetID string) ([]*ProjectApproval, error) {
	return r.listByTimesheet(ctx, r.db, timesheetID)
}

// listByTimesheet runs against q so the store can read the full ledger
// inside the transaction that will mutate it.
func (r *ProjectApprovalRepository) listByTimesheet(ctx context.Context, q database.Querier, timesheetID string) ([]*ProjectApproval, error) {
	query := `
		SELECT ` + projectApprovalColumns + `
		FROM project_approvals
		WHERE timesheet_id = $1
		ORDER BY project_id ASC
	`

	rows, err := q.Query(ctx, query, timesheetID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorage, "failed to list project approvals")
	}
	defer rows.Close()

	var approvals []*ProjectApproval
	for rows.Next() {
		pa, err := r.scanApproval(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStorage, "failed to scan project approval")
		}
		approvals = append(approvals, pa)
	}
	return approvals, rows.Err()
}

// Update writes the full tier state of a ledger entry. Runs against q so the
// approval service can update several entries plus the timesheet atomically.
func (r *ProjectApprovalRepository) Update(ctx context.Context, q database.Querier, pa *ProjectApproval) error {
	query := `
		UPDATE project_approvals
		SET lead_status                 = $2,
		    lead_approved_by            = $3,
		    lead_approved_at            = $4,
		    lead_rejection_reason       = $5,
		    manager_status              = $6,
		    manager_approved_by         = $7,
		    manager_approved_at         = $8,
		    manager_rejection_reason    = $9,
		    management_status           = $10,
		    management_approved_by      = $11,
		    management_approved_at      = $12,
		    management_rejection_reason = $13,
		    updated_at                  = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := q.QueryRow(ctx, query,
		pa.ID,
		pa.LeadStatus,
		pa.LeadApprovedBy,
		pa.LeadApprovedAt,
		pa.LeadRejectionReason,
		pa.ManagerStatus,
		pa.ManagerApprovedBy,
		pa.ManagerApprovedAt,
		pa.ManagerRejectionReason,
		pa.ManagementStatus,
		pa.ManagementApprovedBy,
		pa.ManagementApprovedAt,
		pa.ManagementRejectionReason,
	).Scan(&pa.UpdatedAt)
	if err == pgx.ErrNoRows {
		return errors.NotFound("project_approval", pa.ID)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorage, "failed to update project approval")
	}
	return nil
}

// ── scan helper ───────────────────────────────────────────────────────────────

type approvalScanner interface {
	Scan(dest ...any) error
}

func (r *ProjectApprovalRepository) scanApproval(row approvalScanner) (*ProjectApproval, error) {
	pa := &ProjectApproval{}
	err := row.Scan(
		&pa.ID,
		&pa.TimesheetID,
		&pa.ProjectID,
		&pa.LeadStatus,
		&pa.LeadApprovedBy,
		&pa.LeadApprovedAt,
		&pa.LeadRejectionReason,
		&pa.ManagerStatus,
		&pa.ManagerApprovedBy,
		&pa.ManagerApprovedAt,
		&pa.ManagerRejectionReason,
		&pa.ManagementStatus,
		&pa.ManagementApprovedBy,
		&pa.ManagementApprovedAt,
		&pa.ManagementRejectionReason,
		&pa.EntryCount,
		&pa.TotalHours,
		&pa.CreatedAt,
		&pa.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return pa, nil
}
