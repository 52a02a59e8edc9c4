package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/clockwise-hq/be-ts-approvals/internal/common/database"
	"github.com/clockwise-hq/be-ts-approvals/internal/common/errors"
)

// ApprovalHistoryRepository appends and reads immutable approval history
// rows. The table has a delete-prevention trigger so Append is the only
// mutation exposed.
type ApprovalHistoryRepository struct {
	db *database.DB
}

// NewApprovalHistoryRepository creates a new ApprovalHistoryRepository.
func NewApprovalHistoryRepository(db *database.DB) *ApprovalHistoryRepository {
	return &ApprovalHistoryRepository{db: db}
}

// Append inserts one history row. Runs against q so the row lands in the
// same transaction as the ledger mutation it records.
func (r *ApprovalHistoryRepository) Append(ctx context.Context, q database.Querier, h *ApprovalHistory) error {
	var metadataJSON []byte
	if h.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(h.Metadata)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeStorage, "failed to marshal history metadata")
		}
	}

	query := `
		INSERT INTO approval_history
		    (timesheet_id, project_id, actor_id, actor_role,
		     action, status_before, status_after,
		     reason, note, metadata)
		VALUES ($1, $2, $3, $4,
		        $5, $6, $7,
		        $8, $9, $10)
		RETURNING id, created_at
	`

	err := q.QueryRow(ctx, query,
		h.TimesheetID,
		h.ProjectID,
		h.ActorID,
		h.ActorRole,
		h.Action,
		h.StatusBefore,
		h.StatusAfter,
		h.Reason,
		h.Note,
		metadataJSON,
	).Scan(&h.ID, &h.CreatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorage, "failed to append approval history")
	}
	return nil
}

// ListByTimesheet returns the full audit trail for a timesheet ordered
// oldest-first.
func (r *ApprovalHistoryRepository) ListByTimesheet(ctx context.Context, timesheetID string) ([]*ApprovalHistory, error) {
	query := `
		SELECT id, timesheet_id, project_id, actor_id, actor_role,
		       action, status_before, status_after,
		       reason, note, metadata, created_at
		FROM approval_history
		WHERE timesheet_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, timesheetID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorage, "failed to list approval history")
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// ── scan helpers ──────────────────────────────────────────────────────────────

func (r *ApprovalHistoryRepository) scanRows(rows pgx.Rows) ([]*ApprovalHistory, error) {
	var entries []*ApprovalHistory
	for rows.Next() {
		h := &ApprovalHistory{}
		var metadataJSON []byte

		err := rows.Scan(
			&h.ID,
			&h.TimesheetID,
			&h.ProjectID,
			&h.ActorID,
			&h.ActorRole,
			&h.Action,
			&h.StatusBefore,
			&h.StatusAfter,
			&h.Reason,
			&h.Note,
			&metadataJSON,
			&h.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStorage, "failed to scan history row")
		}

		if metadataJSON != nil {
			if err := json.Unmarshal(metadataJSON, &h.Metadata); err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeStorage, "failed to unmarshal history metadata")
			}
		}

		entries = append(entries, h)
	}
	return entries, rows.Err()
}
