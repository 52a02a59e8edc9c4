package repository

import (
	"context"
	"time"

	"github.com/clockwise-hq/be-ts-approvals/internal/common/database"
)

// Store composes the approval repositories and runs each read-modify-write
// cycle under one WithinTransaction call, so a single approve/reject reads
// the ledger, derives, and lands its writes together (or, under best-effort
// policy, sequentially without atomicity).
type Store struct {
	db         *database.DB
	Timesheets *TimesheetRepository
	Approvals  *ProjectApprovalRepository
	History    *ApprovalHistoryRepository
}

// NewStore creates a Store over the shared connection pool.
func NewStore(db *database.DB) *Store {
	return &Store{
		db:         db,
		Timesheets: NewTimesheetRepository(db),
		Approvals:  NewProjectApprovalRepository(db),
		History:    NewApprovalHistoryRepository(db),
	}
}

// GetTimesheet implements the service store interface.
func (s *Store) GetTimesheet(ctx context.Context, id string) (*Timesheet, error) {
	return s.Timesheets.GetByID(ctx, id)
}

// ListTimesheetsForProjectWeek implements the service store interface.
func (s *Store) ListTimesheetsForProjectWeek(ctx context.Context, projectID string, weekStart, weekEnd time.Time) ([]*Timesheet, error) {
	return s.Timesheets.ListForProjectWeek(ctx, projectID, weekStart, weekEnd)
}

// ListProjectApprovals implements the service store interface.
func (s *Store) ListProjectApprovals(ctx context.Context, timesheetID string) ([]*ProjectApproval, error) {
	return s.Approvals.ListByTimesheet(ctx, timesheetID)
}

// ListApprovalHistory implements the service store interface.
func (s *Store) ListApprovalHistory(ctx context.Context, timesheetID string) ([]*ApprovalHistory, error) {
	return s.History.ListByTimesheet(ctx, timesheetID)
}

// MutateTimesheet runs one operation's read-modify-write cycle against a
// consistent view of the timesheet and its ledger. In atomic mode the
// timesheet row is locked before the reads, so concurrent operations on the
// same timesheet serialize and each derivation sees the previous writer's
// ledger; different timesheets proceed in parallel. fn returning an error
// rolls everything back; fn returning a nil change set commits nothing.
func (s *Store) MutateTimesheet(ctx context.Context, timesheetID string, fn func(ts *Timesheet, approvals []*ProjectApproval) (*ChangeSet, error)) error {
	return s.db.WithinTransaction(ctx, func(q database.Querier) error {
		if s.db.Policy() == database.PolicyAtomic {
			if err := s.Timesheets.LockForUpdate(ctx, q, timesheetID); err != nil {
				return err
			}
		}

		ts, err := s.Timesheets.getByID(ctx, q, timesheetID)
		if err != nil {
			return err
		}
		approvals, err := s.Approvals.listByTimesheet(ctx, q, timesheetID)
		if err != nil {
			return err
		}

		cs, err := fn(ts, approvals)
		if err != nil || cs == nil {
			return err
		}
		return s.applyChangeSet(ctx, q, cs)
	})
}

// ApplySubmission inserts the ledger entries for a newly submitted
// timesheet, refreshes re-submitted ones, and moves the timesheet itself,
// in one transaction.
func (s *Store) ApplySubmission(ctx context.Context, ts *Timesheet, create, update []*ProjectApproval) error {
	return s.db.WithinTransaction(ctx, func(q database.Querier) error {
		for _, pa := range create {
			pa.TimesheetID = ts.ID
			if err := s.Approvals.Create(ctx, q, pa); err != nil {
				return err
			}
		}
		for _, pa := range update {
			if err := s.Approvals.Update(ctx, q, pa); err != nil {
				return err
			}
		}
		return s.Timesheets.Update(ctx, q, ts)
	})
}

func (s *Store) applyChangeSet(ctx context.Context, q database.Querier, cs *ChangeSet) error {
	for _, pa := range cs.Approvals {
		if err := s.Approvals.Update(ctx, q, pa); err != nil {
			return err
		}
	}
	if cs.Timesheet != nil {
		if err := s.Timesheets.Update(ctx, q, cs.Timesheet); err != nil {
			return err
		}
	}
	for _, h := range cs.History {
		if err := s.History.Append(ctx, q, h); err != nil {
			return err
		}
	}
	return nil
}
