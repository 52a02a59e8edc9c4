package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clockwise-hq/be-ts-approvals/internal/common/errors"
	"github.com/clockwise-hq/be-ts-approvals/internal/repository"
)

func frozenEnv() *testEnv {
	env := newTestEnv()
	env.addUser("emp-1", "Dana Employee", repository.RoleEmployee)
	ts := env.addTimesheet("ts-1", "emp-1", repository.StatusFrozen, week)
	ts.IsFrozen = true
	env.addApproval("ts-1", "p-1", repository.TierApproved, repository.TierApproved, repository.TierApproved)
	return env
}

func TestMarkTimesheetBilled(t *testing.T) {
	env := frozenEnv()

	err := env.finalizers.MarkTimesheetBilled(context.Background(), "ts-1", "snap-42", "admin-1")
	require.NoError(t, err)

	ts := env.store.timesheets["ts-1"]
	assert.Equal(t, repository.StatusBilled, ts.Status)
	assert.NotNil(t, ts.BilledAt)
	require.NotNil(t, ts.BillingSnapshotID)
	assert.Equal(t, "snap-42", *ts.BillingSnapshotID)

	require.Len(t, env.events.published, 1)
	assert.Equal(t, "timesheet_billed", env.events.published[0].EventType)
}

func TestMarkTimesheetBilled_AlreadyBilled(t *testing.T) {
	env := frozenEnv()
	require.NoError(t, env.finalizers.MarkTimesheetBilled(context.Background(), "ts-1", "snap-42", "admin-1"))

	err := env.finalizers.MarkTimesheetBilled(context.Background(), "ts-1", "snap-43", "admin-1")
	assert.True(t, errors.IsInvalidTransition(err))
	// The first snapshot reference stays.
	assert.Equal(t, "snap-42", *env.store.timesheets["ts-1"].BillingSnapshotID)
}

func TestMarkTimesheetBilled_RequiresFrozen(t *testing.T) {
	env := frozenEnv()
	env.store.timesheets["ts-1"].Status = repository.StatusManagerApproved
	env.store.timesheets["ts-1"].IsFrozen = false

	err := env.finalizers.MarkTimesheetBilled(context.Background(), "ts-1", "snap-42", "admin-1")
	assert.True(t, errors.IsInvalidTransition(err))
}

func TestBulkVerify(t *testing.T) {
	env := newTestEnv()
	env.addTimesheet("ts-ok", "emp-1", repository.StatusManagerApproved, week)
	env.addApproval("ts-ok", "p-1", repository.TierApproved, repository.TierApproved, repository.TierPending)
	env.addTimesheet("ts-pending", "emp-2", repository.StatusManagementPending, week)
	env.addApproval("ts-pending", "p-1", repository.TierNotRequired, repository.TierApproved, repository.TierPending)
	env.addTimesheet("ts-early", "emp-3", repository.StatusSubmitted, week)

	res := env.finalizers.BulkVerify(context.Background(),
		[]string{"ts-ok", "ts-pending", "ts-early", "ts-missing"}, "boss-1")

	assert.Equal(t, 2, res.ProcessedCount)
	assert.Equal(t, 2, res.FailedCount)

	for _, id := range []string{"ts-ok", "ts-pending"} {
		ts := env.store.timesheets[id]
		assert.Equal(t, repository.StatusFrozen, ts.Status)
		assert.True(t, ts.IsFrozen)
		require.NotNil(t, ts.VerifiedBy)
		assert.Equal(t, "boss-1", *ts.VerifiedBy)
		assert.Equal(t, repository.TierApproved, env.store.approval(id, "p-1").ManagementStatus)
	}
	assert.Equal(t, repository.StatusSubmitted, env.store.timesheets["ts-early"].Status)

	// One history row per ledger entry, annotated as bulk verification.
	require.Len(t, env.store.history, 2)
	for _, h := range env.store.history {
		require.NotNil(t, h.Note)
		assert.Equal(t, "bulk verification", *h.Note)
		assert.Equal(t, repository.RoleManagement, h.ActorRole)
	}
}

func TestBulkBill(t *testing.T) {
	env := newTestEnv()
	for _, id := range []string{"ts-1", "ts-2"} {
		ts := env.addTimesheet(id, "emp-1", repository.StatusFrozen, week)
		ts.IsFrozen = true
	}
	env.addTimesheet("ts-3", "emp-2", repository.StatusSubmitted, week)

	res := env.finalizers.BulkBill(context.Background(),
		[]string{"ts-1", "ts-2", "ts-3"}, "snap-7", "admin-1")

	assert.Equal(t, 2, res.ProcessedCount)
	assert.Equal(t, 1, res.FailedCount)
	assert.Equal(t, repository.StatusBilled, env.store.timesheets["ts-1"].Status)
	assert.Equal(t, repository.StatusBilled, env.store.timesheets["ts-2"].Status)
	assert.Equal(t, repository.StatusSubmitted, env.store.timesheets["ts-3"].Status)
}
