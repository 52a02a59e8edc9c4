package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clockwise-hq/be-ts-approvals/internal/common/errors"
	"github.com/clockwise-hq/be-ts-approvals/internal/repository"
)

// projectWeekEnv: three employees on project p-1 for the same week, all
// submitted with a pending ledger entry.
func projectWeekEnv() *testEnv {
	env := newTestEnv()
	env.addUser("lead-1", "Lee Lead", repository.RoleLead)
	env.addUser("mgr-1", "Morgan Manager", repository.RoleManager)
	env.addProject("p-1", "Apollo", "mgr-1", strPtr("lead-1"), false)
	for _, id := range []string{"a", "b", "c"} {
		env.addUser("emp-"+id, "Employee "+id, repository.RoleEmployee)
		env.addTimesheet("ts-"+id, "emp-"+id, repository.StatusSubmitted, week)
		env.addApproval("ts-"+id, "p-1", repository.TierPending, repository.TierPending, repository.TierPending)
	}
	return env
}

func projectWeekReq(role repository.Role, approverID string) *ProjectWeekRequest {
	return &ProjectWeekRequest{
		ProjectID:    "p-1",
		WeekStart:    week,
		WeekEnd:      week.AddDate(0, 0, 6),
		ApproverID:   approverID,
		ApproverRole: role,
	}
}

func TestApproveProjectWeek(t *testing.T) {
	env := projectWeekEnv()

	res, err := env.bulk.ApproveProjectWeek(context.Background(), projectWeekReq(repository.RoleLead, "lead-1"))
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 3, res.AffectedTimesheets)
	assert.Equal(t, 3, res.AffectedUsers)
	assert.Equal(t, "Apollo", res.ProjectWeek.ProjectName)
	assert.Equal(t, "Feb 3-9, 2025", res.ProjectWeek.WeekLabel)

	for _, id := range []string{"ts-a", "ts-b", "ts-c"} {
		assert.Equal(t, repository.StatusLeadApproved, env.store.timesheets[id].Status)
	}
	// Each history row carries the bulk annotation.
	require.Len(t, env.store.history, 3)
	for _, h := range env.store.history {
		require.NotNil(t, h.Note)
		assert.Equal(t, bulkApprovalNote, *h.Note)
	}
}

func TestApproveProjectWeek_UserWithoutTimesheet(t *testing.T) {
	env := projectWeekEnv()
	// emp-d works on the project but never submitted a timesheet this week;
	// the batch covers the other three without error.
	env.addUser("emp-d", "Employee d", repository.RoleEmployee)

	res, err := env.bulk.ApproveProjectWeek(context.Background(), projectWeekReq(repository.RoleLead, "lead-1"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.AffectedTimesheets)
	assert.Equal(t, 3, res.AffectedUsers)
}

func TestApproveProjectWeek_SkipsIneligibleItems(t *testing.T) {
	env := projectWeekEnv()
	// ts-b was already lead-approved; the lead tier refuses a double approval
	// but the batch continues.
	env.store.timesheets["ts-b"].Status = repository.StatusLeadApproved
	env.store.approval("ts-b", "p-1").LeadStatus = repository.TierApproved

	res, err := env.bulk.ApproveProjectWeek(context.Background(), projectWeekReq(repository.RoleLead, "lead-1"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.AffectedTimesheets)
	assert.Equal(t, 2, res.AffectedUsers)
}

func TestApproveProjectWeek_StorageFailureAborts(t *testing.T) {
	env := projectWeekEnv()
	env.store.failWrites = true

	_, err := env.bulk.ApproveProjectWeek(context.Background(), projectWeekReq(repository.RoleLead, "lead-1"))
	assert.Equal(t, errors.ErrCodeStorage, errors.Code(err))
}

func TestApproveProjectWeek_NoTimesheets(t *testing.T) {
	env := projectWeekEnv()
	req := projectWeekReq(repository.RoleLead, "lead-1")
	req.WeekStart = week.AddDate(0, 0, 14)
	req.WeekEnd = week.AddDate(0, 0, 20)

	_, err := env.bulk.ApproveProjectWeek(context.Background(), req)
	assert.True(t, errors.IsNotFound(err))
}

func TestRejectProjectWeek(t *testing.T) {
	env := projectWeekEnv()
	req := projectWeekReq(repository.RoleManager, "mgr-1")
	req.Reason = "sprint hours need correction"

	res, err := env.bulk.RejectProjectWeek(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, res.AffectedTimesheets)

	for _, id := range []string{"ts-a", "ts-b", "ts-c"} {
		assert.Equal(t, repository.StatusManagerRejected, env.store.timesheets[id].Status)
	}
}

func TestRejectProjectWeek_RequiresReason(t *testing.T) {
	env := projectWeekEnv()

	_, err := env.bulk.RejectProjectWeek(context.Background(), projectWeekReq(repository.RoleManager, "mgr-1"))
	assert.Equal(t, errors.ErrCodeValidation, errors.Code(err))
}

// ── Freeze ────────────────────────────────────────────────────────────────────

func freezeReadyEnv() *testEnv {
	env := projectWeekEnv()
	env.addUser("boss-1", "Sam Management", repository.RoleManagement)
	for _, id := range []string{"ts-a", "ts-b", "ts-c"} {
		env.store.timesheets[id].Status = repository.StatusManagerApproved
		pa := env.store.approval(id, "p-1")
		pa.LeadStatus = repository.TierApproved
		pa.ManagerStatus = repository.TierApproved
	}
	return env
}

func TestFreezeProjectWeek(t *testing.T) {
	env := freezeReadyEnv()
	// ts-c is already frozen from an earlier batch.
	env.store.timesheets["ts-c"].Status = repository.StatusFrozen
	env.store.timesheets["ts-c"].IsFrozen = true

	res, err := env.bulk.FreezeProjectWeek(context.Background(), projectWeekReq(repository.RoleManagement, "boss-1"))
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 2, res.FrozenCount)
	assert.Equal(t, 1, res.SkippedCount)
	assert.Empty(t, res.Failed)

	for _, id := range []string{"ts-a", "ts-b", "ts-c"} {
		assert.True(t, env.store.timesheets[id].IsFrozen)
	}
}

func TestFreezeProjectWeek_RefusedWhileContested(t *testing.T) {
	env := freezeReadyEnv()
	env.store.timesheets["ts-b"].Status = repository.StatusSubmitted

	res, err := env.bulk.FreezeProjectWeek(context.Background(), projectWeekReq(repository.RoleManagement, "boss-1"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalidTransition(err))

	require.NotNil(t, res)
	assert.False(t, res.Success)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "emp-b", res.Failed[0].UserID)
	assert.Equal(t, "Employee b", res.Failed[0].UserName)
	assert.Contains(t, res.Failed[0].Reason, "submitted")

	// Refusal before any write: no freezes, no history, no events.
	assert.Equal(t, 0, res.FrozenCount)
	assert.Empty(t, env.store.history)
	assert.Empty(t, env.events.published)
	assert.False(t, env.store.timesheets["ts-a"].IsFrozen)
	assert.False(t, env.store.timesheets["ts-c"].IsFrozen)
}

func TestFreezeProjectWeek_RefusedAfterRejection(t *testing.T) {
	env := freezeReadyEnv()
	env.store.timesheets["ts-a"].Status = repository.StatusManagementRejected

	res, err := env.bulk.FreezeProjectWeek(context.Background(), projectWeekReq(repository.RoleManagement, "boss-1"))
	require.Error(t, err)
	require.NotNil(t, res)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "emp-a", res.Failed[0].UserID)
}

// ── Week labels ───────────────────────────────────────────────────────────────

func TestWeekLabel(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  string
	}{
		{"same month", day(2025, 2, 3), day(2025, 2, 9), "Feb 3-9, 2025"},
		{"cross month", day(2025, 1, 27), day(2025, 2, 2), "Jan 27 - Feb 2, 2025"},
		{"cross year", day(2025, 12, 29), day(2026, 1, 4), "Dec 29, 2025 - Jan 4, 2026"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, weekLabel(tt.start, tt.end))
		})
	}
}
