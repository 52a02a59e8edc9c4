package repository

import "time"

// ── Domain types for the timesheet approval ledger ───────────────────────────

// Role is the closed set of acting roles in the approval sequence.
type Role string

const (
	RoleEmployee   Role = "employee"
	RoleLead       Role = "lead"
	RoleManager    Role = "manager"
	RoleManagement Role = "management"
	RoleSuperAdmin Role = "super_admin"
)

// TierStatus is the per-tier state on a ledger entry. A tier is not_required
// only when no user holds that role for the project; otherwise it starts
// pending.
type TierStatus string

const (
	TierNotRequired TierStatus = "not_required"
	TierPending     TierStatus = "pending"
	TierApproved    TierStatus = "approved"
	TierRejected    TierStatus = "rejected"
)

// TimesheetStatus is the single authoritative timesheet-level status, always
// derivable from the timesheet's ProjectApproval set.
type TimesheetStatus string

const (
	StatusDraft              TimesheetStatus = "draft"
	StatusSubmitted          TimesheetStatus = "submitted"
	StatusLeadApproved       TimesheetStatus = "lead_approved"
	StatusLeadRejected       TimesheetStatus = "lead_rejected"
	StatusManagerApproved    TimesheetStatus = "manager_approved"
	StatusManagerRejected    TimesheetStatus = "manager_rejected"
	StatusManagementPending  TimesheetStatus = "management_pending"
	StatusManagementRejected TimesheetStatus = "management_rejected"
	StatusFrozen             TimesheetStatus = "frozen"
	StatusBilled             TimesheetStatus = "billed"
)

// HistoryAction is the action recorded in one ApprovalHistory row.
type HistoryAction string

const (
	ActionApproved HistoryAction = "approved"
	ActionRejected HistoryAction = "rejected"
)

// Timesheet is one user's work record for one week. The CRUD lifecycle is
// owned elsewhere; after submission the status and approval fields are
// written exclusively by this service.
type Timesheet struct {
	ID         string
	UserID     string
	WeekStart  time.Time
	WeekEnd    time.Time
	TotalHours float64
	Status     TimesheetStatus

	LeadApproverID      *string
	LeadApprovedAt      *time.Time
	LeadRejectionReason *string
	LeadRejectedAt      *time.Time

	ManagerApproverID      *string
	ManagerApprovedAt      *time.Time
	ManagerRejectionReason *string
	ManagerRejectedAt      *time.Time

	VerifiedBy                *string
	VerifiedAt                *time.Time
	ManagementRejectionReason *string
	ManagementRejectedAt      *time.Time

	IsFrozen          bool
	BillingSnapshotID *string
	BilledAt          *time.Time

	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProjectApproval is the ledger entry: one per (timesheet, project) pair,
// created when entries for the project first appear on a submitted timesheet
// and mutated only by the approval service.
type ProjectApproval struct {
	ID          string
	TimesheetID string
	ProjectID   string

	LeadStatus          TierStatus
	LeadApprovedBy      *string
	LeadApprovedAt      *time.Time
	LeadRejectionReason *string

	ManagerStatus          TierStatus
	ManagerApprovedBy      *string
	ManagerApprovedAt      *time.Time
	ManagerRejectionReason *string

	ManagementStatus          TierStatus
	ManagementApprovedBy      *string
	ManagementApprovedAt      *time.Time
	ManagementRejectionReason *string

	EntryCount int
	TotalHours float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ApprovalHistory is one immutable row per approval action. Created only;
// never mutated or deleted.
type ApprovalHistory struct {
	ID           string
	TimesheetID  string
	ProjectID    string
	ActorID      string
	ActorRole    Role
	Action       HistoryAction
	StatusBefore TimesheetStatus
	StatusAfter  TimesheetStatus
	Reason       *string
	Note         *string
	Metadata     map[string]interface{}
	CreatedAt    time.Time
}

// ChangeSet is every write produced by one approval operation. The store
// applies a change set inside the same transaction that read the timesheet
// and its ledger, so either all of it lands or none of it does (subject to
// the configured TxPolicy).
type ChangeSet struct {
	Approvals []*ProjectApproval
	Timesheet *Timesheet
	History   []*ApprovalHistory
}
