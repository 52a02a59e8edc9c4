package service

import (
	"github.com/clockwise-hq/be-ts-approvals/internal/repository"
)

// Status derivation over a timesheet's ledger entries. These are pure
// functions recomputed from the ledger on every mutation, never cached, so
// the timesheet-level status cannot diverge from the ProjectApproval set.

// AllLeadsApproved reports whether every ledger entry with a required lead
// tier has lead approval. Entries whose lead tier is not_required (no lead
// assigned to the project) do not count against it.
func AllLeadsApproved(approvals []*repository.ProjectApproval) bool {
	for _, pa := range approvals {
		if pa.LeadStatus == repository.TierNotRequired {
			continue
		}
		if pa.LeadStatus != repository.TierApproved {
			return false
		}
	}
	return true
}

// AllManagersApproved reports whether every ledger entry has manager
// approval.
func AllManagersApproved(approvals []*repository.ProjectApproval) bool {
	for _, pa := range approvals {
		if pa.ManagerStatus == repository.TierNotRequired {
			continue
		}
		if pa.ManagerStatus != repository.TierApproved {
			return false
		}
	}
	return true
}

// deriveAfterLead computes the timesheet status after a lead approval on a
// project with the given auto-escalation setting. Returns the current status
// unchanged when the conjunction is not yet complete.
func deriveAfterLead(current repository.TimesheetStatus, approvals []*repository.ProjectApproval, autoEscalates bool) repository.TimesheetStatus {
	if !AllLeadsApproved(approvals) {
		return current
	}
	if autoEscalates {
		if AllManagersApproved(approvals) {
			return repository.StatusManagerApproved
		}
		return current
	}
	return repository.StatusLeadApproved
}

// deriveAfterManager computes the timesheet status after a manager approval.
// A manager's own timesheet needs the extra management tier, so it parks in
// management_pending instead of manager_approved.
func deriveAfterManager(current repository.TimesheetStatus, approvals []*repository.ProjectApproval, ownerRole repository.Role) repository.TimesheetStatus {
	if !AllManagersApproved(approvals) {
		return current
	}
	if ownerRole == repository.RoleManager {
		return repository.StatusManagementPending
	}
	return repository.StatusManagerApproved
}

// rejectedStatusFor maps a rejecting tier to the timesheet-level status.
func rejectedStatusFor(role repository.Role) repository.TimesheetStatus {
	switch role {
	case repository.RoleLead:
		return repository.StatusLeadRejected
	case repository.RoleManagement:
		return repository.StatusManagementRejected
	default:
		return repository.StatusManagerRejected
	}
}

// resetApproval returns every tier of a ledger entry to pending and clears
// all stamps and reasons. A tier that is not_required stays not_required:
// required-vs-not was decided from project membership when the entry was
// created and a reset must not invent a reviewer where none exists.
func resetApproval(pa *repository.ProjectApproval) {
	if pa.LeadStatus != repository.TierNotRequired {
		pa.LeadStatus = repository.TierPending
	}
	pa.LeadApprovedBy = nil
	pa.LeadApprovedAt = nil
	pa.LeadRejectionReason = nil

	if pa.ManagerStatus != repository.TierNotRequired {
		pa.ManagerStatus = repository.TierPending
	}
	pa.ManagerApprovedBy = nil
	pa.ManagerApprovedAt = nil
	pa.ManagerRejectionReason = nil

	if pa.ManagementStatus != repository.TierNotRequired {
		pa.ManagementStatus = repository.TierPending
	}
	pa.ManagementApprovedBy = nil
	pa.ManagementApprovedAt = nil
	pa.ManagementRejectionReason = nil
}
