package client

// Project is the read-only projection of a project consumed by the approval
// workflow.
type Project struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	PrimaryManagerID string `json:"primary_manager_id"`
	// LeadID is nil when the project has no team lead; the lead tier is then
	// not required.
	LeadID *string `json:"lead_id,omitempty"`
	// LeadApprovalAutoEscalates makes lead approval double as manager
	// approval for this project.
	LeadApprovalAutoEscalates bool `json:"lead_approval_auto_escalates"`
}

// User is the identity projection used to resolve timesheet owner roles.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// ProjectHours is one project's slice of a timesheet.
type ProjectHours struct {
	EntryCount int     `json:"entry_count"`
	TotalHours float64 `json:"total_hours"`
}
