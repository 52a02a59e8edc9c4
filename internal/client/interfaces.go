package client

import "context"

// ProjectsClientInterface defines the interface for the projects service client.
type ProjectsClientInterface interface {
	GetProject(ctx context.Context, projectID string) (*Project, error)
}

// IdentityClientInterface defines the interface for the identity service client.
type IdentityClientInterface interface {
	GetUser(ctx context.Context, userID string) (*User, error)
}

// TimeEntriesClientInterface defines the interface for the time-entries service client.
type TimeEntriesClientInterface interface {
	// GetProjectHours returns entry counts and hour totals grouped by
	// project for one timesheet.
	GetProjectHours(ctx context.Context, timesheetID string) (map[string]ProjectHours, error)
}
