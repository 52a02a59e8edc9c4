package client

import (
	"context"
	"fmt"

	"github.com/clockwise-hq/be-ts-approvals/internal/common/httpclient"
)

// TimeEntriesClient queries the time-entries service for a timesheet's
// entries grouped by project. Used once per submission to build the ledger.
type TimeEntriesClient struct {
	client *httpclient.Client
}

// NewTimeEntriesClient creates a new time-entries service client.
func NewTimeEntriesClient(baseURL string) *TimeEntriesClient {
	return &TimeEntriesClient{client: httpclient.NewClient(baseURL)}
}

type projectHoursResponse struct {
	Projects map[string]ProjectHours `json:"projects"`
}

// GetProjectHours returns entry counts and hour totals grouped by project.
// An empty map means the timesheet has no entries.
func (c *TimeEntriesClient) GetProjectHours(ctx context.Context, timesheetID string) (map[string]ProjectHours, error) {
	path := fmt.Sprintf("/api/v1/entries/by-project?timesheet_id=%s", timesheetID)

	var resp projectHoursResponse
	if err := c.client.Get(ctx, path, &resp); err != nil {
		if err == httpclient.ErrNotFound {
			return map[string]ProjectHours{}, nil
		}
		return nil, fmt.Errorf("failed to fetch project hours: %w", err)
	}
	return resp.Projects, nil
}
