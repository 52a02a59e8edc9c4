package client

import (
	"context"
	"fmt"

	"github.com/clockwise-hq/be-ts-approvals/internal/common/errors"
	"github.com/clockwise-hq/be-ts-approvals/internal/common/httpclient"
)

// ProjectsClient is a client for the projects service. The approval workflow
// only reads the manager/lead references and the auto-escalation setting.
type ProjectsClient struct {
	client *httpclient.Client
}

// NewProjectsClient creates a new projects service client.
func NewProjectsClient(baseURL string) *ProjectsClient {
	return &ProjectsClient{client: httpclient.NewClient(baseURL)}
}

type projectResponse struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	PrimaryManagerID string  `json:"primary_manager_id"`
	LeadID           *string `json:"lead_id"`
	ApprovalSettings struct {
		LeadApprovalAutoEscalates bool `json:"lead_approval_auto_escalates"`
	} `json:"approval_settings"`
}

// GetProject fetches a project's approval-relevant projection.
func (c *ProjectsClient) GetProject(ctx context.Context, projectID string) (*Project, error) {
	path := fmt.Sprintf("/api/v1/projects/get?id=%s", projectID)

	var resp projectResponse
	if err := c.client.Get(ctx, path, &resp); err != nil {
		if err == httpclient.ErrNotFound {
			return nil, errors.NotFound("project", projectID)
		}
		return nil, fmt.Errorf("failed to fetch project: %w", err)
	}

	return &Project{
		ID:                        resp.ID,
		Name:                      resp.Name,
		PrimaryManagerID:          resp.PrimaryManagerID,
		LeadID:                    resp.LeadID,
		LeadApprovalAutoEscalates: resp.ApprovalSettings.LeadApprovalAutoEscalates,
	}, nil
}
