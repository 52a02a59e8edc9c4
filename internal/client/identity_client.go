package client

import (
	"context"
	"fmt"

	"github.com/clockwise-hq/be-ts-approvals/internal/common/errors"
	"github.com/clockwise-hq/be-ts-approvals/internal/common/httpclient"
)

// IdentityClient resolves users and their roles from the identity service.
// The workflow needs it to decide which tier sequence applies to a
// timesheet's owner.
type IdentityClient struct {
	client *httpclient.Client
}

// NewIdentityClient creates a new identity service client.
func NewIdentityClient(baseURL string) *IdentityClient {
	return &IdentityClient{client: httpclient.NewClient(baseURL)}
}

// GetUser fetches a user's id, display name and role.
func (c *IdentityClient) GetUser(ctx context.Context, userID string) (*User, error) {
	path := fmt.Sprintf("/api/v1/users/get?id=%s", userID)

	var resp User
	if err := c.client.Get(ctx, path, &resp); err != nil {
		if err == httpclient.ErrNotFound {
			return nil, errors.NotFound("user", userID)
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &resp, nil
}
