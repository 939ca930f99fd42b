package api

import (
	"context"
	"net/http"

	"github.com/k-iizuka000/ai-todo-sub002/internal/types"
)

// ListProjects fetches all projects with their backend-computed statistics.
func (c *Client) ListProjects(ctx context.Context) ([]*types.Project, error) {
	var projects []*types.Project
	if err := c.do(ctx, http.MethodGet, "/api/v1/projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// CreateProject creates a project and returns the server's copy.
func (c *Client) CreateProject(ctx context.Context, project *types.Project) (*types.Project, error) {
	var created types.Project
	if err := c.do(ctx, http.MethodPost, "/api/v1/projects", project, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateProject replaces a project and returns the server's copy.
func (c *Client) UpdateProject(ctx context.Context, id string, project *types.Project) (*types.Project, error) {
	var updated types.Project
	if err := c.do(ctx, http.MethodPut, "/api/v1/projects/"+id, project, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteProject removes a project. Tasks under the project are cascade
// deleted by the backend.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/projects/"+id, nil, nil)
}
