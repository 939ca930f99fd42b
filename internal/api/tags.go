package api

import (
	"context"
	"net/http"

	"github.com/k-iizuka000/ai-todo-sub002/internal/types"
)

// ListTags fetches all tags.
func (c *Client) ListTags(ctx context.Context) ([]*types.Tag, error) {
	var tags []*types.Tag
	if err := c.do(ctx, http.MethodGet, "/api/v1/tags", nil, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// CreateTag creates a tag and returns the server's copy.
func (c *Client) CreateTag(ctx context.Context, tag *types.Tag) (*types.Tag, error) {
	var created types.Tag
	if err := c.do(ctx, http.MethodPost, "/api/v1/tags", tag, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateTag replaces a tag and returns the server's copy.
func (c *Client) UpdateTag(ctx context.Context, id string, tag *types.Tag) (*types.Tag, error) {
	var updated types.Tag
	if err := c.do(ctx, http.MethodPut, "/api/v1/tags/"+id, tag, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteTag removes a tag. The backend may reject the deletion if tasks
// still reference it; that surfaces as an *Error with the backend's message.
func (c *Client) DeleteTag(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/tags/"+id, nil, nil)
}
