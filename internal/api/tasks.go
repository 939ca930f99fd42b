package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/k-iizuka000/ai-todo-sub002/internal/types"
)

// normalizeTask canonicalizes enum casing on a task fresh off the wire.
func normalizeTask(task *types.Task) error {
	status, err := types.NormalizeStatus(string(task.Status))
	if err != nil {
		return fmt.Errorf("task %s: %w", task.ID, err)
	}
	task.Status = status

	priority, err := types.NormalizePriority(string(task.Priority))
	if err != nil {
		return fmt.Errorf("task %s: %w", task.ID, err)
	}
	task.Priority = priority
	return nil
}

// ListTasks fetches all tasks.
func (c *Client) ListTasks(ctx context.Context) ([]*types.Task, error) {
	var tasks []*types.Task
	if err := c.do(ctx, http.MethodGet, "/api/v1/tasks", nil, &tasks); err != nil {
		return nil, err
	}
	for _, task := range tasks {
		if err := normalizeTask(task); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}

// CreateTask creates a task and returns the server's copy, which carries the
// authoritative ID and timestamps.
func (c *Client) CreateTask(ctx context.Context, task *types.Task) (*types.Task, error) {
	var created types.Task
	if err := c.do(ctx, http.MethodPost, "/api/v1/tasks", task, &created); err != nil {
		return nil, err
	}
	if err := normalizeTask(&created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateTask replaces a task and returns the server's copy.
func (c *Client) UpdateTask(ctx context.Context, id string, task *types.Task) (*types.Task, error) {
	var updated types.Task
	if err := c.do(ctx, http.MethodPut, "/api/v1/tasks/"+id, task, &updated); err != nil {
		return nil, err
	}
	if err := normalizeTask(&updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/tasks/"+id, nil, nil)
}
