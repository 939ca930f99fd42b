package types

import (
	"fmt"
	"time"
)

// Project groups tasks. Project statistics are computed by the backend; the
// client caches them alongside the project record.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color,omitempty"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Stats is the backend-computed summary, refreshed on fetch.
	Stats *ProjectStats `json:"stats,omitempty"`
}

// ProjectStats summarizes a project's tasks as reported by the backend.
type ProjectStats struct {
	TotalTasks     int `json:"total_tasks"`
	CompletedTasks int `json:"completed_tasks"`
	ActiveTasks    int `json:"active_tasks"`
}

// Validate checks the project's required fields.
func (p *Project) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

// Clone returns a deep copy of the project.
func (p *Project) Clone() *Project {
	cp := *p
	if p.Stats != nil {
		st := *p.Stats
		cp.Stats = &st
	}
	return &cp
}
