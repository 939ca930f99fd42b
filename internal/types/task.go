// Package types provides the data structures shared by the task, tag,
// project, and schedule stores.
//
// Entities mirror the REST backend's JSON shapes with flat fields and
// last-write-wins timestamps. Each struct carries its own Validate and
// SetDefaults helpers so stores and the integrity monitor apply the same
// rules.
package types

import (
	"fmt"
	"time"
)

// Subtask is a checklist entry owned by a single task.
type Subtask struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScheduleInfo is the back-reference a task carries when it has been placed
// on the daily schedule. It is owned by the schedule store's sync pass and
// must never be edited through ordinary task updates.
type ScheduleInfo struct {
	ScheduleItemID     string `json:"schedule_item_id"`
	ScheduledDate      string `json:"scheduled_date"` // ISO YYYY-MM-DD
	ScheduledStartTime string `json:"scheduled_start_time"`
	ScheduledEndTime   string `json:"scheduled_end_time"`
}

// Task is the canonical work item.
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      Status   `json:"status"`
	Priority    Priority `json:"priority"`

	// Tags holds embedded tag values in insertion order. The tag store is
	// the identity owner; embedded copies are rewritten through tag-updated
	// and tag-deleted events.
	Tags     []Tag     `json:"tags"`
	Subtasks []Subtask `json:"subtasks,omitempty"`

	// ProjectID is nil for inbox tasks.
	ProjectID *string `json:"project_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedBy string    `json:"created_by"`
	UpdatedBy string    `json:"updated_by"`

	DueDate        *time.Time    `json:"due_date,omitempty"`
	EstimatedHours float64       `json:"estimated_hours,omitempty"`
	ScheduleInfo   *ScheduleInfo `json:"schedule_info,omitempty"`
}

// Validate checks the task's required fields and invariants.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("invalid status %q", t.Status)
	}
	if !t.Priority.IsValid() {
		return fmt.Errorf("invalid priority %q", t.Priority)
	}
	if t.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if t.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	if t.CreatedAt.After(t.UpdatedAt) {
		return fmt.Errorf("created_at is after updated_at")
	}
	if t.CreatedBy == "" {
		return fmt.Errorf("created_by is required")
	}
	if t.UpdatedBy == "" {
		return fmt.Errorf("updated_by is required")
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (t *Task) SetDefaults() {
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Tags == nil {
		t.Tags = []Tag{}
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
}

// HasTag reports whether the task references the given tag ID.
func (t *Task) HasTag(tagID string) bool {
	for i := range t.Tags {
		if t.Tags[i].ID == tagID {
			return true
		}
	}
	return false
}

// TagIDs returns the IDs of the task's tags in order.
func (t *Task) TagIDs() []string {
	ids := make([]string, len(t.Tags))
	for i := range t.Tags {
		ids[i] = t.Tags[i].ID
	}
	return ids
}

// Clone returns a deep copy of the task. Stores hand out clones so callers
// can never mutate committed state behind the store's back.
func (t *Task) Clone() *Task {
	cp := *t
	if t.Tags != nil {
		cp.Tags = make([]Tag, len(t.Tags))
		for i := range t.Tags {
			cp.Tags[i] = *t.Tags[i].Clone()
		}
	}
	if t.Subtasks != nil {
		cp.Subtasks = append([]Subtask(nil), t.Subtasks...)
	}
	if t.ProjectID != nil {
		pid := *t.ProjectID
		cp.ProjectID = &pid
	}
	if t.DueDate != nil {
		due := *t.DueDate
		cp.DueDate = &due
	}
	if t.ScheduleInfo != nil {
		info := *t.ScheduleInfo
		cp.ScheduleInfo = &info
	}
	return &cp
}

// Touch bumps UpdatedAt and records the acting user.
func (t *Task) Touch(actor string) {
	t.UpdatedAt = time.Now()
	if actor != "" {
		t.UpdatedBy = actor
	}
}
