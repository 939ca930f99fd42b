// Package store implements the cooperating client-side stores that hold the
// application's working state: tasks, tags, projects, and the daily
// schedule.
//
// Each store owns its slice of state exclusively behind a mutex; cross-store
// access goes only through another store's published methods. Mutations are
// optimistic: the local change is applied immediately, the network request
// follows, and on failure the pre-mutation snapshot is restored. A store
// method never spans the network round trip while holding its lock, so
// independently triggered operations may interleave between the local
// mutation and the server's answer, exactly as in the browser runtime this
// engine was extracted from.
//
// The tag store pushes tag-updated/tag-deleted events to the task store over
// the event bus; every other cross-store read is a pull through a narrow
// interface.
package store

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/k-iizuka000/ai-todo-sub002/internal/events"
	"github.com/k-iizuka000/ai-todo-sub002/internal/types"
)

// TaskAPI is the slice of the REST client the task store needs.
type TaskAPI interface {
	ListTasks(ctx context.Context) ([]*types.Task, error)
	CreateTask(ctx context.Context, task *types.Task) (*types.Task, error)
	UpdateTask(ctx context.Context, id string, task *types.Task) (*types.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// TaskStoreConfig configures a TaskStore.
type TaskStoreConfig struct {
	API TaskAPI

	// Bus receives task-changed events and delivers tag/project events.
	Bus *events.Bus

	// Actor is recorded as created_by/updated_by on mutations.
	Actor string

	// ErrorClearDelay overrides how long error messages linger (default 5s).
	ErrorClearDelay time.Duration

	Logger *log.Logger
}

// TaskStore owns the canonical in-memory task list.
type TaskStore struct {
	mu     sync.RWMutex
	tasks  []*types.Task
	api    TaskAPI
	bus    *events.Bus
	actor  string
	logger *log.Logger
	errs   *errorSurface

	unsubs []func()
}

// NewTaskStore creates a task store and subscribes it to tag and project
// events on the bus. Call Close on teardown.
func NewTaskStore(config TaskStoreConfig) *TaskStore {
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[tasks] ", log.LstdFlags)
	}
	actor := config.Actor
	if actor == "" {
		actor = "local"
	}

	s := &TaskStore{
		api:    config.API,
		bus:    config.Bus,
		actor:  actor,
		logger: logger,
		errs:   newErrorSurface(config.ErrorClearDelay),
	}

	if s.bus != nil {
		s.unsubs = append(s.unsubs,
			s.bus.Subscribe(events.TagUpdated, func(ev events.Event) {
				s.HandleTagUpdate(ev.TagID, ev.Tag)
			}),
			s.bus.Subscribe(events.TagDeleted, func(ev events.Event) {
				s.HandleTagDeletion(ev.TagID)
			}),
			s.bus.Subscribe(events.ProjectDeleted, func(ev events.Event) {
				s.HandleProjectDeletion(ev.ProjectID)
			}),
		)
	}
	return s
}

// Close unsubscribes from the bus and disarms timers. Idempotent.
func (s *TaskStore) Close() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
	s.errs.stop()
}

// LastError returns the current user-visible error message, empty if none.
func (s *TaskStore) LastError() string {
	return s.errs.message()
}

// Load replaces the in-memory list with the backend's current task set.
func (s *TaskStore) Load(ctx context.Context) error {
	tasks, err := s.api.ListTasks(ctx)
	if err != nil {
		s.errs.set(fmt.Sprintf("failed to load tasks: %v", err))
		return err
	}

	s.mu.Lock()
	s.tasks = tasks
	s.mu.Unlock()

	s.errs.clear()
	s.logger.Printf("Loaded %d tasks", len(tasks))
	return nil
}

// Tasks returns a deep copy of the current task list.
func (s *TaskStore) Tasks() []*types.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Task, len(s.tasks))
	for i, task := range s.tasks {
		out[i] = task.Clone()
	}
	return out
}

// Get returns a copy of the task with the given ID.
func (s *TaskStore) Get(id string) (*types.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.tasks[i].Clone(), true
	}
	return nil, false
}

// Count returns the number of tasks.
func (s *TaskStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// indexOf returns the position of the task with the given ID, or -1.
// Caller holds the lock.
func (s *TaskStore) indexOf(id string) int {
	for i, task := range s.tasks {
		if task.ID == id {
			return i
		}
	}
	return -1
}

// TaskInput is the caller-supplied portion of a new task.
type TaskInput struct {
	Title          string
	Description    string
	Status         types.Status
	Priority       types.Priority
	Tags           []types.Tag
	ProjectID      *string
	DueDate        *time.Time
	EstimatedHours float64
}

// AddTask validates the input, applies an optimistic placeholder, and
// creates the task on the backend. On success the placeholder is replaced
// by the server's copy (authoritative ID and timestamps); on failure the
// placeholder is removed and the error surfaced.
func (s *TaskStore) AddTask(ctx context.Context, input TaskInput) (*types.Task, error) {
	if input.Title == "" {
		err := fmt.Errorf("%w: title must not be empty", ErrValidation)
		s.errs.set(err.Error())
		return nil, err
	}

	task := &types.Task{
		ID:             "local-" + uuid.NewString(),
		Title:          input.Title,
		Description:    input.Description,
		Status:         input.Status,
		Priority:       input.Priority,
		Tags:           append([]types.Tag(nil), input.Tags...),
		ProjectID:      input.ProjectID,
		DueDate:        input.DueDate,
		EstimatedHours: input.EstimatedHours,
		CreatedBy:      s.actor,
		UpdatedBy:      s.actor,
	}
	task.SetDefaults()

	localID := task.ID
	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	mutation := beginOp(func() {
		if i := s.indexOf(localID); i >= 0 {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
		}
	})
	s.mu.Unlock()

	created, err := s.api.CreateTask(ctx, task)
	if err != nil {
		s.mu.Lock()
		mutation.rollback()
		s.mu.Unlock()
		s.errs.set(fmt.Sprintf("failed to create task: %v", err))
		s.logger.Printf("Create failed, rolled back placeholder %s: %v", localID, err)
		return nil, err
	}

	s.mu.Lock()
	if i := s.indexOf(localID); i >= 0 {
		s.tasks[i] = created
	} else {
		// Placeholder vanished while the request was in flight; keep the
		// server's copy anyway.
		s.tasks = append(s.tasks, created)
	}
	mutation.commit()
	s.mu.Unlock()

	s.errs.clear()
	s.publishTaskChange(created.ID, "created")
	return created.Clone(), nil
}

// TaskPatch carries partial task fields; nil pointers leave the field
// untouched. Schedule back-references are not patchable here; they belong
// to UpdateTaskSchedule/ClearTaskSchedule.
type TaskPatch struct {
	Title          *string
	Description    *string
	Status         *types.Status
	Priority       *types.Priority
	Tags           *[]types.Tag
	Subtasks       *[]types.Subtask
	ProjectID      *string
	ClearProject   bool
	DueDate        *time.Time
	ClearDueDate   bool
	EstimatedHours *float64
}

// apply merges the patch into the task and bumps its update metadata.
func (p *TaskPatch) apply(task *types.Task, actor string) {
	if p.Title != nil {
		task.Title = *p.Title
	}
	if p.Description != nil {
		task.Description = *p.Description
	}
	if p.Status != nil {
		task.Status = *p.Status
	}
	if p.Priority != nil {
		task.Priority = *p.Priority
	}
	if p.Tags != nil {
		task.Tags = *p.Tags
	}
	if p.Subtasks != nil {
		task.Subtasks = *p.Subtasks
	}
	if p.ClearProject {
		task.ProjectID = nil
	} else if p.ProjectID != nil {
		task.ProjectID = p.ProjectID
	}
	if p.ClearDueDate {
		task.DueDate = nil
	} else if p.DueDate != nil {
		task.DueDate = p.DueDate
	}
	if p.EstimatedHours != nil {
		task.EstimatedHours = *p.EstimatedHours
	}
	task.Touch(actor)
}

// UpdateTask merges the patch optimistically and pushes the merged task to
// the backend. On failure the pre-patch snapshot is restored.
func (s *TaskStore) UpdateTask(ctx context.Context, id string, patch TaskPatch) (*types.Task, error) {
	if patch.Title != nil && *patch.Title == "" {
		err := fmt.Errorf("%w: title must not be empty", ErrValidation)
		s.errs.set(err.Error())
		return nil, err
	}
	if patch.Status != nil && !patch.Status.IsValid() {
		err := fmt.Errorf("%w: invalid status %q", ErrValidation, *patch.Status)
		s.errs.set(err.Error())
		return nil, err
	}

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		err := fmt.Errorf("task %s: %w", id, ErrNotFound)
		s.errs.set(err.Error())
		return nil, err
	}
	snapshot := s.tasks[i].Clone()
	patch.apply(s.tasks[i], s.actor)
	merged := s.tasks[i].Clone()
	mutation := beginOp(func() {
		if j := s.indexOf(id); j >= 0 {
			s.tasks[j] = snapshot
		}
	})
	s.mu.Unlock()

	updated, err := s.api.UpdateTask(ctx, id, merged)
	if err != nil {
		s.mu.Lock()
		mutation.rollback()
		s.mu.Unlock()
		s.errs.set(fmt.Sprintf("failed to update task: %v", err))
		s.logger.Printf("Update failed, rolled back task %s: %v", id, err)
		return nil, err
	}

	s.mu.Lock()
	if j := s.indexOf(id); j >= 0 {
		s.tasks[j] = updated
	}
	mutation.commit()
	s.mu.Unlock()

	s.errs.clear()
	s.publishTaskChange(id, "updated")
	return updated.Clone(), nil
}

// DeleteTask removes the task optimistically. On failure it is re-inserted
// at its original position.
func (s *TaskStore) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		err := fmt.Errorf("task %s: %w", id, ErrNotFound)
		s.errs.set(err.Error())
		return err
	}
	removed := s.tasks[i]
	position := i
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	mutation := beginOp(func() {
		if position > len(s.tasks) {
			position = len(s.tasks)
		}
		s.tasks = append(s.tasks[:position], append([]*types.Task{removed}, s.tasks[position:]...)...)
	})
	s.mu.Unlock()

	if err := s.api.DeleteTask(ctx, id); err != nil {
		s.mu.Lock()
		mutation.rollback()
		s.mu.Unlock()
		s.errs.set(fmt.Sprintf("failed to delete task: %v", err))
		s.logger.Printf("Delete failed, restored task %s at position %d: %v", id, position, err)
		return err
	}

	s.mu.Lock()
	mutation.commit()
	s.mu.Unlock()

	s.errs.clear()
	s.publishTaskChange(id, "deleted")
	return nil
}

// TasksByProject returns copies of all tasks in the given project.
func (s *TaskStore) TasksByProject(projectID string) []*types.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Task
	for _, task := range s.tasks {
		if task.ProjectID != nil && *task.ProjectID == projectID {
			out = append(out, task.Clone())
		}
	}
	return out
}

// TasksByTag returns copies of all tasks referencing the given tag.
func (s *TaskStore) TasksByTag(tagID string) []*types.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Task
	for _, task := range s.tasks {
		if task.HasTag(tagID) {
			out = append(out, task.Clone())
		}
	}
	return out
}

// TagRelatedTaskCount counts tasks referencing the given tag. This is the
// live count the tag store's delete guard and usage reconciliation consult,
// as opposed to the tag's cached usage counter.
func (s *TaskStore) TagRelatedTaskCount(tagID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, task := range s.tasks {
		if task.HasTag(tagID) {
			count++
		}
	}
	return count
}

// ActiveTaskCountByProject counts non-finished tasks in the project. Used
// by the project store's delete guard.
func (s *TaskStore) ActiveTaskCountByProject(projectID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, task := range s.tasks {
		if task.ProjectID == nil || *task.ProjectID != projectID {
			continue
		}
		if task.Status == types.StatusTodo || task.Status == types.StatusInProgress {
			count++
		}
	}
	return count
}

// UnscheduledTasks returns copies of open tasks with no schedule placement.
func (s *TaskStore) UnscheduledTasks() []*types.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Task
	for _, task := range s.tasks {
		if task.ScheduleInfo != nil {
			continue
		}
		if task.Status != types.StatusTodo && task.Status != types.StatusInProgress {
			continue
		}
		out = append(out, task.Clone())
	}
	return out
}

// HandleTagUpdate rewrites every task's embedded tag copies to reflect a
// rename/recolor. Idempotent: re-applying the same notification leaves
// state unchanged. Local only; the backend already holds the new tag value.
func (s *TaskStore) HandleTagUpdate(tagID string, tag *types.Tag) {
	if tag == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rewritten := 0
	for _, task := range s.tasks {
		for i := range task.Tags {
			if task.Tags[i].ID != tagID {
				continue
			}
			if task.Tags[i].Name != tag.Name || task.Tags[i].Color != tag.Color {
				task.Tags[i].Name = tag.Name
				task.Tags[i].Color = tag.Color
				rewritten++
			}
		}
	}
	if rewritten > 0 {
		s.logger.Printf("Tag %s updated across %d task references", tagID, rewritten)
	}
}

// HandleTagDeletion strips the tag from every task's tag list. Idempotent.
func (s *TaskStore) HandleTagDeletion(tagID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stripped := 0
	for _, task := range s.tasks {
		kept := task.Tags[:0]
		for _, tg := range task.Tags {
			if tg.ID == tagID {
				stripped++
				continue
			}
			kept = append(kept, tg)
		}
		task.Tags = kept
	}
	if stripped > 0 {
		s.logger.Printf("Tag %s stripped from %d task references", tagID, stripped)
	}
}

// HandleProjectDeletion applies the local side of the backend's cascade
// delete, removing every task in the project. Idempotent.
func (s *TaskStore) HandleProjectDeletion(projectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.tasks[:0]
	removed := 0
	for _, task := range s.tasks {
		if task.ProjectID != nil && *task.ProjectID == projectID {
			removed++
			continue
		}
		kept = append(kept, task)
	}
	s.tasks = kept
	if removed > 0 {
		s.logger.Printf("Project %s cascade removed %d tasks", projectID, removed)
	}
}

// UpdateTaskSchedule sets the task's schedule back-reference. Only the
// placement fields are written; no other task field is touched. Called by
// the schedule store's sync pass.
func (s *TaskStore) UpdateTaskSchedule(taskID string, info *types.ScheduleInfo) error {
	if info == nil {
		return fmt.Errorf("%w: schedule info must not be nil", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(taskID)
	if i < 0 {
		return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	cp := *info
	s.tasks[i].ScheduleInfo = &cp
	return nil
}

// ClearTaskSchedule removes the task's schedule back-reference.
func (s *TaskStore) ClearTaskSchedule(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(taskID)
	if i < 0 {
		return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	s.tasks[i].ScheduleInfo = nil
	return nil
}

// ApplyFix runs a repair function against the live task, in place and
// without any network call. The integrity monitor uses this for its narrow
// deterministic fixes. Returns false if the task no longer exists or the
// fix reported no change.
func (s *TaskStore) ApplyFix(taskID string, fix func(*types.Task) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(taskID)
	if i < 0 {
		return false
	}
	return fix(s.tasks[i])
}

// publishTaskChange emits a task-changed event if a bus is wired.
func (s *TaskStore) publishTaskChange(taskID, action string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{Type: events.TaskChanged, TaskID: taskID, Action: action})
}
