package store

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/k-iizuka000/ai-todo-sub002/internal/events"
	"github.com/k-iizuka000/ai-todo-sub002/internal/types"
)

// ProjectAPI is the slice of the REST client the project store needs.
type ProjectAPI interface {
	ListProjects(ctx context.Context) ([]*types.Project, error)
	CreateProject(ctx context.Context, project *types.Project) (*types.Project, error)
	UpdateProject(ctx context.Context, id string, project *types.Project) (*types.Project, error)
	DeleteProject(ctx context.Context, id string) error
}

// ActiveTaskCounter is the narrow pull interface the project delete guard
// uses against the task store.
type ActiveTaskCounter interface {
	ActiveTaskCountByProject(projectID string) int
}

// ViewMode selects how the project's tasks are rendered.
type ViewMode string

const (
	ViewList     ViewMode = "list"
	ViewBoard    ViewMode = "board"
	ViewCalendar ViewMode = "calendar"
)

// ProjectFilter narrows the visible project list.
type ProjectFilter struct {
	IncludeArchived bool
	NameQuery       string
}

// ProjectStoreConfig configures a ProjectStore.
type ProjectStoreConfig struct {
	API             ProjectAPI
	Bus             *events.Bus
	Tasks           ActiveTaskCounter
	ErrorClearDelay time.Duration
	Logger          *log.Logger
}

// ProjectStore caches backend projects and owns the UI-facing view state:
// current selection, filter, and view mode.
type ProjectStore struct {
	mu       sync.RWMutex
	projects []*types.Project
	selected string
	filter   ProjectFilter
	viewMode ViewMode

	api    ProjectAPI
	bus    *events.Bus
	tasks  ActiveTaskCounter
	logger *log.Logger
	errs   *errorSurface
}

// NewProjectStore creates a project store with list view and no selection.
func NewProjectStore(config ProjectStoreConfig) *ProjectStore {
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[projects] ", log.LstdFlags)
	}
	return &ProjectStore{
		viewMode: ViewList,
		api:      config.API,
		bus:      config.Bus,
		tasks:    config.Tasks,
		logger:   logger,
		errs:     newErrorSurface(config.ErrorClearDelay),
	}
}

// Close disarms timers. Idempotent.
func (s *ProjectStore) Close() {
	s.errs.stop()
}

// LastError returns the current user-visible error message, empty if none.
func (s *ProjectStore) LastError() string {
	return s.errs.message()
}

// Load replaces the cache with the backend's current projects, including
// their server-computed statistics.
func (s *ProjectStore) Load(ctx context.Context) error {
	projects, err := s.api.ListProjects(ctx)
	if err != nil {
		s.errs.set(fmt.Sprintf("failed to load projects: %v", err))
		return err
	}

	s.mu.Lock()
	s.projects = projects
	// Drop a selection that no longer exists.
	if s.selected != "" && s.indexOf(s.selected) < 0 {
		s.selected = ""
	}
	s.mu.Unlock()

	s.errs.clear()
	s.logger.Printf("Loaded %d projects", len(projects))
	return nil
}

// Projects returns a deep copy of the cached project list.
func (s *ProjectStore) Projects() []*types.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Project, len(s.projects))
	for i, p := range s.projects {
		out[i] = p.Clone()
	}
	return out
}

// Get returns a copy of the project with the given ID.
func (s *ProjectStore) Get(id string) (*types.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.projects[i].Clone(), true
	}
	return nil, false
}

func (s *ProjectStore) indexOf(id string) int {
	for i, p := range s.projects {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// ProjectInput is the caller-supplied portion of a new project.
type ProjectInput struct {
	Name        string
	Description string
	Color       string
}

// AddProject validates the input and creates the project on the backend
// with an optimistic placeholder.
func (s *ProjectStore) AddProject(ctx context.Context, input ProjectInput) (*types.Project, error) {
	if strings.TrimSpace(input.Name) == "" {
		err := fmt.Errorf("%w: project name must not be empty", ErrValidation)
		s.errs.set(err.Error())
		return nil, err
	}

	now := time.Now()
	project := &types.Project{
		ID:          "local-" + uuid.NewString(),
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Color:       input.Color,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	localID := project.ID
	s.mu.Lock()
	s.projects = append(s.projects, project)
	mutation := beginOp(func() {
		if i := s.indexOf(localID); i >= 0 {
			s.projects = append(s.projects[:i], s.projects[i+1:]...)
		}
	})
	s.mu.Unlock()

	created, err := s.api.CreateProject(ctx, project)
	if err != nil {
		s.mu.Lock()
		mutation.rollback()
		s.mu.Unlock()
		s.errs.set(fmt.Sprintf("failed to create project: %v", err))
		return nil, err
	}

	s.mu.Lock()
	if i := s.indexOf(localID); i >= 0 {
		s.projects[i] = created
	} else {
		s.projects = append(s.projects, created)
	}
	mutation.commit()
	s.mu.Unlock()

	s.errs.clear()
	return created.Clone(), nil
}

// ProjectPatch carries partial project fields.
type ProjectPatch struct {
	Name        *string
	Description *string
	Color       *string
	Archived    *bool
}

// UpdateProject merges the patch optimistically and pushes it to the
// backend.
func (s *ProjectStore) UpdateProject(ctx context.Context, id string, patch ProjectPatch) (*types.Project, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		err := fmt.Errorf("%w: project name must not be empty", ErrValidation)
		s.errs.set(err.Error())
		return nil, err
	}

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		err := fmt.Errorf("project %s: %w", id, ErrNotFound)
		s.errs.set(err.Error())
		return nil, err
	}
	snapshot := s.projects[i].Clone()
	if patch.Name != nil {
		s.projects[i].Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		s.projects[i].Description = *patch.Description
	}
	if patch.Color != nil {
		s.projects[i].Color = *patch.Color
	}
	if patch.Archived != nil {
		s.projects[i].Archived = *patch.Archived
	}
	s.projects[i].UpdatedAt = time.Now()
	merged := s.projects[i].Clone()
	mutation := beginOp(func() {
		if j := s.indexOf(id); j >= 0 {
			s.projects[j] = snapshot
		}
	})
	s.mu.Unlock()

	updated, err := s.api.UpdateProject(ctx, id, merged)
	if err != nil {
		s.mu.Lock()
		mutation.rollback()
		s.mu.Unlock()
		s.errs.set(fmt.Sprintf("failed to update project: %v", err))
		return nil, err
	}

	s.mu.Lock()
	if j := s.indexOf(id); j >= 0 {
		s.projects[j] = updated
	}
	mutation.commit()
	s.mu.Unlock()

	s.errs.clear()
	return updated.Clone(), nil
}

// DeleteProject removes a project. Deletion is refused while the project
// still has active (todo/in-progress) tasks; the guard queries the task
// store's live state. On success a project-deleted event lets the task
// store apply the local side of the backend's cascade delete.
func (s *ProjectStore) DeleteProject(ctx context.Context, id string) error {
	if s.tasks != nil {
		if count := s.tasks.ActiveTaskCountByProject(id); count > 0 {
			err := fmt.Errorf("%w: %d active task(s)", ErrProjectHasTasks, count)
			s.errs.set(err.Error())
			return err
		}
	}

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		err := fmt.Errorf("project %s: %w", id, ErrNotFound)
		s.errs.set(err.Error())
		return err
	}
	removed := s.projects[i]
	position := i
	s.projects = append(s.projects[:i], s.projects[i+1:]...)
	mutation := beginOp(func() {
		if position > len(s.projects) {
			position = len(s.projects)
		}
		s.projects = append(s.projects[:position], append([]*types.Project{removed}, s.projects[position:]...)...)
	})
	s.mu.Unlock()

	if err := s.api.DeleteProject(ctx, id); err != nil {
		s.mu.Lock()
		mutation.rollback()
		s.mu.Unlock()
		s.errs.set(fmt.Sprintf("failed to delete project: %v", err))
		return err
	}

	s.mu.Lock()
	mutation.commit()
	if s.selected == id {
		s.selected = ""
	}
	s.mu.Unlock()

	s.errs.clear()
	if s.bus != nil {
		s.bus.Publish(events.Event{Type: events.ProjectDeleted, ProjectID: id})
	}
	return nil
}

// SelectProject sets the current selection; an empty ID clears it.
func (s *ProjectStore) SelectProject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" && s.indexOf(id) < 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	s.selected = id
	return nil
}

// SelectedProject returns the currently selected project, if any.
func (s *ProjectStore) SelectedProject() (*types.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.selected == "" {
		return nil, false
	}
	if i := s.indexOf(s.selected); i >= 0 {
		return s.projects[i].Clone(), true
	}
	return nil, false
}

// SetFilter replaces the view filter.
func (s *ProjectStore) SetFilter(filter ProjectFilter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = filter
}

// Filter returns the current view filter.
func (s *ProjectStore) Filter() ProjectFilter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// SetViewMode switches the rendering mode.
func (s *ProjectStore) SetViewMode(mode ViewMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewMode = mode
}

// CurrentViewMode returns the active view mode.
func (s *ProjectStore) CurrentViewMode() ViewMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewMode
}

// VisibleProjects applies the current filter to the cached list.
func (s *ProjectStore) VisibleProjects() []*types.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := strings.ToLower(strings.TrimSpace(s.filter.NameQuery))
	var out []*types.Project
	for _, p := range s.projects {
		if p.Archived && !s.filter.IncludeArchived {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(p.Name), query) {
			continue
		}
		out = append(out, p.Clone())
	}
	return out
}
