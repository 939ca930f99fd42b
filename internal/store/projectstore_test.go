package store

import (
	"context"
	"errors"
	"testing"

	"github.com/k-iizuka000/ai-todo-sub002/internal/events"
	"github.com/k-iizuka000/ai-todo-sub002/internal/types"
)

func newTestProjectStore(t *testing.T) (*ProjectStore, *TaskStore, *fakeAPI) {
	t.Helper()

	api := newFakeAPI()
	bus := events.NewBus()
	tasks := NewTaskStore(TaskStoreConfig{API: api, Bus: bus, Logger: quietLogger()})
	projects := NewProjectStore(ProjectStoreConfig{API: api, Bus: bus, Tasks: tasks, Logger: quietLogger()})
	t.Cleanup(func() {
		projects.Close()
		tasks.Close()
	})
	return projects, tasks, api
}

func mustAddProject(t *testing.T, s *ProjectStore, input ProjectInput) *types.Project {
	t.Helper()

	project, err := s.AddProject(context.Background(), input)
	if err != nil {
		t.Fatalf("AddProject(%q) error = %v", input.Name, err)
	}
	return project
}

func TestAddProjectValidation(t *testing.T) {
	projects, _, api := newTestProjectStore(t)

	_, err := projects.AddProject(context.Background(), ProjectInput{Name: "   "})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	if api.callCount("CreateProject") != 0 {
		t.Errorf("validation failure must not reach the network")
	}
}

func TestDeleteProjectGuard(t *testing.T) {
	projects, tasks, api := newTestProjectStore(t)
	project := mustAddProject(t, projects, ProjectInput{Name: "release"})
	mustAddTask(t, tasks, TaskInput{Title: "active", ProjectID: &project.ID})

	err := projects.DeleteProject(context.Background(), project.ID)
	if !errors.Is(err, ErrProjectHasTasks) {
		t.Fatalf("error = %v, want ErrProjectHasTasks", err)
	}
	if api.callCount("DeleteProject") != 0 {
		t.Errorf("guarded delete must not reach the network")
	}
}

func TestDeleteProjectAllowedWhenTasksFinished(t *testing.T) {
	ctx := context.Background()
	projects, tasks, _ := newTestProjectStore(t)
	project := mustAddProject(t, projects, ProjectInput{Name: "release"})
	task := mustAddTask(t, tasks, TaskInput{Title: "ship it", ProjectID: &project.ID})

	done := types.StatusDone
	if _, err := tasks.UpdateTask(ctx, task.ID, TaskPatch{Status: &done}); err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if err := projects.DeleteProject(ctx, project.ID); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}

	// The project-deleted event cascades to the task store.
	if got := tasks.Count(); got != 0 {
		t.Errorf("cascade should remove the project's tasks, %d remain", got)
	}
}

func TestDeleteProjectClearsSelection(t *testing.T) {
	ctx := context.Background()
	projects, _, _ := newTestProjectStore(t)
	project := mustAddProject(t, projects, ProjectInput{Name: "release"})

	if err := projects.SelectProject(project.ID); err != nil {
		t.Fatalf("SelectProject() error = %v", err)
	}
	if err := projects.DeleteProject(ctx, project.ID); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}
	if _, ok := projects.SelectedProject(); ok {
		t.Errorf("selection should be cleared after delete")
	}
}

func TestSelectProjectUnknown(t *testing.T) {
	projects, _, _ := newTestProjectStore(t)

	if err := projects.SelectProject("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	// Empty ID clears without error.
	if err := projects.SelectProject(""); err != nil {
		t.Errorf("clearing selection: error = %v", err)
	}
}

func TestVisibleProjectsFilter(t *testing.T) {
	ctx := context.Background()
	projects, _, _ := newTestProjectStore(t)
	mustAddProject(t, projects, ProjectInput{Name: "Website Redesign"})
	old := mustAddProject(t, projects, ProjectInput{Name: "Old Website"})
	mustAddProject(t, projects, ProjectInput{Name: "Mobile App"})

	archived := true
	if _, err := projects.UpdateProject(ctx, old.ID, ProjectPatch{Archived: &archived}); err != nil {
		t.Fatalf("UpdateProject() error = %v", err)
	}

	projects.SetFilter(ProjectFilter{NameQuery: "website"})
	visible := projects.VisibleProjects()
	if len(visible) != 1 || visible[0].Name != "Website Redesign" {
		t.Errorf("visible = %d projects, want only the live website project", len(visible))
	}

	projects.SetFilter(ProjectFilter{NameQuery: "website", IncludeArchived: true})
	if got := len(projects.VisibleProjects()); got != 2 {
		t.Errorf("with archived included, visible = %d, want 2", got)
	}
}

func TestViewModeRoundTrip(t *testing.T) {
	projects, _, _ := newTestProjectStore(t)

	if got := projects.CurrentViewMode(); got != ViewList {
		t.Errorf("default view = %s, want list", got)
	}
	projects.SetViewMode(ViewBoard)
	if got := projects.CurrentViewMode(); got != ViewBoard {
		t.Errorf("view = %s, want board", got)
	}
}

func TestUpdateProjectRollsBackOnFailure(t *testing.T) {
	projects, _, api := newTestProjectStore(t)
	project := mustAddProject(t, projects, ProjectInput{Name: "original"})
	api.failOnce("UpdateProject", errors.New("backend down"))

	name := "renamed"
	if _, err := projects.UpdateProject(context.Background(), project.ID, ProjectPatch{Name: &name}); err == nil {
		t.Fatalf("expected error")
	}
	got, _ := projects.Get(project.ID)
	if got.Name != "original" {
		t.Errorf("Name = %q, want rollback to original", got.Name)
	}
}

func TestLoadDropsStaleSelection(t *testing.T) {
	ctx := context.Background()
	projects, _, api := newTestProjectStore(t)
	project := mustAddProject(t, projects, ProjectInput{Name: "ephemeral"})
	if err := projects.SelectProject(project.ID); err != nil {
		t.Fatalf("SelectProject() error = %v", err)
	}

	// The backend forgets the project; a reload must drop the selection.
	if err := api.DeleteProject(ctx, project.ID); err != nil {
		t.Fatalf("fake delete error = %v", err)
	}
	if err := projects.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, ok := projects.SelectedProject(); ok {
		t.Errorf("stale selection should be dropped on reload")
	}
}
