package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/k-iizuka000/ai-todo-sub002/internal/types"
)

// fakeAPI is an in-memory backend double shared by the store tests. Each
// method can be forced to fail, and calls are counted so tests can assert
// that validation failures never reach the network.
type fakeAPI struct {
	mu       sync.Mutex
	nextID   int
	tasks    map[string]*types.Task
	tags     map[string]*types.Tag
	projects map[string]*types.Project

	failNext map[string]error // method name -> error to return once
	calls    map[string]int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		tasks:    make(map[string]*types.Task),
		tags:     make(map[string]*types.Tag),
		projects: make(map[string]*types.Project),
		failNext: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// failOnce arranges for the next call to the named method to fail.
func (f *fakeAPI) failOnce(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext[method] = err
}

func (f *fakeAPI) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// enter records the call and pops any pending failure.
func (f *fakeAPI) enter(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	if err, ok := f.failNext[method]; ok {
		delete(f.failNext, method)
		return err
	}
	return nil
}

func (f *fakeAPI) assignID(prefix string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeAPI) ListTasks(ctx context.Context) ([]*types.Task, error) {
	if err := f.enter("ListTasks"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Task
	for _, task := range f.tasks {
		out = append(out, task.Clone())
	}
	return out, nil
}

func (f *fakeAPI) CreateTask(ctx context.Context, task *types.Task) (*types.Task, error) {
	if err := f.enter("CreateTask"); err != nil {
		return nil, err
	}
	created := task.Clone()
	created.ID = f.assignID("task")
	f.mu.Lock()
	f.tasks[created.ID] = created
	f.mu.Unlock()
	return created.Clone(), nil
}

func (f *fakeAPI) UpdateTask(ctx context.Context, id string, task *types.Task) (*types.Task, error) {
	if err := f.enter("UpdateTask"); err != nil {
		return nil, err
	}
	updated := task.Clone()
	updated.ID = id
	f.mu.Lock()
	f.tasks[id] = updated
	f.mu.Unlock()
	return updated.Clone(), nil
}

func (f *fakeAPI) DeleteTask(ctx context.Context, id string) error {
	if err := f.enter("DeleteTask"); err != nil {
		return err
	}
	f.mu.Lock()
	delete(f.tasks, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeAPI) ListTags(ctx context.Context) ([]*types.Tag, error) {
	if err := f.enter("ListTags"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Tag
	for _, tg := range f.tags {
		out = append(out, tg.Clone())
	}
	return out, nil
}

func (f *fakeAPI) CreateTag(ctx context.Context, tag *types.Tag) (*types.Tag, error) {
	if err := f.enter("CreateTag"); err != nil {
		return nil, err
	}
	created := tag.Clone()
	created.ID = f.assignID("tag")
	f.mu.Lock()
	f.tags[created.ID] = created
	f.mu.Unlock()
	return created.Clone(), nil
}

func (f *fakeAPI) UpdateTag(ctx context.Context, id string, tag *types.Tag) (*types.Tag, error) {
	if err := f.enter("UpdateTag"); err != nil {
		return nil, err
	}
	updated := tag.Clone()
	updated.ID = id
	f.mu.Lock()
	f.tags[id] = updated
	f.mu.Unlock()
	return updated.Clone(), nil
}

func (f *fakeAPI) DeleteTag(ctx context.Context, id string) error {
	if err := f.enter("DeleteTag"); err != nil {
		return err
	}
	f.mu.Lock()
	delete(f.tags, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeAPI) ListProjects(ctx context.Context) ([]*types.Project, error) {
	if err := f.enter("ListProjects"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Project
	for _, p := range f.projects {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (f *fakeAPI) CreateProject(ctx context.Context, project *types.Project) (*types.Project, error) {
	if err := f.enter("CreateProject"); err != nil {
		return nil, err
	}
	created := project.Clone()
	created.ID = f.assignID("proj")
	f.mu.Lock()
	f.projects[created.ID] = created
	f.mu.Unlock()
	return created.Clone(), nil
}

func (f *fakeAPI) UpdateProject(ctx context.Context, id string, project *types.Project) (*types.Project, error) {
	if err := f.enter("UpdateProject"); err != nil {
		return nil, err
	}
	updated := project.Clone()
	updated.ID = id
	f.mu.Lock()
	f.projects[id] = updated
	f.mu.Unlock()
	return updated.Clone(), nil
}

func (f *fakeAPI) DeleteProject(ctx context.Context, id string) error {
	if err := f.enter("DeleteProject"); err != nil {
		return err
	}
	f.mu.Lock()
	delete(f.projects, id)
	f.mu.Unlock()
	return nil
}
