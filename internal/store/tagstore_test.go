package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/k-iizuka000/ai-todo-sub002/internal/events"
	"github.com/k-iizuka000/ai-todo-sub002/internal/types"
)

// newTestStores wires a tag store and a task store together the way the
// application does: shared bus for push notifications, task store as the
// tag store's live reference counter.
func newTestStores(t *testing.T) (*TagStore, *TaskStore, *fakeAPI) {
	t.Helper()

	api := newFakeAPI()
	bus := events.NewBus()
	tasks := NewTaskStore(TaskStoreConfig{API: api, Bus: bus, Logger: quietLogger()})
	tags := NewTagStore(TagStoreConfig{API: api, Bus: bus, Tasks: tasks, Logger: quietLogger()})
	t.Cleanup(func() {
		tags.Close()
		tasks.Close()
	})
	return tags, tasks, api
}

func mustAddTag(t *testing.T, s *TagStore, input TagInput) *types.Tag {
	t.Helper()

	tag, err := s.AddTag(context.Background(), input)
	if err != nil {
		t.Fatalf("AddTag(%q) error = %v", input.Name, err)
	}
	return tag
}

func TestAddTagRejectsDuplicateName(t *testing.T) {
	tags, _, api := newTestStores(t)
	mustAddTag(t, tags, TagInput{Name: "docs"})

	before := api.callCount("CreateTag")
	_, err := tags.AddTag(context.Background(), TagInput{Name: "  DOCS  "})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	if api.callCount("CreateTag") != before {
		t.Errorf("duplicate name must be rejected before the network")
	}
}

func TestAddTagRollsBackOnFailure(t *testing.T) {
	tags, _, api := newTestStores(t)
	api.failOnce("CreateTag", errors.New("backend down"))

	if _, err := tags.AddTag(context.Background(), TagInput{Name: "docs"}); err == nil {
		t.Fatalf("expected error")
	}
	if got := len(tags.Tags()); got != 0 {
		t.Errorf("placeholder should be rolled back, have %d tags", got)
	}
}

func TestUpdateTagRewritesEmbeddedCopies(t *testing.T) {
	tags, tasks, _ := newTestStores(t)
	tag := mustAddTag(t, tags, TagInput{Name: "docs", Color: "#000"})
	task := mustAddTask(t, tasks, TaskInput{Title: "write guide", Tags: []types.Tag{*tag}})

	name := "documentation"
	color := "#fff"
	if _, err := tags.UpdateTag(context.Background(), tag.ID, TagPatch{Name: &name, Color: &color}); err != nil {
		t.Fatalf("UpdateTag() error = %v", err)
	}

	got, _ := tasks.Get(task.ID)
	if got.Tags[0].Name != "documentation" || got.Tags[0].Color != "#fff" {
		t.Errorf("embedded tag copy = %+v, want renamed and recolored", got.Tags[0])
	}
}

func TestDeleteTagGuard(t *testing.T) {
	tags, tasks, api := newTestStores(t)
	tag := mustAddTag(t, tags, TagInput{Name: "docs"})
	mustAddTask(t, tasks, TaskInput{Title: "uses tag", Tags: []types.Tag{*tag}})

	err := tags.DeleteTag(context.Background(), tag.ID)
	if !errors.Is(err, ErrTagInUse) {
		t.Fatalf("error = %v, want ErrTagInUse", err)
	}
	if !strings.Contains(err.Error(), "1 related task") {
		t.Errorf("error = %q, want related-task count in message", err)
	}
	if api.callCount("DeleteTag") != 0 {
		t.Errorf("guarded delete must not reach the network")
	}
	if _, ok := tags.Get(tag.ID); !ok {
		t.Errorf("rejected delete must leave the tag in place")
	}
}

// TestTagLifecycle walks the full scenario: tag a task, watch usage climb,
// have deletion refused, untag, delete, and verify references are gone.
func TestTagLifecycle(t *testing.T) {
	ctx := context.Background()
	tags, tasks, _ := newTestStores(t)

	task := mustAddTask(t, tasks, TaskInput{Title: "write release notes"})
	tag := mustAddTag(t, tags, TagInput{Name: "docs", Color: "#00aaff"})

	// Tag the task.
	tagged := []types.Tag{*tag}
	if _, err := tasks.UpdateTask(ctx, task.ID, TaskPatch{Tags: &tagged}); err != nil {
		t.Fatalf("tagging failed: %v", err)
	}

	if usage := tags.CheckTagUsage(tag.ID); !usage.IsUsed || usage.TaskCount != 1 {
		t.Fatalf("CheckTagUsage = %+v, want used by 1 task", usage)
	}
	if !tags.UpdateTagUsageStatistics() {
		t.Errorf("reconciliation should report a change after first use")
	}
	got, _ := tags.Get(tag.ID)
	if got.UsageCount != 1 {
		t.Errorf("UsageCount = %d, want 1", got.UsageCount)
	}

	// Deletion refused while in use.
	if err := tags.DeleteTag(ctx, tag.ID); !errors.Is(err, ErrTagInUse) {
		t.Fatalf("delete while in use: error = %v, want ErrTagInUse", err)
	}

	// Untag, then delete succeeds.
	empty := []types.Tag{}
	if _, err := tasks.UpdateTask(ctx, task.ID, TaskPatch{Tags: &empty}); err != nil {
		t.Fatalf("untagging failed: %v", err)
	}
	if err := tags.DeleteTag(ctx, tag.ID); err != nil {
		t.Fatalf("delete after untag: error = %v", err)
	}

	if _, ok := tags.Get(tag.ID); ok {
		t.Errorf("tag should be gone")
	}
	final, _ := tasks.Get(task.ID)
	if len(final.Tags) != 0 {
		t.Errorf("task should carry no tag references, got %+v", final.Tags)
	}
}

func TestDeleteTagRollsBackOnFailure(t *testing.T) {
	tags, _, api := newTestStores(t)
	tag := mustAddTag(t, tags, TagInput{Name: "docs"})
	api.failOnce("DeleteTag", errors.New("backend down"))

	if err := tags.DeleteTag(context.Background(), tag.ID); err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := tags.Get(tag.ID); !ok {
		t.Errorf("failed delete should restore the tag")
	}
}

func TestUsageStatisticsIdempotent(t *testing.T) {
	tags, tasks, _ := newTestStores(t)
	tag := mustAddTag(t, tags, TagInput{Name: "docs"})
	mustAddTask(t, tasks, TaskInput{Title: "a", Tags: []types.Tag{*tag}})

	if !tags.UpdateTagUsageStatistics() {
		t.Fatalf("first reconciliation should change counters")
	}
	if tags.UpdateTagUsageStatistics() {
		t.Errorf("second reconciliation over unchanged state should be a no-op")
	}
}

func TestFindByNameCaseInsensitive(t *testing.T) {
	tags, _, _ := newTestStores(t)
	mustAddTag(t, tags, TagInput{Name: "Docs"})

	if _, ok := tags.FindByName("dOcS"); !ok {
		t.Errorf("FindByName should match case-insensitively")
	}
	if _, ok := tags.FindByName("missing"); ok {
		t.Errorf("FindByName should not match a missing name")
	}
}
