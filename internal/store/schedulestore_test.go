package store

import (
	"errors"
	"testing"

	"github.com/k-iizuka000/ai-todo-sub002/internal/types"
)

const testDate = "2025-06-02"

func newTestScheduleStore(t *testing.T) (*ScheduleStore, *TaskStore) {
	t.Helper()

	api := newFakeAPI()
	tasks := NewTaskStore(TaskStoreConfig{API: api, Logger: quietLogger()})
	t.Cleanup(tasks.Close)
	sched := NewScheduleStore(ScheduleStoreConfig{Tasks: tasks, Logger: quietLogger()})
	return sched, tasks
}

func mustCreateItem(t *testing.T, s *ScheduleStore, date string, input ItemInput) *types.ScheduleItem {
	t.Helper()

	item, err := s.CreateItem(date, input)
	if err != nil {
		t.Fatalf("CreateItem(%q) error = %v", input.Title, err)
	}
	return item
}

func TestCreateItemValidation(t *testing.T) {
	s, _ := newTestScheduleStore(t)

	tests := []struct {
		name  string
		date  string
		input ItemInput
	}{
		{"bad date", "06/02/2025", ItemInput{Title: "x", StartTime: "09:00", EndTime: "10:00"}},
		{"bad clock", testDate, ItemInput{Title: "x", StartTime: "9am", EndTime: "10:00"}},
		{"zero duration", testDate, ItemInput{Title: "x", StartTime: "09:00", EndTime: "09:00"}},
		{"inverted window", testDate, ItemInput{Title: "x", StartTime: "10:00", EndTime: "09:00"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.CreateItem(tt.date, tt.input); !errors.Is(err, ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestCreateItemDefaults(t *testing.T) {
	s, _ := newTestScheduleStore(t)

	item := mustCreateItem(t, s, testDate, ItemInput{Title: "standup", StartTime: "09:00", EndTime: "09:30"})
	if item.Type != types.ItemTask || item.Priority != types.PriorityMedium {
		t.Errorf("defaults not applied: type=%s priority=%s", item.Type, item.Priority)
	}
	if item.Duration != 30 {
		t.Errorf("Duration = %d, want 30", item.Duration)
	}
	if item.Status != types.ItemPlanned {
		t.Errorf("Status = %s, want planned", item.Status)
	}
}

func TestDetectConflictsScenario(t *testing.T) {
	s, _ := newTestScheduleStore(t)
	mustCreateItem(t, s, testDate, ItemInput{Title: "A", StartTime: "09:00", EndTime: "10:00"})
	b := mustCreateItem(t, s, testDate, ItemInput{Title: "B", StartTime: "09:30", EndTime: "10:30"})

	conflicts := s.DetectConflicts(testDate)
	if len(conflicts) != 1 {
		t.Fatalf("DetectConflicts = %d conflicts, want 1", len(conflicts))
	}
	if conflicts[0].Severity != types.ConflictMinor {
		t.Errorf("partial overlap severity = %s, want minor", conflicts[0].Severity)
	}

	// Moving B out of the window clears the conflict on re-detection.
	if _, err := s.MoveItem(testDate, b.ID, "10:00", "11:00"); err != nil {
		t.Fatalf("MoveItem() error = %v", err)
	}
	if got := s.DetectConflicts(testDate); len(got) != 0 {
		t.Errorf("after move, DetectConflicts = %d conflicts, want 0", len(got))
	}
	if got := s.Conflicts(testDate); len(got) != 0 {
		t.Errorf("stale conflict record survived re-detection")
	}
}

func TestDetectConflictsAdjacentAndCancelled(t *testing.T) {
	s, _ := newTestScheduleStore(t)
	mustCreateItem(t, s, testDate, ItemInput{Title: "A", StartTime: "09:00", EndTime: "10:00"})
	b := mustCreateItem(t, s, testDate, ItemInput{Title: "B", StartTime: "10:00", EndTime: "11:00"})

	if got := s.DetectConflicts(testDate); len(got) != 0 {
		t.Errorf("adjacent items must not conflict, got %d", len(got))
	}

	// Overlap B with A, then cancel it; cancelled items are exempt.
	if _, err := s.MoveItem(testDate, b.ID, "09:30", "10:30"); err != nil {
		t.Fatalf("MoveItem() error = %v", err)
	}
	cancelled := types.ItemCancelled
	if _, err := s.UpdateItem(testDate, b.ID, ItemPatch{Status: &cancelled}); err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}
	if got := s.DetectConflicts(testDate); len(got) != 0 {
		t.Errorf("cancelled items must be skipped, got %d conflicts", len(got))
	}
}

func TestContainmentIsMajor(t *testing.T) {
	s, _ := newTestScheduleStore(t)
	mustCreateItem(t, s, testDate, ItemInput{Title: "outer", StartTime: "09:00", EndTime: "12:00"})
	mustCreateItem(t, s, testDate, ItemInput{Title: "inner", StartTime: "10:00", EndTime: "11:00"})

	conflicts := s.DetectConflicts(testDate)
	if len(conflicts) != 1 || conflicts[0].Severity != types.ConflictMajor {
		t.Errorf("containment should grade major, got %+v", conflicts)
	}
}

func TestResolveConflict(t *testing.T) {
	s, _ := newTestScheduleStore(t)
	mustCreateItem(t, s, testDate, ItemInput{Title: "A", StartTime: "09:00", EndTime: "10:00"})
	b := mustCreateItem(t, s, testDate, ItemInput{Title: "B", StartTime: "09:30", EndTime: "10:30"})

	conflicts := s.DetectConflicts(testDate)
	if len(conflicts) != 1 {
		t.Fatalf("want 1 conflict, got %d", len(conflicts))
	}
	conflict := conflicts[0]

	// An item outside the conflict is rejected.
	err := s.ResolveConflict(testDate, conflict.ID, Resolution{ItemID: "stranger", NewStart: "11:00", NewEnd: "12:00"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation for foreign item", err)
	}

	if err := s.ResolveConflict(testDate, conflict.ID, Resolution{ItemID: b.ID, NewStart: "10:00", NewEnd: "11:00"}); err != nil {
		t.Fatalf("ResolveConflict() error = %v", err)
	}
	if got := s.Conflicts(testDate); len(got) != 0 {
		t.Errorf("resolved conflict should be removed, got %d", len(got))
	}
	day, _ := s.Day(testDate)
	for _, item := range day.Items {
		if item.ID == b.ID && item.StartTime != "10:00" {
			t.Errorf("item not moved: %s-%s", item.StartTime, item.EndTime)
		}
	}
}

func TestSyncWithTasksRoundTrip(t *testing.T) {
	s, tasks := newTestScheduleStore(t)
	task := mustAddTask(t, tasks, TaskInput{Title: "deep work"})

	item, err := s.CreateScheduleFromTask(task, Slot{Date: testDate, StartTime: "13:00", EndTime: "15:00"})
	if err != nil {
		t.Fatalf("CreateScheduleFromTask() error = %v", err)
	}

	got, _ := tasks.Get(task.ID)
	if got.ScheduleInfo == nil {
		t.Fatalf("task should carry a placement back-reference")
	}
	want := types.ScheduleInfo{
		ScheduleItemID:     item.ID,
		ScheduledDate:      testDate,
		ScheduledStartTime: "13:00",
		ScheduledEndTime:   "15:00",
	}
	if *got.ScheduleInfo != want {
		t.Errorf("ScheduleInfo = %+v, want %+v", *got.ScheduleInfo, want)
	}

	// Deleting the item and re-syncing clears the dangling back-reference.
	if err := s.DeleteItem(testDate, item.ID); err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	if err := s.SyncWithTasks(); err != nil {
		t.Fatalf("SyncWithTasks() error = %v", err)
	}
	got, _ = tasks.Get(task.ID)
	if got.ScheduleInfo != nil {
		t.Errorf("dangling back-reference should be cleared, got %+v", got.ScheduleInfo)
	}
}

func TestSyncWithTasksIdempotent(t *testing.T) {
	s, tasks := newTestScheduleStore(t)
	task := mustAddTask(t, tasks, TaskInput{Title: "deep work"})
	if _, err := s.CreateScheduleFromTask(task, Slot{Date: testDate, StartTime: "13:00", EndTime: "15:00"}); err != nil {
		t.Fatalf("CreateScheduleFromTask() error = %v", err)
	}

	before, _ := tasks.Get(task.ID)
	if err := s.SyncWithTasks(); err != nil {
		t.Fatalf("SyncWithTasks() error = %v", err)
	}
	after, _ := tasks.Get(task.ID)
	if *before.ScheduleInfo != *after.ScheduleInfo {
		t.Errorf("second sync over consistent state must change nothing")
	}
}

func TestSyncWithTasksDuplicatePlacementsPickEarliest(t *testing.T) {
	s, tasks := newTestScheduleStore(t)
	task := mustAddTask(t, tasks, TaskInput{Title: "deep work"})

	// Two items on different days both reference the task; the later day
	// is created first so insertion order cannot mask the choice.
	mustCreateItem(t, s, "2025-06-03", ItemInput{
		Title: task.Title, TaskID: task.ID, StartTime: "09:00", EndTime: "10:00",
	})
	mustCreateItem(t, s, testDate, ItemInput{
		Title: task.Title, TaskID: task.ID, StartTime: "14:00", EndTime: "15:00",
	})
	early := mustCreateItem(t, s, testDate, ItemInput{
		Title: task.Title, TaskID: task.ID, StartTime: "08:00", EndTime: "09:00",
	})

	for i := 0; i < 5; i++ {
		if err := s.SyncWithTasks(); err != nil {
			t.Fatalf("SyncWithTasks() error = %v", err)
		}
		got, _ := tasks.Get(task.ID)
		if got.ScheduleInfo == nil {
			t.Fatalf("task should carry a placement back-reference")
		}
		if got.ScheduleInfo.ScheduleItemID != early.ID {
			t.Fatalf("back-reference = %s at %s %s, want the earliest slot %s",
				got.ScheduleInfo.ScheduleItemID, got.ScheduleInfo.ScheduledDate,
				got.ScheduleInfo.ScheduledStartTime, early.ID)
		}
	}
}

func TestHandleTaskDrop(t *testing.T) {
	s, tasks := newTestScheduleStore(t)
	estimated := mustAddTask(t, tasks, TaskInput{Title: "sized", EstimatedHours: 2})
	unsized := mustAddTask(t, tasks, TaskInput{Title: "unsized"})

	item, err := s.HandleTaskDrop(estimated.ID, testDate, "09:00")
	if err != nil {
		t.Fatalf("HandleTaskDrop() error = %v", err)
	}
	if item.EndTime != "11:00" {
		t.Errorf("EndTime = %s, want 11:00 from 2h estimate", item.EndTime)
	}

	item, err = s.HandleTaskDrop(unsized.ID, testDate, "14:00")
	if err != nil {
		t.Fatalf("HandleTaskDrop() error = %v", err)
	}
	if item.EndTime != "15:00" {
		t.Errorf("EndTime = %s, want 15:00 from the 1h default", item.EndTime)
	}

	// A task that already has a placement is no longer droppable.
	if _, err := s.HandleTaskDrop(estimated.ID, testDate, "16:00"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound for an already-scheduled task", err)
	}
}

func TestHandleTaskDropClampsToEndOfDay(t *testing.T) {
	s, tasks := newTestScheduleStore(t)
	late := mustAddTask(t, tasks, TaskInput{Title: "late", EstimatedHours: 3})

	item, err := s.HandleTaskDrop(late.ID, testDate, "22:00")
	if err != nil {
		t.Fatalf("HandleTaskDrop() error = %v", err)
	}
	if item.EndTime != "23:59" {
		t.Errorf("EndTime = %s, want clamped 23:59", item.EndTime)
	}
}

func TestDayStats(t *testing.T) {
	s, _ := newTestScheduleStore(t)
	mustCreateItem(t, s, testDate, ItemInput{Title: "A", StartTime: "09:00", EndTime: "10:00"})
	done := mustCreateItem(t, s, testDate, ItemInput{Title: "B", StartTime: "10:00", EndTime: "11:30"})
	completed := types.ItemCompleted
	if _, err := s.UpdateItem(testDate, done.ID, ItemPatch{Status: &completed}); err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}

	day, ok := s.Day(testDate)
	if !ok {
		t.Fatalf("Day() should exist")
	}
	if day.Stats.TotalHours != 2.5 {
		t.Errorf("TotalHours = %v, want 2.5", day.Stats.TotalHours)
	}
	if day.Stats.CompletionRate != 0.5 {
		t.Errorf("CompletionRate = %v, want 0.5", day.Stats.CompletionRate)
	}
	if got, want := day.Stats.UtilizationRate, 150.0/480.0; got != want {
		t.Errorf("UtilizationRate = %v, want %v", got, want)
	}
}
