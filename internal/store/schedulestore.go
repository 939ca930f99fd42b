package store

import (
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/k-iizuka000/ai-todo-sub002/internal/events"
	"github.com/k-iizuka000/ai-todo-sub002/internal/types"
)

// TaskSync is the slice of the task store the schedule store pulls from and
// pushes placement back into.
type TaskSync interface {
	Tasks() []*types.Task
	UnscheduledTasks() []*types.Task
	UpdateTaskSchedule(taskID string, info *types.ScheduleInfo) error
	ClearTaskSchedule(taskID string) error
}

// ScheduleStoreConfig configures a ScheduleStore.
type ScheduleStoreConfig struct {
	Tasks  TaskSync
	Bus    *events.Bus
	Logger *log.Logger
}

// ScheduleStore owns the day-indexed schedule map and its conflict lists.
// Schedule placement lives client-side; the only durable trace is the
// back-reference pushed into tasks by SyncWithTasks.
type ScheduleStore struct {
	mu        sync.RWMutex
	days      map[string]*types.DailySchedule
	conflicts map[string][]types.ScheduleConflict
	tasks     TaskSync
	bus       *events.Bus
	logger    *log.Logger
}

// NewScheduleStore creates an empty schedule store.
func NewScheduleStore(config ScheduleStoreConfig) *ScheduleStore {
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[schedule] ", log.LstdFlags)
	}
	return &ScheduleStore{
		days:      make(map[string]*types.DailySchedule),
		conflicts: make(map[string][]types.ScheduleConflict),
		tasks:     config.Tasks,
		bus:       config.Bus,
		logger:    logger,
	}
}

// Day returns a deep copy of the schedule for the given date. The second
// return is false if no items exist for that date.
func (s *ScheduleStore) Day(date string) (*types.DailySchedule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day, ok := s.days[date]
	if !ok {
		return nil, false
	}
	cp := &types.DailySchedule{Date: day.Date, Stats: day.Stats}
	cp.Items = make([]*types.ScheduleItem, len(day.Items))
	for i, item := range day.Items {
		cp.Items[i] = item.Clone()
	}
	return cp, true
}

// Dates returns the dates that currently have schedule items, sorted.
func (s *ScheduleStore) Dates() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dates := make([]string, 0, len(s.days))
	for date := range s.days {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

// ItemInput is the caller-supplied portion of a new schedule item.
type ItemInput struct {
	Type      types.ItemType
	Title     string
	TaskID    string
	StartTime string
	EndTime   string
	Priority  types.Priority
}

// CreateItem validates and appends an item to the given date's schedule.
func (s *ScheduleStore) CreateItem(date string, input ItemInput) (*types.ScheduleItem, error) {
	if !types.ValidDate(date) {
		return nil, fmt.Errorf("%w: invalid date %q", ErrValidation, date)
	}

	now := time.Now()
	item := &types.ScheduleItem{
		ID:          uuid.NewString(),
		TimeBlockID: uuid.NewString(),
		TaskID:      input.TaskID,
		Type:        input.Type,
		Title:       input.Title,
		StartTime:   input.StartTime,
		EndTime:     input.EndTime,
		Status:      types.ItemPlanned,
		Priority:    input.Priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if item.Type == "" {
		item.Type = types.ItemTask
	}
	if item.Priority == "" {
		item.Priority = types.PriorityMedium
	}
	if err := item.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := item.RecomputeDuration(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	s.mu.Lock()
	day, ok := s.days[date]
	if !ok {
		day = &types.DailySchedule{Date: date}
		s.days[date] = day
	}
	day.Items = append(day.Items, item)
	day.RecomputeStats()
	s.mu.Unlock()

	return item.Clone(), nil
}

// ItemPatch carries partial schedule item fields.
type ItemPatch struct {
	Title     *string
	StartTime *string
	EndTime   *string
	Status    *types.ItemStatus
	Priority  *types.Priority
}

// UpdateItem merges the patch into the item. Duration is rederived whenever
// either endpoint changes; the day's statistics are recomputed.
func (s *ScheduleStore) UpdateItem(date, id string, patch ItemPatch) (*types.ScheduleItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, ok := s.days[date]
	if !ok {
		return nil, fmt.Errorf("schedule for %s: %w", date, ErrNotFound)
	}
	item := findItem(day, id)
	if item == nil {
		return nil, fmt.Errorf("schedule item %s: %w", id, ErrNotFound)
	}

	snapshot := item.Clone()
	if patch.Title != nil {
		item.Title = *patch.Title
	}
	if patch.StartTime != nil {
		item.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		item.EndTime = *patch.EndTime
	}
	if patch.Status != nil {
		item.Status = *patch.Status
	}
	if patch.Priority != nil {
		item.Priority = *patch.Priority
	}

	if patch.StartTime != nil || patch.EndTime != nil {
		if err := item.RecomputeDuration(); err != nil {
			*item = *snapshot
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	item.UpdatedAt = time.Now()
	day.RecomputeStats()
	return item.Clone(), nil
}

// MoveItem rewrites an item's time window. Sugar for UpdateItem with new
// start/end times.
func (s *ScheduleStore) MoveItem(date, id, newStart, newEnd string) (*types.ScheduleItem, error) {
	return s.UpdateItem(date, id, ItemPatch{StartTime: &newStart, EndTime: &newEnd})
}

// DeleteItem removes an item from the date's schedule.
func (s *ScheduleStore) DeleteItem(date, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, ok := s.days[date]
	if !ok {
		return fmt.Errorf("schedule for %s: %w", date, ErrNotFound)
	}
	for i, item := range day.Items {
		if item.ID == id {
			day.Items = append(day.Items[:i], day.Items[i+1:]...)
			day.RecomputeStats()
			return nil
		}
	}
	return fmt.Errorf("schedule item %s: %w", id, ErrNotFound)
}

// findItem returns the live item with the given ID. Caller holds the lock.
func findItem(day *types.DailySchedule, id string) *types.ScheduleItem {
	for _, item := range day.Items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

// DetectConflicts scans the date's items pairwise and replaces that date's
// conflict list with the overlaps found. Two items conflict when their
// [start,end) intervals intersect; adjacent items do not conflict.
func (s *ScheduleStore) DetectConflicts(date string) []types.ScheduleConflict {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, ok := s.days[date]
	if !ok {
		delete(s.conflicts, date)
		return nil
	}

	var found []types.ScheduleConflict
	for i := 0; i < len(day.Items); i++ {
		for j := i + 1; j < len(day.Items); j++ {
			a, b := day.Items[i], day.Items[j]
			if a.Status == types.ItemCancelled || b.Status == types.ItemCancelled {
				continue
			}
			if !a.Overlaps(b) {
				continue
			}
			found = append(found, types.ScheduleConflict{
				ID:       uuid.NewString(),
				Date:     date,
				ItemIDs:  [2]string{a.ID, b.ID},
				Severity: conflictSeverity(a, b),
				Message: fmt.Sprintf("%q (%s-%s) overlaps %q (%s-%s)",
					a.Title, a.StartTime, a.EndTime, b.Title, b.StartTime, b.EndTime),
			})
		}
	}

	// Replace, never merge: stale conflicts from earlier passes must not
	// survive a re-detection.
	if len(found) == 0 {
		delete(s.conflicts, date)
	} else {
		s.conflicts[date] = found
	}

	out := make([]types.ScheduleConflict, len(found))
	copy(out, found)
	return out
}

// conflictSeverity grades an overlap: full containment is major, partial
// overlap minor.
func conflictSeverity(a, b *types.ScheduleItem) types.ConflictSeverity {
	aStart, _ := types.ParseClock(a.StartTime)
	aEnd, _ := types.ParseClock(a.EndTime)
	bStart, _ := types.ParseClock(b.StartTime)
	bEnd, _ := types.ParseClock(b.EndTime)

	if (aStart <= bStart && bEnd <= aEnd) || (bStart <= aStart && aEnd <= bEnd) {
		return types.ConflictMajor
	}
	return types.ConflictMinor
}

// Conflicts returns the recorded conflicts for a date from the last
// detection pass.
func (s *ScheduleStore) Conflicts(date string) []types.ScheduleConflict {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.ScheduleConflict, len(s.conflicts[date]))
	copy(out, s.conflicts[date])
	return out
}

// Resolution moves one of a conflict's items to a new time window.
type Resolution struct {
	ItemID   string
	NewStart string
	NewEnd   string
}

// ResolveConflict applies the resolution to the named item and removes the
// conflict record. Detection is not re-run automatically; the caller is
// expected to invoke DetectConflicts again.
func (s *ScheduleStore) ResolveConflict(date, conflictID string, res Resolution) error {
	s.mu.Lock()
	list := s.conflicts[date]
	idx := -1
	for i, c := range list {
		if c.ID == conflictID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("conflict %s: %w", conflictID, ErrNotFound)
	}
	conflict := list[idx]
	if res.ItemID != conflict.ItemIDs[0] && res.ItemID != conflict.ItemIDs[1] {
		s.mu.Unlock()
		return fmt.Errorf("%w: item %s is not part of conflict %s", ErrValidation, res.ItemID, conflictID)
	}
	s.mu.Unlock()

	if _, err := s.MoveItem(date, res.ItemID, res.NewStart, res.NewEnd); err != nil {
		return err
	}

	s.mu.Lock()
	list = s.conflicts[date]
	for i, c := range list {
		if c.ID == conflictID {
			s.conflicts[date] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(s.conflicts[date]) == 0 {
		delete(s.conflicts, date)
	}
	s.mu.Unlock()
	return nil
}

// Slot is a concrete placement target for a task.
type Slot struct {
	Date      string
	StartTime string
	EndTime   string
}

// CreateScheduleFromTask converts a task into a schedule item in the given
// slot, then runs SyncWithTasks so the task carries the placement
// back-reference.
func (s *ScheduleStore) CreateScheduleFromTask(task *types.Task, slot Slot) (*types.ScheduleItem, error) {
	if task == nil {
		return nil, fmt.Errorf("%w: task must not be nil", ErrValidation)
	}

	item, err := s.CreateItem(slot.Date, ItemInput{
		Type:      types.ItemTask,
		Title:     task.Title,
		TaskID:    task.ID,
		StartTime: slot.StartTime,
		EndTime:   slot.EndTime,
		Priority:  task.Priority,
	})
	if err != nil {
		return nil, err
	}

	if err := s.SyncWithTasks(); err != nil {
		return nil, err
	}
	return item, nil
}

// HandleTaskDrop places an unscheduled task at the dropped time. The end
// time is derived from the task's estimate, defaulting to one hour.
func (s *ScheduleStore) HandleTaskDrop(taskID, date, startTime string) (*types.ScheduleItem, error) {
	var task *types.Task
	for _, candidate := range s.tasks.UnscheduledTasks() {
		if candidate.ID == taskID {
			task = candidate
			break
		}
	}
	if task == nil {
		return nil, fmt.Errorf("unscheduled task %s: %w", taskID, ErrNotFound)
	}

	start, err := types.ParseClock(startTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	minutes := 60
	if task.EstimatedHours > 0 {
		minutes = int(task.EstimatedHours * 60)
	}
	end := start + minutes
	if end > 24*60-1 {
		end = 24*60 - 1
	}
	endTime := fmt.Sprintf("%02d:%02d", end/60, end%60)

	return s.CreateScheduleFromTask(task, Slot{Date: date, StartTime: startTime, EndTime: endTime})
}

// SyncWithTasks is the authoritative reconciliation pass between the
// schedule map and the task store. For every task with a live scheduled
// item it pushes the placement into the task's back-reference; for every
// task whose back-reference points at an item that no longer exists it
// clears the reference. Safe to run repeatedly; a second pass over
// already-consistent state changes nothing.
func (s *ScheduleStore) SyncWithTasks() error {
	// Snapshot the item index, keyed by task ID.
	s.mu.RLock()
	placements := make(map[string]types.ScheduleInfo)
	itemIDs := make(map[string]bool)
	for date, day := range s.days {
		for _, item := range day.Items {
			itemIDs[item.ID] = true
			if item.TaskID == "" {
				continue
			}
			info := types.ScheduleInfo{
				ScheduleItemID:     item.ID,
				ScheduledDate:      date,
				ScheduledStartTime: item.StartTime,
				ScheduledEndTime:   item.EndTime,
			}
			// A task referenced by several items gets exactly one
			// back-reference: the earliest slot wins, independent of map
			// iteration order.
			if existing, ok := placements[item.TaskID]; !ok || placementBefore(info, existing) {
				placements[item.TaskID] = info
			}
		}
	}
	s.mu.RUnlock()

	pushed, cleared := 0, 0
	for _, task := range s.tasks.Tasks() {
		if info, ok := placements[task.ID]; ok {
			if task.ScheduleInfo != nil && *task.ScheduleInfo == info {
				continue
			}
			if err := s.tasks.UpdateTaskSchedule(task.ID, &info); err != nil {
				return fmt.Errorf("failed to push placement for task %s: %w", task.ID, err)
			}
			pushed++
			continue
		}
		if task.ScheduleInfo != nil && !itemIDs[task.ScheduleInfo.ScheduleItemID] {
			if err := s.tasks.ClearTaskSchedule(task.ID); err != nil {
				return fmt.Errorf("failed to clear placement for task %s: %w", task.ID, err)
			}
			cleared++
		}
	}

	if pushed > 0 || cleared > 0 {
		s.logger.Printf("Schedule sync: pushed=%d cleared=%d", pushed, cleared)
	}
	if s.bus != nil {
		s.bus.Publish(events.Event{Type: events.ScheduleSynced})
	}
	return nil
}

// placementBefore orders two placements for the same task: earlier date,
// then earlier start time, then item ID as a final tiebreaker.
func placementBefore(a, b types.ScheduleInfo) bool {
	if a.ScheduledDate != b.ScheduledDate {
		return a.ScheduledDate < b.ScheduledDate
	}
	am, aerr := types.ParseClock(a.ScheduledStartTime)
	bm, berr := types.ParseClock(b.ScheduledStartTime)
	if aerr == nil && berr == nil && am != bm {
		return am < bm
	}
	return a.ScheduleItemID < b.ScheduleItemID
}
