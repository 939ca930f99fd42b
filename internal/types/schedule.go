package types

import (
	"fmt"
	"time"
)

// ItemType classifies a schedule item.
type ItemType string

const (
	ItemTask     ItemType = "task"
	ItemSubtask  ItemType = "subtask"
	ItemMeeting  ItemType = "meeting"
	ItemBreak    ItemType = "break"
	ItemPersonal ItemType = "personal"
	ItemBlocked  ItemType = "blocked"
	ItemFocus    ItemType = "focus"
	ItemReview   ItemType = "review"
)

// ItemStatus tracks a schedule item through the day.
type ItemStatus string

const (
	ItemPlanned    ItemStatus = "planned"
	ItemInProgress ItemStatus = "in_progress"
	ItemCompleted  ItemStatus = "completed"
	ItemPostponed  ItemStatus = "postponed"
	ItemCancelled  ItemStatus = "cancelled"
)

// ScheduleItem is a time block on a single day's schedule. Start and end are
// same-day HH:MM clock strings; Duration is derived and must be recomputed
// whenever either endpoint changes.
type ScheduleItem struct {
	ID          string     `json:"id"`
	TimeBlockID string     `json:"time_block_id"`
	TaskID      string     `json:"task_id,omitempty"`
	Type        ItemType   `json:"type"`
	Title       string     `json:"title"`
	StartTime   string     `json:"start_time"`
	EndTime     string     `json:"end_time"`
	Duration    int        `json:"duration"` // minutes, derived
	Status      ItemStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	Tags        []string   `json:"tags,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ParseClock parses an HH:MM string into minutes since midnight.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock time %q out of range", s)
	}
	return h*60 + m, nil
}

// RecomputeDuration rederives Duration from the start and end times.
// A zero or negative duration is a data-integrity violation.
func (si *ScheduleItem) RecomputeDuration() error {
	start, err := ParseClock(si.StartTime)
	if err != nil {
		return err
	}
	end, err := ParseClock(si.EndTime)
	if err != nil {
		return err
	}
	si.Duration = end - start
	if si.Duration <= 0 {
		return fmt.Errorf("item %s has non-positive duration (%s-%s)", si.ID, si.StartTime, si.EndTime)
	}
	return nil
}

// Overlaps reports whether two items' [start,end) intervals intersect.
// Adjacent intervals (a.end == b.start) do not overlap.
func (si *ScheduleItem) Overlaps(other *ScheduleItem) bool {
	aStart, err := ParseClock(si.StartTime)
	if err != nil {
		return false
	}
	aEnd, err := ParseClock(si.EndTime)
	if err != nil {
		return false
	}
	bStart, err := ParseClock(other.StartTime)
	if err != nil {
		return false
	}
	bEnd, err := ParseClock(other.EndTime)
	if err != nil {
		return false
	}
	return aStart < bEnd && bStart < aEnd
}

// Validate checks the item's required fields and recomputable invariants.
func (si *ScheduleItem) Validate() error {
	if si.ID == "" {
		return fmt.Errorf("id is required")
	}
	if si.Title == "" {
		return fmt.Errorf("title is required")
	}
	if si.Type == "" {
		return fmt.Errorf("type is required")
	}
	if si.Status == "" {
		return fmt.Errorf("status is required")
	}
	start, err := ParseClock(si.StartTime)
	if err != nil {
		return err
	}
	end, err := ParseClock(si.EndTime)
	if err != nil {
		return err
	}
	if end-start <= 0 {
		return fmt.Errorf("end time %s is not after start time %s", si.EndTime, si.StartTime)
	}
	return nil
}

// Clone returns a deep copy of the item.
func (si *ScheduleItem) Clone() *ScheduleItem {
	cp := *si
	if si.Tags != nil {
		cp.Tags = append([]string(nil), si.Tags...)
	}
	return &cp
}

// ScheduleStats summarizes one day's schedule.
type ScheduleStats struct {
	TotalHours      float64 `json:"total_hours"`
	UtilizationRate float64 `json:"utilization_rate"` // scheduled minutes / working day
	CompletionRate  float64 `json:"completion_rate"`  // completed items / total items
}

// DailySchedule is the ordered set of items for one calendar date
// (ISO YYYY-MM-DD) plus derived statistics. It is owned exclusively by the
// schedule store.
type DailySchedule struct {
	Date  string          `json:"date"`
	Items []*ScheduleItem `json:"items"`
	Stats ScheduleStats   `json:"stats"`
}

// workingDayMinutes is the denominator for utilization (8 hours).
const workingDayMinutes = 8 * 60

// RecomputeStats rederives the day's statistics from its items.
func (ds *DailySchedule) RecomputeStats() {
	var totalMinutes, completed int
	for _, item := range ds.Items {
		totalMinutes += item.Duration
		if item.Status == ItemCompleted {
			completed++
		}
	}
	ds.Stats.TotalHours = float64(totalMinutes) / 60
	ds.Stats.UtilizationRate = float64(totalMinutes) / workingDayMinutes
	if len(ds.Items) > 0 {
		ds.Stats.CompletionRate = float64(completed) / float64(len(ds.Items))
	} else {
		ds.Stats.CompletionRate = 0
	}
}

// ConflictSeverity grades how badly two schedule items collide.
type ConflictSeverity string

const (
	ConflictMinor ConflictSeverity = "minor" // partial overlap
	ConflictMajor ConflictSeverity = "major" // one item fully contains the other
)

// ScheduleConflict records a temporal overlap between two items on the same
// date. Conflict lists are replaced wholesale on each detection pass, never
// merged.
type ScheduleConflict struct {
	ID       string           `json:"id"`
	Date     string           `json:"date"`
	ItemIDs  [2]string        `json:"item_ids"`
	Severity ConflictSeverity `json:"severity"`
	Message  string           `json:"message"`
}

// ValidDate reports whether s is an ISO YYYY-MM-DD date string.
func ValidDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
