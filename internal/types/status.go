package types

import (
	"fmt"
	"strings"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusArchived   Status = "archived"
)

// ValidStatuses lists every status the engine accepts, in display order.
var ValidStatuses = []Status{StatusTodo, StatusInProgress, StatusDone, StatusArchived}

// NormalizeStatus converts a wire-format status into the canonical internal
// form. The backend transmits statuses in a different casing convention than
// internal state ("TODO", "In_Progress", "todo" are all accepted); internally
// only the lowercase snake form is stored.
func NormalizeStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	// Some API responses use hyphens where we use underscores.
	s = Status(strings.ReplaceAll(string(s), "-", "_"))
	for _, valid := range ValidStatuses {
		if s == valid {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

// IsValid reports whether s is one of the canonical statuses.
func (s Status) IsValid() bool {
	for _, valid := range ValidStatuses {
		if s == valid {
			return true
		}
	}
	return false
}

// Priority represents task urgency.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityUrgent   Priority = "urgent"
	PriorityCritical Priority = "critical"
)

// ValidPriorities lists every priority, lowest first.
var ValidPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent, PriorityCritical}

// NormalizePriority converts a wire-format priority into canonical form.
func NormalizePriority(raw string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	for _, valid := range ValidPriorities {
		if p == valid {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown priority %q", raw)
}

// IsValid reports whether p is one of the canonical priorities.
func (p Priority) IsValid() bool {
	for _, valid := range ValidPriorities {
		if p == valid {
			return true
		}
	}
	return false
}

// Rank returns a numeric rank for sorting (higher is more urgent).
func (p Priority) Rank() int {
	for i, valid := range ValidPriorities {
		if p == valid {
			return i
		}
	}
	return -1
}
