package integrity

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/k-iizuka000/ai-todo-sub002/internal/types"
)

// validator is one audit pass over the full task list. Validators are pure:
// they read the snapshot and emit issues, never mutate.
type validator func(tasks []*types.Task, now time.Time) []types.IntegrityIssue

func newIssue(t types.IssueType, sev types.Severity, taskID, desc string, fixable bool, action string, now time.Time) types.IntegrityIssue {
	return types.IntegrityIssue{
		ID:                uuid.NewString(),
		Type:              t,
		Severity:          sev,
		AffectedTaskID:    taskID,
		Description:       desc,
		AutoFixable:       fixable,
		RecommendedAction: action,
		DetectedAt:        now,
	}
}

// checkStructure flags tasks with missing required fields. No safe
// deterministic repair exists, so these are never auto-fixable.
func checkStructure(tasks []*types.Task, now time.Time) []types.IntegrityIssue {
	var issues []types.IntegrityIssue
	for _, task := range tasks {
		if task.ID == "" {
			issues = append(issues, newIssue(types.IssueInvalidStructure, types.SeverityCritical,
				"", "task has no id", false, "remove or recreate the task", now))
			continue
		}
		if task.Title == "" {
			issues = append(issues, newIssue(types.IssueInvalidStructure, types.SeverityHigh,
				task.ID, fmt.Sprintf("task %s has an empty title", task.ID),
				false, "edit the task and supply a title", now))
		}
		if !task.Status.IsValid() {
			issues = append(issues, newIssue(types.IssueInconsistentStatus, types.SeverityHigh,
				task.ID, fmt.Sprintf("task %s has unknown status %q", task.ID, task.Status),
				false, "set the task to a known status", now))
		}
		if !task.Priority.IsValid() {
			issues = append(issues, newIssue(types.IssueTypeViolation, types.SeverityMedium,
				task.ID, fmt.Sprintf("task %s has unknown priority %q", task.ID, task.Priority),
				false, "set the task to a known priority", now))
		}
	}
	return issues
}

// checkTagReferences flags nil tag lists and malformed embedded tag entries.
// Both have a deterministic repair (empty list, drop the entry).
func checkTagReferences(tasks []*types.Task, now time.Time) []types.IntegrityIssue {
	var issues []types.IntegrityIssue
	for _, task := range tasks {
		if task.Tags == nil {
			issues = append(issues, newIssue(types.IssueTypeViolation, types.SeverityMedium,
				task.ID, fmt.Sprintf("task %s has a nil tag list", task.ID),
				true, "replace with an empty tag list", now))
			continue
		}
		for i := range task.Tags {
			if task.Tags[i].ID == "" || task.Tags[i].Name == "" {
				issues = append(issues, newIssue(types.IssueInvalidTagReference, types.SeverityMedium,
					task.ID, fmt.Sprintf("task %s carries a malformed tag entry at position %d", task.ID, i),
					true, "drop the malformed tag entry", now))
				break
			}
		}
	}
	return issues
}

// checkTimestamps flags missing or mis-ordered timestamps. Repairs are
// deterministic: missing becomes now, and an inverted pair is collapsed so
// updatedAt matches createdAt.
func checkTimestamps(tasks []*types.Task, now time.Time) []types.IntegrityIssue {
	var issues []types.IntegrityIssue
	for _, task := range tasks {
		if task.CreatedAt.IsZero() || task.UpdatedAt.IsZero() {
			issues = append(issues, newIssue(types.IssueTimestampAnomaly, types.SeverityLow,
				task.ID, fmt.Sprintf("task %s is missing a timestamp", task.ID),
				true, "set the missing timestamp to the current time", now))
			continue
		}
		if task.CreatedAt.After(task.UpdatedAt) {
			issues = append(issues, newIssue(types.IssueTimestampAnomaly, types.SeverityLow,
				task.ID, fmt.Sprintf("task %s was created after its last update", task.ID),
				true, "align updated_at with created_at", now))
		}
	}
	return issues
}

// checkDuplicateIDs flags IDs appearing more than once across the task list.
// Never auto-fixed: there is no safe way to decide which duplicate survives.
func checkDuplicateIDs(tasks []*types.Task, now time.Time) []types.IntegrityIssue {
	seen := make(map[string]int, len(tasks))
	for _, task := range tasks {
		if task.ID != "" {
			seen[task.ID]++
		}
	}

	var issues []types.IntegrityIssue
	for _, task := range tasks {
		if seen[task.ID] > 1 {
			issues = append(issues, newIssue(types.IssueDuplicateID, types.SeverityCritical,
				task.ID, fmt.Sprintf("task id %s appears %d times", task.ID, seen[task.ID]),
				false, "reload from the backend to restore unique ids", now))
			seen[task.ID] = 1 // report each duplicate set once
		}
	}
	return issues
}

// checkSubtasks flags subtask entries missing their own identity.
func checkSubtasks(tasks []*types.Task, now time.Time) []types.IntegrityIssue {
	var issues []types.IntegrityIssue
	for _, task := range tasks {
		for i := range task.Subtasks {
			if task.Subtasks[i].ID == "" || task.Subtasks[i].Title == "" {
				issues = append(issues, newIssue(types.IssueOrphanedSubtask, types.SeverityMedium,
					task.ID, fmt.Sprintf("task %s has a malformed subtask at position %d", task.ID, i),
					false, "remove or repair the subtask entry", now))
			}
		}
	}
	return issues
}

// defaultValidators is the audit suite run every cycle, in order.
func defaultValidators() []validator {
	return []validator{
		checkStructure,
		checkTagReferences,
		checkTimestamps,
		checkDuplicateIDs,
		checkSubtasks,
	}
}

// QualityScore converts the remaining issues into a 0-100 diagnostic signal:
// 100 minus the summed severity weights, floored at 0.
func QualityScore(issues []types.IntegrityIssue) int {
	score := 100
	for _, issue := range issues {
		score -= issue.Severity.Weight()
	}
	if score < 0 {
		score = 0
	}
	return score
}
