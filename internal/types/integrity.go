package types

import "time"

// IssueType identifies the class of integrity violation.
type IssueType string

const (
	IssueInvalidStructure    IssueType = "invalid_task_structure"
	IssueInvalidTagReference IssueType = "invalid_tag_reference"
	IssueInconsistentStatus  IssueType = "inconsistent_status"
	IssueDuplicateID         IssueType = "duplicate_id"
	IssueOrphanedSubtask     IssueType = "orphaned_subtask"
	IssueTimestampAnomaly    IssueType = "timestamp_anomaly"
	IssueMemoryGrowth        IssueType = "memory_growth"
	IssueTypeViolation       IssueType = "type_violation"
)

// Severity grades an integrity issue.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Weight returns the quality-score penalty for one issue of this severity.
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 25
	case SeverityHigh:
		return 10
	case SeverityMedium:
		return 5
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// IntegrityIssue describes one detected violation. Issues are transient:
// regenerated every monitoring cycle, consumed by the auto-fix routine or
// surfaced to the user, never persisted.
type IntegrityIssue struct {
	ID                string    `json:"id"`
	Type              IssueType `json:"type"`
	Severity          Severity  `json:"severity"`
	AffectedTaskID    string    `json:"affected_task_id,omitempty"`
	Description       string    `json:"description"`
	AutoFixable       bool      `json:"auto_fixable"`
	RecommendedAction string    `json:"recommended_action,omitempty"`
	DetectedAt        time.Time `json:"detected_at"`
}
