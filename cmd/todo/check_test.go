package main

import (
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/k-iizuka000/ai-todo-sub002/internal/integrity"
	"github.com/k-iizuka000/ai-todo-sub002/internal/types"
)

func TestWriteYAMLUsesWireFieldNames(t *testing.T) {
	report := integrity.Report{
		CheckedAt:    time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
		TasksChecked: 4,
		QualityScore: 90,
		State:        "idle",
		Issues: []types.IntegrityIssue{
			{ID: "i1", Type: types.IssueTimestampAnomaly, Severity: types.SeverityLow},
		},
	}

	var buf strings.Builder
	if err := writeYAML(&buf, report); err != nil {
		t.Fatalf("writeYAML() error = %v", err)
	}
	out := buf.String()

	for _, key := range []string{"checked_at", "tasks_checked", "quality_score", "issues"} {
		if !strings.Contains(out, key) {
			t.Errorf("output missing key %q:\n%s", key, out)
		}
	}

	var decoded map[string]any
	if err := yaml.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if decoded["quality_score"] != 90 {
		t.Errorf("quality_score = %v, want 90", decoded["quality_score"])
	}
}
