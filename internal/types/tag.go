package types

import (
	"fmt"
	"strings"
	"time"
)

// Tag labels tasks for filtering and grouping.
//
// UsageCount is a denormalized cache of how many live tasks reference the
// tag. It is recomputed by the tag store's reconciliation pass and must
// never be treated as a source of truth; deletion guards query the task
// store directly instead.
type Tag struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Color      string     `json:"color"`
	UsageCount int        `json:"usage_count"`
	LastUsed   *time.Time `json:"last_used,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Validate checks the tag's required fields.
func (tg *Tag) Validate() error {
	if tg.ID == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(tg.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if tg.UsageCount < 0 {
		return fmt.Errorf("usage_count must not be negative (got %d)", tg.UsageCount)
	}
	return nil
}

// NormalizedName returns the case-insensitive lookup key for the tag name.
func (tg *Tag) NormalizedName() string {
	return strings.ToLower(strings.TrimSpace(tg.Name))
}

// Clone returns a deep copy of the tag.
func (tg *Tag) Clone() *Tag {
	cp := *tg
	if tg.LastUsed != nil {
		lu := *tg.LastUsed
		cp.LastUsed = &lu
	}
	return &cp
}
