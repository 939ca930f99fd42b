package store

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/k-iizuka000/ai-todo-sub002/internal/events"
	"github.com/k-iizuka000/ai-todo-sub002/internal/types"
)

// TagAPI is the slice of the REST client the tag store needs.
type TagAPI interface {
	ListTags(ctx context.Context) ([]*types.Tag, error)
	CreateTag(ctx context.Context, tag *types.Tag) (*types.Tag, error)
	UpdateTag(ctx context.Context, id string, tag *types.Tag) (*types.Tag, error)
	DeleteTag(ctx context.Context, id string) error
}

// TaskCounter is the narrow pull interface into the task store. The tag
// store consults it for live reference counts: the delete guard and usage
// reconciliation both read the task list directly rather than trusting the
// cached usage counters.
type TaskCounter interface {
	TagRelatedTaskCount(tagID string) int
}

// TagStoreConfig configures a TagStore.
type TagStoreConfig struct {
	API             TagAPI
	Bus             *events.Bus
	Tasks           TaskCounter
	ErrorClearDelay time.Duration
	Logger          *log.Logger
}

// TagStore owns tags and their denormalized usage counters.
type TagStore struct {
	mu     sync.RWMutex
	tags   []*types.Tag
	api    TagAPI
	bus    *events.Bus
	tasks  TaskCounter
	logger *log.Logger
	errs   *errorSurface
}

// NewTagStore creates a tag store.
func NewTagStore(config TagStoreConfig) *TagStore {
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[tags] ", log.LstdFlags)
	}
	return &TagStore{
		api:    config.API,
		bus:    config.Bus,
		tasks:  config.Tasks,
		logger: logger,
		errs:   newErrorSurface(config.ErrorClearDelay),
	}
}

// Close disarms timers. Idempotent.
func (s *TagStore) Close() {
	s.errs.stop()
}

// LastError returns the current user-visible error message, empty if none.
func (s *TagStore) LastError() string {
	return s.errs.message()
}

// Load replaces the in-memory list with the backend's current tag set.
func (s *TagStore) Load(ctx context.Context) error {
	tags, err := s.api.ListTags(ctx)
	if err != nil {
		s.errs.set(fmt.Sprintf("failed to load tags: %v", err))
		return err
	}

	s.mu.Lock()
	s.tags = tags
	s.mu.Unlock()

	s.errs.clear()
	s.logger.Printf("Loaded %d tags", len(tags))
	return nil
}

// Tags returns a deep copy of the current tag list.
func (s *TagStore) Tags() []*types.Tag {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Tag, len(s.tags))
	for i, tg := range s.tags {
		out[i] = tg.Clone()
	}
	return out
}

// Get returns a copy of the tag with the given ID.
func (s *TagStore) Get(id string) (*types.Tag, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.tags[i].Clone(), true
	}
	return nil, false
}

// FindByName looks a tag up by name, case-insensitively.
func (s *TagStore) FindByName(name string) (*types.Tag, bool) {
	key := strings.ToLower(strings.TrimSpace(name))

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tg := range s.tags {
		if tg.NormalizedName() == key {
			return tg.Clone(), true
		}
	}
	return nil, false
}

// indexOf returns the position of the tag with the given ID, or -1.
// Caller holds the lock.
func (s *TagStore) indexOf(id string) int {
	for i, tg := range s.tags {
		if tg.ID == id {
			return i
		}
	}
	return -1
}

// TagInput is the caller-supplied portion of a new tag.
type TagInput struct {
	Name  string
	Color string
}

// AddTag validates the input and creates the tag on the backend with an
// optimistic placeholder. Tag names are unique case-insensitively.
func (s *TagStore) AddTag(ctx context.Context, input TagInput) (*types.Tag, error) {
	if strings.TrimSpace(input.Name) == "" {
		err := fmt.Errorf("%w: tag name must not be empty", ErrValidation)
		s.errs.set(err.Error())
		return nil, err
	}
	if _, exists := s.FindByName(input.Name); exists {
		err := fmt.Errorf("%w: tag %q already exists", ErrValidation, input.Name)
		s.errs.set(err.Error())
		return nil, err
	}

	now := time.Now()
	tag := &types.Tag{
		ID:        "local-" + uuid.NewString(),
		Name:      strings.TrimSpace(input.Name),
		Color:     input.Color,
		CreatedAt: now,
		UpdatedAt: now,
	}

	localID := tag.ID
	s.mu.Lock()
	s.tags = append(s.tags, tag)
	mutation := beginOp(func() {
		if i := s.indexOf(localID); i >= 0 {
			s.tags = append(s.tags[:i], s.tags[i+1:]...)
		}
	})
	s.mu.Unlock()

	created, err := s.api.CreateTag(ctx, tag)
	if err != nil {
		s.mu.Lock()
		mutation.rollback()
		s.mu.Unlock()
		s.errs.set(fmt.Sprintf("failed to create tag: %v", err))
		return nil, err
	}

	s.mu.Lock()
	if i := s.indexOf(localID); i >= 0 {
		s.tags[i] = created
	} else {
		s.tags = append(s.tags, created)
	}
	mutation.commit()
	s.mu.Unlock()

	s.errs.clear()
	return created.Clone(), nil
}

// TagPatch carries partial tag fields.
type TagPatch struct {
	Name  *string
	Color *string
}

// UpdateTag merges the patch optimistically and pushes it to the backend.
// On success a tag-updated event notifies the task store so embedded tag
// copies stay consistent with the tag's new identity.
func (s *TagStore) UpdateTag(ctx context.Context, id string, patch TagPatch) (*types.Tag, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		err := fmt.Errorf("%w: tag name must not be empty", ErrValidation)
		s.errs.set(err.Error())
		return nil, err
	}

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		err := fmt.Errorf("tag %s: %w", id, ErrNotFound)
		s.errs.set(err.Error())
		return nil, err
	}
	snapshot := s.tags[i].Clone()
	if patch.Name != nil {
		s.tags[i].Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Color != nil {
		s.tags[i].Color = *patch.Color
	}
	s.tags[i].UpdatedAt = time.Now()
	merged := s.tags[i].Clone()
	mutation := beginOp(func() {
		if j := s.indexOf(id); j >= 0 {
			s.tags[j] = snapshot
		}
	})
	s.mu.Unlock()

	updated, err := s.api.UpdateTag(ctx, id, merged)
	if err != nil {
		s.mu.Lock()
		mutation.rollback()
		s.mu.Unlock()
		s.errs.set(fmt.Sprintf("failed to update tag: %v", err))
		return nil, err
	}

	s.mu.Lock()
	if j := s.indexOf(id); j >= 0 {
		s.tags[j] = updated
	}
	mutation.commit()
	s.mu.Unlock()

	s.errs.clear()
	if s.bus != nil {
		s.bus.Publish(events.Event{Type: events.TagUpdated, TagID: id, Tag: updated.Clone()})
	}
	return updated.Clone(), nil
}

// GetTagRelatedTaskCount returns the live count of tasks referencing the
// tag, queried from the task store.
func (s *TagStore) GetTagRelatedTaskCount(id string) int {
	if s.tasks == nil {
		return 0
	}
	return s.tasks.TagRelatedTaskCount(id)
}

// TagUsage is the result of a usage query.
type TagUsage struct {
	IsUsed    bool
	TaskCount int
}

// CheckTagUsage reports whether any live task references the tag. Used by
// the UI to disable delete buttons and internally by the delete guard.
func (s *TagStore) CheckTagUsage(id string) TagUsage {
	count := s.GetTagRelatedTaskCount(id)
	return TagUsage{IsUsed: count > 0, TaskCount: count}
}

// DeleteTag removes a tag. Deletion is refused while live tasks still
// reference the tag; the guard queries the task store's current state, not
// the cached usage counter.
//
// The check and the delete are not atomic: a task could adopt the tag while
// the delete request is in flight. The backend enforces the same constraint
// authoritatively and both rejection paths produce the same message.
func (s *TagStore) DeleteTag(ctx context.Context, id string) error {
	usage := s.CheckTagUsage(id)
	if usage.IsUsed {
		err := fmt.Errorf("%w: %d related task(s)", ErrTagInUse, usage.TaskCount)
		s.errs.set(err.Error())
		return err
	}

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		err := fmt.Errorf("tag %s: %w", id, ErrNotFound)
		s.errs.set(err.Error())
		return err
	}
	removed := s.tags[i]
	position := i
	s.tags = append(s.tags[:i], s.tags[i+1:]...)
	mutation := beginOp(func() {
		if position > len(s.tags) {
			position = len(s.tags)
		}
		s.tags = append(s.tags[:position], append([]*types.Tag{removed}, s.tags[position:]...)...)
	})
	s.mu.Unlock()

	if err := s.api.DeleteTag(ctx, id); err != nil {
		s.mu.Lock()
		mutation.rollback()
		s.mu.Unlock()
		s.errs.set(fmt.Sprintf("failed to delete tag: %v", err))
		return err
	}

	s.mu.Lock()
	mutation.commit()
	s.mu.Unlock()

	s.errs.clear()
	if s.bus != nil {
		s.bus.Publish(events.Event{Type: events.TagDeleted, TagID: id})
	}
	return nil
}

// UpdateTagUsageStatistics recomputes every tag's denormalized usage
// counter from the task store's live state. The counters are a materialized
// view; this reconciliation pass is the only place they are written.
// Returns true if any counter actually changed, so callers can skip
// redundant downstream updates.
func (s *TagStore) UpdateTagUsageStatistics() bool {
	if s.tasks == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for _, tg := range s.tags {
		count := s.tasks.TagRelatedTaskCount(tg.ID)
		if tg.UsageCount != count {
			tg.UsageCount = count
			changed = true
		}
	}
	if changed {
		s.logger.Printf("Usage counters reconciled across %d tags", len(s.tags))
	}
	return changed
}
