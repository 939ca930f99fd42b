// Package events provides the in-process event bus that connects the stores.
//
// Cross-store effects are push-based: the tag store publishes tag-updated and
// tag-deleted events and the task store subscribes, instead of holding a
// direct reference to the task store. This keeps initialization acyclic and
// makes the notification path testable in isolation.
//
// Dispatch is synchronous: Publish invokes every matching handler before
// returning, so a caller observes all cross-store effects of its own
// mutation. Handlers must not publish recursively to the same type.
package events

import (
	"sync"
	"time"

	"github.com/k-iizuka000/ai-todo-sub002/internal/types"
)

// Type identifies the kind of event on the bus.
type Type string

const (
	// TagUpdated fires after a tag rename/recolor commits.
	TagUpdated Type = "tag_updated"

	// TagDeleted fires after a tag deletion commits.
	TagDeleted Type = "tag_deleted"

	// TaskChanged fires after any task mutation commits.
	TaskChanged Type = "task_changed"

	// ProjectDeleted fires after a project deletion commits; the task store
	// applies the local side of the backend's cascade delete.
	ProjectDeleted Type = "project_deleted"

	// ScheduleSynced fires after a schedule-to-task reconciliation pass.
	ScheduleSynced Type = "schedule_synced"

	// IntegrityReport fires after each integrity monitoring cycle.
	IntegrityReport Type = "integrity_report"
)

// Event is the payload delivered to subscribers. Only the fields relevant to
// the event type are populated.
type Event struct {
	Type Type
	Time time.Time

	// TagID and Tag are set for TagUpdated (Tag is the post-update value)
	// and TagDeleted (Tag is nil).
	TagID string
	Tag   *types.Tag

	// TaskID and Action are set for TaskChanged.
	TaskID string
	Action string // created, updated, deleted

	// ProjectID is set for ProjectDeleted.
	ProjectID string

	// Issues is set for IntegrityReport.
	Issues []types.IntegrityIssue
}

// Handler consumes one event.
type Handler func(Event)

// Bus is a topic-keyed set of subscribers. The zero value is not usable;
// call NewBus.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[Type]map[int]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Type]map[int]Handler),
	}
}

// Subscribe registers a handler for the given event type and returns an
// unsubscribe function. Unsubscribing twice is a no-op.
func (b *Bus) Subscribe(t Type, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[t] == nil {
		b.handlers[t] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.handlers[t][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[t], id)
	}
}

// Publish delivers the event to every subscriber of its type synchronously.
// Delivery order between subscribers is unspecified. The event's Time is
// stamped if unset.
func (b *Bus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[ev.Type]))
	for _, h := range b.handlers[ev.Type] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	// Dispatch outside the lock so handlers may subscribe/unsubscribe.
	for _, h := range handlers {
		h(ev)
	}
}

// SubscriberCount returns the number of live subscribers for a type.
func (b *Bus) SubscriberCount(t Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[t])
}
