package store

import (
	"errors"
	"sync"
	"time"
)

// Sentinel errors for precondition failures. These are detected locally,
// before any network call; the backend may redundantly reject the same
// operation, and both paths surface the same user-facing message.
var (
	// ErrValidation marks input rejected before any network call.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an operation against an unknown entity.
	ErrNotFound = errors.New("not found")

	// ErrTagInUse marks a tag deletion blocked by live task references.
	ErrTagInUse = errors.New("tag is in use")

	// ErrProjectHasTasks marks a project deletion blocked by active tasks.
	ErrProjectHasTasks = errors.New("project has active tasks")
)

// errorSurface is the user-visible error slot each store carries. Failures
// are translated into a message string; the message auto-clears after a
// fixed delay or on the next successful operation.
type errorSurface struct {
	mu    sync.Mutex
	msg   string
	timer *time.Timer
	delay time.Duration
}

// defaultErrorClearDelay matches the UI banner's dismiss timing.
const defaultErrorClearDelay = 5 * time.Second

func newErrorSurface(delay time.Duration) *errorSurface {
	if delay <= 0 {
		delay = defaultErrorClearDelay
	}
	return &errorSurface{delay: delay}
}

// set records the message and arms the auto-clear timer.
func (es *errorSurface) set(msg string) {
	es.mu.Lock()
	defer es.mu.Unlock()

	es.msg = msg
	if es.timer != nil {
		es.timer.Stop()
	}
	es.timer = time.AfterFunc(es.delay, es.clear)
}

// clear empties the slot. Called on success and by the auto-clear timer.
func (es *errorSurface) clear() {
	es.mu.Lock()
	defer es.mu.Unlock()

	es.msg = ""
	if es.timer != nil {
		es.timer.Stop()
		es.timer = nil
	}
}

// message returns the current error message, empty if none.
func (es *errorSurface) message() string {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.msg
}

// stop disarms the timer. Called on store teardown.
func (es *errorSurface) stop() {
	es.mu.Lock()
	defer es.mu.Unlock()
	if es.timer != nil {
		es.timer.Stop()
		es.timer = nil
	}
}
