// Package integrity implements the background monitor that periodically
// audits the task store's in-memory data and repairs what it safely can.
//
// Each cycle runs a fixed suite of validators over a task snapshot, applies
// the narrow deterministic fixes when auto-fix is enabled, and condenses the
// remainder into a report with a 0-100 quality score. Structural damage and
// duplicate ids are always surfaced, never repaired.
package integrity

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/k-iizuka000/ai-todo-sub002/internal/events"
	"github.com/k-iizuka000/ai-todo-sub002/internal/types"
)

// TaskSource is the slice of the task store the monitor reads from and
// repairs through.
type TaskSource interface {
	Tasks() []*types.Task
	ApplyFix(taskID string, fix func(*types.Task) bool) bool
}

// State names the monitor's position in its cycle.
type State int32

const (
	StateIdle State = iota
	StateChecking
	StateRepairing
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChecking:
		return "checking"
	case StateRepairing:
		return "repairing"
	default:
		return "unknown"
	}
}

const (
	defaultInterval              = 30 * time.Second
	defaultMemoryWindow          = 10
	defaultMemoryGrowthThreshold = 0.20
)

// Config configures a Monitor.
type Config struct {
	Tasks TaskSource

	// Bus, if set, receives an integrity-report event after every cycle.
	Bus *events.Bus

	// Interval between cycles (default 30s).
	Interval time.Duration

	// AutoFix enables the deterministic repair pass.
	AutoFix bool

	// MemoryWindow and MemoryGrowthThreshold tune the leak heuristic.
	MemoryWindow          int
	MemoryGrowthThreshold float64

	Logger *log.Logger
}

// Report summarizes one monitoring cycle.
type Report struct {
	CheckedAt    time.Time              `json:"checked_at"`
	TasksChecked int                    `json:"tasks_checked"`
	Issues       []types.IntegrityIssue `json:"issues"`
	FixedCount   int                    `json:"fixed_count"`
	QualityScore int                    `json:"quality_score"`
	State        string                 `json:"state"`
}

// Monitor owns the audit loop. Start launches it; Stop tears it down and is
// mandatory and idempotent. RunOnce drives a single cycle synchronously.
type Monitor struct {
	tasks      TaskSource
	bus        *events.Bus
	interval   time.Duration
	autoFix    bool
	validators []validator
	mem        *memSampler
	logger     *log.Logger

	mu         sync.Mutex
	state      State
	lastReport *Report
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewMonitor creates a stopped monitor.
func NewMonitor(config Config) *Monitor {
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[monitor] ", log.LstdFlags)
	}
	interval := config.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Monitor{
		tasks:      config.Tasks,
		bus:        config.Bus,
		interval:   interval,
		autoFix:    config.AutoFix,
		validators: defaultValidators(),
		mem:        newMemSampler(config.MemoryWindow, config.MemoryGrowthThreshold),
		logger:     logger,
	}
}

// Start launches the periodic loop. Calling Start on a running monitor is a
// no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	go m.loop(ctx)
	m.logger.Printf("Integrity monitor started (interval %s, autofix %t)", m.interval, m.autoFix)
}

// Stop cancels the loop and waits for the in-flight cycle to finish.
// Idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	m.wg.Wait()
	m.logger.Printf("Integrity monitor stopped")
}

// State returns the monitor's current position in its cycle.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastReport returns the most recent cycle's report, nil before the first
// cycle completes.
func (m *Monitor) LastReport() *Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastReport == nil {
		return nil
	}
	cp := *m.lastReport
	cp.Issues = append([]types.IntegrityIssue(nil), m.lastReport.Issues...)
	return &cp
}

// SetAutoFix toggles the repair pass for subsequent cycles.
func (m *Monitor) SetAutoFix(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoFix = enabled
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RunOnce()
		}
	}
}

// RunOnce drives a single Idle -> Checking -> (Repairing) -> Idle cycle and
// returns its report. Safe to call while the loop is running; cycles are
// serialized.
func (m *Monitor) RunOnce() Report {
	m.mu.Lock()
	if m.state != StateIdle {
		// A cycle is already in flight; return its predecessor's view.
		var last Report
		if m.lastReport != nil {
			last = *m.lastReport
		}
		m.mu.Unlock()
		return last
	}
	m.state = StateChecking
	autoFix := m.autoFix
	m.mu.Unlock()

	now := time.Now()
	snapshot := m.tasks.Tasks()
	issues := m.runValidators(snapshot, now)
	if memIssue := m.sampleMemory(now); memIssue != nil {
		issues = append(issues, *memIssue)
	}

	fixed := 0
	if autoFix && anyFixable(issues) {
		m.mu.Lock()
		m.state = StateRepairing
		m.mu.Unlock()

		remaining := issues[:0]
		for _, issue := range issues {
			if issue.AutoFixable && m.applyFix(issue) {
				fixed++
				continue
			}
			remaining = append(remaining, issue)
		}
		issues = remaining
	}

	report := Report{
		CheckedAt:    now,
		TasksChecked: len(snapshot),
		Issues:       issues,
		FixedCount:   fixed,
		QualityScore: QualityScore(issues),
		State:        StateIdle.String(),
	}

	m.mu.Lock()
	m.state = StateIdle
	m.lastReport = &report
	m.mu.Unlock()

	if len(issues) > 0 || fixed > 0 {
		m.logger.Printf("Integrity cycle: %d tasks, %d issues remain, %d fixed, score %d",
			report.TasksChecked, len(issues), fixed, report.QualityScore)
	}
	if m.bus != nil {
		m.bus.Publish(events.Event{Type: events.IntegrityReport, Issues: issues})
	}
	return report
}

func (m *Monitor) runValidators(tasks []*types.Task, now time.Time) []types.IntegrityIssue {
	var issues []types.IntegrityIssue
	for _, v := range m.validators {
		issues = append(issues, v(tasks, now)...)
	}
	return issues
}

// sampleMemory is guarded by the monitor lock since the sampler keeps state
// across cycles.
func (m *Monitor) sampleMemory(now time.Time) *types.IntegrityIssue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mem.sample(now)
}

func anyFixable(issues []types.IntegrityIssue) bool {
	for _, issue := range issues {
		if issue.AutoFixable {
			return true
		}
	}
	return false
}

// FixIssue applies the deterministic repair for a single issue on demand,
// outside the timer loop. Returns an error for issue classes that have no
// safe repair.
func (m *Monitor) FixIssue(issue types.IntegrityIssue) error {
	if !issue.AutoFixable {
		return fmt.Errorf("issue %s (%s) has no automatic fix", issue.ID, issue.Type)
	}
	if !m.applyFix(issue) {
		return fmt.Errorf("issue %s: affected task %s no longer exists or is already repaired",
			issue.ID, issue.AffectedTaskID)
	}
	return nil
}

// applyFix routes an issue to its repair function. Fixes run in place
// through the task source and report whether they changed anything.
func (m *Monitor) applyFix(issue types.IntegrityIssue) bool {
	switch issue.Type {
	case types.IssueTypeViolation:
		return m.tasks.ApplyFix(issue.AffectedTaskID, func(task *types.Task) bool {
			if task.Tags != nil {
				return false
			}
			task.Tags = []types.Tag{}
			return true
		})
	case types.IssueInvalidTagReference:
		return m.tasks.ApplyFix(issue.AffectedTaskID, func(task *types.Task) bool {
			kept := task.Tags[:0]
			dropped := false
			for _, tg := range task.Tags {
				if tg.ID == "" || tg.Name == "" {
					dropped = true
					continue
				}
				kept = append(kept, tg)
			}
			task.Tags = kept
			return dropped
		})
	case types.IssueTimestampAnomaly:
		return m.tasks.ApplyFix(issue.AffectedTaskID, func(task *types.Task) bool {
			changed := false
			now := time.Now()
			if task.CreatedAt.IsZero() {
				task.CreatedAt = now
				changed = true
			}
			if task.UpdatedAt.IsZero() {
				task.UpdatedAt = now
				changed = true
			}
			if task.CreatedAt.After(task.UpdatedAt) {
				task.UpdatedAt = task.CreatedAt
				changed = true
			}
			return changed
		})
	default:
		return false
	}
}
