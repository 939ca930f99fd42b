package store

// OpState tracks an optimistic mutation through its lifecycle.
type OpState int

const (
	// OpPending means the local mutation is applied but not yet confirmed.
	OpPending OpState = iota
	// OpCommitted means the server accepted the mutation.
	OpCommitted
	// OpRolledBack means the server rejected the mutation and the snapshot
	// was restored.
	OpRolledBack
)

// String returns a human-readable state name.
func (s OpState) String() string {
	switch s {
	case OpPending:
		return "pending"
	case OpCommitted:
		return "committed"
	case OpRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// op is one optimistic update: the local mutation has already been applied
// when the op is begun, and restore undoes it. The three-state lifecycle
// (Pending, then exactly one of Committed or RolledBack) replaces ad hoc
// snapshot variables so every store mutation follows the same shape.
//
// The caller must hold the owning store's lock when calling rollback, since
// restore writes store state.
type op struct {
	state   OpState
	restore func()
}

// beginOp starts a pending operation with the given restore action.
func beginOp(restore func()) *op {
	return &op{state: OpPending, restore: restore}
}

// commit marks the server-confirmed outcome. No-op unless pending.
func (o *op) commit() {
	if o.state == OpPending {
		o.state = OpCommitted
	}
}

// rollback restores the snapshot. No-op unless pending.
func (o *op) rollback() {
	if o.state != OpPending {
		return
	}
	o.state = OpRolledBack
	o.restore()
}
