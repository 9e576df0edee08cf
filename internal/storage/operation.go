package storage

import (
	"math"
	"sync"
	"sync/atomic"
)

// OperationStatus is the lifecycle state of an async operation.
type OperationStatus int32

const (
	StatusPending OperationStatus = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusCancelled
)

// String returns the lowercase name of the status.
func (s OperationStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is absorbing.
func (s OperationStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// OperationCallback receives the operation being tracked. Callbacks run on
// the worker goroutine executing the operation; callers that need to touch
// single-goroutine state must marshal back themselves.
type OperationCallback func(*Operation)

// Operation tracks one async operation's progress. Exactly one worker
// mutates status, progress, and counters; Cancel may be called from any
// goroutine. All accessors are safe for concurrent use.
type Operation struct {
	id          string
	description string

	status         atomic.Int32
	progressBits   atomic.Uint64
	totalItems     atomic.Int64
	completedItems atomic.Int64
	cancelled      atomic.Bool

	mu     sync.Mutex
	errMsg string
}

func newOperation(id, description string) *Operation {
	return &Operation{id: id, description: description}
}

// ID returns the process-unique operation identifier.
func (op *Operation) ID() string { return op.id }

// Description returns the human-readable operation label.
func (op *Operation) Description() string { return op.description }

// Status returns the current lifecycle state.
func (op *Operation) Status() OperationStatus {
	return OperationStatus(op.status.Load())
}

// Progress returns the fraction complete in [0, 1]. Monotonically
// non-decreasing until a terminal state.
func (op *Operation) Progress() float64 {
	return math.Float64frombits(op.progressBits.Load())
}

// TotalItems returns the operation-specific total: object count for delete
// and empty-bucket, byte count for upload and download.
func (op *Operation) TotalItems() int64 { return op.totalItems.Load() }

// CompletedItems returns the cumulative completed count in the same unit as
// TotalItems.
func (op *Operation) CompletedItems() int64 { return op.completedItems.Load() }

// Err returns the failure message. Non-empty iff the status is failed.
func (op *Operation) Err() string {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.errMsg
}

// Cancel requests cooperative cancellation. Idempotent; safe from any
// goroutine. The worker observes the flag at its next checkpoint.
func (op *Operation) Cancel() {
	op.cancelled.Store(true)
}

// CancelRequested reports whether cancellation has been requested.
func (op *Operation) CancelRequested() bool {
	return op.cancelled.Load()
}

// setStatus transitions the lifecycle state. Terminal states are absorbing.
func (op *Operation) setStatus(s OperationStatus) {
	for {
		cur := op.status.Load()
		if OperationStatus(cur).Terminal() {
			return
		}
		if op.status.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

// setProgress stores a new progress value, clamped to [0, 1] and never
// below the current value.
func (op *Operation) setProgress(p float64) {
	if p < 0 || math.IsNaN(p) {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	for {
		cur := op.progressBits.Load()
		if math.Float64frombits(cur) >= p {
			return
		}
		if op.progressBits.CompareAndSwap(cur, math.Float64bits(p)) {
			return
		}
	}
}

func (op *Operation) setTotal(n int64) {
	op.totalItems.Store(n)
}

func (op *Operation) addCompleted(n int64) int64 {
	return op.completedItems.Add(n)
}

// complete marks the operation Completed and forces progress to 1.0.
func (op *Operation) complete() {
	op.setStatus(StatusCompleted)
	op.setProgress(1.0)
}

// fail marks the operation Failed and records the error description.
func (op *Operation) fail(err error) {
	op.mu.Lock()
	op.errMsg = err.Error()
	op.mu.Unlock()
	op.setStatus(StatusFailed)
}
