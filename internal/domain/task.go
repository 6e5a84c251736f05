package domain

import (
	"fmt"
	"sync"
	"time"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskProcessing TaskStatus = "PROCESSING"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskFailed     TaskStatus = "FAILED"
)

func (s TaskStatus) String() string { return string(s) }

// IsTerminal reports whether no further transitions may leave the state.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

const (
	// logCapacity bounds the stored log ring; visibleLogCount bounds
	// what status reads expose.
	logCapacity     = 20
	visibleLogCount = 10

	// estimatedSecondsPerRecord feeds the remaining-time estimate
	// surfaced on status reads.
	estimatedSecondsPerRecord = 30
)

// Task is one batch-processing run over a set of records. The owning
// worker mutates it through the methods below; everyone else reads
// point-in-time snapshots.
type Task struct {
	mu sync.RWMutex

	id          string
	affiliation AffiliationType
	affiliator  string

	status              TaskStatus
	totalRecords        int
	processedRecords    int
	successfulRecords   int
	errorRecords        int
	currentlyProcessing string
	message             string
	logs                []string
	resultPath          string

	createdAt     time.Time
	lastUpdatedAt time.Time
}

func NewTask(id string, affiliation AffiliationType, affiliator string, totalRecords int) *Task {
	now := time.Now().UTC()
	t := &Task{
		id:                  id,
		affiliation:         affiliation,
		affiliator:          affiliator,
		status:              TaskPending,
		totalRecords:        totalRecords,
		currentlyProcessing: "waiting for a worker slot",
		message:             fmt.Sprintf("task created with %d records", totalRecords),
		createdAt:           now,
		lastUpdatedAt:       now,
	}
	t.appendLogLocked(fmt.Sprintf("task created with %d records", totalRecords))
	return t
}

func (t *Task) ID() string                   { return t.id }
func (t *Task) Affiliation() AffiliationType { return t.affiliation }
func (t *Task) Affiliator() string           { return t.affiliator }

func (t *Task) Status() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// MarkProcessing transitions Pending -> Processing. Entered exactly once,
// by the task's worker.
func (t *Task) MarkProcessing() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != TaskPending {
		return fmt.Errorf("%w: cannot start task in status %s", ErrInvalidState, t.status)
	}
	t.status = TaskProcessing
	t.touchLocked()
	return nil
}

// Complete transitions Processing -> Completed and records the artifact.
func (t *Task) Complete(resultPath, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != TaskProcessing {
		return fmt.Errorf("%w: cannot complete task in status %s", ErrInvalidState, t.status)
	}
	t.status = TaskCompleted
	t.resultPath = resultPath
	t.message = message
	t.currentlyProcessing = "processing finished"
	t.touchLocked()
	return nil
}

// Fail transitions the task to Failed with a descriptive message. Allowed
// from Pending as well, so a worker that never starts can still report.
func (t *Task) Fail(message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.IsTerminal() {
		return fmt.Errorf("%w: cannot fail task in status %s", ErrInvalidState, t.status)
	}
	t.status = TaskFailed
	t.message = message
	t.currentlyProcessing = "processing aborted"
	t.touchLocked()
	return nil
}

// RecordProcessed advances the counters after one record's pipeline run.
func (t *Task) RecordProcessed(success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processedRecords++
	if success {
		t.successfulRecords++
	} else {
		t.errorRecords++
	}
	t.touchLocked()
}

func (t *Task) SetCurrentlyProcessing(descriptor string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentlyProcessing = descriptor
	t.touchLocked()
}

// AppendLog stores a timestamped log line, evicting the oldest entries
// beyond the ring capacity.
func (t *Task) AppendLog(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.appendLogLocked(message)
	t.touchLocked()
}

func (t *Task) appendLogLocked(message string) {
	line := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), message)
	t.logs = append(t.logs, line)
	if len(t.logs) > logCapacity {
		t.logs = t.logs[len(t.logs)-logCapacity:]
	}
}

func (t *Task) touchLocked() {
	t.lastUpdatedAt = time.Now().UTC()
}

// ResultPath returns the artifact location, empty until completion.
func (t *Task) ResultPath() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.resultPath
}

// StoredLogCount exposes the ring occupancy for tests and diagnostics.
func (t *Task) StoredLogCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.logs)
}

// TaskSnapshot is an immutable view of a task, safe to hand to callers.
type TaskSnapshot struct {
	ID                        string
	Status                    TaskStatus
	Affiliation               AffiliationType
	Affiliator                string
	TotalRecords              int
	ProcessedRecords          int
	SuccessfulRecords         int
	ErrorRecords              int
	ProgressPercent           int
	SuccessRate               float64
	RemainingRecords          int
	EstimatedRemainingMinutes float64
	CurrentlyProcessing       string
	Message                   string
	Logs                      []string
	ResultPath                string
	CreatedAt                 time.Time
	LastUpdatedAt             time.Time
}

// Snapshot copies the task state under the read lock, computing the
// derived progress figures.
func (t *Task) Snapshot() TaskSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	progress := 0
	if t.totalRecords > 0 {
		progress = int(float64(t.processedRecords) / float64(t.totalRecords) * 100)
	}
	if t.status == TaskCompleted {
		progress = 100
	}

	successRate := 0.0
	if t.processedRecords > 0 {
		successRate = float64(t.successfulRecords) / float64(t.processedRecords) * 100
	}

	remaining := t.totalRecords - t.processedRecords
	if remaining < 0 {
		remaining = 0
	}

	logs := t.logs
	if len(logs) > visibleLogCount {
		logs = logs[len(logs)-visibleLogCount:]
	}
	visible := make([]string, len(logs))
	copy(visible, logs)

	return TaskSnapshot{
		ID:                        t.id,
		Status:                    t.status,
		Affiliation:               t.affiliation,
		Affiliator:                t.affiliator,
		TotalRecords:              t.totalRecords,
		ProcessedRecords:          t.processedRecords,
		SuccessfulRecords:         t.successfulRecords,
		ErrorRecords:              t.errorRecords,
		ProgressPercent:           progress,
		SuccessRate:               successRate,
		RemainingRecords:          remaining,
		EstimatedRemainingMinutes: float64(remaining*estimatedSecondsPerRecord) / 60,
		CurrentlyProcessing:       t.currentlyProcessing,
		Message:                   t.message,
		Logs:                      visible,
		ResultPath:                t.resultPath,
		CreatedAt:                 t.createdAt,
		LastUpdatedAt:             t.lastUpdatedAt,
	}
}
