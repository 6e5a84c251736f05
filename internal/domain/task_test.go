package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestTaskStateMachine_HappyPath(t *testing.T) {
	t.Parallel()

	task := NewTask("t1", AffiliationExpress, "Ana", 3)
	if got := task.Status(); got != TaskPending {
		t.Fatalf("initial status = %s, want PENDING", got)
	}

	if err := task.MarkProcessing(); err != nil {
		t.Fatalf("MarkProcessing() error = %v", err)
	}
	if got := task.Status(); got != TaskProcessing {
		t.Fatalf("status = %s, want PROCESSING", got)
	}

	if err := task.Complete("results.xlsx", "done"); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got := task.Status(); got != TaskCompleted {
		t.Fatalf("status = %s, want COMPLETED", got)
	}
	if got := task.ResultPath(); got != "results.xlsx" {
		t.Fatalf("result path = %q, want results.xlsx", got)
	}
}

func TestTaskStateMachine_InvalidTransitions(t *testing.T) {
	t.Parallel()

	task := NewTask("t1", AffiliationJunior, "Ana", 1)

	if err := task.Complete("x", "x"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Complete() from PENDING error = %v, want ErrInvalidState", err)
	}

	if err := task.MarkProcessing(); err != nil {
		t.Fatalf("MarkProcessing() error = %v", err)
	}
	if err := task.MarkProcessing(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second MarkProcessing() error = %v, want ErrInvalidState", err)
	}

	if err := task.Fail("boom"); err != nil {
		t.Fatalf("Fail() error = %v", err)
	}
	if err := task.Complete("x", "x"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Complete() from FAILED error = %v, want ErrInvalidState", err)
	}
	if err := task.Fail("again"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Fail() from FAILED error = %v, want ErrInvalidState", err)
	}
}

func TestTaskCounters_Invariant(t *testing.T) {
	t.Parallel()

	task := NewTask("t1", AffiliationExpress, "Ana", 10)
	if err := task.MarkProcessing(); err != nil {
		t.Fatalf("MarkProcessing() error = %v", err)
	}

	for i := 0; i < 7; i++ {
		task.RecordProcessed(i%2 == 0)

		snap := task.Snapshot()
		if snap.ProcessedRecords != snap.SuccessfulRecords+snap.ErrorRecords {
			t.Fatalf("processed = %d, successful+error = %d",
				snap.ProcessedRecords, snap.SuccessfulRecords+snap.ErrorRecords)
		}
		if snap.ProcessedRecords > snap.TotalRecords {
			t.Fatalf("processed %d exceeds total %d", snap.ProcessedRecords, snap.TotalRecords)
		}
	}

	snap := task.Snapshot()
	if snap.SuccessfulRecords != 4 || snap.ErrorRecords != 3 {
		t.Fatalf("counters = %d/%d, want 4/3", snap.SuccessfulRecords, snap.ErrorRecords)
	}
	if snap.ProgressPercent != 70 {
		t.Fatalf("progress = %d, want 70", snap.ProgressPercent)
	}
}

func TestTaskLogs_RingBounds(t *testing.T) {
	t.Parallel()

	task := NewTask("t1", AffiliationExpress, "Ana", 1)
	for i := 0; i < 35; i++ {
		task.AppendLog(fmt.Sprintf("entry %d", i))
	}

	if got := task.StoredLogCount(); got != 20 {
		t.Fatalf("stored logs = %d, want 20", got)
	}

	snap := task.Snapshot()
	if len(snap.Logs) != 10 {
		t.Fatalf("visible logs = %d, want 10", len(snap.Logs))
	}
	// Most recent entries are retained, oldest evicted first.
	last := snap.Logs[len(snap.Logs)-1]
	if want := "entry 34"; !strings.Contains(last, want) {
		t.Fatalf("last log = %q, want suffix %q", last, want)
	}
}

func TestTaskSnapshot_DerivedFigures(t *testing.T) {
	t.Parallel()

	task := NewTask("t1", AffiliationExpress, "Ana", 4)
	if err := task.MarkProcessing(); err != nil {
		t.Fatalf("MarkProcessing() error = %v", err)
	}
	task.RecordProcessed(true)
	task.RecordProcessed(false)

	snap := task.Snapshot()
	if snap.SuccessRate != 50 {
		t.Fatalf("success rate = %v, want 50", snap.SuccessRate)
	}
	if snap.RemainingRecords != 2 {
		t.Fatalf("remaining = %d, want 2", snap.RemainingRecords)
	}
	if snap.EstimatedRemainingMinutes != 1 {
		t.Fatalf("eta = %v minutes, want 1", snap.EstimatedRemainingMinutes)
	}
}
