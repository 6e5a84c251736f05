package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/kursadbilgin/enroll-engine/internal/artifact"
	"github.com/kursadbilgin/enroll-engine/internal/domain"
	"github.com/kursadbilgin/enroll-engine/internal/enroll"
	"github.com/kursadbilgin/enroll-engine/internal/observability"
	"github.com/kursadbilgin/enroll-engine/internal/pacing"
	"github.com/kursadbilgin/enroll-engine/internal/registry"
)

const (
	minTaskConcurrency = 1
	checkpointEvery    = 5
)

// RecordProcessor runs the per-record enrollment protocol for one task.
// Start acquires the browser session, Close always releases it.
type RecordProcessor interface {
	Start(ctx context.Context) error
	Process(ctx context.Context, record domain.Record, affiliation domain.AffiliationType) enroll.Result
	Close()
}

// ProcessorFactory builds one processor per task. Each task owns its
// processor for the whole batch.
type ProcessorFactory func() RecordProcessor

// TaskService owns the task lifecycle: submission, background batch
// processing, status reads, deletion and result lookup.
type TaskService struct {
	registry   *registry.Registry
	processors ProcessorFactory
	pacer      pacing.Pacer
	logger     *zap.Logger
	metrics    *observability.Metrics
	resultsDir string
	sessions   *semaphore.Weighted
	now        func() time.Time
	newID      func() string
}

func NewTaskService(
	reg *registry.Registry,
	processors ProcessorFactory,
	pacer pacing.Pacer,
	resultsDir string,
	maxConcurrent int,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*TaskService, error) {
	if reg == nil {
		return nil, fmt.Errorf("task registry is required")
	}
	if processors == nil {
		return nil, fmt.Errorf("processor factory is required")
	}
	if pacer == nil {
		pacer = pacing.None{}
	}
	if maxConcurrent < minTaskConcurrency {
		maxConcurrent = minTaskConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}

	return &TaskService{
		registry:   reg,
		processors: processors,
		pacer:      pacer,
		logger:     logger,
		metrics:    metrics,
		resultsDir: resultsDir,
		sessions:   semaphore.NewWeighted(int64(maxConcurrent)),
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}, nil
}

// Submit registers a new Pending task and schedules its batch for
// background processing. Returns immediately with the task id.
func (s *TaskService) Submit(records []domain.Record, affiliation domain.AffiliationType, affiliator string) (string, error) {
	if len(records) == 0 {
		return "", fmt.Errorf("%w: no records to process", domain.ErrValidation)
	}
	if !affiliation.IsValid() {
		return "", fmt.Errorf("%w: unknown affiliation type %q", domain.ErrValidation, affiliation)
	}
	if affiliator == "" {
		return "", fmt.Errorf("%w: affiliator name is required", domain.ErrValidation)
	}

	task := domain.NewTask(s.newID(), affiliation, affiliator, len(records))
	if err := s.registry.Add(task); err != nil {
		return "", err
	}
	task.AppendLog(fmt.Sprintf("task accepted with %d records", len(records)))

	go s.run(task, records)

	s.logger.Info("task submitted",
		zap.String("taskId", task.ID()),
		zap.String("affiliation", string(affiliation)),
		zap.Int("records", len(records)),
	)
	return task.ID(), nil
}

// GetStatus returns a point-in-time snapshot of the task.
func (s *TaskService) GetStatus(id string) (domain.TaskSnapshot, error) {
	task, err := s.registry.Get(id)
	if err != nil {
		return domain.TaskSnapshot{}, err
	}
	return task.Snapshot(), nil
}

// List returns snapshots of every known task.
func (s *TaskService) List() []domain.TaskSnapshot {
	return s.registry.List()
}

// Delete removes a task unless it is still Processing.
func (s *TaskService) Delete(id string) error {
	return s.registry.Delete(id)
}

// ResultPath returns the artifact path of a Completed task.
func (s *TaskService) ResultPath(id string) (string, error) {
	task, err := s.registry.Get(id)
	if err != nil {
		return "", err
	}
	path := task.ResultPath()
	if task.Status() != domain.TaskCompleted || path == "" {
		return "", fmt.Errorf("%w: result not available for task %s", domain.ErrNotFound, id)
	}
	return path, nil
}

// run executes one task's batch end to end on its own goroutine.
func (s *TaskService) run(task *domain.Task, records []domain.Record) {
	ctx := observability.WithTaskID(context.Background(), task.ID())
	logger := s.logger.With(zap.String("taskId", task.ID()))

	task.AppendLog("waiting for a browser session slot")
	if err := s.sessions.Acquire(ctx, 1); err != nil {
		s.finishFailed(task, fmt.Sprintf("session slot acquisition failed: %v", err))
		return
	}
	defer s.sessions.Release(1)

	if err := task.MarkProcessing(); err != nil {
		logger.Error("task could not enter processing", zap.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.IncTasksInflight()
		defer s.metrics.DecTasksInflight()
	}

	processor := s.processors()
	defer processor.Close()

	task.AppendLog("starting browser session")
	if err := processor.Start(ctx); err != nil {
		logger.Error("browser provisioning failed", zap.Error(err))
		s.finishFailed(task, fmt.Sprintf("browser provisioning failed: %v", err))
		return
	}
	task.AppendLog("browser session ready")

	writer := artifact.NewWriter(filepath.Join(s.resultsDir, fmt.Sprintf("results_%s.xlsx", task.ID())), logger)

	for i, record := range records {
		if i > 0 {
			if err := s.pacer.Wait(ctx); err != nil {
				logger.Warn("pacing interrupted", zap.Error(err))
			}
		}

		task.SetCurrentlyProcessing(record.Describe())
		task.AppendLog(fmt.Sprintf("processing %d/%d: %s", i+1, len(records), record.Describe()))

		started := s.now()
		result := s.processRecord(ctx, processor, record, task.Affiliation(), logger)

		row := domain.NewOutcomeRow(record, task.Affiliator(), result.OutcomeStatus(), result.Code, result.Observation(), s.now())
		writer.Append(row)
		task.RecordProcessed(result.Success)
		if s.metrics != nil {
			s.metrics.ObserveRecordProcessed(result.OutcomeStatus().String(), s.now().Sub(started))
		}

		if result.Success {
			task.AppendLog(fmt.Sprintf("enrolled %s with code %s", record.Describe(), result.Code))
		} else {
			task.AppendLog(fmt.Sprintf("failed %s: %s", record.Describe(), result.Observation()))
		}

		if writer.RowCount()%checkpointEvery == 0 {
			s.checkpoint(task, writer, logger)
		}
	}

	task.SetCurrentlyProcessing("")

	if err := writer.Save(); err != nil {
		logger.Error("final artifact save failed", zap.Error(err))
		s.finishFailed(task, fmt.Sprintf("result artifact save failed: %v", err))
		return
	}
	if s.metrics != nil {
		s.metrics.IncCheckpointSaved()
	}

	snapshot := task.Snapshot()
	message := fmt.Sprintf("completed: %d succeeded, %d failed", snapshot.SuccessfulRecords, snapshot.ErrorRecords)
	if err := task.Complete(writer.Path(), message); err != nil {
		logger.Error("task completion transition failed", zap.Error(err))
		return
	}
	task.AppendLog(message)
	if s.metrics != nil {
		s.metrics.IncTaskOutcome(string(domain.TaskCompleted))
	}
	logger.Info("task completed",
		zap.Int("succeeded", snapshot.SuccessfulRecords),
		zap.Int("failed", snapshot.ErrorRecords),
	)
}

// processRecord isolates one record: a panic inside the driver becomes
// a critical failure row instead of killing the task.
func (s *TaskService) processRecord(
	ctx context.Context,
	processor RecordProcessor,
	record domain.Record,
	affiliation domain.AffiliationType,
	logger *zap.Logger,
) (result enroll.Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("record processing panicked",
				zap.String("record", record.Describe()),
				zap.Any("panic", r),
			)
			result = enroll.CriticalFailure(fmt.Sprintf("unexpected processing failure: %v", r))
		}
	}()
	return processor.Process(ctx, record, affiliation)
}

func (s *TaskService) checkpoint(task *domain.Task, writer *artifact.Writer, logger *zap.Logger) {
	if err := writer.Save(); err != nil {
		logger.Warn("checkpoint save failed", zap.Error(err))
		task.AppendLog(fmt.Sprintf("checkpoint save failed: %v", err))
		return
	}
	if s.metrics != nil {
		s.metrics.IncCheckpointSaved()
	}
	task.AppendLog(fmt.Sprintf("checkpoint saved after %d records", writer.RowCount()))
}

func (s *TaskService) finishFailed(task *domain.Task, message string) {
	if err := task.Fail(message); err != nil {
		s.logger.Error("task failure transition failed",
			zap.String("taskId", task.ID()),
			zap.Error(err),
		)
		return
	}
	task.AppendLog(message)
	if s.metrics != nil {
		s.metrics.IncTaskOutcome(string(domain.TaskFailed))
	}
}
