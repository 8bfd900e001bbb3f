// Package service manages the lifecycle of deep-research jobs.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/deepresearch-mcp/internal/engine"
	"github.com/raphaelgruber/deepresearch-mcp/internal/metrics"
	"github.com/raphaelgruber/deepresearch-mcp/internal/models"
)

// FailedJobMessage is recorded when the engine reports a failed operation.
const FailedJobMessage = "Research job failed"

// reasoningSummary asks the engine to attach an automatic reasoning summary.
const reasoningSummary = "auto"

// maxIDAttempts bounds retries when a generated short ID is already taken.
const maxIDAttempts = 5

// CreateInput carries the arguments of a new research job.
type CreateInput struct {
	Query           string
	Guidance        string
	Model           string // empty means the default variant
	CodeInterpreter bool
}

// Options configures a JobManager.
type Options struct {
	// Retention prunes terminal jobs older than this on every Create.
	// Zero keeps jobs for the life of the registry.
	Retention time.Duration
	Metrics   *metrics.Collector
	Logger    *slog.Logger
}

// JobManager creates research jobs, reconciles them against the engine on
// demand, and normalizes their results. There is no background poller: state
// only advances when a caller checks status or asks for results.
type JobManager struct {
	registry  Registry
	engine    engine.Engine
	metrics   *metrics.Collector
	logger    *slog.Logger
	retention time.Duration
	now       func() time.Time
}

// NewJobManager creates a new job manager.
func NewJobManager(registry Registry, eng engine.Engine, opts Options) *JobManager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JobManager{
		registry:  registry,
		engine:    eng,
		metrics:   opts.Metrics,
		logger:    logger,
		retention: opts.Retention,
		now:       time.Now,
	}
}

// Metrics returns the collector job events are recorded on. It may be nil.
func (m *JobManager) Metrics() *metrics.Collector {
	return m.metrics
}

// Create starts a background research operation and records a pending job.
// If the engine cannot start the operation nothing is recorded.
func (m *JobManager) Create(ctx context.Context, in CreateInput) (*models.Job, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrValidation)
	}
	model := in.Model
	if model == "" {
		model = models.ModelVariants[0]
	}
	if !models.ValidModel(model) {
		return nil, fmt.Errorf("%w: model must be one of %s", ErrValidation, strings.Join(models.ModelVariants, ", "))
	}

	m.pruneExpired(ctx)

	start := time.Now()
	op, err := m.engine.Start(ctx, engine.StartRequest{
		Model:            model,
		Messages:         engine.BuildMessages(in.Query, in.Guidance),
		Tools:            engine.BuildTools(in.CodeInterpreter),
		ReasoningSummary: reasoningSummary,
	})
	m.metrics.RecordTiming(metrics.OpEngineStart, time.Since(start), err)
	if err != nil {
		m.logger.Error("failed to start research", "model", model, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrEngineStart, err)
	}

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		job := &models.Job{
			ID:              uuid.New().String()[:8], // Short ID for convenience
			Query:           in.Query,
			Guidance:        in.Guidance,
			Model:           model,
			CodeInterpreter: in.CodeInterpreter,
			OperationRef:    op.ID,
			Status:          models.JobStatusPending,
			CreatedAt:       m.now(),
		}

		regStart := time.Now()
		err = m.registry.Insert(ctx, job)
		m.metrics.RecordTiming(metrics.OpRegistry, time.Since(regStart), err)
		if errors.Is(err, ErrJobExists) {
			continue
		}
		if err != nil {
			m.logger.Error("failed to record job", "operation", op.ID, "error", err)
			return nil, fmt.Errorf("record job: %w", err)
		}

		m.metrics.RecordJob(metrics.EventCreated, 1)
		m.logger.Info("job created", "job_id", job.ID, "operation", op.ID, "model", model)
		return job, nil
	}
	return nil, fmt.Errorf("record job: %w after %d attempts", ErrJobExists, maxIDAttempts)
}

// CheckStatus returns the job, reconciling it with the engine while pending.
// Terminal jobs are answered locally. Engine query errors leave the job
// pending and are only recorded as poll diagnostics; the caller polls again.
func (m *JobManager) CheckStatus(ctx context.Context, id string) (*models.Job, error) {
	job, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return job, nil
	}

	start := time.Now()
	op, err := m.engine.Retrieve(ctx, job.OperationRef)
	m.metrics.RecordTiming(metrics.OpEngineRetrieve, time.Since(start), err)
	if err != nil {
		m.metrics.RecordJob(metrics.EventPollError, 1)
		m.logger.Warn("status poll failed, job stays pending",
			"job_id", id, "operation", job.OperationRef, "error", err)
		if noteErr := m.registry.NotePoll(ctx, id, err.Error()); noteErr != nil {
			m.logger.Warn("failed to record poll failure", "job_id", id, "error", noteErr)
		}
		return m.get(ctx, id)
	}

	switch op.State() {
	case engine.StateCompleted:
		updated, moved, err := m.registry.Transition(ctx, id, models.JobStatusCompleted, op.Document, "")
		if err != nil {
			return nil, fmt.Errorf("record completion: %w", err)
		}
		if moved {
			m.metrics.RecordJob(metrics.EventCompleted, 1)
			m.logger.Info("job completed", "job_id", id, "elapsed_minutes", updated.ElapsedMinutes(m.now()))
		}
		return updated, nil

	case engine.StateFailed:
		msg := FailedJobMessage
		if reason := op.ErrorMessage(); reason != "" {
			msg += ": " + reason
		}
		updated, moved, err := m.registry.Transition(ctx, id, models.JobStatusFailed, nil, msg)
		if err != nil {
			return nil, fmt.Errorf("record failure: %w", err)
		}
		if moved {
			m.metrics.RecordJob(metrics.EventFailed, 1)
			m.logger.Warn("job failed", "job_id", id, "engine_status", op.Status, "error", msg)
		}
		return updated, nil
	}

	if job.PollFailures > 0 {
		if err := m.registry.NotePoll(ctx, id, ""); err != nil {
			m.logger.Warn("failed to clear poll failures", "job_id", id, "error", err)
		}
		return m.get(ctx, id)
	}
	return job, nil
}

// GetResults returns the normalized report of a completed job. The engine
// document is fetched once if the job completed without caching it.
// The job is returned alongside ErrNotReady so callers can report its status.
func (m *JobManager) GetResults(ctx context.Context, id string) (*models.Job, *models.Report, error) {
	job, err := m.get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if job.Status != models.JobStatusCompleted {
		return job, nil, fmt.Errorf("%w: job %s is %s", ErrNotReady, id, job.Status)
	}

	if job.Result == nil {
		start := time.Now()
		op, err := m.engine.Retrieve(ctx, job.OperationRef)
		m.metrics.RecordTiming(metrics.OpEngineRetrieve, time.Since(start), err)
		if err != nil {
			m.logger.Error("failed to fetch result document", "job_id", id, "error", err)
			return job, nil, fmt.Errorf("%w: %w", ErrEngineQuery, err)
		}
		job, err = m.registry.CacheResult(ctx, id, op.Document)
		if err != nil {
			return nil, nil, fmt.Errorf("cache result: %w", err)
		}
	}

	report, err := ExtractReport(job.Result)
	if err != nil {
		m.logger.Warn("result extraction failed", "job_id", id, "error", err)
		return job, nil, err
	}
	return job, report, nil
}

// List returns all tracked jobs, most recent first.
func (m *JobManager) List(ctx context.Context) ([]*models.Job, error) {
	return m.registry.List(ctx)
}

// get loads a job, timing the registry access.
func (m *JobManager) get(ctx context.Context, id string) (*models.Job, error) {
	start := time.Now()
	job, err := m.registry.Get(ctx, id)
	if errors.Is(err, ErrJobNotFound) {
		m.metrics.RecordTiming(metrics.OpRegistry, time.Since(start), nil)
		return nil, err
	}
	m.metrics.RecordTiming(metrics.OpRegistry, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	return job, nil
}

// pruneExpired drops terminal jobs past the retention window. Failures are
// logged; they never block job creation.
func (m *JobManager) pruneExpired(ctx context.Context) {
	if m.retention <= 0 {
		return
	}
	n, err := m.registry.Prune(ctx, m.now().Add(-m.retention))
	if err != nil {
		m.logger.Warn("failed to prune expired jobs", "error", err)
		return
	}
	if n > 0 {
		m.metrics.RecordJob(metrics.EventPruned, n)
		m.logger.Info("pruned expired jobs", "count", n, "retention", m.retention)
	}
}
