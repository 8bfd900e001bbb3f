package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/raphaelgruber/deepresearch-mcp/internal/engine"
	"github.com/raphaelgruber/deepresearch-mcp/internal/metrics"
	"github.com/raphaelgruber/deepresearch-mcp/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, opts Options) (*JobManager, *stubEngine, *MemoryRegistry) {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	eng := newStubEngine()
	reg := NewMemoryRegistry()
	return NewJobManager(reg, eng, opts), eng, reg
}

func TestPingPongScenario(t *testing.T) {
	ctx := context.Background()
	m, eng, _ := newTestManager(t, Options{})

	job, err := m.Create(ctx, CreateInput{Query: "ping", Model: models.ModelDeepResearchMini})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, "op_1", job.OperationRef)

	job, err = m.CheckStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)

	eng.complete("op_1", pongDocument())

	job, err = m.CheckStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.NotNil(t, job.Result)

	retrievesBefore := eng.retrieves()
	_, report, err := m.GetResults(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "pong", report.Report)
	assert.Equal(t, []models.Citation{{ID: 1, Title: "Src", URL: "http://x"}}, report.Citations)
	assert.Equal(t, 1, report.CitationCount)
	// Result was cached during the status check
	assert.Equal(t, retrievesBefore, eng.retrieves())
}

func TestCreateBuildsEngineRequest(t *testing.T) {
	ctx := context.Background()
	m, eng, _ := newTestManager(t, Options{})

	_, err := m.Create(ctx, CreateInput{Query: "q", Guidance: "be brief", CodeInterpreter: true})
	require.NoError(t, err)

	require.Len(t, eng.starts, 1)
	req := eng.starts[0]
	assert.Equal(t, models.ModelDeepResearch, req.Model)
	assert.Equal(t, []engine.Message{
		{Role: engine.RoleDeveloper, Text: "be brief"},
		{Role: engine.RoleUser, Text: "q"},
	}, req.Messages)
	assert.Equal(t, []string{engine.ToolWebSearch, engine.ToolCodeInterpreter}, req.Tools)
	assert.Equal(t, "auto", req.ReasoningSummary)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	m, eng, reg := newTestManager(t, Options{})

	_, err := m.Create(ctx, CreateInput{Query: "   "})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = m.Create(ctx, CreateInput{Query: "q", Model: "gpt-2"})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Empty(t, eng.starts)
	jobs, _ := reg.List(ctx)
	assert.Empty(t, jobs)
}

func TestCreateStartFailureRecordsNothing(t *testing.T) {
	ctx := context.Background()
	m, eng, reg := newTestManager(t, Options{})
	eng.startErr = engine.ErrMissingAPIKey

	job, err := m.Create(ctx, CreateInput{Query: "q"})
	assert.Nil(t, job)
	assert.ErrorIs(t, err, ErrEngineStart)
	assert.ErrorIs(t, err, engine.ErrMissingAPIKey)

	jobs, _ := reg.List(ctx)
	assert.Empty(t, jobs)
}

func TestCreateIDsAreUnique(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t, Options{})

	seen := make(map[string]bool)
	for range 200 {
		job, err := m.Create(ctx, CreateInput{Query: "q"})
		require.NoError(t, err)
		require.NotEmpty(t, job.ID)
		require.False(t, seen[job.ID], "duplicate id %s", job.ID)
		seen[job.ID] = true
	}
}

// collidingRegistry rejects the first n inserts as duplicates.
type collidingRegistry struct {
	*MemoryRegistry
	collisions int
}

func (r *collidingRegistry) Insert(ctx context.Context, job *models.Job) error {
	if r.collisions > 0 {
		r.collisions--
		return ErrJobExists
	}
	return r.MemoryRegistry.Insert(ctx, job)
}

func TestCreateRetriesIDCollision(t *testing.T) {
	ctx := context.Background()
	reg := &collidingRegistry{MemoryRegistry: NewMemoryRegistry(), collisions: 2}
	m := NewJobManager(reg, newStubEngine(), Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	job, err := m.Create(ctx, CreateInput{Query: "q"})
	require.NoError(t, err)
	_, err = reg.Get(ctx, job.ID)
	assert.NoError(t, err)

	reg.collisions = maxIDAttempts
	_, err = m.Create(ctx, CreateInput{Query: "q"})
	assert.ErrorIs(t, err, ErrJobExists)
}

func TestCheckStatusNotFound(t *testing.T) {
	m, _, _ := newTestManager(t, Options{})
	_, err := m.CheckStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestCheckStatusTerminalSkipsEngine(t *testing.T) {
	ctx := context.Background()
	m, eng, _ := newTestManager(t, Options{})

	job, err := m.Create(ctx, CreateInput{Query: "q"})
	require.NoError(t, err)
	eng.complete(job.OperationRef, pongDocument())

	_, err = m.CheckStatus(ctx, job.ID)
	require.NoError(t, err)
	calls := eng.retrieves()

	for range 3 {
		got, err := m.CheckStatus(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusCompleted, got.Status)
	}
	assert.Equal(t, calls, eng.retrieves())
}

func TestCheckStatusFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("fixed message", func(t *testing.T) {
		m, eng, _ := newTestManager(t, Options{})
		job, err := m.Create(ctx, CreateInput{Query: "q"})
		require.NoError(t, err)
		eng.fail(job.OperationRef, "cancelled", nil)

		got, err := m.CheckStatus(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusFailed, got.Status)
		assert.Equal(t, FailedJobMessage, got.Error)
		assert.Nil(t, got.Result)
	})

	t.Run("engine reason appended", func(t *testing.T) {
		m, eng, _ := newTestManager(t, Options{})
		job, err := m.Create(ctx, CreateInput{Query: "q"})
		require.NoError(t, err)
		eng.fail(job.OperationRef, "failed", map[string]any{
			"error": map[string]any{"message": "rate limited"},
		})

		got, err := m.CheckStatus(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, "Research job failed: rate limited", got.Error)
	})
}

func TestCheckStatusPollErrorKeepsPending(t *testing.T) {
	ctx := context.Background()
	collector := metrics.NewCollector()
	m, eng, _ := newTestManager(t, Options{Metrics: collector})

	job, err := m.Create(ctx, CreateInput{Query: "q"})
	require.NoError(t, err)

	eng.setRetrieveErr(errors.New("connection reset"))
	got, err := m.CheckStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, 1, got.PollFailures)
	assert.Contains(t, got.LastPollError, "connection reset")

	// Engine recovers; diagnostics are cleared while still pending
	eng.setRetrieveErr(nil)
	got, err = m.CheckStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Zero(t, got.PollFailures)
	assert.Empty(t, got.LastPollError)

	snap := collector.Snapshot()
	assert.Equal(t, int64(1), snap.Jobs.PollErrors)
	require.NotNil(t, snap.EngineRetrieve)
	assert.Equal(t, int64(2), snap.EngineRetrieve.Count)
	assert.Equal(t, int64(1), snap.EngineRetrieve.Errors)
}

// rivalRegistry lets another caller finish the job between the pending read
// and the transition of the caller under test.
type rivalRegistry struct {
	*MemoryRegistry
	rivalStatus models.JobStatus
}

func (r *rivalRegistry) Transition(ctx context.Context, id string, status models.JobStatus, result map[string]any, errMsg string) (*models.Job, bool, error) {
	if _, _, err := r.MemoryRegistry.Transition(ctx, id, r.rivalStatus, nil, "rival"); err != nil {
		return nil, false, err
	}
	return r.MemoryRegistry.Transition(ctx, id, status, result, errMsg)
}

func TestCheckStatusCountsOnlyMovedJobs(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, tc := range []struct {
		name        string
		rivalStatus models.JobStatus
		finish      func(eng *stubEngine, ref string)
	}{
		{
			name:        "completion lost to rival",
			rivalStatus: models.JobStatusFailed,
			finish:      func(eng *stubEngine, ref string) { eng.complete(ref, pongDocument()) },
		},
		{
			name:        "failure lost to rival",
			rivalStatus: models.JobStatusCompleted,
			finish:      func(eng *stubEngine, ref string) { eng.fail(ref, "failed", nil) },
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			collector := metrics.NewCollector()
			eng := newStubEngine()
			reg := &rivalRegistry{MemoryRegistry: NewMemoryRegistry(), rivalStatus: tc.rivalStatus}
			m := NewJobManager(reg, eng, Options{Metrics: collector, Logger: logger})

			job, err := m.Create(ctx, CreateInput{Query: "q"})
			require.NoError(t, err)
			tc.finish(eng, job.OperationRef)

			got, err := m.CheckStatus(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.rivalStatus, got.Status)

			counts := collector.Snapshot().Jobs
			assert.Zero(t, counts.Completed)
			assert.Zero(t, counts.Failed)
		})
	}

	t.Run("repeated checks count once", func(t *testing.T) {
		collector := metrics.NewCollector()
		m, eng, _ := newTestManager(t, Options{Metrics: collector})
		assert.Same(t, collector, m.Metrics())

		job, err := m.Create(ctx, CreateInput{Query: "q"})
		require.NoError(t, err)
		eng.complete(job.OperationRef, pongDocument())

		for range 3 {
			_, err = m.CheckStatus(ctx, job.ID)
			require.NoError(t, err)
		}
		assert.Equal(t, int64(1), collector.Snapshot().Jobs.Completed)
	})
}

func TestGetResultsNotReady(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t, Options{})

	job, err := m.Create(ctx, CreateInput{Query: "q"})
	require.NoError(t, err)

	got, report, err := m.GetResults(ctx, job.ID)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Nil(t, report)
	require.NotNil(t, got)
	assert.Equal(t, models.JobStatusPending, got.Status)
}

func TestGetResultsNotFound(t *testing.T) {
	m, _, _ := newTestManager(t, Options{})
	job, report, err := m.GetResults(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.Nil(t, job)
	assert.Nil(t, report)
}

func TestGetResultsLazyFetch(t *testing.T) {
	ctx := context.Background()
	m, eng, reg := newTestManager(t, Options{})

	job, err := m.Create(ctx, CreateInput{Query: "q"})
	require.NoError(t, err)
	// Completed through a path that did not cache the document
	_, _, err = reg.Transition(ctx, job.ID, models.JobStatusCompleted, nil, "")
	require.NoError(t, err)

	eng.setRetrieveErr(errors.New("unreachable"))
	_, _, err = m.GetResults(ctx, job.ID)
	assert.ErrorIs(t, err, ErrEngineQuery)
	stored, _ := reg.Get(ctx, job.ID)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)

	eng.setRetrieveErr(nil)
	eng.complete(job.OperationRef, pongDocument())
	_, report, err := m.GetResults(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "pong", report.Report)

	calls := eng.retrieves()
	_, again, err := m.GetResults(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, report, again)
	assert.Equal(t, calls, eng.retrieves())
}

func TestGetResultsMalformed(t *testing.T) {
	ctx := context.Background()
	m, eng, _ := newTestManager(t, Options{})

	job, err := m.Create(ctx, CreateInput{Query: "q"})
	require.NoError(t, err)
	eng.complete(job.OperationRef, map[string]any{"output": []any{}})
	_, err = m.CheckStatus(ctx, job.ID)
	require.NoError(t, err)

	got, report, err := m.GetResults(ctx, job.ID)
	assert.ErrorIs(t, err, ErrMalformedResult)
	assert.Nil(t, report)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
}

func TestCreatePrunesExpiredJobs(t *testing.T) {
	ctx := context.Background()
	collector := metrics.NewCollector()
	m, eng, reg := newTestManager(t, Options{Retention: time.Hour, Metrics: collector})

	old, err := m.Create(ctx, CreateInput{Query: "old"})
	require.NoError(t, err)
	eng.fail(old.OperationRef, "failed", nil)
	_, err = m.CheckStatus(ctx, old.ID)
	require.NoError(t, err)

	pending, err := m.Create(ctx, CreateInput{Query: "still running"})
	require.NoError(t, err)

	// Two hours later the failed job is past retention
	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = m.Create(ctx, CreateInput{Query: "new"})
	require.NoError(t, err)

	_, err = reg.Get(ctx, old.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = reg.Get(ctx, pending.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), collector.Snapshot().Jobs.Pruned)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t, Options{})

	_, err := m.Create(ctx, CreateInput{Query: "a"})
	require.NoError(t, err)
	_, err = m.Create(ctx, CreateInput{Query: "b"})
	require.NoError(t, err)

	jobs, err := m.List(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}
