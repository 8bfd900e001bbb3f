package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raphaelgruber/deepresearch-mcp/internal/db"
	"github.com/raphaelgruber/deepresearch-mcp/internal/models"
)

// SurrealRegistry persists jobs in SurrealDB. Monotonic transitions are
// enforced by conditional updates in the database, so several processes can
// share one store.
type SurrealRegistry struct {
	db *db.Client
}

// Compile-time check that SurrealRegistry implements Registry.
var _ Registry = (*SurrealRegistry)(nil)

// NewSurrealRegistry wraps a connected client. The schema must already exist.
func NewSurrealRegistry(client *db.Client) *SurrealRegistry {
	return &SurrealRegistry{db: client}
}

func (r *SurrealRegistry) Insert(ctx context.Context, job *models.Job) error {
	return mapDBError(r.db.CreateJob(ctx, job))
}

func (r *SurrealRegistry) Get(ctx context.Context, id string) (*models.Job, error) {
	job, err := r.db.GetJob(ctx, id)
	return job, mapDBError(err)
}

func (r *SurrealRegistry) Transition(ctx context.Context, id string, status models.JobStatus, result map[string]any, errMsg string) (*models.Job, bool, error) {
	if !status.Terminal() {
		return nil, false, fmt.Errorf("%w: transition target %q is not terminal", ErrValidation, status)
	}
	var (
		job   *models.Job
		moved bool
	)
	err := retryOnConflict(func() (err error) {
		job, moved, err = r.db.TransitionJob(ctx, id, status, result, errMsg)
		return err
	})
	return job, moved, mapDBError(err)
}

func (r *SurrealRegistry) CacheResult(ctx context.Context, id string, result map[string]any) (*models.Job, error) {
	var job *models.Job
	err := retryOnConflict(func() (err error) {
		job, err = r.db.CacheJobResult(ctx, id, result)
		return err
	})
	return job, mapDBError(err)
}

func (r *SurrealRegistry) NotePoll(ctx context.Context, id string, pollErr string) error {
	return mapDBError(retryOnConflict(func() error {
		return r.db.NoteJobPoll(ctx, id, pollErr)
	}))
}

func (r *SurrealRegistry) List(ctx context.Context) ([]*models.Job, error) {
	jobs, err := r.db.ListJobs(ctx)
	return jobs, mapDBError(err)
}

func (r *SurrealRegistry) Prune(ctx context.Context, before time.Time) (int, error) {
	n, err := r.db.PruneJobs(ctx, before)
	return n, mapDBError(err)
}

// retryOnConflict runs a conditional write once more when a concurrent writer
// touched the same record. The writes only match pending or uncached jobs, so
// the second run either applies or becomes a no-op.
func retryOnConflict(write func() error) error {
	err := write()
	if errors.Is(err, db.ErrTransactionConflict) {
		err = write()
	}
	return err
}

// mapDBError translates storage sentinels into registry sentinels.
func mapDBError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, db.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrJobNotFound, err)
	case errors.Is(err, db.ErrAlreadyExists):
		return fmt.Errorf("%w: %w", ErrJobExists, err)
	default:
		return err
	}
}
