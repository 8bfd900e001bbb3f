package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/raphaelgruber/deepresearch-mcp/internal/models"
)

// Registry is the single source of truth for local job state.
//
// Implementations must serialize updates to a single job so that status stays
// monotonic (pending -> completed | failed) and repeated terminal writes are
// harmless.
type Registry interface {
	// Insert adds a new job. Returns ErrJobExists if the ID is taken.
	Insert(ctx context.Context, job *models.Job) error

	// Get returns a snapshot of the job or ErrJobNotFound.
	Get(ctx context.Context, id string) (*models.Job, error)

	// Transition moves a pending job to a terminal status. On an already
	// terminal job it is a no-op returning the current state. moved reports
	// whether this call changed the job. result is only stored for completed,
	// errMsg only for failed.
	Transition(ctx context.Context, id string, status models.JobStatus, result map[string]any, errMsg string) (job *models.Job, moved bool, err error)

	// CacheResult stores the engine document on a completed job that has none.
	CacheResult(ctx context.Context, id string, result map[string]any) (*models.Job, error)

	// NotePoll records a transient reconciliation failure on a pending job, or
	// clears the record when pollErr is empty.
	NotePoll(ctx context.Context, id string, pollErr string) error

	// List returns all jobs, most recent first.
	List(ctx context.Context) ([]*models.Job, error)

	// Prune deletes terminal jobs that completed before the cutoff.
	Prune(ctx context.Context, before time.Time) (int, error)
}

// MemoryRegistry holds jobs for the lifetime of the process.
type MemoryRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
}

// Compile-time check that MemoryRegistry implements Registry.
var _ Registry = (*MemoryRegistry)(nil)

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		jobs: make(map[string]*models.Job),
	}
}

func (r *MemoryRegistry) Insert(_ context.Context, job *models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return fmt.Errorf("%w: %s", ErrJobExists, job.ID)
	}
	r.jobs[job.ID] = job.Clone()
	return nil
}

func (r *MemoryRegistry) Get(_ context.Context, id string) (*models.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job.Clone(), nil
}

func (r *MemoryRegistry) Transition(_ context.Context, id string, status models.JobStatus, result map[string]any, errMsg string) (*models.Job, bool, error) {
	if !status.Terminal() {
		return nil, false, fmt.Errorf("%w: transition target %q is not terminal", ErrValidation, status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	// Only transitions from pending; a terminal job is never overwritten.
	moved := job.Status == models.JobStatusPending
	if moved {
		now := time.Now()
		job.Status = status
		job.CompletedAt = &now
		job.PollFailures = 0
		job.LastPollError = ""
		switch status {
		case models.JobStatusCompleted:
			job.Result = result
		case models.JobStatusFailed:
			job.Error = errMsg
		}
	}
	return job.Clone(), moved, nil
}

func (r *MemoryRegistry) CacheResult(_ context.Context, id string, result map[string]any) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.Status == models.JobStatusCompleted && job.Result == nil {
		job.Result = result
	}
	return job.Clone(), nil
}

func (r *MemoryRegistry) NotePoll(_ context.Context, id string, pollErr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.Status != models.JobStatusPending {
		return nil
	}
	if pollErr == "" {
		job.PollFailures = 0
		job.LastPollError = ""
		return nil
	}
	job.PollFailures++
	job.LastPollError = pollErr
	return nil
}

func (r *MemoryRegistry) List(_ context.Context) ([]*models.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := make([]*models.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, job.Clone())
	}

	// Sort by creation time descending (most recent first)
	slices.SortFunc(jobs, func(a, b *models.Job) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return jobs, nil
}

func (r *MemoryRegistry) Prune(_ context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, job := range r.jobs {
		if job.Status.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(before) {
			delete(r.jobs, id)
			n++
		}
	}
	return n, nil
}
