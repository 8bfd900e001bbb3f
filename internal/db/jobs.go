package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/raphaelgruber/deepresearch-mcp/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// JobRecord is a research_job row.
type JobRecord struct {
	ID              surrealmodels.RecordID `json:"id"`
	Query           string                 `json:"query"`
	Guidance        string                 `json:"guidance"`
	Model           string                 `json:"model"`
	CodeInterpreter bool                   `json:"code_interpreter"`
	OperationRef    string                 `json:"operation_ref"`
	Status          string                 `json:"status"`
	ResultJSON      string                 `json:"result_json"`
	Error           string                 `json:"error"`
	CreatedAt       time.Time              `json:"created_at"`
	CompletedAt     *time.Time             `json:"completed_at,omitempty"`
	PollFailures    int                    `json:"poll_failures"`
	LastPollError   string                 `json:"last_poll_error"`
}

// ToJob converts the row, decoding the stored engine document.
func (r JobRecord) ToJob() (*models.Job, error) {
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		return nil, err
	}
	job := &models.Job{
		ID:              id,
		Query:           r.Query,
		Guidance:        r.Guidance,
		Model:           r.Model,
		CodeInterpreter: r.CodeInterpreter,
		OperationRef:    r.OperationRef,
		Status:          models.JobStatus(r.Status),
		Error:           r.Error,
		CreatedAt:       r.CreatedAt,
		CompletedAt:     r.CompletedAt,
		PollFailures:    r.PollFailures,
		LastPollError:   r.LastPollError,
	}
	if r.ResultJSON != "" {
		if err := json.Unmarshal([]byte(r.ResultJSON), &job.Result); err != nil {
			return nil, fmt.Errorf("decode result of job %s: %w", id, err)
		}
	}
	return job, nil
}

// CreateJob inserts a new job. Returns ErrAlreadyExists if the ID is taken.
func (c *Client) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE type::record("research_job", $id) CONTENT {
			query: $query,
			guidance: $guidance,
			model: $model,
			code_interpreter: $code_interpreter,
			operation_ref: $operation_ref,
			status: $status,
			created_at: <datetime>$created_at
		}
	`, map[string]any{
		"id":               job.ID,
		"query":            job.Query,
		"guidance":         job.Guidance,
		"model":            job.Model,
		"code_interpreter": job.CodeInterpreter,
		"operation_ref":    job.OperationRef,
		"status":           string(job.Status),
		"created_at":       job.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("create job: %w", wrapQueryError(err))
	}
	return nil
}

// GetJob retrieves a job by ID. Returns ErrNotFound if absent.
func (c *Client) GetJob(ctx context.Context, id string) (*models.Job, error) {
	results, err := surrealdb.Query[[]JobRecord](ctx, c.db, `
		SELECT * FROM type::record("research_job", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get job: %w", wrapQueryError(err))
	}
	return firstJob(results, 0, id)
}

// TransitionJob moves a pending job to a terminal status. The WHERE clause
// keeps terminal jobs untouched, so repeated or racing calls are harmless.
// moved reports whether the UPDATE matched, i.e. this call made the change.
func (c *Client) TransitionJob(ctx context.Context, id string, status models.JobStatus, result map[string]any, errMsg string) (job *models.Job, moved bool, err error) {
	set := "status = $status, completed_at = time::now(), poll_failures = 0, last_poll_error = \"\""
	vars := map[string]any{"id": id, "status": string(status)}
	switch status {
	case models.JobStatusCompleted:
		resultJSON, err := encodeResult(result)
		if err != nil {
			return nil, false, err
		}
		set += ", result_json = $result_json"
		vars["result_json"] = resultJSON
	case models.JobStatusFailed:
		set += ", error = $error"
		vars["error"] = errMsg
	}

	results, err := surrealdb.Query[[]JobRecord](ctx, c.db, `
		UPDATE type::record("research_job", $id) SET `+set+` WHERE status = "pending";
		SELECT * FROM type::record("research_job", $id);
	`, vars)
	if err != nil {
		return nil, false, fmt.Errorf("transition job: %w", wrapQueryError(err))
	}
	job, err = firstJob(results, 1, id)
	if err != nil {
		return nil, false, err
	}
	return job, len((*results)[0].Result) > 0, nil
}

// CacheJobResult stores the engine document on a completed job that has none.
func (c *Client) CacheJobResult(ctx context.Context, id string, result map[string]any) (*models.Job, error) {
	resultJSON, err := encodeResult(result)
	if err != nil {
		return nil, err
	}
	results, err := surrealdb.Query[[]JobRecord](ctx, c.db, `
		UPDATE type::record("research_job", $id) SET result_json = $result_json
			WHERE status = "completed" AND result_json = "";
		SELECT * FROM type::record("research_job", $id);
	`, map[string]any{"id": id, "result_json": resultJSON})
	if err != nil {
		return nil, fmt.Errorf("cache job result: %w", wrapQueryError(err))
	}
	return firstJob(results, 1, id)
}

// NoteJobPoll increments the poll failure counter of a pending job, or resets
// it when pollErr is empty.
func (c *Client) NoteJobPoll(ctx context.Context, id string, pollErr string) error {
	sql := `UPDATE type::record("research_job", $id) SET poll_failures += 1, last_poll_error = $err WHERE status = "pending"`
	if pollErr == "" {
		sql = `UPDATE type::record("research_job", $id) SET poll_failures = 0, last_poll_error = "" WHERE status = "pending"`
	}
	if _, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{"id": id, "err": pollErr}); err != nil {
		return fmt.Errorf("note job poll: %w", wrapQueryError(err))
	}
	return nil
}

// ListJobs returns all jobs, most recent first.
func (c *Client) ListJobs(ctx context.Context) ([]*models.Job, error) {
	results, err := surrealdb.Query[[]JobRecord](ctx, c.db, `
		SELECT * FROM research_job ORDER BY created_at DESC
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", wrapQueryError(err))
	}

	jobs := []*models.Job{}
	if results == nil || len(*results) == 0 {
		return jobs, nil
	}
	for _, rec := range (*results)[0].Result {
		job, err := rec.ToJob()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// PruneJobs deletes terminal jobs completed before the cutoff and returns how
// many were removed.
func (c *Client) PruneJobs(ctx context.Context, before time.Time) (int, error) {
	results, err := surrealdb.Query[[]JobRecord](ctx, c.db, `
		DELETE research_job
			WHERE status IN ["completed", "failed"] AND completed_at < <datetime>$before
			RETURN BEFORE
	`, map[string]any{"before": before.UTC().Format(time.RFC3339Nano)})
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return 0, nil
	}
	return len((*results)[0].Result), nil
}

func encodeResult(result map[string]any) (string, error) {
	if result == nil {
		return "", nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(b), nil
}

// firstJob extracts the single record of statement idx.
func firstJob(results *[]surrealdb.QueryResult[[]JobRecord], idx int, id string) (*models.Job, error) {
	if results == nil || len(*results) <= idx || len((*results)[idx].Result) == 0 {
		return nil, fmt.Errorf("%w: research_job %s", ErrNotFound, id)
	}
	return (*results)[idx].Result[0].ToJob()
}
