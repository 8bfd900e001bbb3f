package tools

import (
	"context"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/deepresearch-mcp/internal/models"
)

// JobIDInput defines the input schema for tools addressing one job.
type JobIDInput struct {
	ID string `json:"id" jsonschema:"Job id returned by create"`
}

// StatusOutput is the check_status tool result.
type StatusOutput struct {
	ID             string           `json:"id"`
	Status         models.JobStatus `json:"status"`
	Query          string           `json:"query,omitempty"`
	Model          string           `json:"model,omitempty"`
	CreatedAt      string           `json:"created_at,omitempty"`
	ElapsedMinutes *float64         `json:"elapsed_minutes,omitempty"`
	PollFailures   int              `json:"poll_failures,omitempty"`
	LastPollError  string           `json:"last_poll_error,omitempty"`
	Error          string           `json:"error,omitempty"`
}

// NewCheckStatusHandler creates the check_status tool handler.
func NewCheckStatusHandler(deps *Dependencies) mcp.ToolHandlerFor[JobIDInput, StatusOutput] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input JobIDInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		id := strings.TrimSpace(input.ID)
		if id == "" {
			f := invalid("id is required")
			return nil, StatusOutput{Status: f.Status, Error: f.Error}, nil
		}

		job, err := deps.Jobs.CheckStatus(ctx, id)
		if err != nil {
			f := classify(id, err, "")
			deps.Logger.Debug("check_status failed", "job_id", id, "error", err)
			return nil, StatusOutput{ID: id, Status: f.Status, Error: f.Error}, nil
		}

		out := statusOutput(job, time.Now())
		deps.Logger.Debug("status checked", "job_id", id, "status", job.Status)
		return nil, out, nil
	}
}

func statusOutput(job *models.Job, now time.Time) StatusOutput {
	elapsed := job.ElapsedMinutes(now)
	return StatusOutput{
		ID:             job.ID,
		Status:         job.Status,
		Query:          job.Query,
		Model:          job.Model,
		CreatedAt:      job.CreatedAt.UTC().Format(time.RFC3339),
		ElapsedMinutes: &elapsed,
		PollFailures:   job.PollFailures,
		LastPollError:  job.LastPollError,
		Error:          job.Error,
	}
}
