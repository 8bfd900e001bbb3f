package tools

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/deepresearch-mcp/internal/metrics"
)

// ListJobsInput defines the input schema for the list_jobs tool.
type ListJobsInput struct {
	Status string `json:"status,omitempty" jsonschema:"Only jobs with this status: pending, completed or failed"`
}

// ListJobsOutput is the list_jobs tool result.
type ListJobsOutput struct {
	Jobs  []StatusOutput `json:"jobs"`
	Count int            `json:"count"`
	Error string         `json:"error,omitempty"`
}

// NewListJobsHandler creates the list_jobs tool handler. It reads the registry
// only; no job is reconciled with the engine.
func NewListJobsHandler(deps *Dependencies) mcp.ToolHandlerFor[ListJobsInput, ListJobsOutput] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListJobsInput) (
		*mcp.CallToolResult, ListJobsOutput, error,
	) {
		jobs, err := deps.Jobs.List(ctx)
		if err != nil {
			deps.Logger.Error("list jobs failed", "error", err)
			return nil, ListJobsOutput{Jobs: []StatusOutput{}, Error: "Failed to list jobs: " + err.Error()}, nil
		}

		now := time.Now()
		out := ListJobsOutput{Jobs: make([]StatusOutput, 0, len(jobs))}
		for _, job := range jobs {
			if input.Status != "" && string(job.Status) != input.Status {
				continue
			}
			out.Jobs = append(out.Jobs, statusOutput(job, now))
		}
		out.Count = len(out.Jobs)
		return nil, out, nil
	}
}

// StatsInput defines the (empty) input schema for the stats tool.
type StatsInput struct{}

// NewStatsHandler creates the stats tool handler. It reports the collector the
// job manager records on.
func NewStatsHandler(deps *Dependencies) mcp.ToolHandlerFor[StatsInput, metrics.Snapshot] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatsInput) (
		*mcp.CallToolResult, metrics.Snapshot, error,
	) {
		return nil, deps.Jobs.Metrics().Snapshot(), nil
	}
}
