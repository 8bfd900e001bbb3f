package tools

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/deepresearch-mcp/internal/models"
)

// ResultsOutput is the get_results tool result. Results is only set on success.
type ResultsOutput struct {
	ID      string           `json:"id"`
	Status  models.JobStatus `json:"status"`
	Query   string           `json:"query,omitempty"`
	Model   string           `json:"model,omitempty"`
	Results *models.Report   `json:"results,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// NewGetResultsHandler creates the get_results tool handler.
func NewGetResultsHandler(deps *Dependencies) mcp.ToolHandlerFor[JobIDInput, ResultsOutput] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input JobIDInput) (
		*mcp.CallToolResult, ResultsOutput, error,
	) {
		id := strings.TrimSpace(input.ID)
		if id == "" {
			f := invalid("id is required")
			return nil, ResultsOutput{Status: f.Status, Error: f.Error}, nil
		}

		job, report, err := deps.Jobs.GetResults(ctx, id)
		if err != nil {
			out := ResultsOutput{ID: id}
			var current models.JobStatus
			if job != nil {
				current = job.Status
				out.Query = job.Query
				out.Model = job.Model
			}
			f := classify(id, err, current)
			out.Status, out.Error = f.Status, f.Error
			deps.Logger.Debug("get_results failed", "job_id", id, "error", err)
			return nil, out, nil
		}

		deps.Logger.Info("results returned", "job_id", id, "citations", report.CitationCount)
		return nil, ResultsOutput{
			ID:      job.ID,
			Status:  job.Status,
			Query:   job.Query,
			Model:   job.Model,
			Results: report,
		}, nil
	}
}
