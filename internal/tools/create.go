package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/deepresearch-mcp/internal/models"
	"github.com/raphaelgruber/deepresearch-mcp/internal/service"
)

// CreateInput defines the input schema for the create tool.
type CreateInput struct {
	Query                 string `json:"query" jsonschema:"The research question"`
	Guidance              string `json:"guidance,omitempty" jsonschema:"Optional steering instructions sent before the query"`
	Model                 string `json:"model,omitempty" jsonschema:"o3-deep-research (default) or o4-mini-deep-research"`
	EnableCodeInterpreter bool   `json:"enable_code_interpreter,omitempty" jsonschema:"Let the engine run code for analysis, default false"`
}

// CreateOutput is the create tool result.
type CreateOutput struct {
	ID     string           `json:"id,omitempty"`
	Status models.JobStatus `json:"status"`
	Error  string           `json:"error,omitempty"`
}

// NewCreateHandler creates the create tool handler.
func NewCreateHandler(deps *Dependencies) mcp.ToolHandlerFor[CreateInput, CreateOutput] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input CreateInput) (
		*mcp.CallToolResult, CreateOutput, error,
	) {
		job, err := deps.Jobs.Create(ctx, service.CreateInput{
			Query:           input.Query,
			Guidance:        input.Guidance,
			Model:           input.Model,
			CodeInterpreter: input.EnableCodeInterpreter,
		})
		if err != nil {
			f := classify("", err, "")
			deps.Logger.Warn("create failed", "error", err)
			return nil, CreateOutput{Status: f.Status, Error: f.Error}, nil
		}

		deps.Logger.Info("research started", "job_id", job.ID, "query", logSnippet(input.Query, 30), "model", job.Model)

		return nil, CreateOutput{ID: job.ID, Status: job.Status}, nil
	}
}

// logSnippet cuts s to at most n runes for log lines, marking the cut.
func logSnippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
