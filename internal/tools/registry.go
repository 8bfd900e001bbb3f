package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterAll registers all tools with the MCP server.
// This is called from main after server creation but before Run().
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "create",
		Description: "Start a deep-research job in the background and return its id. " +
			"Research takes several minutes; poll with check_status, then fetch with get_results.",
	}, NewCreateHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_status",
		Description: "Check the status of a research job (pending, completed or failed)",
	}, NewCheckStatusHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_results",
		Description: "Get the report and citations of a completed research job",
	}, NewGetResultsHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_jobs",
		Description: "List tracked research jobs, most recent first",
	}, NewListJobsHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "stats",
		Description: "Runtime statistics: engine call timings and job counts",
	}, NewStatsHandler(deps))
}
