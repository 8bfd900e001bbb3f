package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raphaelgruber/deepresearch-mcp/internal/models"
	"github.com/raphaelgruber/deepresearch-mcp/internal/service"
	"github.com/spf13/cobra"
)

var (
	createGuidance string
	createModel    string
	createCode     bool
	createWatch    bool

	resultsFormat string
	jobsStatus    string
)

var createCmd = &cobra.Command{
	Use:   "create <query>",
	Short: "Start a deep-research job",
	Long: `Start a deep-research job in the background and print its id.

Examples:
  deepresearch create "state of solid-state batteries in 2025"
  deepresearch create "compare EU and US AI regulation" --guidance "cite primary sources"
  deepresearch create "analyze CPI trends" --model o4-mini-deep-research --code --watch`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Check a job against the research engine",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var resultsCmd = &cobra.Command{
	Use:   "results <job-id>",
	Short: "Print the report and citations of a completed job",
	Long: `Print the report and citations of a completed job.

Output defaults to text on a terminal and JSON when piped.

Examples:
  deepresearch results abc12345
  deepresearch results abc12345 -o yaml > report.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runResults,
}

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List tracked jobs or show one job",
	Long: `List all tracked jobs or inspect a specific job by ID.
Listing reads the store only; use status to poll the engine.

Examples:
  deepresearch jobs                    # List all jobs
  deepresearch jobs --status pending   # Only pending jobs
  deepresearch jobs abc12345           # Show details for job abc12345`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

func init() {
	createCmd.Flags().StringVarP(&createGuidance, "guidance", "g", "", "steering instructions sent before the query")
	createCmd.Flags().StringVarP(&createModel, "model", "m", models.ModelDeepResearch, "o3-deep-research or o4-mini-deep-research")
	createCmd.Flags().BoolVar(&createCode, "code", false, "allow the engine to run code")
	createCmd.Flags().BoolVarP(&createWatch, "watch", "w", false, "wait for the job to finish")

	resultsCmd.Flags().StringVarP(&resultsFormat, "output", "o", "", "output format: text, json or yaml")

	jobsCmd.Flags().StringVarP(&jobsStatus, "status", "s", "", "filter by status")
}

func runCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	job, err := jobs.Create(ctx, service.CreateInput{
		Query:           args[0],
		Guidance:        createGuidance,
		Model:           createModel,
		CodeInterpreter: createCode,
	})
	if err != nil {
		return err
	}

	if createWatch {
		return RunWatch(jobs, job)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Started job %s (%s)\n", job.ID, job.Model)
	fmt.Fprintf(out, "Check progress with 'deepresearch status %s' or 'deepresearch watch %s'\n", job.ID, job.ID)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	job, err := jobs.CheckStatus(context.Background(), args[0])
	if err != nil {
		return err
	}
	writeJob(cmd.OutOrStdout(), job, time.Now())
	return nil
}

func runResults(cmd *cobra.Command, args []string) error {
	format := resultsFormat
	if format == "" {
		format = defaultFormat()
	}

	job, report, err := jobs.GetResults(context.Background(), args[0])
	if errors.Is(err, service.ErrNotReady) {
		return fmt.Errorf("job %s is %s; try again later", job.ID, job.Status)
	}
	if err != nil {
		return err
	}
	return writeReport(cmd.OutOrStdout(), format, job, report)
}

func runJobs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		job, err := jobs.CheckStatus(ctx, args[0])
		if err != nil {
			return err
		}
		writeJob(out, job, time.Now())
		return nil
	}

	all, err := jobs.List(ctx)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	filtered := all[:0]
	for _, job := range all {
		if jobsStatus == "" || string(job.Status) == jobsStatus {
			filtered = append(filtered, job)
		}
	}
	writeJobTable(out, filtered)
	return nil
}
