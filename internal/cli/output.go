package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/raphaelgruber/deepresearch-mcp/internal/models"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Output formats for the results command.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// defaultFormat prints text for humans and JSON when stdout is piped.
func defaultFormat() string {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return formatText
	}
	return formatJSON
}

// resultsDocument is the machine-readable form of a finished job.
type resultsDocument struct {
	ID      string         `json:"id" yaml:"id"`
	Status  string         `json:"status" yaml:"status"`
	Query   string         `json:"query" yaml:"query"`
	Model   string         `json:"model" yaml:"model"`
	Results *models.Report `json:"results" yaml:"results"`
}

// writeReport renders a completed job in the requested format.
func writeReport(w io.Writer, format string, job *models.Job, report *models.Report) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resultsDocument{
			ID: job.ID, Status: string(job.Status), Query: job.Query, Model: job.Model, Results: report,
		})

	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(resultsDocument{
			ID: job.ID, Status: string(job.Status), Query: job.Query, Model: job.Model, Results: report,
		}); err != nil {
			return err
		}
		return enc.Close()

	case formatText:
		fmt.Fprintf(w, "%s\n\n", report.Report)
		if report.CitationCount == 0 {
			return nil
		}
		fmt.Fprintf(w, "Citations (%d):\n", report.CitationCount)
		for _, c := range report.Citations {
			line := fmt.Sprintf("  [%d] %s", c.ID, c.Title)
			if c.URL != "" {
				line += " <" + c.URL + ">"
			}
			fmt.Fprintln(w, line)
			if c.Snippet != "" {
				fmt.Fprintf(w, "      %s\n", c.Snippet)
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

// writeJob prints the details of one job.
func writeJob(w io.Writer, job *models.Job, now time.Time) {
	fmt.Fprintf(w, "Job: %s\n", job.ID)
	fmt.Fprintf(w, "  Status: %s\n", job.Status)
	fmt.Fprintf(w, "  Query: %s\n", job.Query)
	fmt.Fprintf(w, "  Model: %s\n", job.Model)
	fmt.Fprintf(w, "  Created: %s\n", job.CreatedAt.Format(time.RFC3339))
	if job.CompletedAt != nil {
		fmt.Fprintf(w, "  Completed: %s\n", job.CompletedAt.Format(time.RFC3339))
		fmt.Fprintf(w, "  Duration: %s\n", job.CompletedAt.Sub(job.CreatedAt).Round(time.Second))
	} else {
		fmt.Fprintf(w, "  Elapsed: %.1f min\n", job.ElapsedMinutes(now))
	}
	if job.PollFailures > 0 {
		fmt.Fprintf(w, "  Poll failures: %d (last: %s)\n", job.PollFailures, job.LastPollError)
	}
	if job.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", job.Error)
	}
}

// writeJobTable prints one line per job.
func writeJobTable(w io.Writer, jobs []*models.Job) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs found")
		return
	}

	fmt.Fprintf(w, "%-10s %-10s %-22s %-20s %s\n", "ID", "STATUS", "MODEL", "CREATED", "QUERY")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, job := range jobs {
		fmt.Fprintf(w, "%-10s %-10s %-22s %-20s %s\n",
			job.ID, job.Status, job.Model, job.CreatedAt.Format("2006-01-02 15:04:05"), shorten(job.Query, 40))
	}
}

// shorten truncates s to n runes, adding "..." if truncated.
func shorten(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
