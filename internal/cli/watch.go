package cli

import (
	"context"
	"fmt"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/deepresearch-mcp/internal/models"
	"github.com/spf13/cobra"
)

// pollInterval is how often watch reconciles the job with the engine.
var pollInterval = 10 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch <job-id>",
	Short: "Wait for a job to finish, showing a spinner",
	Long: `Poll a job until it completes or fails.

Press q or Ctrl+C to stop watching; the job keeps running in the background.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := jobs.CheckStatus(context.Background(), args[0])
		if err != nil {
			return err
		}
		return RunWatch(jobs, job)
	},
}

// statusChecker reconciles a job with the engine.
type statusChecker interface {
	CheckStatus(ctx context.Context, id string) (*models.Job, error)
}

// Theme holds the color scheme for the watch display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// tickMsg triggers polling the job status
type tickMsg time.Time

// jobUpdateMsg carries the updated job data
type jobUpdateMsg struct {
	job *models.Job
	err error
}

// watchModel is the bubbletea model for waiting on a research job.
type watchModel struct {
	checker  statusChecker
	jobID    string
	job      *models.Job
	spinner  spinner.Model
	theme    Theme
	now      func() time.Time
	done     bool
	quitting bool
	err      error
}

func newWatchModel(c statusChecker, job *models.Job) watchModel {
	return watchModel{
		checker: c,
		jobID:   job.ID,
		job:     job,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		theme:   defaultTheme,
		now:     time.Now,
	}
}

// Init starts the spinner and the first poll.
func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchJob())
}

// Update handles messages and returns the updated model.
func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.done = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.fetchJob()

	case jobUpdateMsg:
		// Transient errors are recorded on the job itself; a failed
		// lookup means the job is gone.
		if msg.err != nil {
			m.err = fmt.Errorf("failed to fetch job status: %w", msg.err)
			m.done = true
			return m, tea.Quit
		}

		m.job = msg.job
		switch m.job.Status {
		case models.JobStatusCompleted:
			m.done = true
			return m, tea.Quit
		case models.JobStatusFailed:
			m.done = true
			m.err = fmt.Errorf("%s", m.job.Error)
			return m, tea.Quit
		}
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the watch display.
func (m watchModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m watchModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.job.Status))
	elapsed := fmt.Sprintf("%.1f min", m.job.ElapsedMinutes(m.now()))
	line := fmt.Sprintf("%s %s %s  %s", m.spinner.View(), status, shorten(m.job.Query, 50), elapsed)
	if m.job.PollFailures > 0 {
		line += m.theme.errorStyle().Render(fmt.Sprintf("  (%d failed polls)", m.job.PollFailures))
	}

	hint := m.theme.hintStyle().Render("Press q to stop watching; the job continues in background")
	return line + "\n" + hint + "\n"
}

// finalView renders the completion message.
func (m watchModel) finalView() string {
	if m.quitting {
		msg := fmt.Sprintf("\nJob %s continues in background.\nUse 'deepresearch status %s' to check on it.\n",
			m.jobID, m.jobID)
		return m.theme.hintStyle().Render(msg)
	}

	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Job failed: %s\n", m.err))
	}

	return m.theme.completedStyle().Render("✓ Completed") +
		fmt.Sprintf("\n\nRead the report with 'deepresearch results %s'\n", m.jobID)
}

// fetchJob reconciles the job status.
// Runs in a separate goroutine (command) to avoid blocking Update().
func (m watchModel) fetchJob() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		job, err := m.checker.CheckStatus(ctx, m.jobID)
		return jobUpdateMsg{job: job, err: err}
	}
}

// tickCmd returns a command that sends a tick after the poll interval.
func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// RunWatch runs the interactive watch UI for a job.
// Returns nil on success or when the user stops watching, error on job failure.
func RunWatch(c statusChecker, job *models.Job) error {
	if job.Status.Terminal() {
		m := newWatchModel(c, job)
		m.done = true
		if job.Status == models.JobStatusFailed {
			m.err = fmt.Errorf("%s", job.Error)
		}
		fmt.Print(m.finalView())
		return m.err
	}

	p := tea.NewProgram(newWatchModel(c, job))
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("watch UI error: %w", err)
	}

	if m, ok := finalModel.(watchModel); ok {
		if m.quitting {
			return nil
		}
		if m.err != nil {
			return m.err
		}
	}
	return nil
}
