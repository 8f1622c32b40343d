package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"scribe/internal/models"
)

// jobsCmd groups the queue inspection commands
var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage the generation job queue",
}

// jobsListCmd represents the jobs list command
var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs waiting in the queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		pending, err := appInstance.JobStore.ListPending(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list pending jobs: %w", err)
		}
		if len(pending) == 0 {
			fmt.Println("No pending jobs.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Job ID", "Title", "Status", "Progress", "Created At"})
		table.SetBorder(true)
		table.SetRowLine(true)

		for _, job := range pending {
			table.Append([]string{
				job.ID,
				job.Data.Title,
				job.Status,
				strconv.Itoa(job.Progress) + "%",
				job.CreatedAt.Format(time.RFC3339),
			})
		}
		table.Render()
		return nil
	},
}

// jobsGetCmd represents the jobs get command
var jobsGetCmd = &cobra.Command{
	Use:   "get <job-id>",
	Short: "Show the status of a single job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		job, err := appInstance.JobStore.Get(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to retrieve job %s: %w", args[0], err)
		}

		view := job.StatusView()
		fmt.Printf("Job:      %s\n", view.ID)
		fmt.Printf("Status:   %s\n", colorStatus(view.Status))
		fmt.Printf("Progress: %d%%\n", view.Progress)
		if view.Error != "" {
			fmt.Printf("Error:    %s\n", view.Error)
		}
		if view.Result != nil {
			fmt.Printf("Result:   %s (%d bytes)\n", view.Result.Title, len(view.Result.Content))
		}
		return nil
	},
}

// jobsStatsCmd represents the jobs stats command
var jobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue-level counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		pending, err := appInstance.JobStore.PendingCount(ctx)
		if err != nil {
			return fmt.Errorf("failed to count pending jobs: %w", err)
		}
		completed, err := appInstance.JobStore.CompletedCount(ctx)
		if err != nil {
			return fmt.Errorf("failed to count completed jobs: %w", err)
		}
		failed, err := appInstance.JobStore.FailedCount(ctx)
		if err != nil {
			return fmt.Errorf("failed to count failed jobs: %w", err)
		}

		fmt.Printf("Pending:   %d\n", pending)
		fmt.Printf("Completed: %s\n", color.GreenString("%d", completed))
		fmt.Printf("Failed:    %s\n", color.RedString("%d", failed))
		return nil
	},
}

// jobsRemoveCmd represents the jobs remove command
var jobsRemoveCmd = &cobra.Command{
	Use:   "remove <job-id>",
	Short: "Remove a job record and dequeue it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		if err := appInstance.JobStore.Remove(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to remove job %s: %w", args[0], err)
		}
		fmt.Printf("Removed job %s\n", args[0])
		return nil
	},
}

// jobsRequeueCmd represents the jobs requeue command
var jobsRequeueCmd = &cobra.Command{
	Use:   "requeue <job-id>",
	Short: "Put a failed job back on the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		job, err := appInstance.JobStore.Get(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to retrieve job %s: %w", args[0], err)
		}
		if job.Status != models.StatusFailed {
			return fmt.Errorf("job %s is %s; only failed jobs can be requeued", job.ID, job.Status)
		}

		job.Status = models.StatusGenerating
		job.Progress = 0
		job.Error = ""
		job.Result = nil
		if err := appInstance.JobStore.Enqueue(ctx, job); err != nil {
			return fmt.Errorf("failed to requeue job %s: %w", job.ID, err)
		}
		fmt.Printf("Requeued job %s\n", job.ID)
		return nil
	},
}

func colorStatus(status string) string {
	switch status {
	case models.StatusCompleted:
		return color.GreenString(status)
	case models.StatusFailed:
		return color.RedString(status)
	default:
		return color.YellowString(status)
	}
}

func init() {
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsGetCmd)
	jobsCmd.AddCommand(jobsStatsCmd)
	jobsCmd.AddCommand(jobsRemoveCmd)
	jobsCmd.AddCommand(jobsRequeueCmd)
	rootCmd.AddCommand(jobsCmd)
}
