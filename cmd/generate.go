package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"scribe/internal/models"
	"scribe/internal/poller"
)

var (
	generateKeywords string
	generateCategory string
	generateOutline  string
	generateWait     bool
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate <title>",
	Short: "Submit an article generation job",
	Long: `Submits a generation job for the given article title. With --wait the
command polls until the job resolves and prints the outcome.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		data := models.JobData{
			Title:    args[0],
			Keywords: splitCommaList(generateKeywords),
			Outline:  splitLines(generateOutline),
			Category: generateCategory,
		}
		if len(data.Keywords) == 0 {
			return fmt.Errorf("at least one keyword is required (--keywords)")
		}

		job, err := appInstance.JobStore.Create(ctx, "generate-article", data)
		if err != nil {
			return fmt.Errorf("failed to enqueue job: %w", err)
		}
		if err := appInstance.ArticleStore.CreatePlaceholder(ctx, job.ID, data); err != nil {
			if rerr := appInstance.JobStore.Remove(ctx, job.ID); rerr != nil {
				fmt.Printf("WARN: failed to remove job %s after placeholder error: %v\n", job.ID, rerr)
			}
			return fmt.Errorf("failed to create article record: %w", err)
		}

		fmt.Printf("Submitted job %s (status: %s)\n", job.ID, job.Status)
		if !generateWait {
			return nil
		}

		cfg := appInstance.Config
		p := poller.New(appInstance.JobStore, cfg.Poller.Interval, cfg.Poller.MaxAttempts)
		resolved, err := p.Wait(ctx, job.ID)
		if err != nil {
			return fmt.Errorf("waiting for job %s: %w", job.ID, err)
		}

		switch resolved.Status {
		case models.StatusCompleted:
			fmt.Printf("%s job %s\n", color.GreenString("COMPLETED"), resolved.ID)
			if resolved.Result != nil {
				fmt.Printf("\n%s\n\n%s\n", resolved.Result.Title, resolved.Result.Content)
			}
		default:
			fmt.Printf("%s job %s: %s\n", color.RedString("FAILED"), resolved.ID, resolved.Error)
		}
		return nil
	},
}

func splitCommaList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVar(&generateKeywords, "keywords", "", "Comma-separated keywords (required)")
	generateCmd.Flags().StringVar(&generateCategory, "category", "", "Article category")
	generateCmd.Flags().StringVar(&generateOutline, "outline", "", "Newline-separated outline headings (generated when omitted)")
	generateCmd.Flags().BoolVar(&generateWait, "wait", false, "Poll until the job reaches a terminal status")
}
