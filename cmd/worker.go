package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"scribe/internal/worker"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background generation worker",
	Long:  `Starts the worker process that polls the job queue and runs article generation jobs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get application context: %w", err)
		}
		defer appInstance.Close()

		w := worker.New(appInstance.JobStore, appInstance.Pipeline, appInstance.Config.Worker.PollInterval)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("worker exited: %w", err)
		}
		log.Info("worker shut down")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
