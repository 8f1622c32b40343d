// Package worker drives pending jobs through the generation pipeline. It
// polls the queue on a fixed interval and processes jobs sequentially;
// everything about how a job runs lives in the pipeline.
package worker

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"scribe/internal/models"
	"scribe/internal/store"
)

const defaultPollInterval = time.Second

// Processor runs one job to a terminal state. Satisfied by
// *pipeline.Pipeline.
type Processor interface {
	Run(ctx context.Context, job *models.Job) error
}

type Worker struct {
	jobs         store.JobStore
	proc         Processor
	pollInterval time.Duration
}

func New(jobs store.JobStore, proc Processor, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Worker{jobs: jobs, proc: proc, pollInterval: pollInterval}
}

// Start polls for pending jobs until ctx is canceled. One failing job
// never stops the loop; its error is recorded on the job and the worker
// moves on.
func (w *Worker) Start(ctx context.Context) error {
	log.WithField("poll_interval", w.pollInterval).Info("worker started")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("worker stopping")
			return ctx.Err()
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain processes every job pending at the start of the tick. Jobs
// enqueued mid-drain wait for the next tick.
func (w *Worker) drain(ctx context.Context) {
	pending, err := w.jobs.ListPending(ctx)
	if err != nil {
		log.WithError(err).Error("failed to list pending jobs")
		return
	}

	for _, job := range pending {
		if ctx.Err() != nil {
			return
		}
		w.processJob(ctx, job)
	}
}

func (w *Worker) processJob(ctx context.Context, job *models.Job) {
	logger := log.WithFields(log.Fields{"job_id": job.ID, "name": job.Name})
	logger.Info("processing job")

	err := w.runSafely(ctx, job)
	if err == nil {
		return
	}
	logger.WithError(err).Error("job processing failed")

	// The pipeline writes its own terminal status. If it errored without
	// managing that write the job would stay pending forever, so force the
	// failure here.
	current, gerr := w.jobs.Get(ctx, job.ID)
	if gerr != nil {
		logger.WithError(gerr).Error("failed to read job after processing error")
		return
	}
	if current.IsTerminal() {
		return
	}
	genErr := models.AsGenerationError(err)
	if _, uerr := w.jobs.UpdateStatus(ctx, job.ID, models.StatusFailed, 0, nil, genErr.Message); uerr != nil {
		logger.WithError(uerr).Error("failed to force job failure")
	}
}

// runSafely converts a processor panic into an error so one bad job
// cannot take the worker down.
func (w *Worker) runSafely(ctx context.Context, job *models.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job processing panicked: %v", r)
		}
	}()
	return w.proc.Run(ctx, job)
}
