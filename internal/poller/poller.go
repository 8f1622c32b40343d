// Package poller waits for a job to reach a terminal status by reading it
// on an interval. It is the client-side counterpart of the worker: the
// generate command uses it to block until its submission resolves.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"scribe/internal/models"
	"scribe/internal/store"
)

const (
	defaultInterval    = 5 * time.Second
	defaultMaxAttempts = 60
)

// ErrPollTimeout reports that the poller gave up waiting. It is distinct
// from a job that failed with a generation timeout; that one resolves with
// a terminal status and no poller error.
var ErrPollTimeout = errors.New("poller: job did not reach a terminal status in time")

type Poller struct {
	jobs        store.JobStore
	interval    time.Duration
	maxAttempts int
}

func New(jobs store.JobStore, interval time.Duration, maxAttempts int) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Poller{jobs: jobs, interval: interval, maxAttempts: maxAttempts}
}

// Wait blocks until the job's status is terminal, the attempt budget runs
// out, or ctx is canceled. Completion is judged by status alone; a missing
// result on a completed job is still a completion.
func (p *Poller) Wait(ctx context.Context, jobID string) (*models.Job, error) {
	logger := log.WithField("job_id", jobID)

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		job, err := p.jobs.Get(ctx, jobID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("poller: job %s: %w", jobID, err)
			}
			// Transient read failures burn an attempt but keep polling.
			logger.WithError(err).Warn("poll read failed")
		} else {
			if job.IsTerminal() {
				return job, nil
			}
			logger.WithFields(log.Fields{
				"status":   job.Status,
				"progress": job.Progress,
				"attempt":  attempt,
			}).Debug("job still in progress")
		}

		if attempt == p.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.interval):
		}
	}
	return nil, ErrPollTimeout
}
