package store

import (
	"context"

	"scribe/internal/models"
)

// --- Job Store ---

// JobStore is the durable record of job state plus the pending/terminal
// index lists backing the queue. It is the single shared mutable resource:
// the submission API, the worker, and the status API all go through it.
type JobStore interface {
	// Create allocates a fresh id, persists the initial record with
	// status=generating and progress=0, and appends the id to the pending
	// list.
	Create(ctx context.Context, name string, data models.JobData) (*models.Job, error)

	// Get returns the full record, or ErrNotFound for an unknown id.
	Get(ctx context.Context, id string) (*models.Job, error)

	// UpdateStatus merges status and progress onto the existing record.
	// result and errMsg are only written when non-zero; unspecified fields
	// are preserved from the prior record. A transition to a terminal
	// status additionally moves the id from the pending list to the
	// matching terminal list. Returns ErrNotFound if the job no longer
	// exists.
	UpdateStatus(ctx context.Context, id, status string, progress int, result *models.JobResult, errMsg string) (*models.Job, error)

	// Enqueue persists the job body and appends its id to the pending
	// list. Used to requeue an existing job.
	Enqueue(ctx context.Context, job *models.Job) error

	// ListPending returns a snapshot of all jobs currently in the pending
	// list. A new call re-reads current state.
	ListPending(ctx context.Context) ([]*models.Job, error)

	// Remove purges a job from all lists and deletes its body. Idempotent.
	Remove(ctx context.Context, id string) error

	PendingCount(ctx context.Context) (int64, error)
	CompletedCount(ctx context.Context) (int64, error)
	FailedCount(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// --- Article Store ---

// ArticleStore persists finished article content. An article row is
// created in a pending state at submission time and moved to a terminal
// state when generation finishes or fails; a failed job still leaves a
// row behind, marked with the error, for auditability.
type ArticleStore interface {
	CreatePlaceholder(ctx context.Context, id string, data models.JobData) error
	MarkCompleted(ctx context.Context, id, content, description string) error
	MarkFailed(ctx context.Context, id, message string) error
	GetArticle(ctx context.Context, id string) (*models.Article, error)

	Ping(ctx context.Context) error
	Close()
}
