package models

import (
	"time"
)

/*
Job status constants for use throughout the codebase.
Centralizing these avoids magic strings and improves maintainability.

"failed" and "error" both appear on the wire for historical reasons;
CanonicalStatus folds them into a single terminal-failure state.
*/
const (
	StatusWaiting    = "waiting"
	StatusGenerating = "generating"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"

	// StatusError is a legacy spelling of StatusFailed still accepted at
	// the API boundary and in persisted records.
	StatusError = "error"
)

// CanonicalStatus maps legacy status spellings onto the canonical set.
func CanonicalStatus(status string) string {
	if status == StatusError {
		return StatusFailed
	}
	return status
}

// IsTerminal reports whether a job in the given status will never
// transition again.
func IsTerminal(status string) bool {
	s := CanonicalStatus(status)
	return s == StatusCompleted || s == StatusFailed
}

// ValidStatus reports whether the given string is a recognized job status,
// legacy spellings included.
func ValidStatus(status string) bool {
	switch status {
	case StatusWaiting, StatusGenerating, StatusCompleted, StatusFailed, StatusError:
		return true
	}
	return false
}

// JobData is the generation request payload carried by a job.
type JobData struct {
	Title    string   `json:"title"`
	Outline  []string `json:"outline,omitempty"`
	Keywords []string `json:"keywords"`
	Category string   `json:"category"`
}

// JobResult holds the finished article content. Populated only when the
// job reaches StatusCompleted.
type JobResult struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Summary string `json:"summary"`
}

// Job is a tracked unit of asynchronous article-generation work.
type Job struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Data      JobData    `json:"data"`
	Status    string     `json:"status"`
	Progress  int        `json:"progress"`
	Result    *JobResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// JobStatusView is the read model returned to polling clients.
type JobStatusView struct {
	ID       string     `json:"id"`
	Status   string     `json:"status"`
	Progress int        `json:"progress"`
	Result   *JobResult `json:"result,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// IsTerminal reports whether the job will never transition again.
func (j *Job) IsTerminal() bool {
	return IsTerminal(j.Status)
}

// StatusView projects a job onto the polling read model. Legacy status
// spellings are canonicalized so clients only ever see one failure state.
func (j *Job) StatusView() JobStatusView {
	return JobStatusView{
		ID:       j.ID,
		Status:   CanonicalStatus(j.Status),
		Progress: j.Progress,
		Result:   j.Result,
		Error:    j.Error,
	}
}

// Article mirrors the articles table schema.
type Article struct {
	ID           string    `db:"id" json:"id"`
	Title        string    `db:"title" json:"title"`
	Content      string    `db:"content" json:"content"`
	Category     string    `db:"category" json:"category"`
	Keywords     []string  `db:"keywords" json:"keywords"`
	Description  string    `db:"description" json:"description"`
	Status       string    `db:"status" json:"status"`
	ErrorMessage *string   `db:"error_message" json:"errorMessage,omitempty"` // nullable
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}
