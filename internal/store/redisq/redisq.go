// Package redisq implements the job store and queue on Redis. A job body
// lives in a hash keyed job:<id>; three lists index outcomes: job:queue
// (pending), job:completed and job:failed. The worker polls the pending
// list on an interval rather than blocking on a subscribe primitive.
package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"scribe/internal/models"
	"scribe/internal/store"
)

const (
	pendingList   = "job:queue"
	completedList = "job:completed"
	failedList    = "job:failed"
)

func jobKey(id string) string { return "job:" + id }

// Store is the Redis-backed store.JobStore implementation.
type Store struct {
	rdb *redis.Client
}

// New connects to Redis and verifies the connection with a ping.
func New(addr, password string, db int) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

// NewWithClient wraps an existing client. Used by tests with miniredis.
func NewWithClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Create allocates an id and persists the initial record. Requests are
// accepted immediately, so jobs are born in status=generating rather than
// waiting.
func (s *Store) Create(ctx context.Context, name string, data models.JobData) (*models.Job, error) {
	job := &models.Job{
		ID:        uuid.NewString(),
		Name:      name,
		Data:      data,
		Status:    models.StatusGenerating,
		Progress:  0,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Enqueue(ctx, job); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"job_id": job.ID, "title": data.Title}).Info("job enqueued")
	return job, nil
}

// Enqueue persists the job body and appends the id to the pending list.
// Append-only list semantics keep this safe against concurrent worker
// dequeues.
func (s *Store) Enqueue(ctx context.Context, job *models.Job) error {
	payload, err := json.Marshal(job.Data)
	if err != nil {
		return fmt.Errorf("marshal job data: %w", err)
	}

	fields := map[string]interface{}{
		"id":        job.ID,
		"name":      job.Name,
		"data":      string(payload),
		"status":    job.Status,
		"createdAt": job.CreatedAt.Format(time.RFC3339Nano),
		"progress":  job.Progress,
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, jobKey(job.ID), fields)
	// A requeued job must not keep its old outcome entry or failure fields.
	pipe.HDel(ctx, jobKey(job.ID), "error", "result")
	pipe.LRem(ctx, completedList, 0, job.ID)
	pipe.LRem(ctx, failedList, 0, job.ID)
	pipe.LPush(ctx, pendingList, job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}
	return nil
}

// Get reads the full record, returning store.ErrNotFound for unknown ids.
func (s *Store) Get(ctx context.Context, id string) (*models.Job, error) {
	raw, err := s.rdb.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	if len(raw) == 0 {
		return nil, store.ErrNotFound
	}
	return decodeJob(id, raw)
}

func decodeJob(id string, raw map[string]string) (*models.Job, error) {
	job := &models.Job{
		ID:     raw["id"],
		Name:   raw["name"],
		Status: raw["status"],
		Error:  raw["error"],
	}
	if job.ID == "" {
		job.ID = id
	}

	if v := raw["data"]; v != "" {
		if err := json.Unmarshal([]byte(v), &job.Data); err != nil {
			return nil, fmt.Errorf("decode job %s data: %w", id, err)
		}
	}
	if v := raw["progress"]; v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("decode job %s progress: %w", id, err)
		}
		job.Progress = p
	}
	if v := raw["createdAt"]; v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("decode job %s createdAt: %w", id, err)
		}
		job.CreatedAt = t
	}
	if v := raw["result"]; v != "" {
		var res models.JobResult
		if err := json.Unmarshal([]byte(v), &res); err != nil {
			return nil, fmt.Errorf("decode job %s result: %w", id, err)
		}
		job.Result = &res
	}
	return job, nil
}

// UpdateStatus merges the given fields onto the existing record. Only the
// touched hash fields are written, so concurrent updates to disjoint
// fields do not clobber each other. Terminal transitions also move the id
// onto the matching outcome list; repeating a terminal write leaves
// observable state unchanged.
func (s *Store) UpdateStatus(ctx context.Context, id, status string, progress int, result *models.JobResult, errMsg string) (*models.Job, error) {
	if !models.ValidStatus(status) {
		return nil, fmt.Errorf("update job %s: unknown status %q", id, status)
	}

	exists, err := s.rdb.Exists(ctx, jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("update job %s: %w", id, err)
	}
	if exists == 0 {
		return nil, store.ErrNotFound
	}

	status = models.CanonicalStatus(status)
	fields := map[string]interface{}{
		"status":   status,
		"progress": progress,
	}
	// A failed job never carries a result; the field is cleared below even
	// if a completion wrote one earlier.
	if result != nil && status != models.StatusFailed {
		payload, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("marshal job %s result: %w", id, err)
		}
		fields["result"] = string(payload)
	}
	if errMsg != "" {
		fields["error"] = errMsg
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, jobKey(id), fields)
	if status == models.StatusFailed {
		pipe.HDel(ctx, jobKey(id), "result")
	}
	if models.IsTerminal(status) {
		target := completedList
		if status == models.StatusFailed {
			target = failedList
		}
		// Scrub every list so a terminal rewrite cannot leave the id on
		// two outcome lists, and repeating a write changes nothing.
		pipe.LRem(ctx, pendingList, 0, id)
		pipe.LRem(ctx, completedList, 0, id)
		pipe.LRem(ctx, failedList, 0, id)
		pipe.LPush(ctx, target, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("update job %s: %w", id, err)
	}

	log.WithFields(log.Fields{
		"job_id":   id,
		"status":   status,
		"progress": progress,
	}).Debug("job status updated")

	return s.Get(ctx, id)
}

// ListPending snapshots the pending list and loads each job body. Ids
// whose body has vanished (e.g. removed by an administrator mid-scan) are
// skipped.
func (s *Store) ListPending(ctx context.Context) ([]*models.Job, error) {
	ids, err := s.rdb.LRange(ctx, pendingList, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}

	jobs := make([]*models.Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Remove purges the job body and every list entry. No-op if already gone.
func (s *Store) Remove(ctx context.Context, id string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, jobKey(id))
	pipe.LRem(ctx, pendingList, 0, id)
	pipe.LRem(ctx, completedList, 0, id)
	pipe.LRem(ctx, failedList, 0, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove job %s: %w", id, err)
	}
	log.WithField("job_id", id).Info("job removed")
	return nil
}

func (s *Store) PendingCount(ctx context.Context) (int64, error) {
	return s.rdb.LLen(ctx, pendingList).Result()
}

func (s *Store) CompletedCount(ctx context.Context) (int64, error) {
	return s.rdb.LLen(ctx, completedList).Result()
}

func (s *Store) FailedCount(ctx context.Context) (int64, error) {
	return s.rdb.LLen(ctx, failedList).Result()
}

var _ store.JobStore = (*Store)(nil)
