package redisq

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scribe/internal/models"
	"scribe/internal/store"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	s := NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func testData() models.JobData {
	return models.JobData{
		Title:    "Example",
		Outline:  []string{"intro", "body", "conclusion"},
		Keywords: []string{"k1"},
		Category: "c",
	}
}

func TestCreateAndGet(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	job, err := s.Create(ctx, "generate", testData())
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)
	assert.Equal(t, models.StatusGenerating, job.Status)
	assert.Equal(t, 0, job.Progress)

	// The id must land on the pending list.
	pending, err := mr.List("job:queue")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, job.ID, pending[0])

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, "generate", got.Name)
	assert.Equal(t, testData(), got.Data)
	assert.Nil(t, got.Result)
	assert.Empty(t, got.Error)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetNotFound(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateStatusNotFound(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.UpdateStatus(context.Background(), "missing", models.StatusGenerating, 10, nil, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateStatusPreservesUnspecifiedFields(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	job, err := s.Create(ctx, "generate", testData())
	require.NoError(t, err)

	res := &models.JobResult{Title: "Example", Content: "body", Summary: "sum"}
	_, err = s.UpdateStatus(ctx, job.ID, models.StatusGenerating, 50, res, "")
	require.NoError(t, err)

	// A later progress-only update must not wipe the stored result.
	got, err := s.UpdateStatus(ctx, job.ID, models.StatusGenerating, 80, nil, "")
	require.NoError(t, err)
	require.NotNil(t, got.Result)
	assert.Equal(t, "body", got.Result.Content)
	assert.Equal(t, 80, got.Progress)
	assert.Equal(t, testData(), got.Data)
}

func TestTerminalWriteMovesJobBetweenLists(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	job, err := s.Create(ctx, "generate", testData())
	require.NoError(t, err)

	res := &models.JobResult{Title: "Example", Content: "body", Summary: "sum"}
	got, err := s.UpdateStatus(ctx, job.ID, models.StatusCompleted, 100, res, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)

	pending, _ := mr.List("job:queue")
	assert.Empty(t, pending)
	completed, err := mr.List("job:completed")
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, job.ID, completed[0])
}

func TestTerminalWriteIsIdempotent(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	job, err := s.Create(ctx, "generate", testData())
	require.NoError(t, err)

	res := &models.JobResult{Title: "Example", Content: "body", Summary: "sum"}
	first, err := s.UpdateStatus(ctx, job.ID, models.StatusCompleted, 100, res, "")
	require.NoError(t, err)

	second, err := s.UpdateStatus(ctx, job.ID, models.StatusCompleted, 100, res, "")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	completed, _ := mr.List("job:completed")
	assert.Len(t, completed, 1, "repeated terminal write must not duplicate the outcome entry")
}

func TestLegacyErrorStatusCanonicalized(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	job, err := s.Create(ctx, "generate", testData())
	require.NoError(t, err)

	got, err := s.UpdateStatus(ctx, job.ID, models.StatusError, 0, nil, "boom")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)

	failed, _ := mr.List("job:failed")
	require.Len(t, failed, 1)
	assert.Equal(t, job.ID, failed[0])
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	job, err := s.Create(ctx, "generate", testData())
	require.NoError(t, err)

	_, err = s.UpdateStatus(ctx, job.ID, "exploded", 0, nil, "")
	assert.Error(t, err)
}

func TestListPendingSnapshot(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	a, err := s.Create(ctx, "generate", testData())
	require.NoError(t, err)
	b, err := s.Create(ctx, "generate", testData())
	require.NoError(t, err)

	jobs, err := s.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	// Completing one job shrinks the next snapshot.
	_, err = s.UpdateStatus(ctx, a.ID, models.StatusCompleted, 100,
		&models.JobResult{Title: "t", Content: "c", Summary: "s"}, "")
	require.NoError(t, err)

	jobs, err = s.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, b.ID, jobs[0].ID)
}

func TestListPendingSkipsVanishedBodies(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	job, err := s.Create(ctx, "generate", testData())
	require.NoError(t, err)

	// Simulate an eviction: body gone, list entry still there.
	mr.Del("job:" + job.ID)

	jobs, err := s.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestRemoveIsIdempotent(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	job, err := s.Create(ctx, "generate", testData())
	require.NoError(t, err)

	require.NoError(t, s.Remove(ctx, job.ID))
	_, err = s.Get(ctx, job.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	pending, _ := mr.List("job:queue")
	assert.Empty(t, pending)

	// Removing again is a no-op.
	require.NoError(t, s.Remove(ctx, job.ID))
}

func TestCounts(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	a, err := s.Create(ctx, "generate", testData())
	require.NoError(t, err)
	_, err = s.Create(ctx, "generate", testData())
	require.NoError(t, err)

	_, err = s.UpdateStatus(ctx, a.ID, models.StatusFailed, 0, nil, "boom")
	require.NoError(t, err)

	pending, err := s.PendingCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending)

	failed, err := s.FailedCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, failed)

	completed, err := s.CompletedCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, completed)
}

func TestRequeueClearsPreviousOutcome(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	job, err := s.Create(ctx, "generate", testData())
	require.NoError(t, err)

	_, err = s.UpdateStatus(ctx, job.ID, models.StatusFailed, 0, nil, "quota exhausted")
	require.NoError(t, err)

	job.Status = models.StatusGenerating
	job.Progress = 0
	require.NoError(t, s.Enqueue(ctx, job))

	pending, err := mr.List("job:queue")
	require.NoError(t, err)
	assert.Equal(t, []string{job.ID}, pending)
	assert.False(t, mr.Exists("job:failed"))

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusGenerating, got.Status)
	assert.Empty(t, got.Error, "a requeued job must not carry its old failure")
	assert.Nil(t, got.Result)
}

func TestFailedWriteAfterCompletionClearsResult(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	job, err := s.Create(ctx, "generate", testData())
	require.NoError(t, err)

	res := &models.JobResult{Title: "Example", Content: "body", Summary: "s"}
	_, err = s.UpdateStatus(ctx, job.ID, models.StatusCompleted, 100, res, "")
	require.NoError(t, err)

	got, err := s.UpdateStatus(ctx, job.ID, models.StatusFailed, 0, nil, "deadline exceeded")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Nil(t, got.Result, "a failed job must not carry a result")
	assert.Equal(t, "deadline exceeded", got.Error)

	// Exactly one outcome list holds the id.
	failed, err := mr.List("job:failed")
	require.NoError(t, err)
	assert.Equal(t, []string{job.ID}, failed)
	assert.False(t, mr.Exists("job:completed"))
}
