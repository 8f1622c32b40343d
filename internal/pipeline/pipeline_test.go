package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scribe/internal/models"
	"scribe/internal/services"
	"scribe/internal/store"
	"scribe/internal/store/redisq"
)

// stubGenerator scripts TextGenerator behavior per call.
type stubGenerator struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	fn      func(call int, prompt string) (string, error)
}

func (g *stubGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.calls++
	call := g.calls
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	return g.fn(call, prompt)
}

func (g *stubGenerator) Name() string                    { return "stub" }
func (g *stubGenerator) ModelName() string               { return "stub-model" }
func (g *stubGenerator) Status() services.ProviderStatus { return services.ProviderStatusActive }

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// stubArticleStore records terminal article writes.
type stubArticleStore struct {
	mu          sync.Mutex
	completed   []string
	failed      []string
	content     string
	description string
	completeErr error
}

func (s *stubArticleStore) CreatePlaceholder(ctx context.Context, id string, data models.JobData) error {
	return nil
}

func (s *stubArticleStore) MarkCompleted(ctx context.Context, id, content, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completeErr != nil {
		return s.completeErr
	}
	s.completed = append(s.completed, id)
	s.content = content
	s.description = description
	return nil
}

func (s *stubArticleStore) MarkFailed(ctx context.Context, id, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, id)
	return nil
}

func (s *stubArticleStore) GetArticle(ctx context.Context, id string) (*models.Article, error) {
	return nil, store.ErrNotFound
}

func (s *stubArticleStore) Ping(ctx context.Context) error { return nil }
func (s *stubArticleStore) Close()                         {}

// recordingJobStore captures the sequence of status updates flowing
// through a real redis-backed store.
type recordingJobStore struct {
	store.JobStore
	mu      sync.Mutex
	updates []models.JobStatusView
}

func (r *recordingJobStore) UpdateStatus(ctx context.Context, id, status string, progress int, result *models.JobResult, errMsg string) (*models.Job, error) {
	r.mu.Lock()
	r.updates = append(r.updates, models.JobStatusView{ID: id, Status: status, Progress: progress})
	r.mu.Unlock()
	return r.JobStore.UpdateStatus(ctx, id, status, progress, result, errMsg)
}

func newTestJobStore(t *testing.T) *recordingJobStore {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	s := redisq.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { s.Close() })
	return &recordingJobStore{JobStore: s}
}

func okGenerator() *stubGenerator {
	return &stubGenerator{fn: func(call int, prompt string) (string, error) {
		return "Generated text for the article body.", nil
	}}
}

func seedJob(t *testing.T, jobs store.JobStore, data models.JobData) *models.Job {
	t.Helper()
	job, err := jobs.Create(context.Background(), "generate", data)
	require.NoError(t, err)
	return job
}

func requestWithOutline() models.JobData {
	return models.JobData{
		Title:    "Example",
		Outline:  []string{"intro", "body", "conclusion"},
		Keywords: []string{"k1"},
		Category: "c",
	}
}

func TestRunCompletesEndToEnd(t *testing.T) {
	jobs := newTestJobStore(t)
	articles := &stubArticleStore{}
	gen := okGenerator()
	p := New(jobs, articles, gen, Config{Timeout: 5 * time.Second, MaxRetries: 3})

	job := seedJob(t, jobs, requestWithOutline())
	require.NoError(t, p.Run(context.Background(), job))

	got, err := jobs.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.Result)
	assert.Equal(t, "Example", got.Result.Title)
	assert.NotEmpty(t, got.Result.Content)
	assert.NotEmpty(t, got.Result.Summary)

	// Outline was supplied: first half, second half, description.
	assert.Equal(t, 3, gen.callCount())
	assert.Equal(t, []string{job.ID}, articles.completed)
	assert.Contains(t, articles.content, "Generated text")
}

func TestRunGeneratesOutlineWhenMissing(t *testing.T) {
	jobs := newTestJobStore(t)
	articles := &stubArticleStore{}
	gen := &stubGenerator{fn: func(call int, prompt string) (string, error) {
		if call == 1 {
			return "Introduction\nMain section\nConclusion", nil
		}
		return "Section text.", nil
	}}
	p := New(jobs, articles, gen, Config{Timeout: 5 * time.Second, MaxRetries: 3})

	data := requestWithOutline()
	data.Outline = nil
	job := seedJob(t, jobs, data)
	require.NoError(t, p.Run(context.Background(), job))

	// Outline, first half, second half, description.
	assert.Equal(t, 4, gen.callCount())
	assert.Contains(t, gen.prompts[0], "outline")

	got, err := jobs.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
}

func TestQuotaShortCircuit(t *testing.T) {
	jobs := newTestJobStore(t)
	articles := &stubArticleStore{}
	gen := &stubGenerator{fn: func(call int, prompt string) (string, error) {
		return "", models.NewGenerationError(models.CodeQuotaExceeded, errors.New("429"))
	}}
	// A long retry delay proves no delay is incurred on the quota path.
	p := New(jobs, articles, gen, Config{Timeout: 5 * time.Second, MaxRetries: 3, RetryDelay: time.Hour})

	job := seedJob(t, jobs, requestWithOutline())
	start := time.Now()
	err := p.Run(context.Background(), job)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)

	assert.Equal(t, 1, gen.callCount(), "quota exhaustion must fail after exactly one attempt")

	got, gerr := jobs.Get(context.Background(), job.ID)
	require.NoError(t, gerr)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Contains(t, strings.ToLower(got.Error), "quota")
	assert.Equal(t, []string{job.ID}, articles.failed)
}

func TestRetryExhaustion(t *testing.T) {
	jobs := newTestJobStore(t)
	articles := &stubArticleStore{}
	gen := &stubGenerator{fn: func(call int, prompt string) (string, error) {
		return "", models.NewGenerationError(models.CodeAPIServerError, errors.New("500"))
	}}
	p := New(jobs, articles, gen, Config{Timeout: 5 * time.Second, MaxRetries: 3, RetryDelay: time.Millisecond})

	job := seedJob(t, jobs, requestWithOutline())
	err := p.Run(context.Background(), job)
	require.Error(t, err)

	assert.Equal(t, 3, gen.callCount(), "transient failures retry up to the attempt cap")
	assert.Equal(t, models.CodeContentGenerationFailed, models.AsGenerationError(err).Code)

	got, gerr := jobs.Get(context.Background(), job.ID)
	require.NoError(t, gerr)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, 0, got.Progress)
}

func TestDeadlineForcesFailure(t *testing.T) {
	jobs := newTestJobStore(t)
	articles := &stubArticleStore{}
	gen := &stubGenerator{fn: func(call int, prompt string) (string, error) {
		<-make(chan struct{}) // never returns
		return "", nil
	}}
	p := New(jobs, articles, gen, Config{Timeout: 50 * time.Millisecond, MaxRetries: 3})

	job := seedJob(t, jobs, requestWithOutline())
	err := p.Run(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, models.CodeTimeout, models.AsGenerationError(err).Code)

	got, gerr := jobs.Get(context.Background(), job.ID)
	require.NoError(t, gerr)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Contains(t, strings.ToLower(got.Error), "timed out")
	assert.Equal(t, 0, got.Progress)
	assert.Nil(t, got.Result)
}

func TestLateFailureDoesNotOverwriteCompletion(t *testing.T) {
	jobs := newTestJobStore(t)
	articles := &stubArticleStore{}
	p := New(jobs, articles, okGenerator(), Config{Timeout: 5 * time.Second, MaxRetries: 3})

	job := seedJob(t, jobs, requestWithOutline())
	require.NoError(t, p.Run(context.Background(), job))

	// A deadline firing just as the work finishes must not demote the
	// recorded completion.
	p.fail(context.Background(), job, models.NewGenerationError(models.CodeTimeout, context.DeadlineExceeded))

	got, err := jobs.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.NotNil(t, got.Result)
	assert.Empty(t, articles.failed)
}

func TestValidationFailsFast(t *testing.T) {
	jobs := newTestJobStore(t)
	articles := &stubArticleStore{}
	gen := okGenerator()
	p := New(jobs, articles, gen, Config{Timeout: 5 * time.Second, MaxRetries: 3})

	data := requestWithOutline()
	data.Title = "  "
	job := seedJob(t, jobs, data)

	err := p.Run(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, models.CodeValidation, models.AsGenerationError(err).Code)
	assert.Zero(t, gen.callCount(), "validation failures are never sent to the generator")

	got, gerr := jobs.Get(context.Background(), job.ID)
	require.NoError(t, gerr)
	assert.Equal(t, models.StatusFailed, got.Status)
}

func TestSaveFailureIsTerminal(t *testing.T) {
	jobs := newTestJobStore(t)
	articles := &stubArticleStore{completeErr: errors.New("connection reset")}
	gen := okGenerator()
	p := New(jobs, articles, gen, Config{Timeout: 5 * time.Second, MaxRetries: 3})

	job := seedJob(t, jobs, requestWithOutline())
	err := p.Run(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, models.CodeSaveFailed, models.AsGenerationError(err).Code)

	// Generation work is not repeated after a save failure.
	assert.Equal(t, 3, gen.callCount())

	got, gerr := jobs.Get(context.Background(), job.ID)
	require.NoError(t, gerr)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Nil(t, got.Result, "a failed job must not carry a result")
}

func TestDescriptionFallsBackOnFailure(t *testing.T) {
	jobs := newTestJobStore(t)
	articles := &stubArticleStore{}
	gen := &stubGenerator{fn: func(call int, prompt string) (string, error) {
		if strings.Contains(prompt, "description") {
			return "", models.NewGenerationError(models.CodeAPIServerError, errors.New("500"))
		}
		return "Section text.", nil
	}}
	p := New(jobs, articles, gen, Config{Timeout: 5 * time.Second, MaxRetries: 3})

	job := seedJob(t, jobs, requestWithOutline())
	require.NoError(t, p.Run(context.Background(), job))

	got, err := jobs.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.Contains(t, got.Result.Summary, "Example")
	assert.Contains(t, got.Result.Summary, "k1")
}

func TestProgressIsMonotonicUntilTerminal(t *testing.T) {
	jobs := newTestJobStore(t)
	articles := &stubArticleStore{}
	p := New(jobs, articles, okGenerator(), Config{Timeout: 5 * time.Second, MaxRetries: 3})

	job := seedJob(t, jobs, requestWithOutline())
	require.NoError(t, p.Run(context.Background(), job))

	jobs.mu.Lock()
	updates := jobs.updates
	jobs.mu.Unlock()

	require.NotEmpty(t, updates)
	last := -1
	for _, u := range updates {
		assert.GreaterOrEqual(t, u.Progress, last, "progress must never move backwards within an attempt")
		last = u.Progress
	}
	assert.Equal(t, models.StatusCompleted, updates[len(updates)-1].Status)
	assert.Equal(t, 100, updates[len(updates)-1].Progress)
}

func TestExcerptCutsOnSentenceBoundary(t *testing.T) {
	text := "First sentence here. Second sentence is a bit longer than the first. Third sentence pushes past the cap entirely."
	got := excerpt(text, 75)
	assert.Equal(t, "First sentence here. Second sentence is a bit longer than the first.", got)

	// Short text passes through untouched.
	assert.Equal(t, "Short.", excerpt("Short.", 75))

	// A first sentence alone over the cap falls back to a hard cut.
	long := strings.Repeat("word ", 30) + "end."
	assert.Equal(t, long[:40], excerpt(long, 40))

	// Article-length input must stay within the cap and end on a boundary.
	article := strings.Repeat("This sentence is part of a generated article body. ", 20)
	got = excerpt(article, defaultExcerptLen)
	assert.LessOrEqual(t, len(got), defaultExcerptLen)
	assert.True(t, strings.HasSuffix(got, "."))
}
