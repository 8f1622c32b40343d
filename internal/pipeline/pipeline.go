// Package pipeline turns a generation request into finished article
// content: outline, body in two halves, description, persistence. It owns
// retry policy, the overall deadline, and every job status write along the
// way; the worker only decides which job runs next.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"scribe/internal/models"
	"scribe/internal/services"
	"scribe/internal/store"
	"scribe/internal/util"
)

// Progress milestones reported while a job is generating.
const (
	progressStarted       = 10
	progressOutlineReady  = 30
	progressFirstHalfDone = 50
	progressDone          = 100
)

const defaultExcerptLen = 200

// Config carries the pipeline tunables. All of them come from process
// configuration, not constants.
type Config struct {
	Timeout    time.Duration // overall wall-clock deadline per job
	MaxRetries int           // attempts per generation step
	RetryDelay time.Duration // fixed delay between attempts
}

type Pipeline struct {
	jobs     store.JobStore
	articles store.ArticleStore
	gen      services.TextGenerator
	cfg      Config
}

func New(jobs store.JobStore, articles store.ArticleStore, gen services.TextGenerator, cfg Config) *Pipeline {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 290 * time.Second
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	return &Pipeline{jobs: jobs, articles: articles, gen: gen, cfg: cfg}
}

// Run executes the full pipeline for one job and writes the terminal
// status before returning. The returned error reports the failure to the
// caller; the authoritative record is whatever was written to the job
// store.
func (p *Pipeline) Run(ctx context.Context, job *models.Job) error {
	logger := log.WithFields(log.Fields{"job_id": job.ID, "title": job.Data.Title})
	logger.Info("article generation started")

	if err := validate(job.Data); err != nil {
		genErr := models.NewGenerationError(models.CodeValidation, err)
		p.fail(ctx, job, genErr)
		return genErr
	}

	runCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	type outcome struct {
		result *models.JobResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := p.generate(runCtx, job)
		done <- outcome{res, err}
	}()

	// The deadline races the generation logic. A result arriving after the
	// deadline is discarded; the job must never sit in generating past it.
	select {
	case <-runCtx.Done():
		genErr := models.NewGenerationError(models.CodeTimeout, runCtx.Err())
		logger.WithField("timeout", p.cfg.Timeout).Error("generation deadline exceeded")
		p.fail(context.WithoutCancel(ctx), job, genErr)
		return genErr
	case o := <-done:
		if o.err != nil {
			genErr := models.AsGenerationError(o.err)
			if runCtx.Err() != nil {
				genErr = models.NewGenerationError(models.CodeTimeout, o.err)
			}
			logger.WithFields(log.Fields{"code": genErr.Code}).WithError(genErr.Err).Error("article generation failed")
			p.fail(context.WithoutCancel(ctx), job, genErr)
			return genErr
		}
		logger.WithField("content_length", len(o.result.Content)).Info("article generation completed")
		return nil
	}
}

func validate(data models.JobData) error {
	if strings.TrimSpace(data.Title) == "" {
		return errors.New("title is required")
	}
	for _, k := range data.Keywords {
		if strings.TrimSpace(k) != "" {
			return nil
		}
	}
	return errors.New("at least one keyword is required")
}

func (p *Pipeline) generate(ctx context.Context, job *models.Job) (*models.JobResult, error) {
	data := job.Data

	if _, err := p.jobs.UpdateStatus(ctx, job.ID, models.StatusGenerating, progressStarted, nil, ""); err != nil {
		return nil, err
	}

	outline := data.Outline
	if len(outline) == 0 {
		text, err := p.withRetry(ctx, job.ID, "outline", func(ctx context.Context) (string, error) {
			return p.gen.GenerateText(ctx, outlinePrompt(data))
		})
		if err != nil {
			return nil, err
		}
		outline = parseOutline(text)
		if len(outline) == 0 {
			return nil, models.NewGenerationError(models.CodeContentGenerationFailed,
				errors.New("generated outline is empty"))
		}
		if _, err := p.jobs.UpdateStatus(ctx, job.ID, models.StatusGenerating, progressOutlineReady, nil, ""); err != nil {
			return nil, err
		}
	}

	mid := (len(outline) + 1) / 2
	firstOutline, secondOutline := outline[:mid], outline[mid:]

	first, err := p.withRetry(ctx, job.ID, "first half", func(ctx context.Context) (string, error) {
		return p.generateSection(ctx, firstHalfPrompt(data, firstOutline))
	})
	if err != nil {
		return nil, err
	}
	if _, err := p.jobs.UpdateStatus(ctx, job.ID, models.StatusGenerating, progressFirstHalfDone, nil, ""); err != nil {
		return nil, err
	}

	content := first
	if len(secondOutline) > 0 {
		second, err := p.withRetry(ctx, job.ID, "second half", func(ctx context.Context) (string, error) {
			return p.generateSection(ctx, secondHalfPrompt(data, secondOutline, excerpt(first, defaultExcerptLen)))
		})
		if err != nil {
			return nil, err
		}
		content = first + "\n\n" + second
	}

	description := p.describe(ctx, job.ID, data, content)

	if err := p.articles.MarkCompleted(ctx, job.ID, content, description); err != nil {
		// Generation succeeded; only the save failed. Not retried.
		return nil, models.NewGenerationError(models.CodeSaveFailed, err)
	}

	result := &models.JobResult{Title: data.Title, Content: content, Summary: description}
	if _, err := p.jobs.UpdateStatus(ctx, job.ID, models.StatusCompleted, progressDone, result, ""); err != nil {
		return nil, err
	}
	return result, nil
}

// generateSection runs one generation call and rejects empty output as a
// retryable content failure.
func (p *Pipeline) generateSection(ctx context.Context, prompt string) (string, error) {
	text, err := p.gen.GenerateText(ctx, prompt)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(util.CleanText(text))
	if text == "" {
		return "", models.NewGenerationError(models.CodeContentGenerationFailed,
			errors.New("generated section is empty"))
	}
	return text, nil
}

// withRetry re-runs a single generation step up to MaxRetries times with a
// fixed delay between attempts. Non-retryable failures (quota, bad
// credential) short-circuit immediately; exhaustion is reported as
// CONTENT_GENERATION_FAILED wrapping the last attempt's error.
func (p *Pipeline) withRetry(ctx context.Context, jobID, step string, fn func(context.Context) (string, error)) (string, error) {
	logger := log.WithFields(log.Fields{"job_id": jobID, "step": step})

	var lastErr *models.GenerationError
	for attempt := 1; attempt <= p.cfg.MaxRetries; attempt++ {
		text, err := fn(ctx)
		if err == nil {
			return text, nil
		}
		lastErr = models.AsGenerationError(err)
		if !lastErr.Retryable() {
			return "", lastErr
		}
		if attempt == p.cfg.MaxRetries {
			break
		}
		logger.WithFields(log.Fields{
			"attempt":     attempt,
			"max_retries": p.cfg.MaxRetries,
		}).WithError(lastErr.Err).Warn("generation step failed, retrying")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(p.cfg.RetryDelay):
		}
	}

	logger.WithField("max_retries", p.cfg.MaxRetries).Error("all generation attempts failed")
	return "", models.NewGenerationError(models.CodeContentGenerationFailed, lastErr)
}

// describe produces the short article description, falling back to a
// mechanical summary from title and keywords when the generation call
// fails. Description failures never fail the job.
func (p *Pipeline) describe(ctx context.Context, jobID string, data models.JobData, content string) string {
	text, err := p.gen.GenerateText(ctx, descriptionPrompt(data, excerpt(content, 2*defaultExcerptLen)))
	if err != nil || strings.TrimSpace(text) == "" {
		log.WithField("job_id", jobID).WithError(err).Warn("description generation failed, using fallback")
		return fallbackDescription(data)
	}
	return strings.TrimSpace(util.CleanText(text))
}

// fail writes the terminal failure to both stores. Progress resets to 0 on
// a forced failure so stale milestones are not mistaken for advancement.
// A job that already reached a terminal status is left alone: when the
// deadline and a successful completion land together, the recorded
// completion wins and the late failure is discarded.
func (p *Pipeline) fail(ctx context.Context, job *models.Job, genErr *models.GenerationError) {
	if current, err := p.jobs.Get(ctx, job.ID); err == nil && current.IsTerminal() {
		log.WithFields(log.Fields{"job_id": job.ID, "status": current.Status}).
			Warn("skipping failure write, job already terminal")
		return
	}
	if _, err := p.jobs.UpdateStatus(ctx, job.ID, models.StatusFailed, 0, nil, genErr.Message); err != nil {
		log.WithField("job_id", job.ID).WithError(err).Error("failed to record job failure")
	}
	if err := p.articles.MarkFailed(ctx, job.ID, genErr.Message); err != nil {
		// Job and article records now disagree; surface the inconsistency
		// instead of losing it silently.
		log.WithField("job_id", job.ID).WithError(err).Error(
			fmt.Sprintf("job marked failed but article record was not updated: %v", genErr.Code))
	}
}
