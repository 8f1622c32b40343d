// Package primary holds the Postgres-backed article store. Articles are
// independently lifecycled from jobs: the two are correlated by a shared
// id, and a failed generation still leaves an article row behind with the
// error recorded.
package primary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"scribe/internal/models"
	"scribe/internal/store"
)

type ArticleStore struct {
	pool *pgxpool.Pool
}

// NewArticleStore opens a connection pool for the articles database. The
// pool connects lazily; use Ping to verify reachability.
func NewArticleStore(ctx context.Context, dsn string) (*ArticleStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("init article store: %w", err)
	}
	return &ArticleStore{pool: pool}, nil
}

func (s *ArticleStore) Close() {
	s.pool.Close()
}

func (s *ArticleStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreatePlaceholder inserts the pending article row at submission time.
// Content and description stay empty until the pipeline finishes.
func (s *ArticleStore) CreatePlaceholder(ctx context.Context, id string, data models.JobData) error {
	query := `
		INSERT INTO articles (id, title, content, category, keywords, description, status, created_at, updated_at)
		VALUES ($1, $2, '', $3, $4, '', $5, $6, $6)`

	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, query, id, data.Title, data.Category, data.Keywords, models.StatusGenerating, now)
	if err != nil {
		return fmt.Errorf("create article placeholder %s: %w", id, err)
	}
	log.WithFields(log.Fields{"article_id": id, "title": data.Title}).Info("article placeholder created")
	return nil
}

// MarkCompleted writes the generated content onto the placeholder.
func (s *ArticleStore) MarkCompleted(ctx context.Context, id, content, description string) error {
	query := `
		UPDATE articles
		SET content = $1, description = $2, status = $3, error_message = NULL, updated_at = $4
		WHERE id = $5`

	tag, err := s.pool.Exec(ctx, query, content, description, models.StatusCompleted, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark article %s completed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// MarkFailed records the failure on the article row. The row is kept for
// auditability.
func (s *ArticleStore) MarkFailed(ctx context.Context, id, message string) error {
	query := `
		UPDATE articles
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4`

	tag, err := s.pool.Exec(ctx, query, models.StatusError, message, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark article %s failed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *ArticleStore) GetArticle(ctx context.Context, id string) (*models.Article, error) {
	query := `
		SELECT id, title, content, category, keywords, description, status, error_message, created_at, updated_at
		FROM articles WHERE id = $1`

	article := &models.Article{}
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&article.ID, &article.Title, &article.Content, &article.Category,
		&article.Keywords, &article.Description, &article.Status,
		&article.ErrorMessage, &article.CreatedAt, &article.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get article %s: %w", id, err)
	}
	return article, nil
}

var _ store.ArticleStore = (*ArticleStore)(nil)
