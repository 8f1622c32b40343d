package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"scribe/internal/config"
	"scribe/internal/pipeline"
	"scribe/internal/services"
	"scribe/internal/store"
	"scribe/internal/store/primary"
	"scribe/internal/store/redisq"
)

// App wires the stores, the generation provider and the pipeline together
// for the commands to use.
type App struct {
	Config *config.Config

	JobStore     store.JobStore
	ArticleStore store.ArticleStore
	Generator    services.TextGenerator
	Pipeline     *pipeline.Pipeline
}

func NewApp(cfg *config.Config) (*App, error) {
	ctx := context.Background()
	app := &App{Config: cfg}

	if err := app.initJobStore(); err != nil {
		return nil, err
	}
	if err := app.initArticleStore(ctx); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	if err := app.initGenerator(); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	app.initPipeline()

	log.Info("application initialization complete")
	return app, nil
}

func (a *App) initJobStore() error {
	cfg := a.Config
	js, err := redisq.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("init job store: %w", err)
	}
	a.JobStore = js
	return nil
}

func (a *App) initArticleStore(ctx context.Context) error {
	dsn := a.Config.Database.DSN
	if dsn == "" {
		return fmt.Errorf("init article store: database.dsn is required")
	}
	as, err := primary.NewArticleStore(ctx, dsn)
	if err != nil {
		return fmt.Errorf("init article store: %w", err)
	}
	a.ArticleStore = as
	return nil
}

// initGenerator selects the configured provider and wraps it in a
// ClientManager so a rotated API key is picked up without a restart.
func (a *App) initGenerator() error {
	cfg := a.Config

	build := func() (services.TextGenerator, error) {
		switch cfg.Generation.Provider {
		case "openai":
			return services.NewOpenAIGenerator(
				cfg.Generation.OpenaiApiKey,
				cfg.Generation.Model,
				cfg.Generation.MaxTokens,
				cfg.Generation.Temperature,
			)
		case "gemini":
			return services.NewGeminiGenerator(
				cfg.Generation.GoogleApiKey,
				cfg.Generation.Model,
				cfg.Generation.MaxTokens,
				cfg.Generation.Temperature,
			)
		default:
			return nil, fmt.Errorf("unknown generation provider: %q", cfg.Generation.Provider)
		}
	}

	// Fail fast on a broken provider configuration before any job runs.
	if _, err := build(); err != nil {
		return fmt.Errorf("init generator: %w", err)
	}

	a.Generator = services.NewClientManager(build, nil, cfg.Generation.RevalidateInterval)
	return nil
}

func (a *App) initPipeline() {
	a.Pipeline = pipeline.New(a.JobStore, a.ArticleStore, a.Generator, pipeline.Config{
		Timeout:    a.Config.Pipeline.Timeout,
		MaxRetries: a.Config.Pipeline.MaxRetries,
		RetryDelay: a.Config.Pipeline.RetryDelay,
	})
}

// Close releases the store connections.
func (a *App) Close() {
	if a.JobStore != nil {
		if err := a.JobStore.Close(); err != nil {
			log.WithError(err).Warn("error closing job store")
		}
	}
	if a.ArticleStore != nil {
		a.ArticleStore.Close()
	}
}

func (a *App) cleanupPartialInit() {
	a.Close()
}
