package config

import (
	"errors"
	"fmt"
)

// Validate checks that the loaded configuration is usable. The database
// DSN is optional here because read-only commands (jobs list, stats) only
// need Redis; commands that persist articles check the DSN themselves.
func (c *Config) Validate() error {
	if c.Redis.Address == "" {
		return errors.New("redis.address is required")
	}

	switch c.Generation.Provider {
	case "openai":
		if c.Generation.OpenaiApiKey == "" {
			return errors.New("generation.openai_api_key (or OPENAI_API_KEY) is required when generation.provider is openai")
		}
	case "gemini":
		if c.Generation.GoogleApiKey == "" {
			return errors.New("generation.google_api_key (or GEMINI_API_KEY) is required when generation.provider is gemini")
		}
	default:
		return fmt.Errorf("unknown generation provider: %q", c.Generation.Provider)
	}

	if c.Generation.Model == "" {
		return errors.New("generation.model is required")
	}
	if c.Generation.MaxTokens <= 0 {
		return errors.New("generation.max_tokens must be a positive integer")
	}

	if c.Pipeline.Timeout <= 0 {
		return errors.New("pipeline.timeout must be positive")
	}
	if c.Pipeline.MaxRetries <= 0 {
		return errors.New("pipeline.max_retries must be a positive integer")
	}
	if c.Pipeline.RetryDelay < 0 {
		return errors.New("pipeline.retry_delay must not be negative")
	}

	if c.Worker.PollInterval <= 0 {
		return errors.New("worker.poll_interval must be positive")
	}
	if c.Poller.Interval <= 0 {
		return errors.New("poller.interval must be positive")
	}
	if c.Poller.MaxAttempts <= 0 {
		return errors.New("poller.max_attempts must be a positive integer")
	}

	return nil
}
