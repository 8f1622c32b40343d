package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Address string `mapstructure:"address"`
	}

	Database struct {
		DSN string `mapstructure:"dsn"` // articles table lives here
	}

	Redis struct {
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	}

	Generation struct {
		Provider     string  `mapstructure:"provider"` // "openai" or "gemini"
		Model        string  `mapstructure:"model"`
		OpenaiApiKey string  `mapstructure:"openai_api_key"`
		GoogleApiKey string  `mapstructure:"google_api_key"`
		MaxTokens    int     `mapstructure:"max_tokens"`
		Temperature  float32 `mapstructure:"temperature"`
		// RevalidateInterval bounds how long a provider client is reused
		// before its configuration is re-read.
		RevalidateInterval time.Duration `mapstructure:"revalidate_interval"`
	}

	Pipeline struct {
		Timeout    time.Duration `mapstructure:"timeout"`
		MaxRetries int           `mapstructure:"max_retries"`
		RetryDelay time.Duration `mapstructure:"retry_delay"`
	}

	Worker struct {
		PollInterval time.Duration `mapstructure:"poll_interval"`
	}

	Poller struct {
		Interval    time.Duration `mapstructure:"interval"`
		MaxAttempts int           `mapstructure:"max_attempts"`
	}
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("generation.provider", "openai")
	viper.SetDefault("generation.model", "gpt-4o-mini")
	viper.SetDefault("generation.max_tokens", 2000)
	viper.SetDefault("generation.temperature", 0.7)
	viper.SetDefault("generation.revalidate_interval", 5*time.Minute)
	viper.SetDefault("pipeline.timeout", 290*time.Second)
	viper.SetDefault("pipeline.max_retries", 3)
	viper.SetDefault("pipeline.retry_delay", 5*time.Second)
	viper.SetDefault("worker.poll_interval", time.Second)
	viper.SetDefault("poller.interval", 5*time.Second)
	viper.SetDefault("poller.max_attempts", 60)

	viper.AutomaticEnv()
	// Explicit bindings so the usual env var names work without a prefix.
	viper.BindEnv("generation.openai_api_key", "OPENAI_API_KEY")
	viper.BindEnv("generation.google_api_key", "GEMINI_API_KEY")
	viper.BindEnv("redis.address", "REDIS_ADDR")
	viper.BindEnv("database.dsn", "DATABASE_DSN")

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine; defaults and env vars cover it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
