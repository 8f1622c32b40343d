package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"scribe/internal/models"
)

// OpenAIGenerator implements TextGenerator using the OpenAI chat
// completion API.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAIGenerator creates the OpenAI text generation provider.
func NewOpenAIGenerator(apiKey, model string, maxTokens int, temperature float32) (*OpenAIGenerator, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY") // Fallback to env var
	}
	if apiKey == "" {
		return nil, models.NewGenerationError(models.CodeInvalidAPIKey, errors.New("openai api key not configured"))
	}

	log.Infof("OpenAI generation provider initialized with model %s", model)
	return &OpenAIGenerator{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}, nil
}

func (g *OpenAIGenerator) Name() string      { return "openai" }
func (g *OpenAIGenerator) ModelName() string { return g.model }

func (g *OpenAIGenerator) Status() ProviderStatus {
	if g.client == nil {
		return ProviderStatusDisabled
	}
	return ProviderStatusActive
}

func (g *OpenAIGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	if g.client == nil {
		return "", models.NewGenerationError(models.CodeInvalidAPIKey, errors.New("openai provider is not initialized"))
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", models.NewGenerationError(models.CodeContentGenerationFailed,
			fmt.Errorf("openai returned no completion choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyOpenAIError maps SDK error types onto the generation error
// taxonomy using HTTP status codes, never message text.
func classifyOpenAIError(err error) *models.GenerationError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusUnauthorized:
			return models.NewGenerationError(models.CodeInvalidAPIKey, err)
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return models.NewGenerationError(models.CodeQuotaExceeded, err)
		case apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return models.NewGenerationError(models.CodeAPIServerError, err)
		}
		return models.NewGenerationError(models.CodeUnexpected, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode >= http.StatusInternalServerError {
			return models.NewGenerationError(models.CodeAPIServerError, err)
		}
		return models.NewGenerationError(models.CodeUnexpected, err)
	}

	// Transport-level failure; worth another attempt.
	return models.NewGenerationError(models.CodeAPIServerError, err)
}

var _ TextGenerator = (*OpenAIGenerator)(nil)
