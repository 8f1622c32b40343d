package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"scribe/internal/models"
)

// GeminiGenerator implements TextGenerator using the Google Gemini API.
// Selected with generation.provider=gemini.
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
}

// NewGeminiGenerator creates the Gemini text generation provider.
func NewGeminiGenerator(apiKey, model string, maxTokens int, temperature float32) (*GeminiGenerator, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY") // Fallback to env var
	}
	if apiKey == "" {
		return nil, models.NewGenerationError(models.CodeInvalidAPIKey, errors.New("gemini api key not configured"))
	}

	ctx := context.Background() // Use background context for initialization
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	log.Infof("Gemini generation provider initialized with model %s", model)
	return &GeminiGenerator{
		client:      client,
		model:       model,
		maxTokens:   int32(maxTokens),
		temperature: temperature,
	}, nil
}

func (g *GeminiGenerator) Name() string      { return "gemini" }
func (g *GeminiGenerator) ModelName() string { return g.model }

func (g *GeminiGenerator) Status() ProviderStatus {
	if g.client == nil {
		return ProviderStatusDisabled
	}
	return ProviderStatusActive
}

func (g *GeminiGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	if g.client == nil {
		return "", models.NewGenerationError(models.CodeInvalidAPIKey, errors.New("gemini provider is not initialized"))
	}

	model := g.client.GenerativeModel(g.model)
	model.SetMaxOutputTokens(g.maxTokens)
	model.SetTemperature(g.temperature)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", classifyGeminiError(err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	if sb.Len() == 0 {
		return "", models.NewGenerationError(models.CodeContentGenerationFailed,
			fmt.Errorf("gemini returned no text candidates"))
	}
	return sb.String(), nil
}

func classifyGeminiError(err error) *models.GenerationError {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
			return models.NewGenerationError(models.CodeInvalidAPIKey, err)
		case apiErr.Code == http.StatusTooManyRequests:
			return models.NewGenerationError(models.CodeQuotaExceeded, err)
		case apiErr.Code >= http.StatusInternalServerError:
			return models.NewGenerationError(models.CodeAPIServerError, err)
		}
		return models.NewGenerationError(models.CodeUnexpected, err)
	}
	return models.NewGenerationError(models.CodeAPIServerError, err)
}

var _ TextGenerator = (*GeminiGenerator)(nil)
