package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
)

const (
	maxRetries     = 3
	initialBackoff = time.Second
)

var ErrGenerationFailed = errors.New("failed to generate content")

// TextGenerator produces one free-text completion for a prompt. The
// research services depend on this interface so tests can substitute a
// canned model.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)
}

// GeminiGenerator runs completions through the Gemini API
type GeminiGenerator struct {
	client    *genai.Client
	modelName string
}

// NewGeminiGenerator creates a generator bound to one model
func NewGeminiGenerator(client *genai.Client, modelName string) *GeminiGenerator {
	return &GeminiGenerator{
		client:    client,
		modelName: modelName,
	}
}

// Generate runs one completion. Transient API failures are retried with
// exponential backoff; 400 and 401 responses are not retried.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	if g.client == nil {
		return "", errors.New("gemini client not set")
	}

	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(float32(temperature))

	var resp *genai.GenerateContentResponse
	var err error
	backoff := initialBackoff
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}

		resp, err = model.GenerateContent(ctx, genai.Text(prompt))
		if err == nil {
			break
		}

		// Don't retry on 400 or 401 errors
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && (gerr.Code == http.StatusBadRequest || gerr.Code == http.StatusUnauthorized) {
			return "", fmt.Errorf("generation API error: %w", err)
		}

		if attempt == maxRetries-1 {
			return "", fmt.Errorf("failed to generate content after %d attempts: %w", maxRetries, err)
		}
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return "", fmt.Errorf("API blocked prompt: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("API returned no candidates")
	}

	var responseText strings.Builder
	for i, candidate := range resp.Candidates {
		if candidate.FinishReason != genai.FinishReasonStop && candidate.FinishReason != genai.FinishReasonUnspecified {
			log.Printf("Warning: Candidate %d finished with reason: %s", i, candidate.FinishReason)
		}
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				responseText.WriteString(string(text))
			}
		}
	}

	result := responseText.String()
	if result == "" {
		return "", ErrGenerationFailed
	}

	return result, nil
}
