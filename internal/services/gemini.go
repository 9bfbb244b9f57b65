package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GenerationParams bound a single generation call.
type GenerationParams struct {
	Temperature     float32
	TopP            float32
	TopK            int32
	MaxOutputTokens int32
}

var DefaultGenerationParams = GenerationParams{
	Temperature:     0.7,
	TopP:            0.9,
	TopK:            40,
	MaxOutputTokens: 1024,
}

// AICapability is the external generative-text service.
type AICapability interface {
	// ListModels returns the names of models usable for text generation.
	ListModels(ctx context.Context) ([]string, error)
	Generate(ctx context.Context, model, prompt string, params GenerationParams) (string, error)
}

// ErrMalformedResponse marks a call that succeeded at the transport level
// but produced no usable text (blocked, empty candidates).
var ErrMalformedResponse = errors.New("malformed AI response")

type GeminiClient struct {
	client *genai.Client
}

var _ AICapability = &GeminiClient{}

func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}

func (c *GeminiClient) ListModels(ctx context.Context) ([]string, error) {
	it := c.client.ListModels(ctx)
	var names []string
	for {
		m, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("Gemini list models: %w", err)
		}
		if isTextModel(m.Name, m.SupportedGenerationMethods) {
			names = append(names, m.Name)
		}
	}
	return names, nil
}

func isTextModel(name string, methods []string) bool {
	if !strings.Contains(strings.ToLower(name), "gemini") {
		return false
	}
	for _, m := range methods {
		if m == "generateContent" {
			return true
		}
	}
	return false
}

func (c *GeminiClient) Generate(ctx context.Context, modelName, prompt string, params GenerationParams) (string, error) {
	model := c.client.GenerativeModel(modelName)
	model.SetTemperature(params.Temperature)
	model.SetTopP(params.TopP)
	model.SetTopK(params.TopK)
	model.SetMaxOutputTokens(params.MaxOutputTokens)
	model.SafetySettings = permissiveSafetySettings()

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty candidates", ErrMalformedResponse)
	}
	return text, nil
}

// Moderation is left to the operator.
func permissiveSafetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, &genai.SafetySetting{Category: c, Threshold: genai.HarmBlockNone})
	}
	return settings
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
