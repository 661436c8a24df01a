package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/jungo-bridge/domain/repositories"
)

const (
	defaultModel          = "gemini-2.0-flash"
	defaultTemperature    = 0.2
	defaultMaxTokens      = 512
	defaultTimeoutSeconds = 30
)

// DefaultPrompt asks for the fields the vision pipeline knows how to read.
const DefaultPrompt = `You are a product recognition and quality inspection expert.
Identify the brand and product name of the item in this photo and estimate
how sure you are (confidence, 0-100). If you can, list recent second-hand
market prices in KRW as used_price.
Answer with a single JSON object only, for example:
{"brand": "Nike", "product": "Air Max 90", "confidence": 92, "used_price": [45000, 52000]}`

// GeminiConfig holds configuration for the Gemini vision adapter
type GeminiConfig struct {
	APIKey          string   // Required
	Model           string   // Optional, default gemini-2.0-flash
	Prompt          string   // Optional, default DefaultPrompt
	Temperature     *float32 // Optional, between 0 and 1, default 0.2
	MaxOutputTokens int      // Optional
	TimeoutSeconds  int      // Optional
}

// GeminiVision implements VisionModel using Google's Gemini API
type GeminiVision struct {
	client          *genai.Client
	logger          *zap.Logger
	model           string
	prompt          string
	temperature     float32
	maxOutputTokens int
	timeout         time.Duration
}

// Ensure GeminiVision implements the VisionModel interface
var _ repositories.VisionModel = (*GeminiVision)(nil)

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Gemini API key is required")
	}

	if t := config.Temperature; t != nil && (*t < 0 || *t > 1) {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", *t)
	}

	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("max output tokens must be positive, got %d", config.MaxOutputTokens)
	}

	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}

	return nil
}

// NewGeminiVision creates a new Gemini vision instance
func NewGeminiVision(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiVision, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newGeminiVision(client, config, logger), nil
}

func newGeminiVision(client *genai.Client, config GeminiConfig, logger *zap.Logger) *GeminiVision {
	model := config.Model
	if model == "" {
		model = defaultModel
		logger.Info("Using default model", zap.String("model", model))
	}

	prompt := config.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}

	temperature := float32(defaultTemperature)
	if config.Temperature != nil {
		temperature = *config.Temperature
	}

	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens == 0 {
		maxOutputTokens = defaultMaxTokens
	}

	timeoutSeconds := config.TimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = defaultTimeoutSeconds
	}

	return &GeminiVision{
		client:          client,
		logger:          logger.With(zap.String("component", "gemini")),
		model:           model,
		prompt:          prompt,
		temperature:     temperature,
		maxOutputTokens: maxOutputTokens,
		timeout:         time.Duration(timeoutSeconds) * time.Second,
	}
}

// Describe sends the prompt and the image inline and returns the reply text.
func (g *GeminiVision) Describe(ctx context.Context, image []byte, mimeType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(g.prompt),
			genai.NewPartFromBytes(image, mimeType),
		}, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(g.temperature),
		MaxOutputTokens:  int32(g.maxOutputTokens),
		ResponseMIMEType: "application/json",
	}

	started := time.Now()
	response, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := replyText(response)
	if text == "" {
		return "", fmt.Errorf("gemini returned no content")
	}

	g.logger.Info("Vision reply received",
		zap.String("model", g.model),
		zap.Int("imageBytes", len(image)),
		zap.Duration("latency", time.Since(started)))

	return text, nil
}

func replyText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 {
		return ""
	}
	candidate := response.Candidates[0]
	if candidate.Content == nil {
		return ""
	}

	var text string
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}
	return text
}
