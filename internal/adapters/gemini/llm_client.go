package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/ai-cost-optimizer/internal/adapters/prompt"
	"github.com/mikey/ai-cost-optimizer/internal/core"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// ContentGenerator is satisfied by *genai.GenerativeModel
type ContentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiClient sends batches to Google Gemini
type GeminiClient struct {
	client    *genai.Client
	model     ContentGenerator
	modelName string
	builder   *prompt.Builder
	logger    *zap.Logger
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(
	ctx context.Context,
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	builder *prompt.Builder,
	logger *zap.Logger,
) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(prompt.SystemInstruction)}}

	c := NewGeminiClientWithModel(model, modelName, builder, logger)
	c.client = client
	return c, nil
}

// NewGeminiClientWithModel wraps an already configured model
func NewGeminiClientWithModel(model ContentGenerator, modelName string, builder *prompt.Builder, logger *zap.Logger) *GeminiClient {
	return &GeminiClient{
		model:     model,
		modelName: modelName,
		builder:   builder,
		logger:    logger,
	}
}

// Name identifies the provider
func (c *GeminiClient) Name() string {
	return "gemini"
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// AnalyzeBatch sends every item in one GenerateContent call
func (c *GeminiClient) AnalyzeBatch(ctx context.Context, feature core.Feature, items []*core.Request) ([]json.RawMessage, error) {
	text, err := c.builder.Build(feature, items)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.model.GenerateContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("empty response from Gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}

	c.logger.Debug("Gemini batch completed",
		zap.String("model", c.modelName),
		zap.String("feature", feature.String()),
		zap.Int("items", len(items)),
		zap.Duration("latency", time.Since(start)))

	return prompt.ParseResults(sb.String())
}
