package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mikey/ai-cost-optimizer/internal/adapters/prompt"
	"github.com/mikey/ai-cost-optimizer/internal/core"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// JSON mode only allows an object at the top level
const jsonModeInstruction = ` Wrap the array in an object of the form {"results": [...]}.`

// OpenAIClient sends batches to the OpenAI chat completions API
type OpenAIClient struct {
	client      *openai.Client
	modelName   string
	maxTokens   int
	temperature float32
	topP        float32
	builder     *prompt.Builder
	logger      *zap.Logger
}

// NewOpenAIClient creates a new OpenAI client. An empty baseURL uses the public API.
func NewOpenAIClient(
	apiKey string,
	baseURL string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	builder *prompt.Builder,
	logger *zap.Logger,
) *OpenAIClient {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientConfig),
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		builder:     builder,
		logger:      logger,
	}
}

// Name identifies the provider
func (c *OpenAIClient) Name() string {
	return "openai"
}

// Close is a no-op for the HTTP based client
func (c *OpenAIClient) Close() error {
	return nil
}

// AnalyzeBatch sends every item in one chat completion
func (c *OpenAIClient) AnalyzeBatch(ctx context.Context, feature core.Feature, items []*core.Request) ([]json.RawMessage, error) {
	text, err := c.builder.Build(feature, items)
	if err != nil {
		return nil, err
	}

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: prompt.SystemInstruction + jsonModeInstruction,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("empty response from OpenAI")
	}

	c.logger.Debug("OpenAI batch completed",
		zap.String("model", c.modelName),
		zap.String("feature", feature.String()),
		zap.String("completion_id", resp.ID),
		zap.Int("items", len(items)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("latency", time.Since(start)))

	return prompt.ParseResults(resp.Choices[0].Message.Content)
}
