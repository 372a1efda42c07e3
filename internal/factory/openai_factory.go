package factory

import (
	"context"
	"errors"

	"github.com/mikey/ai-cost-optimizer/internal/adapters/openai"
	"github.com/mikey/ai-cost-optimizer/internal/adapters/prompt"
	"github.com/mikey/ai-cost-optimizer/internal/config"
	"github.com/mikey/ai-cost-optimizer/internal/ports"
	"go.uber.org/zap"
)

// OpenAIFactory creates OpenAI providers
type OpenAIFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	builder *prompt.Builder
}

// NewOpenAIFactory creates a new OpenAI factory
func NewOpenAIFactory(cfg *config.Config, logger *zap.Logger, builder *prompt.Builder) *OpenAIFactory {
	return &OpenAIFactory{
		cfg:     cfg,
		logger:  logger,
		builder: builder,
	}
}

// CreateProvider creates an OpenAI provider
func (f *OpenAIFactory) CreateProvider(ctx context.Context) (ports.Provider, error) {
	openaiCfg := f.cfg.GetOpenAI()
	if openaiCfg.APIKey == "" {
		return nil, errors.New("openai API key is required")
	}

	return openai.NewOpenAIClient(
		openaiCfg.APIKey,
		openaiCfg.BaseURL,
		openaiCfg.ModelName,
		openaiCfg.MaxTokens,
		openaiCfg.Temperature,
		openaiCfg.TopP,
		f.builder,
		f.logger,
	), nil
}
