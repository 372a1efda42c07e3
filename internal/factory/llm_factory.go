package factory

import (
	"context"
	"fmt"

	"github.com/mikey/ai-cost-optimizer/internal/adapters/prompt"
	"github.com/mikey/ai-cost-optimizer/internal/config"
	"github.com/mikey/ai-cost-optimizer/internal/ports"
	"go.uber.org/zap"
)

// LLMFactory creates the upstream provider selected by llm.provider
type LLMFactory struct {
	cfg     *config.Config
	llm     config.LLMConfig
	logger  *zap.Logger
	builder *prompt.Builder
}

// NewLLMFactory creates a new LLM factory. Provider credentials are read from cfg.
func NewLLMFactory(cfg *config.Config, sc *config.ServiceConfig, logger *zap.Logger, builder *prompt.Builder) *LLMFactory {
	return &LLMFactory{
		cfg:     cfg,
		llm:     sc.LLM,
		logger:  logger,
		builder: builder,
	}
}

// CreateProvider creates a new provider based on the configuration
func (f *LLMFactory) CreateProvider(ctx context.Context) (ports.Provider, error) {
	llmConfig := f.llm

	var (
		provider ports.Provider
		err      error
	)
	switch llmConfig.Provider {
	case "bedrock":
		provider, err = NewBedrockFactory(f.cfg, f.logger, f.builder).CreateProvider(ctx)
	case "gemini":
		provider, err = NewGeminiFactory(f.cfg, f.logger, f.builder).CreateProvider(ctx)
	case "openai":
		provider, err = NewOpenAIFactory(f.cfg, f.logger, f.builder).CreateProvider(ctx)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", llmConfig.Provider)
	}
	if err != nil {
		return nil, err
	}

	f.logger.Info("Upstream provider ready", zap.String("provider", provider.Name()))
	return provider, nil
}
