package factory

import (
	"context"
	"errors"

	"github.com/mikey/ai-cost-optimizer/internal/adapters/gemini"
	"github.com/mikey/ai-cost-optimizer/internal/adapters/prompt"
	"github.com/mikey/ai-cost-optimizer/internal/config"
	"github.com/mikey/ai-cost-optimizer/internal/ports"
	"go.uber.org/zap"
)

// GeminiFactory creates Gemini providers
type GeminiFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	builder *prompt.Builder
}

// NewGeminiFactory creates a new Gemini factory
func NewGeminiFactory(cfg *config.Config, logger *zap.Logger, builder *prompt.Builder) *GeminiFactory {
	return &GeminiFactory{
		cfg:     cfg,
		logger:  logger,
		builder: builder,
	}
}

// CreateProvider creates a Gemini provider
func (f *GeminiFactory) CreateProvider(ctx context.Context) (ports.Provider, error) {
	geminiCfg := f.cfg.GetGemini()
	if geminiCfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	client, err := gemini.NewGeminiClient(
		ctx,
		geminiCfg.APIKey,
		geminiCfg.ModelName,
		geminiCfg.MaxTokens,
		geminiCfg.Temperature,
		geminiCfg.TopP,
		f.builder,
		f.logger,
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}
