package factory

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/ai-cost-optimizer/internal/adapters/bedrock"
	"github.com/mikey/ai-cost-optimizer/internal/adapters/prompt"
	"github.com/mikey/ai-cost-optimizer/internal/config"
	"github.com/mikey/ai-cost-optimizer/internal/ports"
	"go.uber.org/zap"
)

// BedrockFactory creates Bedrock providers
type BedrockFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	builder *prompt.Builder
}

// NewBedrockFactory creates a new Bedrock factory
func NewBedrockFactory(cfg *config.Config, logger *zap.Logger, builder *prompt.Builder) *BedrockFactory {
	return &BedrockFactory{
		cfg:     cfg,
		logger:  logger,
		builder: builder,
	}
}

// CreateProvider loads the default AWS credential chain for the configured region
func (f *BedrockFactory) CreateProvider(ctx context.Context) (ports.Provider, error) {
	bedrockCfg := f.cfg.GetBedrock()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(bedrockCfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return bedrock.NewBedrockClient(
		bedrockruntime.NewFromConfig(awsCfg),
		bedrockCfg.ModelID,
		bedrockCfg.MaxTokens,
		bedrockCfg.Temperature,
		bedrockCfg.TopP,
		f.builder,
		f.logger,
	), nil
}
