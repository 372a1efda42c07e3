package factory

import (
	"github.com/mikey/ai-cost-optimizer/internal/adapters/prompt"
	"github.com/mikey/ai-cost-optimizer/internal/config"
	"github.com/mikey/ai-cost-optimizer/internal/utils"
	"go.uber.org/zap"
)

// TextProcessorFactory creates text processors and the prompt builder that uses them
type TextProcessorFactory struct {
	llm    config.LLMConfig
	logger *zap.Logger
}

// NewTextProcessorFactory creates a new TextProcessorFactory
func NewTextProcessorFactory(sc *config.ServiceConfig, logger *zap.Logger) *TextProcessorFactory {
	return &TextProcessorFactory{
		llm:    sc.LLM,
		logger: logger,
	}
}

// CreateTextProcessor creates a new TextProcessor
func (f *TextProcessorFactory) CreateTextProcessor() *utils.TextProcessor {
	return utils.NewTextProcessor(f.logger)
}

// CreatePromptBuilder creates a builder truncating items to llm.max_item_size
func (f *TextProcessorFactory) CreatePromptBuilder(tp *utils.TextProcessor) *prompt.Builder {
	return prompt.NewBuilder(tp, f.llm.MaxItemSize)
}
