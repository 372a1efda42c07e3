package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mikey/ai-cost-optimizer/internal/core"
	"github.com/mikey/ai-cost-optimizer/internal/utils"
)

// ErrNoResults is returned when the model output holds no result list
var ErrNoResults = errors.New("model output contains no result list")

// SystemInstruction is sent as the system message by providers that support one
const SystemInstruction = "You are a third-party risk analyst. You always answer with a single JSON array and nothing else."

var featureInstructions = map[core.Feature]string{
	core.FeatureIntel: `Each item is a news article or alert about a supplier or vendor.
For each item produce an object with:
- relevant: boolean (true if the item describes a risk to the supplier relationship)
- risk_level: one of "none", "low", "medium", "high", "critical"
- categories: array of strings (e.g. "cyber", "financial", "regulatory", "operational", "esg")
- summary: string (two sentences at most)`,
	core.FeatureLibrary: `Each item is an excerpt of a policy, contract or certification document.
For each item produce an object with:
- summary: string (three sentences at most)
- obligations: array of strings (concrete commitments stated in the text)
- tags: array of strings (topics covered)
- expires_on: string (ISO date if the document states an expiry, otherwise "")`,
	core.FeatureControl: `Each item is the evidence submitted for a security or compliance control.
For each item produce an object with:
- status: one of "effective", "partially_effective", "ineffective", "insufficient_evidence"
- gaps: array of strings (missing or weak evidence)
- recommendation: string (one actionable next step)`,
}

// Builder renders one prompt for a whole batch
type Builder struct {
	textProcessor *utils.TextProcessor
	maxItemSize   int
}

// NewBuilder creates a prompt builder. Each item's text is cut to maxItemSize bytes.
func NewBuilder(textProcessor *utils.TextProcessor, maxItemSize int) *Builder {
	return &Builder{textProcessor: textProcessor, maxItemSize: maxItemSize}
}

// Build renders the prompt for items of one feature. The model must answer with exactly
// one result per item, in input order.
func (b *Builder) Build(feature core.Feature, items []*core.Request) (string, error) {
	instructions, ok := featureInstructions[feature]
	if !ok {
		return "", fmt.Errorf("%w: %q", core.ErrUnknownFeature, feature)
	}

	var sb strings.Builder
	sb.WriteString(instructions)
	fmt.Fprintf(&sb, "\n\nThere are %d items. Respond with a JSON array of exactly %d objects, ", len(items), len(items))
	sb.WriteString("where the n-th object is the analysis of item n. Respond only with the JSON array.\n")

	for i, item := range items {
		fmt.Fprintf(&sb, "\n### Item %d\n", i+1)
		if len(item.Params) > 0 {
			params, err := json.Marshal(item.Params)
			if err != nil {
				return "", fmt.Errorf("failed to encode parameters of item %d: %w", i+1, err)
			}
			fmt.Fprintf(&sb, "Parameters: %s\n", params)
		}
		sb.WriteString("Text:\n")
		sb.WriteString(b.textProcessor.ProcessText(item.Text, b.maxItemSize))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// ParseResults extracts the per-item results from model output. Both a bare array and an
// object of the form {"results": [...]} are accepted. Elements are returned unvalidated.
func ParseResults(text string) ([]json.RawMessage, error) {
	raw, ok := utils.ExtractJSON(text)
	if !ok {
		return nil, ErrNoResults
	}

	var list []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse model output as JSON: %w", err)
	}
	if wrapped.Results == nil {
		return nil, ErrNoResults
	}
	return wrapped.Results, nil
}
