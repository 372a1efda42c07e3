package prompt

import (
	"strings"
	"testing"

	"github.com/mikey/ai-cost-optimizer/internal/core"
	"github.com/mikey/ai-cost-optimizer/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuilder_Build(t *testing.T) {
	b := NewBuilder(utils.NewTextProcessor(zap.NewNop()), 10)
	items := []*core.Request{
		{Feature: core.FeatureIntel, Params: map[string]any{"source": "reuters"}, Text: "Supplier hit by ransomware attack"},
		{Feature: core.FeatureIntel, Text: "Short"},
	}

	out, err := b.Build(core.FeatureIntel, items)
	require.NoError(t, err)

	assert.Contains(t, out, "risk_level")
	assert.Contains(t, out, "exactly 2 objects")
	assert.Contains(t, out, "### Item 1\nParameters: {\"source\":\"reuters\"}\nText:\nSupplier h"+utils.TruncationMarker)
	assert.Contains(t, out, "### Item 2\nText:\nShort\n")
	assert.NotContains(t, out, "ransomware")
}

func TestBuilder_UnknownFeature(t *testing.T) {
	b := NewBuilder(utils.NewTextProcessor(zap.NewNop()), 0)
	_, err := b.Build("billing", nil)
	assert.ErrorIs(t, err, core.ErrUnknownFeature)
}

func TestBuilder_EveryFeatureHasInstructions(t *testing.T) {
	b := NewBuilder(utils.NewTextProcessor(zap.NewNop()), 0)
	for _, f := range core.Features {
		out, err := b.Build(f, []*core.Request{{Feature: f, Text: "x"}})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, featureInstructions[f]))
	}
}

func TestParseResults(t *testing.T) {
	results, err := ParseResults("```json\n[{\"a\":1}, null, \"oops\"]\n```")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.JSONEq(t, `{"a":1}`, string(results[0]))
	assert.Equal(t, "null", string(results[1]))

	results, err = ParseResults(`{"results": [{"status": "effective"}]}`)
	require.NoError(t, err)
	require.Len(t, results, 1)

	_, err = ParseResults(`{"status": "effective"}`)
	assert.ErrorIs(t, err, ErrNoResults)

	_, err = ParseResults("Sorry, I can't do that.")
	assert.ErrorIs(t, err, ErrNoResults)

	_, err = ParseResults(`[{"a":1},]`)
	assert.Error(t, err)
}
