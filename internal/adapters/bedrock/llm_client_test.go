package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/ai-cost-optimizer/internal/adapters/prompt"
	"github.com/mikey/ai-cost-optimizer/internal/core"
	"github.com/mikey/ai-cost-optimizer/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRuntime struct {
	body    []byte
	err     error
	request map[string]any
}

func (f *fakeRuntime) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	if err := json.Unmarshal(params.Body, &f.request); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: f.body}, nil
}

func newTestClient(rt InvokeModelAPI, modelID string) *BedrockClient {
	builder := prompt.NewBuilder(utils.NewTextProcessor(zap.NewNop()), 2048)
	return NewBedrockClient(rt, modelID, 1024, 0.1, 0.9, builder, zap.NewNop())
}

func TestBedrockClient_AnthropicMessages(t *testing.T) {
	rt := &fakeRuntime{body: []byte(`{"content":[{"type":"text","text":"[{\"status\":\"effective\"},{\"status\":\"ineffective\"}]"}]}`)}
	c := newTestClient(rt, "anthropic.claude-3-haiku-20240307-v1:0")

	results, err := c.AnalyzeBatch(context.Background(), core.FeatureControl, []*core.Request{
		{Feature: core.FeatureControl, Text: "MFA enforced for admins"},
		{Feature: core.FeatureControl, Text: "No backups"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.JSONEq(t, `{"status":"ineffective"}`, string(results[1]))

	assert.Equal(t, anthropicVersion, rt.request["anthropic_version"])
	assert.Equal(t, prompt.SystemInstruction, rt.request["system"])
	assert.Len(t, rt.request["messages"], 1)
}

func TestBedrockClient_Titan(t *testing.T) {
	rt := &fakeRuntime{body: []byte(`{"results":[{"outputText":"{\"results\":[{\"relevant\":true}]}"}]}`)}
	c := newTestClient(rt, "amazon.titan-text-express-v1")

	results, err := c.AnalyzeBatch(context.Background(), core.FeatureIntel, []*core.Request{{Feature: core.FeatureIntel, Text: "x"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, rt.request, "textGenerationConfig")
}

func TestBedrockClient_InvokeError(t *testing.T) {
	rt := &fakeRuntime{err: errors.New("ThrottlingException")}
	c := newTestClient(rt, "anthropic.claude-v2")

	_, err := c.AnalyzeBatch(context.Background(), core.FeatureIntel, []*core.Request{{Feature: core.FeatureIntel, Text: "x"}})
	assert.ErrorContains(t, err, "ThrottlingException")
}

func TestBedrockClient_EmptyClaudeResponse(t *testing.T) {
	rt := &fakeRuntime{body: []byte(`{"content":[]}`)}
	c := newTestClient(rt, "anthropic.claude-v2")

	_, err := c.AnalyzeBatch(context.Background(), core.FeatureIntel, []*core.Request{{Feature: core.FeatureIntel, Text: "x"}})
	assert.Error(t, err)
}
