package metrics

import (
	"testing"

	"github.com/mikey/ai-cost-optimizer/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.Decision(core.FeatureIntel, core.ActionSkip)
	r.Decision(core.FeatureIntel, core.ActionSkip)
	r.Decision(core.FeatureControl, core.ActionReuse)
	r.UpstreamCall(core.FeatureLibrary, "success")
	r.FailOpen(core.FeatureIntel, "cache_read")
	r.BatchFlushed(core.FeatureIntel, 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.decisions.WithLabelValues("intel", "skip")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.decisions.WithLabelValues("control", "reuse")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.upstreamCalls.WithLabelValues("library", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.failOpen.WithLabelValues("intel", "cache_read")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.ElementsMatch(t, []string{
		"cost_optimizer_decisions_total",
		"cost_optimizer_upstream_calls_total",
		"cost_optimizer_fail_open_total",
		"cost_optimizer_batch_size",
	}, names)
}

func TestNewRecorder_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRecorder(reg)
	assert.Panics(t, func() { NewRecorder(reg) })
}
