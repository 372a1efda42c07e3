package metrics

import (
	"github.com/mikey/ai-cost-optimizer/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cost_optimizer"

// Recorder publishes engine counters to Prometheus
type Recorder struct {
	decisions     *prometheus.CounterVec
	upstreamCalls *prometheus.CounterVec
	failOpen      *prometheus.CounterVec
	batchSize     *prometheus.HistogramVec
}

var _ core.Metrics = (*Recorder)(nil)

// NewRecorder registers the engine metrics on reg
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Decisions taken by the engine, by feature and action.",
		}, []string{"feature", "action"}),
		upstreamCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_calls_total",
			Help:      "Paid upstream AI calls, by feature and outcome.",
		}, []string{"feature", "outcome"}),
		failOpen: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fail_open_total",
			Help:      "Optimization stages that failed and let the candidate through.",
		}, []string{"feature", "stage"}),
		batchSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of items per flushed batch.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
		}, []string{"feature"}),
	}
}

func (r *Recorder) Decision(feature core.Feature, action core.Action) {
	r.decisions.WithLabelValues(feature.String(), string(action)).Inc()
}

func (r *Recorder) UpstreamCall(feature core.Feature, outcome string) {
	r.upstreamCalls.WithLabelValues(feature.String(), outcome).Inc()
}

func (r *Recorder) FailOpen(feature core.Feature, stage string) {
	r.failOpen.WithLabelValues(feature.String(), stage).Inc()
}

func (r *Recorder) BatchFlushed(feature core.Feature, size int) {
	r.batchSize.WithLabelValues(feature.String()).Observe(float64(size))
}
