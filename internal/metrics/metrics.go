package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline records per-stage latency and failures of answer turns.
// A nil *Pipeline is valid and records nothing.
type Pipeline struct {
	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	turns         *prometheus.CounterVec
}

// NewPipeline registers the pipeline collectors with reg.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	p := &Pipeline{
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nordbot_stage_duration_seconds",
				Help:    "Duration of external pipeline calls in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"stage"},
		),
		stageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nordbot_stage_failures_total",
				Help: "Total number of failed external pipeline calls",
			},
			[]string{"stage"},
		),
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nordbot_turns_total",
				Help: "Total number of chat turns by outcome",
			},
			[]string{"outcome"},
		),
	}
	reg.MustRegister(p.stageDuration, p.stageFailures, p.turns)
	return p
}

// ObserveStage records one call of the named stage.
func (p *Pipeline) ObserveStage(stage string, started time.Time, err error) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
	if err != nil {
		p.stageFailures.WithLabelValues(stage).Inc()
	}
}

// ObserveTurn counts a finished turn as "answered", "failed" or "rejected".
func (p *Pipeline) ObserveTurn(outcome string) {
	if p == nil {
		return
	}
	p.turns.WithLabelValues(outcome).Inc()
}
