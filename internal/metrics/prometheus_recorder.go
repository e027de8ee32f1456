package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const metricsNamespaceConstant = "rakebuild"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry      *prom.Registry
	phaseDuration *prom.HistogramVec
	phaseResults  *prom.CounterVec
}

// NewPrometheusRecorder constructs the phase metrics and registers them on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	recorder := &PrometheusRecorder{
		registry: reg,
		phaseDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: metricsNamespaceConstant,
			Name:      "phase_duration_seconds",
			Help:      "Duration of package lifecycle phases",
			Buckets:   prom.DefBuckets,
		}, []string{"phase"}),
		phaseResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: metricsNamespaceConstant,
			Name:      "phase_results_total",
			Help:      "Package lifecycle phase results by outcome",
		}, []string{"phase", "result"}),
	}
	reg.MustRegister(recorder.phaseDuration, recorder.phaseResults)
	return recorder
}

func (p *PrometheusRecorder) ObservePhaseDuration(phase string, d time.Duration) {
	if p == nil || p.phaseDuration == nil {
		return
	}
	p.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPhaseResult(phase string, result ResultLabel) {
	if p == nil || p.phaseResults == nil {
		return
	}
	p.phaseResults.WithLabelValues(phase, string(result)).Inc()
}

// WriteTextfile dumps the registry in the text exposition format, suitable for
// the node exporter textfile collector.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	return prom.WriteToTextfile(path, p.registry)
}
