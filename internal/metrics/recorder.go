// Package metrics records lifecycle phase durations and outcomes.
package metrics

import "time"

// ResultLabel enumerates phase result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultSkipped ResultLabel = "skipped"
	ResultWarning ResultLabel = "warning"
	ResultFatal   ResultLabel = "fatal"
)

// Recorder receives phase observations. Implementations must tolerate calls
// from a nil-configured driver through NoopRecorder.
type Recorder interface {
	ObservePhaseDuration(phase string, duration time.Duration)
	IncPhaseResult(phase string, result ResultLabel)
}

// NoopRecorder discards every observation.
type NoopRecorder struct{}

func (NoopRecorder) ObservePhaseDuration(string, time.Duration) {}
func (NoopRecorder) IncPhaseResult(string, ResultLabel)         {}
