package queue

import "time"

// Consume outcomes reported to MetricsRecorder.
const (
	OutcomeAcked        = "acked"
	OutcomeDeadLettered = "dead_lettered"
	OutcomeMalformed    = "malformed"
)

// MetricsRecorder receives publish and consume observations.
// *metrics.Recorder satisfies it.
type MetricsRecorder interface {
	ObservePublish(jobType string, durable bool)
	ObserveConsume(jobType, outcome string, duration time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) ObservePublish(string, bool)                  {}
func (noopRecorder) ObserveConsume(string, string, time.Duration) {}
