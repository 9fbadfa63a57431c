// Package metrics exposes pipeline instrumentation behind a small Recorder interface.
// Components default to NoopRecorder and receive a PrometheusRecorder when the server wires one.
package metrics

import "time"

// Outcome labels the terminal state of a generation or publish operation.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// Recorder defines observability hooks for the page pipeline.
type Recorder interface {
	ObserveBatch(pages int, d time.Duration, outcome Outcome)
	IncKeywordsAdded(source string, n int)
	IncExportItem(success bool)
	ObservePublish(pages int, d time.Duration, outcome Outcome)
	IncGenerativeFallback(operation string)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveBatch(int, time.Duration, Outcome)   {}
func (NoopRecorder) IncKeywordsAdded(string, int)               {}
func (NoopRecorder) IncExportItem(bool)                         {}
func (NoopRecorder) ObservePublish(int, time.Duration, Outcome) {}
func (NoopRecorder) IncGenerativeFallback(string)               {}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
