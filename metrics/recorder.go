// Package metrics defines the counters the fetch and reconcile paths emit.
// Callers that do not scrape metrics use the no-op recorder.
package metrics

// Recorder receives operational events from the gateway and pipelines.
type Recorder interface {
	RecordChunkSkipped(provider string)
	RecordFetch(provider string, rows int)
	RecordPredictionRun()
	RecordAlert()
}

// NoopRecorder discards every event.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder {
	return &NoopRecorder{}
}

func (NoopRecorder) RecordChunkSkipped(provider string) {}
func (NoopRecorder) RecordFetch(provider string, rows int) {}
func (NoopRecorder) RecordPredictionRun() {}
func (NoopRecorder) RecordAlert() {}

var _ Recorder = (*NoopRecorder)(nil)
