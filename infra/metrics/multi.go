package metrics

import coremetrics "github.com/homegrid/battsitter/core/metrics"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordCycle forwards the record to all sinks, returning the first error
// encountered.
func (m *MultiSink) RecordCycle(res coremetrics.CycleResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordCycle(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordActuation forwards the record to all sinks, returning the first error
// encountered.
func (m *MultiSink) RecordActuation(res coremetrics.ActuationResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordActuation(res); err != nil {
			return err
		}
	}
	return nil
}
