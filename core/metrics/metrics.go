// Package metrics defines the records emitted by the control loop and the
// sink interface they are written to. Concrete sinks live in infra/metrics.
package metrics

import "time"

// Cycle outcomes as recorded per poll cycle.
const (
	OutcomeNoop               = "noop"
	OutcomeEnable             = "enable"
	OutcomeDisable            = "disable"
	OutcomeObservationFailure = "observation_failure"
	OutcomeActuationFailure   = "actuation_failure"
)

// CycleResult is a snapshot of one completed poll cycle.
type CycleResult struct {
	Outcome         string
	EVCharging      bool
	BatteryCharging bool
	StateOfCharge   float64
	OwnsOverride    bool
	Time            time.Time
}

// ActuationResult records one actuator call and whether it was confirmed.
type ActuationResult struct {
	Command         string
	PowerKW         float64
	DurationMinutes int
	Success         bool
	Latency         time.Duration
	Time            time.Time
}

// MetricsSink records control loop activity for observability purposes.
type MetricsSink interface {
	RecordCycle(res CycleResult) error
	RecordActuation(res ActuationResult) error
}

// NopSink discards all records.
type NopSink struct{}

func (NopSink) RecordCycle(CycleResult) error         { return nil }
func (NopSink) RecordActuation(ActuationResult) error { return nil }
