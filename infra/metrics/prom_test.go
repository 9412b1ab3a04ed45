package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/homegrid/battsitter/core/metrics"
)

func TestPromSink_RecordCycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}

	rec := coremetrics.CycleResult{
		Outcome:         coremetrics.OutcomeEnable,
		EVCharging:      true,
		BatteryCharging: false,
		StateOfCharge:   63,
		OwnsOverride:    true,
		Time:            time.Now(),
	}
	if err := sink.RecordCycle(rec); err != nil {
		t.Fatalf("record error: %v", err)
	}

	expected := `
# HELP sitter_cycles_total Total number of poll cycles by outcome
# TYPE sitter_cycles_total counter
sitter_cycles_total{outcome="enable"} 1
`
	if err := testutil.CollectAndCompare(sink.cycles, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
	if v := testutil.ToFloat64(sink.overrideOwned); v != 1 {
		t.Errorf("override gauge = %v, want 1", v)
	}
	if v := testutil.ToFloat64(sink.batterySoc); v != 63 {
		t.Errorf("soc gauge = %v, want 63", v)
	}
	if v := testutil.ToFloat64(sink.evCharging); v != 1 {
		t.Errorf("ev gauge = %v, want 1", v)
	}
	if v := testutil.ToFloat64(sink.batteryCharging); v != 0 {
		t.Errorf("battery gauge = %v, want 0", v)
	}
}

func TestPromSink_ObservationFailureKeepsGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	ok := coremetrics.CycleResult{
		Outcome:       coremetrics.OutcomeNoop,
		StateOfCharge: 80,
		EVCharging:    true,
	}
	if err := sink.RecordCycle(ok); err != nil {
		t.Fatalf("record error: %v", err)
	}
	// A failed cycle carries no observation: soc/charging gauges must hold
	// their last good values.
	fail := coremetrics.CycleResult{Outcome: coremetrics.OutcomeObservationFailure}
	if err := sink.RecordCycle(fail); err != nil {
		t.Fatalf("record error: %v", err)
	}
	if v := testutil.ToFloat64(sink.batterySoc); v != 80 {
		t.Errorf("soc gauge = %v, want 80", v)
	}
	if v := testutil.ToFloat64(sink.evCharging); v != 1 {
		t.Errorf("ev gauge = %v, want 1", v)
	}
}

func TestPromSink_RecordActuation(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	rec := coremetrics.ActuationResult{
		Command: "enable",
		PowerKW: 1,
		Success: true,
		Latency: 120 * time.Millisecond,
		Time:    time.Now(),
	}
	if err := sink.RecordActuation(rec); err != nil {
		t.Fatalf("record error: %v", err)
	}

	expected := `
# HELP sitter_actuations_total Total number of battery actuator calls
# TYPE sitter_actuations_total counter
sitter_actuations_total{command="enable",success="true"} 1
`
	if err := testutil.CollectAndCompare(sink.actuations, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
	if c := testutil.CollectAndCount(sink.actuationDelay); c == 0 {
		t.Errorf("latency not recorded")
	}
}

func TestPromSink_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPromSinkWithRegistry(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewPromSinkWithRegistry(reg); err != nil {
		t.Fatalf("second registration should reuse collectors: %v", err)
	}
}
