package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/homegrid/battsitter/core/metrics"
)

// PromSink records poll cycles and actuations in Prometheus metrics.
type PromSink struct {
	cycles          *prometheus.CounterVec
	actuations      *prometheus.CounterVec
	actuationDelay  *prometheus.HistogramVec
	overrideOwned   prometheus.Gauge
	batterySoc      prometheus.Gauge
	evCharging      prometheus.Gauge
	batteryCharging prometheus.Gauge
}

// NewPromSink registers the sitter metrics on the default Prometheus
// registerer. The exporter HTTP server is started separately.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitter_cycles_total",
			Help: "Total number of poll cycles by outcome",
		}, []string{"outcome"}),
		actuations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitter_actuations_total",
			Help: "Total number of battery actuator calls",
		}, []string{"command", "success"}),
		actuationDelay: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sitter_actuation_latency_seconds",
			Help:    "Latency of battery actuator calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"command"}),
		overrideOwned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sitter_override_owned",
			Help: "1 while this process owns the active battery override",
		}),
		batterySoc: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sitter_battery_soc_percent",
			Help: "Battery state of charge from the last successful cycle",
		}),
		evCharging: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sitter_ev_charging",
			Help: "1 while the EV charger is drawing power",
		}),
		batteryCharging: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sitter_battery_charging",
			Help: "1 while the battery reports charging",
		}),
	}
	collectors := []prometheus.Collector{
		s.cycles, s.actuations, s.actuationDelay,
		s.overrideOwned, s.batterySoc, s.evCharging, s.batteryCharging,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}
	return s, nil
}

// RecordCycle updates the cycle counter and state gauges.
func (s *PromSink) RecordCycle(res coremetrics.CycleResult) error {
	s.cycles.WithLabelValues(res.Outcome).Inc()
	s.overrideOwned.Set(boolGauge(res.OwnsOverride))
	if res.Outcome == coremetrics.OutcomeObservationFailure {
		return nil
	}
	s.batterySoc.Set(res.StateOfCharge)
	s.evCharging.Set(boolGauge(res.EVCharging))
	s.batteryCharging.Set(boolGauge(res.BatteryCharging))
	return nil
}

// RecordActuation counts the actuator call and observes its latency.
func (s *PromSink) RecordActuation(res coremetrics.ActuationResult) error {
	s.actuations.WithLabelValues(res.Command, strconv.FormatBool(res.Success)).Inc()
	s.actuationDelay.WithLabelValues(res.Command).Observe(res.Latency.Seconds())
	return nil
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
