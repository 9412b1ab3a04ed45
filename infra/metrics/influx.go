package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/homegrid/battsitter/core/metrics"
	"github.com/homegrid/battsitter/infra/logger"
)

// InfluxSink writes cycle and actuation records to an InfluxDB instance using
// the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg Config) *InfluxSink {
	client := influxdb2.NewClientWithOptions(cfg.InfluxURL, cfg.InfluxToken,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg Config) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordCycle writes the cycle snapshot as a line protocol point.
func (s *InfluxSink) RecordCycle(res coremetrics.CycleResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("cycle").
		AddTag("outcome", res.Outcome).
		AddTag("component", "sitter").
		AddField("ev_charging", res.EVCharging).
		AddField("battery_charging", res.BatteryCharging).
		AddField("battery_soc", res.StateOfCharge).
		AddField("owns_override", res.OwnsOverride).
		SetTime(res.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordActuation writes a point per actuator call.
func (s *InfluxSink) RecordActuation(res coremetrics.ActuationResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("actuation").
		AddTag("command", res.Command).
		AddTag("success", strconv.FormatBool(res.Success)).
		AddTag("component", "sitter").
		AddField("power_kw", res.PowerKW).
		AddField("duration_minutes", res.DurationMinutes).
		AddField("latency_ms", res.Latency.Milliseconds()).
		SetTime(res.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }
