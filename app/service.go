// Package app wires the configuration into a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/homegrid/battsitter/config"
	"github.com/homegrid/battsitter/core/engine"
	"github.com/homegrid/battsitter/core/events"
	coremetrics "github.com/homegrid/battsitter/core/metrics"
	"github.com/homegrid/battsitter/core/sitter"
	"github.com/homegrid/battsitter/infra/logger"
	"github.com/homegrid/battsitter/infra/metrics"
	"github.com/homegrid/battsitter/infra/mqtt"
	"github.com/homegrid/battsitter/infra/myenergi"
	"github.com/homegrid/battsitter/infra/sigenergy"
	"github.com/homegrid/battsitter/internal/eventbus"
)

// Service owns the poll loop and its observers.
type Service struct {
	Sitter *sitter.Sitter

	bus         *eventbus.Bus[events.CycleEvent]
	publisher   *mqtt.StatusPublisher
	influx      *metrics.InfluxSink
	log         logger.Logger
	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration. Configuration problems
// surface here, before the first poll.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	zappi := myenergi.NewClient(cfg.Zappi.APIURL, cfg.Zappi.HubSerial, cfg.Zappi.APIKey,
		cfg.Zappi.Serial, time.Duration(cfg.Zappi.TimeoutSeconds)*time.Second)
	sigen := sigenergy.NewClient(cfg.Sigenergy.APIURL, cfg.Sigenergy.Region,
		cfg.Sigenergy.Username, cfg.Sigenergy.Password,
		time.Duration(cfg.Sigenergy.TimeoutSeconds)*time.Second)

	svc := &Service{
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink()
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sink := metrics.NewInfluxSinkWithFallback(cfg.Metrics)
		if influx, ok := sink.(*metrics.InfluxSink); ok {
			svc.influx = influx
		}
		sinks = append(sinks, sink)
	}
	var sink coremetrics.MetricsSink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	svc.bus = eventbus.New[events.CycleEvent]()
	eng := engine.New(cfg.Sigenergy.ChargingPower, cfg.Sigenergy.ChargeDurationMinutes)
	sit, err := sitter.New(zappi, sigen, sigen, eng,
		time.Duration(cfg.Polling.IntervalSeconds)*time.Second,
		time.Duration(cfg.Polling.FetchTimeoutSeconds)*time.Second,
		sink, svc.bus, logger.New("sitter"))
	if err != nil {
		return nil, err
	}
	svc.Sitter = sit

	if cfg.MQTT.Broker != "" {
		pub, err := mqtt.NewStatusPublisher(cfg.MQTT)
		if err != nil {
			return nil, err
		}
		svc.publisher = pub
	}
	return svc, nil
}

// Run starts the observers and blocks in the poll loop until the context is
// canceled.
func (s *Service) Run(ctx context.Context) error {
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.publisher != nil {
		sub := s.bus.Subscribe()
		go s.publisher.Run(ctx, sub)
	}
	if err := s.Sitter.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.bus != nil {
		s.bus.Close()
	}
	if s.publisher != nil {
		s.publisher.Close()
	}
	if s.influx != nil {
		s.influx.Close()
	}
	return nil
}
