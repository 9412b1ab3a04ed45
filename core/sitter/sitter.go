// Package sitter runs the poll-evaluate-act loop that keeps the home battery
// from draining into the EV. It owns the engine state: one cycle at a time,
// no concurrent mutation by construction.
package sitter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/homegrid/battsitter/core/device"
	"github.com/homegrid/battsitter/core/engine"
	"github.com/homegrid/battsitter/core/events"
	"github.com/homegrid/battsitter/core/logger"
	"github.com/homegrid/battsitter/core/metrics"
	"github.com/homegrid/battsitter/core/model"
	"github.com/homegrid/battsitter/internal/eventbus"
)

const (
	DefaultInterval     = 30 * time.Second
	DefaultFetchTimeout = 10 * time.Second
)

// Sitter drives the decision engine at a fixed cadence.
type Sitter struct {
	charger  device.ChargerStatusSource
	battery  device.BatteryStatusSource
	actuator device.BatteryActuator
	engine   engine.Engine

	interval     time.Duration
	fetchTimeout time.Duration
	log          logger.Logger
	sink         metrics.MetricsSink
	bus          *eventbus.Bus[events.CycleEvent]

	mu           sync.Mutex
	state        engine.State
	failStreak   int
	shutdownOnce sync.Once
}

// New creates a Sitter. charger, battery and actuator are required; sink, bus
// and log may be nil. Non-positive durations fall back to the defaults.
func New(charger device.ChargerStatusSource, battery device.BatteryStatusSource, actuator device.BatteryActuator,
	eng engine.Engine, interval, fetchTimeout time.Duration,
	sink metrics.MetricsSink, bus *eventbus.Bus[events.CycleEvent], log logger.Logger) (*Sitter, error) {
	if charger == nil || battery == nil || actuator == nil {
		return nil, fmt.Errorf("sitter: nil collaborator provided to New")
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if log == nil {
		log = nopLogger{}
	}
	return &Sitter{
		charger:      charger,
		battery:      battery,
		actuator:     actuator,
		engine:       eng,
		interval:     interval,
		fetchTimeout: fetchTimeout,
		sink:         sink,
		bus:          bus,
		log:          log,
	}, nil
}

// State returns a snapshot of the engine state.
func (s *Sitter) State() engine.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run executes cycles until the context is canceled, starting with an
// immediate cycle. On shutdown it releases the override if it owns one, then
// returns the context error.
func (s *Sitter) Run(ctx context.Context) error {
	s.log.Infof("starting poll loop: interval=%s fetch_timeout=%s", s.interval, s.fetchTimeout)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			s.releaseOnShutdown()
			return ctx.Err()
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle performs one poll-evaluate-act cycle. It never returns an error:
// observation and actuation failures are logged, recorded and retried on the
// next cycle with the engine state left untouched.
func (s *Sitter) RunCycle(ctx context.Context) {
	now := time.Now()
	charger, battery, err := s.fetchObservations(ctx)
	if err != nil {
		s.mu.Lock()
		s.failStreak++
		streak := s.failStreak
		st := s.state
		s.mu.Unlock()
		s.log.Warnf("observation failed (streak %d), keeping state: %v", streak, err)
		s.finishCycle(metrics.OutcomeObservationFailure, charger, battery, st, err, now)
		return
	}
	s.mu.Lock()
	s.failStreak = 0
	st := s.state
	s.mu.Unlock()

	next, intent := s.engine.Evaluate(charger, battery, st)
	if intent == nil {
		s.mu.Lock()
		s.state = next
		s.mu.Unlock()
		s.log.Debugw("cycle noop", map[string]any{
			"ev_charging":      charger.DrawingPower(),
			"battery_charging": battery.IsCharging,
			"battery_soc":      battery.StateOfCharge,
			"battery_mode":     battery.Mode.String(),
			"owns_override":    next.OwnsOverride,
		})
		s.finishCycle(metrics.OutcomeNoop, charger, battery, next, nil, now)
		return
	}

	if err := s.actuate(ctx, *intent); err != nil {
		// State is committed only after a confirmed actuation; a failed
		// Enable stays unowned, a failed Disable stays owned. Next cycle
		// retries unconditionally.
		s.log.Errorf("actuation %s failed, keeping state: %v", intent.Command(), err)
		s.finishCycle(metrics.OutcomeActuationFailure, charger, battery, st, err, now)
		return
	}

	next.LastCommand = time.Now()
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
	s.log.Infof("%s (battery soc %.1f%%, power %.0fW, owns_override=%t)",
		intent, battery.StateOfCharge, battery.PowerW, next.OwnsOverride)
	s.finishCycle(intent.Command(), charger, battery, next, nil, now)
}

// fetchObservations polls both clouds concurrently, each bounded by the fetch
// timeout. A decision is only made once both results (or failures) are known.
func (s *Sitter) fetchObservations(ctx context.Context) (model.ChargerObservation, model.BatteryObservation, error) {
	var (
		charger model.ChargerObservation
		battery model.BatteryObservation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fctx, cancel := context.WithTimeout(gctx, s.fetchTimeout)
		defer cancel()
		obs, err := s.charger.FetchStatus(fctx)
		if err != nil {
			return fmt.Errorf("charger status: %w", err)
		}
		charger = obs
		return nil
	})
	g.Go(func() error {
		fctx, cancel := context.WithTimeout(gctx, s.fetchTimeout)
		defer cancel()
		obs, err := s.battery.FetchStatus(fctx)
		if err != nil {
			return fmt.Errorf("battery status: %w", err)
		}
		battery = obs
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.ChargerObservation{}, model.BatteryObservation{}, err
	}
	return charger, battery, nil
}

func (s *Sitter) actuate(ctx context.Context, intent model.OverrideIntent) error {
	actx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()
	start := time.Now()
	var err error
	if intent.Enable {
		err = s.actuator.EnableManualCharge(actx, intent.PowerKW, intent.DurationMinutes)
	} else {
		err = s.actuator.DisableManualCharge(actx)
	}
	res := metrics.ActuationResult{
		Command:         intent.Command(),
		PowerKW:         intent.PowerKW,
		DurationMinutes: intent.DurationMinutes,
		Success:         err == nil,
		Latency:         time.Since(start),
		Time:            start,
	}
	if serr := s.sink.RecordActuation(res); serr != nil {
		s.log.Warnf("record actuation: %v", serr)
	}
	return err
}

func (s *Sitter) finishCycle(outcome string, charger model.ChargerObservation, battery model.BatteryObservation, st engine.State, err error, now time.Time) {
	res := metrics.CycleResult{
		Outcome:         outcome,
		EVCharging:      charger.DrawingPower(),
		BatteryCharging: battery.IsCharging,
		StateOfCharge:   battery.StateOfCharge,
		OwnsOverride:    st.OwnsOverride,
		Time:            now,
	}
	if serr := s.sink.RecordCycle(res); serr != nil {
		s.log.Warnf("record cycle: %v", serr)
	}
	if s.bus != nil {
		s.bus.Publish(events.CycleEvent{
			Outcome:      outcome,
			Charger:      charger,
			Battery:      battery,
			OwnsOverride: st.OwnsOverride,
			LastCommand:  st.LastCommand,
			Err:          err,
			Time:         now,
		})
	}
}

// releaseOnShutdown restores autonomous operation if and only if this process
// owns the active override, mirroring the ownership discipline of the engine.
func (s *Sitter) releaseOnShutdown() {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		owns := s.state.OwnsOverride
		s.mu.Unlock()
		if !owns {
			return
		}
		s.log.Infof("shutting down while owning an override, disabling manual charge")
		ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
		defer cancel()
		if err := s.actuator.DisableManualCharge(ctx); err != nil {
			s.log.Errorf("shutdown release failed: %v", err)
			return
		}
		s.mu.Lock()
		s.state.OwnsOverride = false
		s.mu.Unlock()
	})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}
