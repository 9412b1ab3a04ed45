// Package engine implements the charge-control decision engine: given one
// observation of the EV charger and one of the home battery, it decides
// whether to assert, hold or release a grid-charge override on the battery.
package engine

import (
	"time"

	"github.com/homegrid/battsitter/core/model"
)

// State is the only memory kept across poll cycles. The zero value is the
// process-start state: no override owned, no command issued yet.
//
// OwnsOverride transitions to true only after a confirmed Enable issued by
// this process and back to false only after a confirmed Disable. Observing an
// externally initiated charge never toggles it.
type State struct {
	OwnsOverride bool
	LastCommand  time.Time
}

// Engine evaluates the decision table. It is pure: no clock, no network. The
// caller performs the actuation described by the returned intent and must
// commit the returned state only if that actuation succeeded.
type Engine struct {
	powerKW         float64
	durationMinutes int
}

// DefaultPowerKW and DefaultDurationMinutes match the vendor's instant manual
// charge boost window.
const (
	DefaultPowerKW         = 1.0
	DefaultDurationMinutes = 30
)

// New creates an Engine that enables overrides at the given power for the
// given duration. Non-positive values fall back to the defaults.
func New(powerKW float64, durationMinutes int) Engine {
	if powerKW <= 0 {
		powerKW = DefaultPowerKW
	}
	if durationMinutes <= 0 {
		durationMinutes = DefaultDurationMinutes
	}
	return Engine{powerKW: powerKW, durationMinutes: durationMinutes}
}

// Evaluate applies the decision table to one cycle's observations.
//
// The engine is deliberately asymmetric: it enables an override only when the
// EV is drawing power and the battery is not already charging, but it
// disables only overrides it created itself. Collapsing this to a toggle on
// the EV state would fight the battery's own AI/timer scheduling.
func (e Engine) Evaluate(charger model.ChargerObservation, battery model.BatteryObservation, st State) (State, *model.OverrideIntent) {
	evCharging := charger.DrawingPower()

	switch {
	case !evCharging && st.OwnsOverride:
		// EV done: release our override, restore autonomous operation.
		st.OwnsOverride = false
		return st, model.DisableIntent()

	case !evCharging:
		// Nothing to do and nothing owned.
		return st, nil

	case !st.OwnsOverride && battery.IsCharging:
		// Battery already charging on its own schedule. Do not interfere.
		return st, nil

	case !st.OwnsOverride:
		st.OwnsOverride = true
		return st, model.EnableIntent(e.powerKW, e.durationMinutes)

	case battery.IsCharging:
		// Override doing its job.
		return st, nil

	default:
		// Drift: we own the override but the battery stopped charging
		// (boost window expired, cloud dropped the command, SOC full).
		// Re-assert every cycle the condition persists.
		return st, model.EnableIntent(e.powerKW, e.durationMinutes)
	}
}
