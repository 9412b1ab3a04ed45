// Package model defines the observations exchanged between the device
// clients and the decision engine, and the override intent the engine emits.
package model

// ChargerState is the EV charger's reported activity, reduced to what the
// decision engine needs.
type ChargerState int

const (
	// ChargerIdle covers paused and completed sessions.
	ChargerIdle ChargerState = iota
	ChargerCharging
	ChargerBoosting
	// ChargerOther covers status codes the mapping does not know.
	ChargerOther
)

func (s ChargerState) String() string {
	switch s {
	case ChargerIdle:
		return "idle"
	case ChargerCharging:
		return "charging"
	case ChargerBoosting:
		return "boosting"
	default:
		return "other"
	}
}

// ChargerObservation is one poll of the EV charger.
type ChargerObservation struct {
	// CarConnected reports whether an EV is plugged in at all.
	CarConnected bool
	// ChargingState is the charger's reported activity.
	ChargingState ChargerState
}

// DrawingPower reports whether a connected EV is actively taking power. Only
// then may the engine consider grid-charging the home battery.
func (o ChargerObservation) DrawingPower() bool {
	return o.CarConnected &&
		(o.ChargingState == ChargerCharging || o.ChargingState == ChargerBoosting)
}

// BatteryMode is the home battery's operating mode as reported by the cloud.
// It is diagnostic only: the engine keys its decisions on IsCharging.
type BatteryMode int

const (
	// ModeUnknown is reported when the mode lookup fails.
	ModeUnknown BatteryMode = iota
	ModeAutonomous
	// ModeManualOverride means a remote EMS command is active.
	ModeManualOverride
)

func (m BatteryMode) String() string {
	switch m {
	case ModeAutonomous:
		return "autonomous"
	case ModeManualOverride:
		return "manual_override"
	default:
		return "unknown"
	}
}

// BatteryObservation is one poll of the home battery.
type BatteryObservation struct {
	// IsCharging is true while the battery takes power, regardless of who
	// asked it to.
	IsCharging bool
	// StateOfCharge is the battery fill level in percent.
	StateOfCharge float64
	// PowerW is the battery power in watts, positive while charging.
	PowerW float64
	Mode   BatteryMode
}
