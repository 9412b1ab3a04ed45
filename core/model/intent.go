package model

import "fmt"

// OverrideIntent is the engine's instruction to the battery actuator. A nil
// intent means leave the battery alone this cycle.
type OverrideIntent struct {
	// Enable asserts a grid-charge override; false releases it.
	Enable bool
	// PowerKW and DurationMinutes parameterize an Enable. Both are zero on
	// a release.
	PowerKW         float64
	DurationMinutes int
}

// EnableIntent builds an intent that asserts the override.
func EnableIntent(powerKW float64, durationMinutes int) *OverrideIntent {
	return &OverrideIntent{Enable: true, PowerKW: powerKW, DurationMinutes: durationMinutes}
}

// DisableIntent builds an intent that releases the override.
func DisableIntent() *OverrideIntent {
	return &OverrideIntent{}
}

// Command returns the actuator command name, used as a metrics label.
func (i OverrideIntent) Command() string {
	if i.Enable {
		return "enable"
	}
	return "disable"
}

func (i OverrideIntent) String() string {
	if i.Enable {
		return fmt.Sprintf("enable manual charge %.1fkW for %dm", i.PowerKW, i.DurationMinutes)
	}
	return "disable manual charge"
}
