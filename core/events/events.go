// Package events defines the payloads published on the internal event bus.
package events

import (
	"time"

	"github.com/homegrid/battsitter/core/model"
)

// CycleEvent is published after every poll cycle, successful or not. It is
// consumed by passive observers (the MQTT status publisher); nothing on the
// bus participates in control decisions.
type CycleEvent struct {
	Outcome      string
	Charger      model.ChargerObservation
	Battery      model.BatteryObservation
	OwnsOverride bool
	LastCommand  time.Time
	Err          error
	Time         time.Time
}
