// Package device defines the external collaborator interfaces the control
// loop depends on. Implementations for the real vendor clouds live under
// infra/myenergi and infra/sigenergy.
package device

import (
	"context"

	"github.com/homegrid/battsitter/core/model"
)

// ChargerStatusSource polls the EV charger cloud for a fresh observation.
type ChargerStatusSource interface {
	FetchStatus(ctx context.Context) (model.ChargerObservation, error)
}

// BatteryStatusSource polls the battery cloud for a fresh observation.
type BatteryStatusSource interface {
	FetchStatus(ctx context.Context) (model.BatteryObservation, error)
}

// BatteryActuator drives the battery's instant manual charge control. Both
// calls are idempotent at the protocol level: enabling an already enabled
// override is not an error.
type BatteryActuator interface {
	EnableManualCharge(ctx context.Context, powerKW float64, durationMinutes int) error
	DisableManualCharge(ctx context.Context) error
}
