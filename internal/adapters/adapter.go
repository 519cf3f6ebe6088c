package adapters

import (
	"context"

	"ocpp-chargepoint/internal/types"
)

// HardwareAdapter defines the interface every id-tag source (RFID reader,
// keypad, simulator) must implement. It is not part of the Transaction
// Core's exported contract — the core only depends on the events-handler
// collaborator interface in internal/collab; an adapter is one way to
// drive that collaborator from a local trigger.
type HardwareAdapter interface {
	// Name returns the unique name of this adapter.
	Name() string

	// Initialize sets up the adapter with the provided configuration.
	Initialize(ctx context.Context, config types.AdapterConfig) error

	// StartListening begins listening for id-tag presentation events.
	StartListening(ctx context.Context) error

	// StopListening stops listening for id-tag presentation events.
	StopListening(ctx context.Context) error

	// GetStatus returns the current status of the adapter.
	GetStatus() types.AdapterStatus

	// OnEvent registers a callback invoked for every id-tag presentation.
	OnEvent(callback types.EventCallback)

	// IsHealthy returns true if the adapter is functioning properly.
	IsHealthy() bool
}
