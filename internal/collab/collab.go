// Package collab defines the capability interfaces the Transaction Core
// consumes from its collaborators. Each interface is narrow and owned by
// the consumer rather than the implementer, so the core can be tested
// against fakes without pulling in the real transport, reservation,
// smart-charging, metering or status subsystems.
package collab

import (
	"context"

	"ocpp-chargepoint/internal/types"
)

// SendResult is the outcome of a MessageSender.Call attempt.
type SendResult int

const (
	SendOk SendResult = iota
	SendFailed
)

// Fifo is the narrow view of the TransactionFifo a MessageSender needs in
// order to satisfy the "atomically enqueue on failure" contract, without
// depending on the full queue package API.
type Fifo interface {
	Push(action types.FifoAction, connectorID int, payload interface{}) (int64, error)
}

// MessageSender is the transport collaborator: synchronous OCPP call/
// response over the (out of scope) WebSocket/JSON-RPC link, plus the
// dual-path FIFO-on-failure rule.
type MessageSender interface {
	// Call sends action with request and decodes the matching response into
	// response. If fifo is non-nil and the send fails, Call must atomically
	// append (action, request) to fifo before returning SendFailed.
	Call(ctx context.Context, action types.FifoAction, connectorID int, request, response interface{}, fifo Fifo) (SendResult, error)
	IsConnected() bool
}

// EventsHandler mediates between the core and the cabinet/UI layer for
// decisions that require local confirmation (remote start/stop accept,
// de-auth notification) and exposes the meter reading needed to stamp a
// StartTransaction/StopTransaction request.
type EventsHandler interface {
	GetTxStartStopMeterValue(connectorID int) (int, error)
	RemoteStartTransactionRequested(connectorID int, idTag string) bool
	RemoteStopTransactionRequested(connectorID int) bool
	TransactionDeAuthorized(connectorID int)
}

// ReservationManager decides whether an id-tag may start a transaction on a
// connector, and clears a reservation once consumed.
type ReservationManager interface {
	IsTransactionAllowed(connectorID int, idTag string) (types.AuthorizationStatus, error)
	ClearReservation(connectorID int) error
}

// SmartChargingManager installs and reassigns charging profiles that were
// pending a transaction id, and clears them when a transaction ends.
type SmartChargingManager interface {
	InstallTxProfile(connectorID, transactionID int, profile *types.ChargingProfile) error
	AssignPendingTxProfiles(connectorID, transactionID int) error
	ClearTxProfiles(connectorID int) error
}

// MeterValuesManager samples and reports meter readings for the duration of
// a transaction.
type MeterValuesManager interface {
	SetTransactionFifo(fifo Fifo)
	StartSampledMeterValues(connectorID, transactionID int) error
	StopSampledMeterValues(connectorID int) error
	GetTxStopMeterValues(connectorID int) ([]types.MeterValue, error)
}

// StatusManager reports the charge point's registration state against the
// central system, gating whether the FifoDrainer is allowed to run.
type StatusManager interface {
	GetRegistrationStatus() types.RegistrationStatus
}
