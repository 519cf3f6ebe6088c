package core

import (
	"sync/atomic"

	"ocpp-chargepoint/internal/collab"
	"ocpp-chargepoint/internal/types"
)

// registrationStatus is the default StatusManager collaborator. The
// transport-level OCPP handshake is out of scope here: the core assumes
// registration has already been accepted by whatever establishes the
// WebSocket connection, and simply exposes a settable status for the
// drainer's accepted-gate check.
type registrationStatus struct {
	value atomic.Value
}

func newRegistrationStatus() *registrationStatus {
	r := &registrationStatus{}
	r.value.Store(types.RegistrationAccepted)
	return r
}

func (r *registrationStatus) GetRegistrationStatus() types.RegistrationStatus {
	return r.value.Load().(types.RegistrationStatus)
}

func (r *registrationStatus) Set(status types.RegistrationStatus) {
	r.value.Store(status)
}

var _ collab.StatusManager = (*registrationStatus)(nil)

// noopReservationManager allows every transaction unconditionally. A real
// reservation manager (ReserveNow/CancelReservation bookkeeping) is an
// external collaborator; this default lets the core run standalone until
// one is wired in.
type noopReservationManager struct{}

func (noopReservationManager) IsTransactionAllowed(connectorID int, idTag string) (types.AuthorizationStatus, error) {
	return types.AuthorizationAccepted, nil
}

func (noopReservationManager) ClearReservation(connectorID int) error { return nil }

var _ collab.ReservationManager = noopReservationManager{}

// noopSmartChargingManager performs no profile bookkeeping. Smart-charging
// profile installation/enforcement is an external collaborator.
type noopSmartChargingManager struct{}

func (noopSmartChargingManager) InstallTxProfile(connectorID, transactionID int, profile *types.ChargingProfile) error {
	return nil
}

func (noopSmartChargingManager) AssignPendingTxProfiles(connectorID, transactionID int) error {
	return nil
}

func (noopSmartChargingManager) ClearTxProfiles(connectorID int) error { return nil }

var _ collab.SmartChargingManager = noopSmartChargingManager{}

// noopMeterValuesManager performs no sampling. A real metering sampler
// periodically pushes MeterValues entries onto the transaction FIFO; it is
// an external collaborator produced outside this core.
type noopMeterValuesManager struct {
	fifo collab.Fifo
}

func (m *noopMeterValuesManager) SetTransactionFifo(fifo collab.Fifo) { m.fifo = fifo }

func (noopMeterValuesManager) StartSampledMeterValues(connectorID, transactionID int) error {
	return nil
}

func (noopMeterValuesManager) StopSampledMeterValues(connectorID int) error { return nil }

func (noopMeterValuesManager) GetTxStopMeterValues(connectorID int) ([]types.MeterValue, error) {
	return nil, nil
}

var _ collab.MeterValuesManager = (*noopMeterValuesManager)(nil)
