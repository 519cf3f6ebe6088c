package core

import (
	"context"

	"github.com/sirupsen/logrus"

	"ocpp-chargepoint/internal/collab"
	"ocpp-chargepoint/internal/transaction"
	"ocpp-chargepoint/internal/types"
)

// eventsHandler implements collab.EventsHandler, the narrow surface
// internal/transaction depends on. It bridges hardware adapter id-tag
// presentation events into StartTransaction calls and answers the local
// policy questions the transaction manager asks during remote start/stop
// and FIFO drain.
type eventsHandler struct {
	tx     *transaction.Manager
	logger *logrus.Logger
}

// newEventsHandler constructs an eventsHandler ahead of the transaction
// manager it will be wired into: SetManager closes the cycle once the
// manager exists.
func newEventsHandler(logger *logrus.Logger) *eventsHandler {
	return &eventsHandler{logger: logger}
}

// SetManager wires the transaction manager the handler's adapter callback
// forwards id-tag presentations to.
func (h *eventsHandler) SetManager(tx *transaction.Manager) {
	h.tx = tx
}

// onIdTagPresented is the adapter callback: present the id-tag to the
// connector it was read at as a local StartTransaction trigger.
func (h *eventsHandler) onIdTagPresented(event types.IdTagPresentedEvent) {
	status, err := h.tx.StartTransaction(context.Background(), event.ConnectorID, event.IdTag)
	if err != nil {
		h.logger.WithError(err).WithField("connector_id", event.ConnectorID).Error("failed to start transaction from adapter event")
		return
	}
	h.logger.WithFields(logrus.Fields{
		"connector_id": event.ConnectorID,
		"id_tag":       event.IdTag,
		"status":       status,
	}).Info("id-tag presented")
}

// GetTxStartStopMeterValue returns the hardware meter reading for
// connectorID. No meter hardware is wired, so transactions start and stop
// with a zero meter value.
func (h *eventsHandler) GetTxStartStopMeterValue(connectorID int) (int, error) {
	return 0, nil
}

// RemoteStartTransactionRequested and RemoteStopTransactionRequested gate
// whether a central-system-initiated remote command is honored locally.
// Both default to allowed.
func (h *eventsHandler) RemoteStartTransactionRequested(connectorID int, idTag string) bool {
	return true
}

func (h *eventsHandler) RemoteStopTransactionRequested(connectorID int) bool {
	return true
}

// TransactionDeAuthorized logs the central system's rejection of a
// provisionally-started transaction once connectivity returns.
func (h *eventsHandler) TransactionDeAuthorized(connectorID int) {
	h.logger.WithField("connector_id", connectorID).Warn("transaction de-authorized by central system")
}

var _ collab.EventsHandler = (*eventsHandler)(nil)
