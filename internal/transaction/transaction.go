// Package transaction implements TransactionManager: local start/stop of a
// charging transaction, and the remote-start/remote-stop request handlers
// invoked by the central system.
package transaction

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"ocpp-chargepoint/internal/authcache"
	"ocpp-chargepoint/internal/collab"
	"ocpp-chargepoint/internal/connector"
	"ocpp-chargepoint/internal/queue"
	"ocpp-chargepoint/internal/types"
)

// Config carries the subset of the charge point's configuration the
// Transaction Core consults directly.
type Config struct {
	ReserveConnectorZeroSupported bool
}

// Manager orchestrates the transaction lifecycle. Every collaborator is a
// narrow capability interface (internal/collab) so Manager can be tested
// against fakes.
type Manager struct {
	cfg Config

	connectors   *connector.Registry
	fifo         *queue.TransactionFifo
	sender       collab.MessageSender
	events       collab.EventsHandler
	reservations collab.ReservationManager
	authCache    *authcache.Cache
	smartCharge  collab.SmartChargingManager
	meterValues  collab.MeterValuesManager

	logger *logrus.Logger
}

// New constructs a Manager. logger defaults to logrus.New() if nil.
func New(
	cfg Config,
	connectors *connector.Registry,
	fifo *queue.TransactionFifo,
	sender collab.MessageSender,
	events collab.EventsHandler,
	reservations collab.ReservationManager,
	authCache *authcache.Cache,
	smartCharge collab.SmartChargingManager,
	meterValues collab.MeterValuesManager,
	logger *logrus.Logger,
) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		cfg:          cfg,
		connectors:   connectors,
		fifo:         fifo,
		sender:       sender,
		events:       events,
		reservations: reservations,
		authCache:    authCache,
		smartCharge:  smartCharge,
		meterValues:  meterValues,
		logger:       logger,
	}
}

// StartTransaction implements the local-start algorithm.
func (m *Manager) StartTransaction(ctx context.Context, connectorID int, idTag string) (types.AuthorizationStatus, error) {
	if connectorID == types.ConnectorIDChargePoint {
		return types.AuthorizationInvalid, fmt.Errorf("cannot start a transaction on connector 0")
	}
	if !m.connectors.Exists(connectorID) {
		return types.AuthorizationInvalid, fmt.Errorf("connector %d does not exist", connectorID)
	}

	status, err := m.reservations.IsTransactionAllowed(connectorID, idTag)
	if err != nil {
		return types.AuthorizationInvalid, fmt.Errorf("failed to check reservation for connector %d: %w", connectorID, err)
	}
	if status != types.AuthorizationAccepted {
		return status, nil
	}

	meterStart, err := m.events.GetTxStartStopMeterValue(connectorID)
	if err != nil {
		return types.AuthorizationInvalid, fmt.Errorf("failed to read meter value on connector %d: %w", connectorID, err)
	}

	req := types.StartTransactionReq{
		ConnectorID: connectorID,
		IdTag:       idTag,
		MeterStart:  meterStart,
		Timestamp:   time.Now().UTC(),
	}

	if err := m.applyReservation(connectorID, idTag, &req); err != nil {
		return types.AuthorizationInvalid, err
	}

	m.logger.Infof("start transaction requested: connector=%d idTag=%s", connectorID, idTag)

	var conf types.StartTransactionConf
	result, callErr := m.sender.Call(ctx, types.ActionStartTransaction, connectorID, req, &conf, m.fifo)

	switch result {
	case collab.SendOk:
		status = conf.IdTagInfo.Status
		if status != types.AuthorizationConcurrentTx {
			if err := m.authCache.Update(idTag, conf.IdTagInfo); err != nil {
				m.logger.WithError(err).Warn("failed to update authorization cache")
			}
		}
	case collab.SendFailed:
		if callErr != nil {
			return types.AuthorizationInvalid, fmt.Errorf("failed to send start transaction: %w", callErr)
		}
		// Captured in the FIFO: authorize locally pending reconciliation.
		conf.TransactionID = types.TransactionIDProvisional
		status = types.AuthorizationAccepted
	}

	if status == types.AuthorizationAccepted {
		m.logger.Infof("start transaction accepted: connector=%d transactionId=%d", connectorID, conf.TransactionID)

		if _, err := m.connectors.Mutate(connectorID, func(s *connector.State) {
			s.TransactionID = conf.TransactionID
			s.TransactionStart = time.Now().UTC().Truncate(time.Second)
			s.TransactionIdTag = idTag
		}); err != nil {
			return types.AuthorizationInvalid, fmt.Errorf("failed to persist connector %d: %w", connectorID, err)
		}

		if err := m.smartCharge.AssignPendingTxProfiles(connectorID, conf.TransactionID); err != nil {
			m.logger.WithError(err).Warn("failed to assign pending charging profiles")
		}
		if err := m.meterValues.StartSampledMeterValues(connectorID, conf.TransactionID); err != nil {
			m.logger.WithError(err).Warn("failed to start sampled meter values")
		}
		return status, nil
	}

	m.logger.Warnf("start transaction refused: connector=%d status=%s", connectorID, status)

	// Compensating stop: some central systems assign a transaction id even
	// on rejection. Carry it verbatim.
	stopReq := types.StopTransactionReq{
		TransactionID: conf.TransactionID,
		Timestamp:     req.Timestamp,
		MeterStop:     req.MeterStart,
		Reason:        types.ReasonDeAuthorized,
	}
	var stopConf types.StopTransactionConf
	if _, err := m.sender.Call(ctx, types.ActionStopTransaction, connectorID, stopReq, &stopConf, m.fifo); err != nil {
		m.logger.WithError(err).Warn("failed to send compensating stop transaction")
	}

	return status, nil
}

// applyReservation implements step 3 of the local-start algorithm: stamp
// reservationId from the connector's own reservation, or (if configured)
// from the whole-charge-point reservation, clearing whichever is consumed.
func (m *Manager) applyReservation(connectorID int, idTag string, req *types.StartTransactionReq) error {
	connState, err := m.connectors.Get(connectorID)
	if err != nil {
		return fmt.Errorf("failed to read connector %d: %w", connectorID, err)
	}

	if connState.Status == types.StatusReserved {
		req.ReservationID = connState.ReservationID
		if err := m.reservations.ClearReservation(connectorID); err != nil {
			return fmt.Errorf("failed to clear reservation on connector %d: %w", connectorID, err)
		}
		return nil
	}

	if !m.cfg.ReserveConnectorZeroSupported {
		return nil
	}

	chargePoint, err := m.connectors.ChargePoint()
	if err != nil {
		return fmt.Errorf("failed to read charge point connector: %w", err)
	}
	if chargePoint.Status != types.StatusReserved {
		return nil
	}

	status, err := m.reservations.IsTransactionAllowed(types.ConnectorIDChargePoint, idTag)
	if err != nil {
		return fmt.Errorf("failed to check charge point reservation: %w", err)
	}
	if status != types.AuthorizationAccepted {
		return nil
	}

	req.ReservationID = chargePoint.ReservationID
	if err := m.reservations.ClearReservation(connectorID); err != nil {
		return fmt.Errorf("failed to clear reservation on connector %d: %w", connectorID, err)
	}
	return nil
}

// StopTransaction implements the local-stop algorithm.
func (m *Manager) StopTransaction(ctx context.Context, connectorID int, idTag string, reason types.Reason) (bool, error) {
	connState, err := m.connectors.Get(connectorID)
	if err != nil {
		return false, nil
	}
	if !connState.HasActiveTransaction() {
		return false, nil
	}

	if err := m.meterValues.StopSampledMeterValues(connectorID); err != nil {
		m.logger.WithError(err).Warn("failed to stop sampled meter values")
	}

	meterStop, err := m.events.GetTxStartStopMeterValue(connectorID)
	if err != nil {
		return false, fmt.Errorf("failed to read meter value on connector %d: %w", connectorID, err)
	}
	transactionData, err := m.meterValues.GetTxStopMeterValues(connectorID)
	if err != nil {
		m.logger.WithError(err).Warn("failed to collect final meter values")
	}

	req := types.StopTransactionReq{
		TransactionID:   connState.TransactionID,
		IdTag:           idTag,
		MeterStop:       meterStop,
		Timestamp:       time.Now().UTC(),
		Reason:          reason,
		TransactionData: transactionData,
	}

	// The local charging session ends here, before the send completes: a
	// crash after this point must not leave a transaction stuck "active"
	// locally.
	if _, err := m.connectors.Mutate(connectorID, func(s *connector.State) {
		s.TransactionID = types.TransactionIDNone
		s.TransactionIdTag = ""
		s.TransactionStart = time.Time{}
	}); err != nil {
		return false, fmt.Errorf("failed to persist connector %d: %w", connectorID, err)
	}

	m.logger.Infof("stop transaction: transactionId=%d reason=%s", req.TransactionID, reason)

	var conf types.StopTransactionConf
	result, callErr := m.sender.Call(ctx, types.ActionStopTransaction, connectorID, req, &conf, m.fifo)
	if result == collab.SendOk && conf.IdTagInfo != nil {
		if err := m.authCache.Update(idTag, *conf.IdTagInfo); err != nil {
			m.logger.WithError(err).Warn("failed to update authorization cache")
		}
	}
	if result == collab.SendFailed && callErr != nil {
		m.logger.WithError(callErr).Warn("failed to send stop transaction")
	}

	if err := m.smartCharge.ClearTxProfiles(connectorID); err != nil {
		m.logger.WithError(err).Warn("failed to clear charging profiles")
	}

	return true, nil
}

// HandleRemoteStartTransaction implements the RemoteStartTransaction.req
// handler. The actual StartTransaction is not sent here — it is triggered
// later once the physical precondition (cable, contactor) is met.
func (m *Manager) HandleRemoteStartTransaction(req types.RemoteStartTransactionReq) types.RemoteStartTransactionConf {
	authorized := false

	if req.ConnectorID != nil && *req.ConnectorID != types.ConnectorIDChargePoint {
		connectorID := *req.ConnectorID
		connState, err := m.connectors.Get(connectorID)
		if err == nil && connState.Status != types.StatusUnavailable && !connState.HasActiveTransaction() {
			status, err := m.reservations.IsTransactionAllowed(connectorID, req.IdTag)
			if err == nil && status == types.AuthorizationAccepted {
				authorized = m.events.RemoteStartTransactionRequested(connectorID, req.IdTag)
				if authorized && req.ChargingProfile != nil {
					if err := m.smartCharge.InstallTxProfile(connectorID, 0, req.ChargingProfile); err != nil {
						m.logger.WithError(err).Warn("failed to install transaction-scoped charging profile")
						authorized = false
					}
				}
			}
		}
	}

	status := types.RemoteStartStopRejected
	if authorized {
		status = types.RemoteStartStopAccepted
	}
	m.logger.Infof("remote start transaction %s: connector=%v idTag=%s", status, req.ConnectorID, req.IdTag)

	return types.RemoteStartTransactionConf{Status: status}
}

// HandleRemoteStopTransaction implements the RemoteStopTransaction.req
// handler. The actual stop is not sent here either.
func (m *Manager) HandleRemoteStopTransaction(req types.RemoteStopTransactionReq) types.RemoteStopTransactionConf {
	authorized := false

	states, err := m.connectors.List()
	if err == nil {
		for _, s := range states {
			if s.HasActiveTransaction() && s.TransactionID == req.TransactionID {
				authorized = m.events.RemoteStopTransactionRequested(s.ConnectorID)
				break
			}
		}
	}

	status := types.RemoteStartStopRejected
	if authorized {
		status = types.RemoteStartStopAccepted
	}
	m.logger.Infof("remote stop transaction %s: transactionId=%d", status, req.TransactionID)

	return types.RemoteStopTransactionConf{Status: status}
}
