package transaction

import (
	"context"
	"crypto/rand"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"ocpp-chargepoint/internal/authcache"
	"ocpp-chargepoint/internal/collab"
	"ocpp-chargepoint/internal/connector"
	"ocpp-chargepoint/internal/queue"
	"ocpp-chargepoint/internal/store"
	"ocpp-chargepoint/internal/types"
)

type fakeSender struct {
	connected      bool
	nextResult     collab.SendResult
	nextErr        error
	startConf      types.StartTransactionConf
	stopConf       types.StopTransactionConf
	calls          []types.FifoAction
}

func (f *fakeSender) IsConnected() bool { return f.connected }

func (f *fakeSender) Call(ctx context.Context, action types.FifoAction, connectorID int, request, response interface{}, fifo collab.Fifo) (collab.SendResult, error) {
	f.calls = append(f.calls, action)

	if f.nextResult == collab.SendFailed {
		if fifo != nil {
			fifo.Push(action, connectorID, request)
		}
		return collab.SendFailed, f.nextErr
	}

	switch action {
	case types.ActionStartTransaction:
		*response.(*types.StartTransactionConf) = f.startConf
	case types.ActionStopTransaction:
		*response.(*types.StopTransactionConf) = f.stopConf
	}
	return collab.SendOk, nil
}

type fakeEvents struct {
	meterValue          int
	remoteStartOk       bool
	remoteStartInvoked  bool
	remoteStopOk        bool
	deauthedConnID      int
}

func (f *fakeEvents) GetTxStartStopMeterValue(connectorID int) (int, error) { return f.meterValue, nil }
func (f *fakeEvents) RemoteStartTransactionRequested(connectorID int, idTag string) bool {
	f.remoteStartInvoked = true
	return f.remoteStartOk
}
func (f *fakeEvents) RemoteStopTransactionRequested(connectorID int) bool { return f.remoteStopOk }
func (f *fakeEvents) TransactionDeAuthorized(connectorID int)             { f.deauthedConnID = connectorID }

type fakeReservations struct {
	status  types.AuthorizationStatus
	cleared []int
}

func (f *fakeReservations) IsTransactionAllowed(connectorID int, idTag string) (types.AuthorizationStatus, error) {
	return f.status, nil
}
func (f *fakeReservations) ClearReservation(connectorID int) error {
	f.cleared = append(f.cleared, connectorID)
	return nil
}

type fakeSmartCharging struct{}

func (fakeSmartCharging) InstallTxProfile(connectorID, transactionID int, profile *types.ChargingProfile) error {
	return nil
}
func (fakeSmartCharging) AssignPendingTxProfiles(connectorID, transactionID int) error { return nil }
func (fakeSmartCharging) ClearTxProfiles(connectorID int) error                        { return nil }

type fakeMeterValues struct{}

func (fakeMeterValues) SetTransactionFifo(fifo collab.Fifo)                      {}
func (fakeMeterValues) StartSampledMeterValues(connectorID, transactionID int) error { return nil }
func (fakeMeterValues) StopSampledMeterValues(connectorID int) error                { return nil }
func (fakeMeterValues) GetTxStopMeterValues(connectorID int) ([]types.MeterValue, error) {
	return nil, nil
}

func newTestManager(t *testing.T, connectorCount int) (*Manager, *connector.Registry, *fakeSender, *fakeEvents, *fakeReservations) {
	t.Helper()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "tx.db"), key)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	registry, err := connector.New(s, connectorCount)
	require.NoError(t, err)

	fifo := queue.New(s)
	sender := &fakeSender{connected: true, nextResult: collab.SendOk}
	events := &fakeEvents{meterValue: 100}
	reservations := &fakeReservations{status: types.AuthorizationAccepted}
	cache := authcache.New(s)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	mgr := New(Config{}, registry, fifo, sender, events, reservations, cache, fakeSmartCharging{}, fakeMeterValues{}, logger)
	return mgr, registry, sender, events, reservations
}

func TestStartTransaction_HappyPath(t *testing.T) {
	mgr, registry, sender, _, _ := newTestManager(t, 2)
	sender.startConf = types.StartTransactionConf{TransactionID: 42, IdTagInfo: types.IdTagInfo{Status: types.AuthorizationAccepted}}

	status, err := mgr.StartTransaction(context.Background(), 1, "TAG01")
	require.NoError(t, err)
	require.Equal(t, types.AuthorizationAccepted, status)

	state, err := registry.Get(1)
	require.NoError(t, err)
	require.Equal(t, 42, state.TransactionID)
	require.Equal(t, "TAG01", state.TransactionIdTag)
}

func TestStartTransaction_OfflineGoesProvisional(t *testing.T) {
	mgr, registry, sender, _, _ := newTestManager(t, 2)
	sender.connected = false
	sender.nextResult = collab.SendFailed

	status, err := mgr.StartTransaction(context.Background(), 2, "TAG02")
	require.NoError(t, err)
	require.Equal(t, types.AuthorizationAccepted, status)

	state, err := registry.Get(2)
	require.NoError(t, err)
	require.Equal(t, types.TransactionIDProvisional, state.TransactionID)
}

func TestStartTransaction_RejectionSendsCompensatingStop(t *testing.T) {
	mgr, _, sender, _, _ := newTestManager(t, 1)
	sender.startConf = types.StartTransactionConf{TransactionID: 99, IdTagInfo: types.IdTagInfo{Status: types.AuthorizationBlocked}}

	status, err := mgr.StartTransaction(context.Background(), 1, "TAG03")
	require.NoError(t, err)
	require.Equal(t, types.AuthorizationBlocked, status)
	require.Contains(t, sender.calls, types.ActionStopTransaction)
}

func TestStartTransaction_ReservationConsumption(t *testing.T) {
	mgr, registry, sender, _, reservations := newTestManager(t, 1)
	_, err := registry.Mutate(1, func(s *connector.State) {
		s.Status = types.StatusReserved
		id := 7
		s.ReservationID = &id
	})
	require.NoError(t, err)
	sender.startConf = types.StartTransactionConf{TransactionID: 10, IdTagInfo: types.IdTagInfo{Status: types.AuthorizationAccepted}}

	status, err := mgr.StartTransaction(context.Background(), 1, "TAG04")
	require.NoError(t, err)
	require.Equal(t, types.AuthorizationAccepted, status)
	require.Contains(t, reservations.cleared, 1)
}

func TestStopTransaction_HappyPath(t *testing.T) {
	mgr, registry, sender, _, _ := newTestManager(t, 1)
	sender.startConf = types.StartTransactionConf{TransactionID: 42, IdTagInfo: types.IdTagInfo{Status: types.AuthorizationAccepted}}
	_, err := mgr.StartTransaction(context.Background(), 1, "TAG01")
	require.NoError(t, err)

	ok, err := mgr.StopTransaction(context.Background(), 1, "TAG01", types.ReasonLocal)
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, sender.calls, types.ActionStopTransaction)

	state, err := registry.Get(1)
	require.NoError(t, err)
	require.False(t, state.HasActiveTransaction())
}

func TestStopTransaction_NoActiveTransactionReturnsFalse(t *testing.T) {
	mgr, _, _, _, _ := newTestManager(t, 1)

	ok, err := mgr.StopTransaction(context.Background(), 1, "TAG01", types.ReasonLocal)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHandleRemoteStartTransaction_RejectedWhenBusy(t *testing.T) {
	mgr, registry, _, events, _ := newTestManager(t, 1)
	_, err := registry.Mutate(1, func(s *connector.State) { s.TransactionID = 10 })
	require.NoError(t, err)

	connID := 1
	resp := mgr.HandleRemoteStartTransaction(types.RemoteStartTransactionReq{ConnectorID: &connID, IdTag: "X"})
	require.Equal(t, types.RemoteStartStopRejected, resp.Status)
	require.False(t, events.remoteStartInvoked)
}

func TestHandleRemoteStopTransaction_FindsMatchingConnector(t *testing.T) {
	mgr, registry, _, events, _ := newTestManager(t, 2)
	_, err := registry.Mutate(2, func(s *connector.State) { s.TransactionID = 55 })
	require.NoError(t, err)
	events.remoteStopOk = true

	resp := mgr.HandleRemoteStopTransaction(types.RemoteStopTransactionReq{TransactionID: 55})
	require.Equal(t, types.RemoteStartStopAccepted, resp.Status)
}
