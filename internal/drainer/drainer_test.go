package drainer

import (
	"context"
	"crypto/rand"
	"path/filepath"
	"testing"
	"time"

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
	connected bool
	results   []collab.SendResult // consumed in order, last value repeats
	callCount int
	startConf types.StartTransactionConf
}

func (f *fakeSender) IsConnected() bool { return f.connected }

func (f *fakeSender) Call(ctx context.Context, action types.FifoAction, connectorID int, request, response interface{}, fifo collab.Fifo) (collab.SendResult, error) {
	idx := f.callCount
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	f.callCount++

	result := f.results[idx]
	if result == collab.SendOk && action == types.ActionStartTransaction {
		*response.(*types.StartTransactionConf) = f.startConf
	}
	return result, nil
}

type fakeStatus struct {
	status types.RegistrationStatus
}

func (f *fakeStatus) GetRegistrationStatus() types.RegistrationStatus { return f.status }

type fakeEvents struct {
	deauthed []int
}

func (f *fakeEvents) GetTxStartStopMeterValue(connectorID int) (int, error)       { return 0, nil }
func (f *fakeEvents) RemoteStartTransactionRequested(connectorID int, idTag string) bool { return false }
func (f *fakeEvents) RemoteStopTransactionRequested(connectorID int) bool         { return false }
func (f *fakeEvents) TransactionDeAuthorized(connectorID int) {
	f.deauthed = append(f.deauthed, connectorID)
}

func newTestSetup(t *testing.T) (*Drainer, *queue.TransactionFifo, *connector.Registry, *fakeSender, *fakeEvents) {
	t.Helper()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "drainer.db"), key)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	registry, err := connector.New(s, 2)
	require.NoError(t, err)

	fifo := queue.New(s)
	sender := &fakeSender{connected: true}
	events := &fakeEvents{}
	status := &fakeStatus{status: types.RegistrationAccepted}
	cache := authcache.New(s)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	cfg := Config{TransactionMessageAttempts: 3, TransactionMessageRetryInterval: 10 * time.Millisecond}
	d := New(cfg, registry, fifo, sender, cache, events, status, logger)

	return d, fifo, registry, sender, events
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestDrainer_DrainsOnSuccess(t *testing.T) {
	d, fifo, _, sender, _ := newTestSetup(t)
	sender.results = []collab.SendResult{collab.SendOk}
	sender.startConf = types.StartTransactionConf{TransactionID: 7, IdTagInfo: types.IdTagInfo{Status: types.AuthorizationAccepted}}

	_, err := fifo.Push(types.ActionStartTransaction, 1, types.StartTransactionReq{ConnectorID: 1, IdTag: "A"})
	require.NoError(t, err)

	d.Trigger()

	waitFor(t, func() bool {
		size, err := fifo.Size()
		return err == nil && size == 0
	})
}

func TestDrainer_GateOnRegistrationNotAccepted(t *testing.T) {
	d, fifo, _, sender, _ := newTestSetup(t)
	d.status.(*fakeStatus).status = types.RegistrationPending
	sender.results = []collab.SendResult{collab.SendOk}

	_, err := fifo.Push(types.ActionStopTransaction, 1, types.StopTransactionReq{TransactionID: 1})
	require.NoError(t, err)

	d.Trigger()
	time.Sleep(50 * time.Millisecond)

	size, err := fifo.Size()
	require.NoError(t, err)
	require.Equal(t, 1, size)
	require.True(t, d.timer.IsStarted())
}

func TestDrainer_RetryExhaustionDropsEntry(t *testing.T) {
	d, fifo, _, sender, _ := newTestSetup(t)
	sender.results = []collab.SendResult{collab.SendFailed, collab.SendFailed, collab.SendFailed, collab.SendFailed}

	_, err := fifo.Push(types.ActionStopTransaction, 1, types.StopTransactionReq{TransactionID: 1})
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		d.Trigger()
		waitFor(t, func() bool { return !d.running.Load() })
	}

	size, err := fifo.Size()
	require.NoError(t, err)
	require.Zero(t, size)
}

func TestDrainer_RetryCountSurvivesRestart(t *testing.T) {
	d, fifo, registry, sender, events := newTestSetup(t)
	d.cfg.TransactionMessageAttempts = 2
	sender.results = []collab.SendResult{collab.SendFailed}

	_, err := fifo.Push(types.ActionStopTransaction, 1, types.StopTransactionReq{TransactionID: 1})
	require.NoError(t, err)

	d.Trigger()
	waitFor(t, func() bool { return !d.running.Load() })

	entry, ok, err := fifo.Front()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, entry.RetryCount)

	// Simulate a process restart: a fresh Drainer over the same store picks
	// up the persisted retry count instead of starting back at zero, so the
	// second failure (not a third) exhausts the two-attempt bound.
	restarted := New(d.cfg, registry, fifo, sender, d.authCache, events, d.status, d.logger)
	restarted.Trigger()
	waitFor(t, func() bool { return !restarted.running.Load() })

	size, err := fifo.Size()
	require.NoError(t, err)
	require.Zero(t, size)
}

func TestDrainer_DeauthNotificationOnRejection(t *testing.T) {
	d, fifo, registry, sender, events := newTestSetup(t)
	_, err := registry.Mutate(1, func(s *connector.State) {
		s.TransactionID = types.TransactionIDProvisional
		s.TransactionIdTag = "A"
	})
	require.NoError(t, err)

	sender.results = []collab.SendResult{collab.SendOk}
	sender.startConf = types.StartTransactionConf{TransactionID: 0, IdTagInfo: types.IdTagInfo{Status: types.AuthorizationBlocked}}

	_, err = fifo.Push(types.ActionStartTransaction, 1, types.StartTransactionReq{ConnectorID: 1, IdTag: "A"})
	require.NoError(t, err)

	d.Trigger()

	waitFor(t, func() bool { return len(events.deauthed) == 1 })
	require.Equal(t, 1, events.deauthed[0])
}
