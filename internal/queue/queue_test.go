package queue

import (
	"crypto/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"ocpp-chargepoint/internal/store"
	"ocpp-chargepoint/internal/types"
)

func newTestFifo(t *testing.T) *TransactionFifo {
	t.Helper()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "queue.db"), key)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return New(s)
}

func TestTransactionFifo_PushFrontPop(t *testing.T) {
	f := newTestFifo(t)

	size, err := f.Size()
	require.NoError(t, err)
	require.Zero(t, size)

	_, ok, err := f.Front()
	require.NoError(t, err)
	require.False(t, ok)

	req := types.StartTransactionReq{ConnectorID: 1, IdTag: "TAG01"}
	id, err := f.Push(types.ActionStartTransaction, 1, req)
	require.NoError(t, err)

	size, err = f.Size()
	require.NoError(t, err)
	require.Equal(t, 1, size)

	entry, ok, err := f.Front()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, id, entry.ID)
	require.Equal(t, types.ActionStartTransaction, entry.Action)
	require.Equal(t, 1, entry.ConnectorID)
	require.Zero(t, entry.RetryCount)

	require.NoError(t, f.Pop(entry.ID))

	size, err = f.Size()
	require.NoError(t, err)
	require.Zero(t, size)
}

func TestTransactionFifo_Ordering(t *testing.T) {
	f := newTestFifo(t)

	startID, err := f.Push(types.ActionStartTransaction, 1, types.StartTransactionReq{ConnectorID: 1, IdTag: "A"})
	require.NoError(t, err)
	_, err = f.Push(types.ActionMeterValues, 1, types.MeterValuesReq{ConnectorID: 1})
	require.NoError(t, err)
	_, err = f.Push(types.ActionStopTransaction, 1, types.StopTransactionReq{TransactionID: -1})
	require.NoError(t, err)

	entry, ok, err := f.Front()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, startID, entry.ID)
	require.Equal(t, types.ActionStartTransaction, entry.Action)
}

func TestTransactionFifo_RetryCount(t *testing.T) {
	f := newTestFifo(t)

	id, err := f.Push(types.ActionStopTransaction, 2, types.StopTransactionReq{TransactionID: 5})
	require.NoError(t, err)

	require.NoError(t, f.IncrementRetryCount(id))
	require.NoError(t, f.IncrementRetryCount(id))

	entry, ok, err := f.Front()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, entry.RetryCount)
}
