package store

import (
	"crypto/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setupSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), key)
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_FifoRoundtrip(t *testing.T) {
	s := setupSQLiteStore(t)

	id, err := s.PushFifoEntry("StartTransaction", 1, `{"idTag":"A"}`)
	require.NoError(t, err)

	front, ok, err := s.FrontFifoEntry()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, id, front.ID)

	require.NoError(t, s.IncrementFifoRetryCount(front.ID))

	front, ok, err = s.FrontFifoEntry()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, front.RetryCount)

	require.NoError(t, s.PopFifoEntry(front.ID))

	size, err := s.FifoSize()
	require.NoError(t, err)
	require.Zero(t, size)
}

func TestSQLiteStore_ConnectorStateRoundtrip(t *testing.T) {
	s := setupSQLiteStore(t)

	require.NoError(t, s.UpsertConnectorState(&ConnectorState{ConnectorID: 1, Status: "Available"}))

	got, err := s.GetConnectorState(1)
	require.NoError(t, err)
	require.Equal(t, "Available", got.Status)
	require.True(t, got.TransactionStart.IsZero())

	all, err := s.GetAllConnectorStates()
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestSQLiteStore_ConnectorStateTransactionStartRoundtrip(t *testing.T) {
	s := setupSQLiteStore(t)

	start := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.UpsertConnectorState(&ConnectorState{
		ConnectorID:      1,
		Status:           "Charging",
		TransactionID:    7,
		TransactionStart: start,
	}))

	got, err := s.GetConnectorState(1)
	require.NoError(t, err)
	require.True(t, got.TransactionStart.Equal(start))

	require.NoError(t, s.UpsertConnectorState(&ConnectorState{ConnectorID: 1, Status: "Available"}))

	got, err = s.GetConnectorState(1)
	require.NoError(t, err)
	require.True(t, got.TransactionStart.IsZero())
}

func TestSQLiteStore_AuthorizationCacheRoundtrip(t *testing.T) {
	s := setupSQLiteStore(t)

	require.NoError(t, s.UpsertAuthorizationCache(&AuthCacheEntry{IdTag: "TAG_1", Status: "Accepted"}))

	got, err := s.GetAuthorizationCache("TAG_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "Accepted", got.Status)

	require.NoError(t, s.DeleteAuthorizationCache("TAG_1"))

	got, err = s.GetAuthorizationCache("TAG_1")
	require.NoError(t, err)
	require.Nil(t, got)
}
