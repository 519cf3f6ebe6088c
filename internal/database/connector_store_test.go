package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectorState_UpsertAndGet(t *testing.T) {
	db := setupTestDB(t)

	reservationID := 42
	state := &ConnectorStateRow{
		ConnectorID:   1,
		Status:        "Charging",
		TransactionID: -1,
		CurrentIdTag:  "TAG_1",
		ReservationID: &reservationID,
	}
	require.NoError(t, db.UpsertConnectorState(state))

	got, err := db.GetConnectorState(1)
	require.NoError(t, err)
	assert.Equal(t, "Charging", got.Status)
	assert.Equal(t, -1, got.TransactionID)
	assert.Equal(t, "TAG_1", got.CurrentIdTag)
	require.NotNil(t, got.ReservationID)
	assert.Equal(t, 42, *got.ReservationID)

	state.Status = "Available"
	state.TransactionID = 0
	state.ReservationID = nil
	require.NoError(t, db.UpsertConnectorState(state))

	got, err = db.GetConnectorState(1)
	require.NoError(t, err)
	assert.Equal(t, "Available", got.Status)
	assert.Nil(t, got.ReservationID)
}

func TestConnectorState_GetMissing(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetConnectorState(99)
	assert.Error(t, err)
}

func TestConnectorState_GetAll(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.UpsertConnectorState(&ConnectorStateRow{ConnectorID: 1, Status: "Available"}))
	require.NoError(t, db.UpsertConnectorState(&ConnectorStateRow{ConnectorID: 2, Status: "Charging"}))

	all, err := db.GetAllConnectorStates()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
