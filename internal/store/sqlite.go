package store

import (
	"fmt"

	"ocpp-chargepoint/internal/database"
)

// SQLiteStore adapts internal/database's *DB to the Store interface.
type SQLiteStore struct {
	db *database.DB
}

// NewSQLiteStore opens (and migrates) the embedded SQLite database at path,
// encrypted at rest with encryptionKey.
func NewSQLiteStore(path string, encryptionKey []byte) (*SQLiteStore, error) {
	db, err := database.NewDB(database.Config{
		DatabasePath:  path,
		EncryptionKey: encryptionKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) PushFifoEntry(action string, connectorID int, payload string) (int64, error) {
	return s.db.PushFifoEntry(action, connectorID, payload)
}

func (s *SQLiteStore) FrontFifoEntry() (*FifoEntry, bool, error) {
	row, ok, err := s.db.FrontFifoEntry()
	if err != nil || !ok {
		return nil, ok, err
	}
	return &FifoEntry{
		ID:          row.ID,
		Action:      row.Action,
		ConnectorID: row.ConnectorID,
		Payload:     row.Payload,
		RetryCount:  row.RetryCount,
		CreatedAt:   row.CreatedAt,
	}, true, nil
}

func (s *SQLiteStore) PopFifoEntry(id int64) error {
	return s.db.PopFifoEntry(id)
}

func (s *SQLiteStore) IncrementFifoRetryCount(id int64) error {
	return s.db.IncrementFifoRetryCount(id)
}

func (s *SQLiteStore) FifoSize() (int, error) {
	return s.db.FifoSize()
}

func (s *SQLiteStore) UpsertConnectorState(state *ConnectorState) error {
	return s.db.UpsertConnectorState(&database.ConnectorStateRow{
		ConnectorID:      state.ConnectorID,
		Status:           state.Status,
		TransactionID:    state.TransactionID,
		CurrentIdTag:     state.CurrentIdTag,
		TransactionStart: state.TransactionStart,
		ReservationID:    state.ReservationID,
	})
}

func (s *SQLiteStore) GetConnectorState(connectorID int) (*ConnectorState, error) {
	row, err := s.db.GetConnectorState(connectorID)
	if err != nil {
		return nil, err
	}
	return &ConnectorState{
		ConnectorID:      row.ConnectorID,
		Status:           row.Status,
		TransactionID:    row.TransactionID,
		CurrentIdTag:     row.CurrentIdTag,
		TransactionStart: row.TransactionStart,
		ReservationID:    row.ReservationID,
		UpdatedAt:        row.UpdatedAt,
	}, nil
}

func (s *SQLiteStore) GetAllConnectorStates() ([]*ConnectorState, error) {
	rows, err := s.db.GetAllConnectorStates()
	if err != nil {
		return nil, err
	}
	states := make([]*ConnectorState, 0, len(rows))
	for _, row := range rows {
		states = append(states, &ConnectorState{
			ConnectorID:      row.ConnectorID,
			Status:           row.Status,
			TransactionID:    row.TransactionID,
			CurrentIdTag:     row.CurrentIdTag,
			TransactionStart: row.TransactionStart,
			ReservationID:    row.ReservationID,
			UpdatedAt:        row.UpdatedAt,
		})
	}
	return states, nil
}

func (s *SQLiteStore) UpsertAuthorizationCache(entry *AuthCacheEntry) error {
	return s.db.UpsertAuthorizationCache(&database.AuthorizationCacheRow{
		IdTag:       entry.IdTag,
		Status:      entry.Status,
		ExpiryDate:  entry.ExpiryDate,
		ParentIdTag: entry.ParentIdTag,
	})
}

func (s *SQLiteStore) GetAuthorizationCache(idTag string) (*AuthCacheEntry, error) {
	row, err := s.db.GetAuthorizationCache(idTag)
	if err != nil || row == nil {
		return nil, err
	}
	return &AuthCacheEntry{
		IdTag:       row.IdTag,
		Status:      row.Status,
		ExpiryDate:  row.ExpiryDate,
		ParentIdTag: row.ParentIdTag,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

func (s *SQLiteStore) DeleteAuthorizationCache(idTag string) error {
	return s.db.DeleteAuthorizationCache(idTag)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
