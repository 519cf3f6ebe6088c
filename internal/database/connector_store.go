package database

import (
	"database/sql"
	"fmt"
)

// UpsertConnectorState writes the full state of one connector, overwriting
// any prior row. Used as the write-through target for every ConnectorState
// mutation (status change, transaction start/stop, reservation).
func (db *DB) UpsertConnectorState(state *ConnectorStateRow) error {
	var currentIdTag sql.NullString
	if state.CurrentIdTag != "" {
		currentIdTag = sql.NullString{String: state.CurrentIdTag, Valid: true}
	}

	var transactionStart sql.NullTime
	if !state.TransactionStart.IsZero() {
		transactionStart = sql.NullTime{Time: state.TransactionStart.UTC(), Valid: true}
	}

	var reservationID sql.NullInt64
	if state.ReservationID != nil {
		reservationID = sql.NullInt64{Int64: int64(*state.ReservationID), Valid: true}
	}

	query := `
		INSERT INTO connector_state (connector_id, status, transaction_id, current_id_tag, transaction_start, reservation_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(connector_id) DO UPDATE SET
			status = excluded.status,
			transaction_id = excluded.transaction_id,
			current_id_tag = excluded.current_id_tag,
			transaction_start = excluded.transaction_start,
			reservation_id = excluded.reservation_id,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := db.conn.Exec(query, state.ConnectorID, state.Status, state.TransactionID, currentIdTag, transactionStart, reservationID)
	if err != nil {
		return fmt.Errorf("failed to upsert connector state for connector %d: %w", state.ConnectorID, err)
	}

	return nil
}

// GetConnectorState retrieves the persisted state of one connector.
func (db *DB) GetConnectorState(connectorID int) (*ConnectorStateRow, error) {
	query := `
		SELECT connector_id, status, transaction_id, current_id_tag, transaction_start, reservation_id, updated_at
		FROM connector_state
		WHERE connector_id = ?
	`

	row := &ConnectorStateRow{}
	var currentIdTag sql.NullString
	var transactionStart sql.NullTime
	var reservationID sql.NullInt64

	err := db.conn.QueryRow(query, connectorID).Scan(
		&row.ConnectorID, &row.Status, &row.TransactionID, &currentIdTag, &transactionStart, &reservationID, &row.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("connector %d not found", connectorID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connector state for connector %d: %w", connectorID, err)
	}

	if currentIdTag.Valid {
		row.CurrentIdTag = currentIdTag.String
	}
	if transactionStart.Valid {
		row.TransactionStart = transactionStart.Time
	}
	if reservationID.Valid {
		id := int(reservationID.Int64)
		row.ReservationID = &id
	}

	return row, nil
}

// GetAllConnectorStates retrieves the persisted state of every connector,
// used to rebuild the in-memory connector registry on startup.
func (db *DB) GetAllConnectorStates() ([]*ConnectorStateRow, error) {
	query := `
		SELECT connector_id, status, transaction_id, current_id_tag, transaction_start, reservation_id, updated_at
		FROM connector_state
		ORDER BY connector_id
	`

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query connector states: %w", err)
	}
	defer rows.Close()

	var states []*ConnectorStateRow
	for rows.Next() {
		row := &ConnectorStateRow{}
		var currentIdTag sql.NullString
		var transactionStart sql.NullTime
		var reservationID sql.NullInt64

		if err := rows.Scan(&row.ConnectorID, &row.Status, &row.TransactionID, &currentIdTag, &transactionStart, &reservationID, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan connector state row: %w", err)
		}

		if currentIdTag.Valid {
			row.CurrentIdTag = currentIdTag.String
		}
		if transactionStart.Valid {
			row.TransactionStart = transactionStart.Time
		}
		if reservationID.Valid {
			id := int(reservationID.Int64)
			row.ReservationID = &id
		}

		states = append(states, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating connector state rows: %w", err)
	}

	return states, nil
}
