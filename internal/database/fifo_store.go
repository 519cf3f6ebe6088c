package database

import (
	"database/sql"
	"fmt"
)

// PushFifoEntry appends a new entry to the transaction FIFO. payload is
// the already-marshalled JSON request body, encrypted at rest.
func (db *DB) PushFifoEntry(action string, connectorID int, payload string) (int64, error) {
	encrypted, err := db.Encrypt([]byte(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to encrypt fifo payload: %w", err)
	}

	query := `
		INSERT INTO transaction_fifo (action, connector_id, payload)
		VALUES (?, ?, ?)
	`

	result, err := db.conn.Exec(query, action, connectorID, encrypted)
	if err != nil {
		return 0, fmt.Errorf("failed to push fifo entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return id, nil
}

// FrontFifoEntry returns the oldest entry in the FIFO without removing it.
// The second return value is false when the FIFO is empty.
func (db *DB) FrontFifoEntry() (*TransactionFifoRow, bool, error) {
	query := `
		SELECT id, action, connector_id, payload, retry_count, created_at
		FROM transaction_fifo
		ORDER BY id ASC
		LIMIT 1
	`

	row := &TransactionFifoRow{}
	var encryptedPayload string

	err := db.conn.QueryRow(query).Scan(
		&row.ID, &row.Action, &row.ConnectorID, &encryptedPayload, &row.RetryCount, &row.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read fifo front: %w", err)
	}

	decrypted, err := db.Decrypt(encryptedPayload)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decrypt fifo payload for entry %d: %w", row.ID, err)
	}
	row.Payload = string(decrypted)

	return row, true, nil
}

// PopFifoEntry removes the FIFO entry with the given id. Called only after
// the caller has already inspected it via FrontFifoEntry and confirmed
// delivery succeeded.
func (db *DB) PopFifoEntry(id int64) error {
	result, err := db.conn.Exec("DELETE FROM transaction_fifo WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to pop fifo entry %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to pop fifo entry %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("fifo entry %d not found", id)
	}
	return nil
}

// IncrementFifoRetryCount increments the retry counter for a single FIFO
// entry after a failed delivery attempt.
func (db *DB) IncrementFifoRetryCount(id int64) error {
	_, err := db.conn.Exec("UPDATE transaction_fifo SET retry_count = retry_count + 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to increment fifo retry count for %d: %w", id, err)
	}
	return nil
}

// FifoSize returns the number of entries currently queued.
func (db *DB) FifoSize() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM transaction_fifo").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get fifo size: %w", err)
	}
	return count, nil
}
