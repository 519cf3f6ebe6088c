package database

import (
	"fmt"
)

// migrate runs database migrations to create the required schema.
func (db *DB) migrate() error {
	migrations := []string{
		createTransactionFifoTable,
		createConnectorStateTable,
		createAuthorizationCacheTable,
		createIndexes,
	}

	for i, migration := range migrations {
		if _, err := db.conn.Exec(migration); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", i+1, err)
		}
	}

	return nil
}

const createTransactionFifoTable = `
CREATE TABLE IF NOT EXISTS transaction_fifo (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    action TEXT NOT NULL CHECK (action IN ('StartTransaction', 'StopTransaction', 'MeterValues')),
    connector_id INTEGER NOT NULL,
    payload TEXT NOT NULL, -- encrypted JSON request body
    retry_count INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const createConnectorStateTable = `
CREATE TABLE IF NOT EXISTS connector_state (
    connector_id INTEGER PRIMARY KEY,
    status TEXT NOT NULL,
    transaction_id INTEGER NOT NULL DEFAULT 0,
    current_id_tag TEXT,
    transaction_start DATETIME,
    reservation_id INTEGER,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const createAuthorizationCacheTable = `
CREATE TABLE IF NOT EXISTS authorization_cache (
    id_tag TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    expiry_date DATETIME,
    parent_id_tag TEXT,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const createIndexes = `
CREATE INDEX IF NOT EXISTS idx_transaction_fifo_id ON transaction_fifo(id);
CREATE INDEX IF NOT EXISTS idx_connector_state_updated_at ON connector_state(updated_at);
CREATE INDEX IF NOT EXISTS idx_authorization_cache_updated_at ON authorization_cache(updated_at);
`
