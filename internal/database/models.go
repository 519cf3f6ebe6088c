package database

import (
	"time"
)

// TransactionFifoRow represents one durable FIFO entry awaiting delivery
// to the central system.
type TransactionFifoRow struct {
	ID          int64     `json:"id"`
	Action      string    `json:"action"`
	ConnectorID int       `json:"connector_id"`
	Payload     string    `json:"payload"` // decrypted JSON (encrypted at rest)
	RetryCount  int       `json:"retry_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// ConnectorStateRow represents the persisted state of one connector.
type ConnectorStateRow struct {
	ConnectorID      int       `json:"connector_id"`
	Status           string    `json:"status"`
	TransactionID    int       `json:"transaction_id"`
	CurrentIdTag     string    `json:"current_id_tag,omitempty"`
	TransactionStart time.Time `json:"transaction_start,omitempty"`
	ReservationID    *int      `json:"reservation_id,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// AuthorizationCacheRow represents a cached id-tag authorization verdict.
type AuthorizationCacheRow struct {
	IdTag       string     `json:"id_tag"`
	Status      string     `json:"status"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	ParentIdTag string     `json:"parent_id_tag,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// FIFO action constants, mirroring types.FifoAction.
const (
	ActionStartTransaction = "StartTransaction"
	ActionStopTransaction  = "StopTransaction"
	ActionMeterValues      = "MeterValues"
)
