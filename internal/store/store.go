package store

import "time"

// FifoEntry is one durable request awaiting delivery to the central system.
type FifoEntry struct {
	ID          int64
	Action      string
	ConnectorID int
	Payload     string
	RetryCount  int
	CreatedAt   time.Time
}

// ConnectorState is the persisted state of a single connector.
type ConnectorState struct {
	ConnectorID      int
	Status           string
	TransactionID    int
	CurrentIdTag     string
	TransactionStart time.Time
	ReservationID    *int
	UpdatedAt        time.Time
}

// AuthCacheEntry is a cached authorization verdict for one id-tag.
type AuthCacheEntry struct {
	IdTag       string
	Status      string
	ExpiryDate  *time.Time
	ParentIdTag string
	UpdatedAt   time.Time
}

// Store is the durable persistence contract the Transaction Core depends
// on: the FIFO, the connector registry, and the authorization cache all
// require write-through guarantees — a write does not return until it is
// durable. Two backends are provided: sqlite (internal/database, default)
// and redis, selected by Config.StorageBackend.
type Store interface {
	PushFifoEntry(action string, connectorID int, payload string) (int64, error)
	FrontFifoEntry() (*FifoEntry, bool, error)
	PopFifoEntry(id int64) error
	IncrementFifoRetryCount(id int64) error
	FifoSize() (int, error)

	UpsertConnectorState(state *ConnectorState) error
	GetConnectorState(connectorID int) (*ConnectorState, error)
	GetAllConnectorStates() ([]*ConnectorState, error)

	UpsertAuthorizationCache(entry *AuthCacheEntry) error
	GetAuthorizationCache(idTag string) (*AuthCacheEntry, error)
	DeleteAuthorizationCache(idTag string) error

	Close() error
}
