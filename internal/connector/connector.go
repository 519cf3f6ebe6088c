// Package connector implements ConnectorState: the per-connector durable
// record of transaction id, start time, id-tag and status, plus the
// registry that serializes mutations to it.
package connector

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ocpp-chargepoint/internal/store"
	"ocpp-chargepoint/internal/types"
)

// State is the in-memory view of a connector's durable record.
type State struct {
	ConnectorID   int
	Status        types.ChargePointStatus
	TransactionID int
	TransactionIdTag string
	TransactionStart time.Time
	ReservationID *int
}

func (s *State) toStore() *store.ConnectorState {
	return &store.ConnectorState{
		ConnectorID:      s.ConnectorID,
		Status:           string(s.Status),
		TransactionID:    s.TransactionID,
		CurrentIdTag:     s.TransactionIdTag,
		TransactionStart: s.TransactionStart.UTC(),
		ReservationID:    s.ReservationID,
	}
}

func fromStore(row *store.ConnectorState) *State {
	return &State{
		ConnectorID:      row.ConnectorID,
		Status:           types.ChargePointStatus(row.Status),
		TransactionID:    row.TransactionID,
		TransactionIdTag: row.CurrentIdTag,
		TransactionStart: row.TransactionStart,
		ReservationID:    row.ReservationID,
	}
}

// Registry owns one State per connector (including connector 0, the whole
// charge point) and a dedicated mutex per connector. All mutations occur
// under that mutex and are persisted (write-through) before the mutex is
// released. Mutate's callback must never block on I/O — never hold a lock
// across a network call.
type Registry struct {
	mu     sync.RWMutex
	locks  map[int]*sync.Mutex
	store  store.Store
	logger *logrus.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry's logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// New creates a Registry backed by s, ensuring connector 0 (the charge
// point) plus connectors 1..connectorCount exist with a default Available
// state if the store has no record of them yet (e.g. first boot).
func New(s store.Store, connectorCount int, opts ...Option) (*Registry, error) {
	r := &Registry{
		locks:  make(map[int]*sync.Mutex),
		store:  s,
		logger: logrus.New(),
	}
	for _, opt := range opts {
		opt(r)
	}

	for id := 0; id <= connectorCount; id++ {
		r.locks[id] = &sync.Mutex{}

		if _, err := s.GetConnectorState(id); err == nil {
			continue
		}
		if err := s.UpsertConnectorState(&store.ConnectorState{
			ConnectorID: id,
			Status:      string(types.StatusAvailable),
		}); err != nil {
			return nil, fmt.Errorf("failed to initialize connector %d: %w", id, err)
		}
	}

	return r, nil
}

func (r *Registry) lockFor(id int) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.locks[id] = l
	}
	return l
}

// Get returns the current state of connector id, or an error if it does not
// exist.
func (r *Registry) Get(id int) (*State, error) {
	row, err := r.store.GetConnectorState(id)
	if err != nil {
		return nil, fmt.Errorf("connector %d not found: %w", id, err)
	}
	return fromStore(row), nil
}

// ChargePoint returns the state of connector 0.
func (r *Registry) ChargePoint() (*State, error) {
	return r.Get(types.ConnectorIDChargePoint)
}

// List returns all known connector states.
func (r *Registry) List() ([]*State, error) {
	rows, err := r.store.GetAllConnectorStates()
	if err != nil {
		return nil, fmt.Errorf("failed to list connector states: %w", err)
	}
	states := make([]*State, 0, len(rows))
	for _, row := range rows {
		states = append(states, fromStore(row))
	}
	return states, nil
}

// Exists reports whether connector id is known to the registry.
func (r *Registry) Exists(id int) bool {
	_, err := r.store.GetConnectorState(id)
	return err == nil
}

// Mutate runs fn against a copy of connector id's current state under that
// connector's exclusive lock, then persists the result before releasing the
// lock. fn must not block on network I/O: the lock is held for its full
// duration.
func (r *Registry) Mutate(id int, fn func(*State)) (*State, error) {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	current, err := r.Get(id)
	if err != nil {
		return nil, err
	}

	fn(current)

	if err := r.store.UpsertConnectorState(current.toStore()); err != nil {
		return nil, fmt.Errorf("failed to persist connector %d: %w", id, err)
	}
	return current, nil
}

// Save persists state directly under its connector's lock, overwriting
// whatever was previously stored.
func (r *Registry) Save(state *State) error {
	lock := r.lockFor(state.ConnectorID)
	lock.Lock()
	defer lock.Unlock()

	if err := r.store.UpsertConnectorState(state.toStore()); err != nil {
		return fmt.Errorf("failed to persist connector %d: %w", state.ConnectorID, err)
	}
	return nil
}

// HasActiveTransaction reports whether the connector currently holds a
// transaction (transaction_id != 0).
func (s *State) HasActiveTransaction() bool {
	return s.TransactionID != types.TransactionIDNone
}
