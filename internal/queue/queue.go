// Package queue implements the durable TransactionFifo: an ordered,
// persistent queue of transaction-critical outbound messages
// (StartTransaction, StopTransaction, MeterValues) awaiting delivery to the
// central system.
package queue

import (
	"encoding/json"
	"fmt"
	"sync"

	"ocpp-chargepoint/internal/store"
	"ocpp-chargepoint/internal/types"
)

// Entry is one durable request awaiting delivery, as seen by consumers of
// the queue (TransactionManager, FifoDrainer).
type Entry struct {
	ID          int64
	Action      types.FifoAction
	ConnectorID int
	Payload     string
	RetryCount  int
}

// TransactionFifo is a durable, single-consumer, multi-producer-at-a-time
// FIFO of (action, payload) entries. push/front/pop/size all persist before
// returning: a crash between mutation and commit must not silently drop an
// entry.
//
// The FIFO implementation serializes push, front, and pop internally so
// callers never need their own external lock around these calls.
type TransactionFifo struct {
	mu    sync.Mutex
	store store.Store
}

// New wraps a Store as a TransactionFifo.
func New(s store.Store) *TransactionFifo {
	return &TransactionFifo{store: s}
}

// Push appends an entry and durably commits it before returning.
func (f *TransactionFifo) Push(action types.FifoAction, connectorID int, payload interface{}) (int64, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal fifo payload for %s: %w", action, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	id, err := f.store.PushFifoEntry(string(action), connectorID, string(data))
	if err != nil {
		return 0, fmt.Errorf("failed to push fifo entry: %w", err)
	}
	return id, nil
}

// Front peeks the head entry without removing it. ok is false if the FIFO
// is empty.
func (f *TransactionFifo) Front() (*Entry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	row, ok, err := f.store.FrontFifoEntry()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read fifo front: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	return &Entry{
		ID:          row.ID,
		Action:      types.FifoAction(row.Action),
		ConnectorID: row.ConnectorID,
		Payload:     row.Payload,
		RetryCount:  row.RetryCount,
	}, true, nil
}

// Pop removes the head entry identified by id. Callers must have obtained
// id from a preceding Front call; popping a stale id is a caller bug and is
// surfaced as an error by the underlying store rather than silently
// removing whatever is currently at the front.
func (f *TransactionFifo) Pop(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.store.PopFifoEntry(id); err != nil {
		return fmt.Errorf("failed to pop fifo entry %d: %w", id, err)
	}
	return nil
}

// IncrementRetryCount records a failed delivery attempt against the head
// entry, persisting it so the drainer's retry bound survives a restart
// mid-backoff.
func (f *TransactionFifo) IncrementRetryCount(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.store.IncrementFifoRetryCount(id); err != nil {
		return fmt.Errorf("failed to increment retry count for fifo entry %d: %w", id, err)
	}
	return nil
}

// Size returns the current number of entries in the FIFO.
func (f *TransactionFifo) Size() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	size, err := f.store.FifoSize()
	if err != nil {
		return 0, fmt.Errorf("failed to get fifo size: %w", err)
	}
	return size, nil
}
