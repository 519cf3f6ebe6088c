// Package drainer implements FifoDrainer: the background retry loop that
// drains the TransactionFifo against connection-up/registration-accepted
// gates.
package drainer

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"ocpp-chargepoint/internal/authcache"
	"ocpp-chargepoint/internal/collab"
	"ocpp-chargepoint/internal/connector"
	"ocpp-chargepoint/internal/queue"
	"ocpp-chargepoint/internal/types"
)

// Config carries the retry-bound configuration the drainer consults.
type Config struct {
	TransactionMessageAttempts      int
	TransactionMessageRetryInterval time.Duration
}

// Drainer runs processFifoRequest jobs. At most one job is in flight at a
// time by construction: Trigger only schedules a new job if none is
// currently running. Retry counts live on the FIFO entry itself, so a
// restart mid-backoff resumes with the attempt count it left off at
// instead of forgiving it.
type Drainer struct {
	cfg Config

	connectors *connector.Registry
	fifo       *queue.TransactionFifo
	sender     collab.MessageSender
	authCache  *authcache.Cache
	events     collab.EventsHandler
	status     collab.StatusManager

	timer   singleShotTimer
	running atomic.Bool

	logger *logrus.Logger
}

// New constructs a Drainer.
func New(
	cfg Config,
	connectors *connector.Registry,
	fifo *queue.TransactionFifo,
	sender collab.MessageSender,
	authCache *authcache.Cache,
	events collab.EventsHandler,
	status collab.StatusManager,
	logger *logrus.Logger,
) *Drainer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Drainer{
		cfg:        cfg,
		connectors: connectors,
		fifo:       fifo,
		sender:     sender,
		authCache:  authCache,
		events:     events,
		status:     status,
		logger:     logger,
	}
}

// NotifyConnected is the connection-up trigger: schedule a drain job if
// the FIFO is non-empty.
func (d *Drainer) NotifyConnected() {
	size, err := d.fifo.Size()
	if err != nil {
		d.logger.WithError(err).Warn("failed to read fifo size on connect")
		return
	}
	if size > 0 {
		d.Trigger()
	}
}

// Trigger schedules a processFifoRequest job on its own goroutine,
// standing in for the worker pool. It is a no-op if a job is already
// running.
func (d *Drainer) Trigger() {
	if !d.running.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer d.running.Store(false)
		d.processFifoRequest()
	}()
}

// Stop disarms the retry timer. Call during graceful shutdown after
// in-flight sends have been allowed to complete.
func (d *Drainer) Stop() {
	d.timer.Stop()
}

// processFifoRequest is the drain loop: gated by connection-up and
// registration-accepted, it peeks, dispatches by action, and either
// pops-and-resets or increments-and-maybe-drops on failure. The timer it
// arms on exit only ever calls back into Trigger — it never sends.
func (d *Drainer) processFifoRequest() {
	if !d.sender.IsConnected() {
		return
	}
	if d.status.GetRegistrationStatus() != types.RegistrationAccepted {
		d.timer.Start(250*time.Millisecond, d.Trigger)
		return
	}

	for {
		entry, ok, err := d.fifo.Front()
		if err != nil {
			d.logger.WithError(err).Error("failed to read fifo front")
			return
		}
		if !ok {
			return
		}

		d.logger.Debugf("fifo drain: %s retries=%d/%d", entry.Action, entry.RetryCount, d.cfg.TransactionMessageAttempts)

		ok = d.sendEntry(entry)
		if ok {
			if err := d.fifo.Pop(entry.ID); err != nil {
				d.logger.WithError(err).Error("failed to pop fifo entry")
				return
			}
		} else {
			if err := d.fifo.IncrementRetryCount(entry.ID); err != nil {
				d.logger.WithError(err).Error("failed to persist fifo retry count")
				return
			}
			count := entry.RetryCount + 1
			if count >= d.cfg.TransactionMessageAttempts {
				d.logger.Warnf("fifo drain: dropping %s after %d attempts", entry.Action, count)
				if err := d.fifo.Pop(entry.ID); err != nil {
					d.logger.WithError(err).Error("failed to drop exhausted fifo entry")
					return
				}
			} else {
				if d.sender.IsConnected() {
					d.logger.Debugf("fifo drain: %s failed, next retry in %s", entry.Action, d.cfg.TransactionMessageRetryInterval)
					d.timer.Start(d.cfg.TransactionMessageRetryInterval, d.Trigger)
				}
				return
			}
		}

		if !d.sender.IsConnected() {
			return
		}
		if d.timer.IsStarted() {
			return
		}
		size, err := d.fifo.Size()
		if err != nil || size == 0 {
			return
		}
	}
}

// sendEntry dispatches entry by action and returns whether the send
// succeeded. Unknown actions count as a failed send with no retry credit.
func (d *Drainer) sendEntry(entry *queue.Entry) bool {
	ctx := context.Background()
	payload := json.RawMessage(entry.Payload)

	switch entry.Action {
	case types.ActionStartTransaction:
		var conf types.StartTransactionConf
		result, _ := d.sender.Call(ctx, entry.Action, entry.ConnectorID, payload, &conf, nil)
		if result != collab.SendOk {
			return false
		}
		d.handleStartTransactionDrained(entry, payload, conf)
		return true

	case types.ActionStopTransaction:
		var conf types.StopTransactionConf
		result, _ := d.sender.Call(ctx, entry.Action, entry.ConnectorID, payload, &conf, nil)
		return result == collab.SendOk

	case types.ActionMeterValues:
		var conf types.MeterValuesConf
		result, _ := d.sender.Call(ctx, entry.Action, entry.ConnectorID, payload, &conf, nil)
		return result == collab.SendOk

	default:
		return false
	}
}

// handleStartTransactionDrained implements the post-send branch of the
// drained StartTransaction dispatch: update the authorization cache, and
// on rejection locate the provisional connector by id-tag and notify the
// events handler.
func (d *Drainer) handleStartTransactionDrained(entry *queue.Entry, payload json.RawMessage, conf types.StartTransactionConf) {
	var req types.StartTransactionReq
	if err := json.Unmarshal(payload, &req); err != nil {
		d.logger.WithError(err).Error("failed to decode drained start transaction request")
		return
	}

	if conf.IdTagInfo.Status != types.AuthorizationConcurrentTx {
		if err := d.authCache.Update(req.IdTag, conf.IdTagInfo); err != nil {
			d.logger.WithError(err).Warn("failed to update authorization cache")
		}
	}

	if conf.IdTagInfo.Status == types.AuthorizationAccepted {
		return
	}

	states, err := d.connectors.List()
	if err != nil {
		d.logger.WithError(err).Error("failed to list connectors for de-auth lookup")
		return
	}
	for _, s := range states {
		if s.TransactionID == types.TransactionIDProvisional && s.TransactionIdTag == req.IdTag {
			d.events.TransactionDeAuthorized(s.ConnectorID)
			return
		}
	}
}
