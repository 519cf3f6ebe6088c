// Package sender implements the MessageSender collaborator: a synchronous
// call/response OCPP 1.6J (JSON-RPC over WebSocket) client with the
// "atomically enqueue on failure" dual-path rule, with the same reconnect
// backoff math used for the cloud HTTP client, adapted to a long-lived
// WebSocket connection.
package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"ocpp-chargepoint/internal/collab"
	"ocpp-chargepoint/internal/types"
)

// OCPP 1.6J JSON-RPC message type identifiers.
const (
	messageTypeCall       = 2
	messageTypeCallResult = 3
	messageTypeCallError  = 4
)

// Config configures a Sender's connection and retry behavior.
type Config struct {
	URL          string
	CallTimeout  time.Duration
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
}

// DefaultConfig returns sensible defaults for dialing a central system.
func DefaultConfig(url string) Config {
	return Config{
		URL:          url,
		CallTimeout:  30 * time.Second,
		BaseDelay:    1 * time.Second,
		MaxDelay:     30 * time.Second,
		JitterFactor: 0.1,
	}
}

type pendingCall struct {
	resultCh chan json.RawMessage
	errCh    chan error
}

// Sender is a gorilla/websocket-backed MessageSender. It owns the
// connection and a background read pump that demultiplexes CallResult/
// CallError frames to the goroutine blocked in Call awaiting them.
type Sender struct {
	cfg    Config
	logger *logrus.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool

	pendingMu sync.Mutex
	pending   map[string]*pendingCall

	nextID   uint64
	nextIDMu sync.Mutex
}

// New creates a Sender. Connect must be called before Call will succeed.
func New(cfg Config, logger *logrus.Logger) *Sender {
	if logger == nil {
		logger = logrus.New()
	}
	return &Sender{
		cfg:     cfg,
		logger:  logger,
		pending: make(map[string]*pendingCall),
	}
}

// Connect dials the central system, retrying with exponential backoff and
// jitter (grounded on the cloud HTTP client's calculateDelay) until ctx is
// canceled or the connection succeeds.
func (s *Sender) Connect(ctx context.Context) error {
	attempt := 0
	for {
		attempt++
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.cfg.URL, nil)
		if err == nil {
			s.mu.Lock()
			s.conn = conn
			s.connected = true
			s.mu.Unlock()

			go s.readLoop(conn)
			s.logger.Info("connected to central system")
			return nil
		}

		delay := s.backoffDelay(attempt)
		s.logger.WithError(err).Warnf("central system dial failed, retrying in %s", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (s *Sender) backoffDelay(attempt int) time.Duration {
	base := s.cfg.BaseDelay
	maxDelay := s.cfg.MaxDelay
	if base <= 0 {
		base = time.Second
	}
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	delay := float64(base) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}

	jitter := delay * s.cfg.JitterFactor * (rand.Float64()*2 - 1)
	delay += jitter
	if delay < float64(base) {
		delay = float64(base)
	}
	return time.Duration(delay)
}

// IsConnected reports whether the WebSocket link is currently up.
func (s *Sender) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Sender) setDisconnected() {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
}

// Close shuts the connection down and fails any call still awaiting a
// response.
func (s *Sender) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.connected = false
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	s.pendingMu.Lock()
	for id, p := range s.pending {
		p.errCh <- fmt.Errorf("connection closed")
		delete(s.pending, id)
	}
	s.pendingMu.Unlock()

	return conn.Close()
}

// Call sends action as an OCPP CALL frame and blocks until the matching
// CALLRESULT/CALLERROR arrives, the call timeout elapses, or the
// connection drops. When fifo is non-nil and the send cannot be completed,
// Call appends exactly one entry to fifo before returning SendFailed —
// never both a successful send and a FIFO entry.
func (s *Sender) Call(ctx context.Context, action types.FifoAction, connectorID int, request, response interface{}, fifo collab.Fifo) (collab.SendResult, error) {
	if !s.IsConnected() {
		return s.captureFailure(action, connectorID, request, fifo, fmt.Errorf("not connected"))
	}

	id := s.newMessageID()
	payload, err := json.Marshal(request)
	if err != nil {
		return collab.SendFailed, fmt.Errorf("failed to marshal %s request: %w", action, err)
	}

	frame := []interface{}{messageTypeCall, id, string(action), json.RawMessage(payload)}
	data, err := json.Marshal(frame)
	if err != nil {
		return collab.SendFailed, fmt.Errorf("failed to marshal %s call frame: %w", action, err)
	}

	p := &pendingCall{resultCh: make(chan json.RawMessage, 1), errCh: make(chan error, 1)}
	s.pendingMu.Lock()
	s.pending[id] = p
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
	}()

	if err := s.writeMessage(data); err != nil {
		return s.captureFailure(action, connectorID, request, fifo, err)
	}

	timeout := s.cfg.CallTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return s.captureFailure(action, connectorID, request, fifo, ctx.Err())
	case err := <-p.errCh:
		return s.captureFailure(action, connectorID, request, fifo, err)
	case <-timer.C:
		return s.captureFailure(action, connectorID, request, fifo, fmt.Errorf("%s call timed out after %s", action, timeout))
	case result := <-p.resultCh:
		if response != nil {
			if err := json.Unmarshal(result, response); err != nil {
				return collab.SendFailed, fmt.Errorf("failed to decode %s response: %w", action, err)
			}
		}
		return collab.SendOk, nil
	}
}

// captureFailure implements the dual-path rule: persist the request to the
// FIFO (if supplied) and report SendFailed without surfacing err to the
// caller, since a transport failure on a transaction-critical message is
// captured, not propagated.
func (s *Sender) captureFailure(action types.FifoAction, connectorID int, request interface{}, fifo collab.Fifo, cause error) (collab.SendResult, error) {
	s.logger.WithError(cause).Warnf("%s send failed", action)

	if fifo == nil {
		return collab.SendFailed, cause
	}
	if _, err := fifo.Push(action, connectorID, request); err != nil {
		return collab.SendFailed, fmt.Errorf("send failed (%w) and fifo capture also failed: %w", cause, err)
	}
	return collab.SendFailed, nil
}

func (s *Sender) writeMessage(data []byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.setDisconnected()
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

func (s *Sender) newMessageID() string {
	s.nextIDMu.Lock()
	defer s.nextIDMu.Unlock()
	s.nextID++
	return fmt.Sprintf("%d", s.nextID)
}

// readLoop demultiplexes incoming CALLRESULT/CALLERROR frames to their
// waiting Call goroutine. It never performs a send itself — only the
// goroutine blocked in Call writes to the connection's pending state.
func (s *Sender) readLoop(conn *websocket.Conn) {
	defer s.setDisconnected()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.logger.WithError(err).Info("central system connection closed")
			return
		}

		var frame []json.RawMessage
		if err := json.Unmarshal(data, &frame); err != nil || len(frame) < 3 {
			s.logger.Warn("received malformed OCPP frame")
			continue
		}

		var msgType int
		if err := json.Unmarshal(frame[0], &msgType); err != nil {
			continue
		}

		var id string
		if err := json.Unmarshal(frame[1], &id); err != nil {
			continue
		}

		s.pendingMu.Lock()
		p, ok := s.pending[id]
		s.pendingMu.Unlock()
		if !ok {
			continue
		}

		switch msgType {
		case messageTypeCallResult:
			p.resultCh <- frame[2]
		case messageTypeCallError:
			p.errCh <- fmt.Errorf("call error: %s", string(frame[2]))
		}
	}
}
