package sender

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"ocpp-chargepoint/internal/types"
)

type fakeFifo struct {
	pushed []string
}

func (f *fakeFifo) Push(action types.FifoAction, connectorID int, payload interface{}) (int64, error) {
	f.pushed = append(f.pushed, string(action))
	return int64(len(f.pushed)), nil
}

// startEchoServer replies to any CALL frame with a CALLRESULT echoing a
// fixed transactionId, simulating a central system that always accepts.
func startEchoServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var frame []json.RawMessage
			if err := json.Unmarshal(data, &frame); err != nil || len(frame) < 3 {
				continue
			}
			var id string
			json.Unmarshal(frame[1], &id)

			result := []interface{}{messageTypeCallResult, id, types.StartTransactionConf{
				TransactionID: 42,
				IdTagInfo:     types.IdTagInfo{Status: types.AuthorizationAccepted},
			}}
			out, _ := json.Marshal(result)
			conn.WriteMessage(websocket.TextMessage, out)
		}
	}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	return srv, url
}

func newTestSender(t *testing.T, url string) *Sender {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	cfg := DefaultConfig(url)
	cfg.CallTimeout = 2 * time.Second
	s := New(cfg, logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Connect(ctx))
	t.Cleanup(func() { s.Close() })

	return s
}

func TestSender_CallSuccess(t *testing.T) {
	srv, url := startEchoServer(t)
	defer srv.Close()

	s := newTestSender(t, url)
	require.True(t, s.IsConnected())

	var conf types.StartTransactionConf
	result, err := s.Call(context.Background(), types.ActionStartTransaction, 1, types.StartTransactionReq{ConnectorID: 1, IdTag: "A"}, &conf, nil)
	require.NoError(t, err)
	require.Equal(t, 42, conf.TransactionID)
	require.Equal(t, types.AuthorizationAccepted, conf.IdTagInfo.Status)
	_ = result
}

func TestSender_CallFailureCapturesToFifo(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	s := New(DefaultConfig("ws://127.0.0.1:1"), logger)
	fifo := &fakeFifo{}

	_, err := s.Call(context.Background(), types.ActionStartTransaction, 1, types.StartTransactionReq{ConnectorID: 1, IdTag: "A"}, nil, fifo)
	require.NoError(t, err)
	require.Equal(t, []string{string(types.ActionStartTransaction)}, fifo.pushed)
}

func TestSender_IsConnectedFalseBeforeConnect(t *testing.T) {
	logger := logrus.New()
	s := New(DefaultConfig("ws://127.0.0.1:1"), logger)
	require.False(t, s.IsConnected())
}
