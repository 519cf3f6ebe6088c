package localapi

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"ocpp-chargepoint/internal/connector"
	"ocpp-chargepoint/internal/store"
	"ocpp-chargepoint/internal/types"
)

type fakeFifo struct{ depth int }

func (f *fakeFifo) Size() (int, error) { return f.depth, nil }

type fakeStatus struct{ status types.RegistrationStatus }

func (f *fakeStatus) GetRegistrationStatus() types.RegistrationStatus { return f.status }

type fakeTx struct {
	startStatus types.AuthorizationStatus
	startErr    error
	stopped     bool
	stopErr     error
}

func (f *fakeTx) StartTransaction(ctx context.Context, connectorID int, idTag string) (types.AuthorizationStatus, error) {
	return f.startStatus, f.startErr
}

func (f *fakeTx) StopTransaction(ctx context.Context, connectorID int, idTag string, reason types.Reason) (bool, error) {
	return f.stopped, f.stopErr
}

func newTestServer(t *testing.T, jwtSecret string) (*httptest.Server, *fakeTx) {
	t.Helper()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "localapi.db"), key)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	registry, err := connector.New(s, 1)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	tx := &fakeTx{startStatus: types.AuthorizationAccepted, stopped: true}
	srv := New(":0", jwtSecret, registry, &fakeFifo{depth: 2}, tx, &fakeStatus{status: types.RegistrationAccepted}, logger)

	return httptest.NewServer(srv.router), tx
}

func TestHealthEndpointRequiresNoAuth(t *testing.T) {
	ts, _ := newTestServer(t, "supersecret")
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusEndpointRejectsMissingToken(t *testing.T) {
	ts, _ := newTestServer(t, "supersecret")
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStatusEndpointAcceptsValidToken(t *testing.T) {
	ts, _ := newTestServer(t, "supersecret")
	defer ts.Close()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte("supersecret"))
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/status", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+signed)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body statusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 2, body.FifoDepth)
	require.Len(t, body.Connectors, 2) // connector 0 (charge point) + connector 1
}

func TestNoAuthWhenSecretEmpty(t *testing.T) {
	ts, _ := newTestServer(t, "")
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStartConnectorRequiresIdTag(t *testing.T) {
	ts, _ := newTestServer(t, "")
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/connectors/1/start", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStartConnectorHappyPath(t *testing.T) {
	ts, _ := newTestServer(t, "")
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/connectors/1/start", "application/json", bytes.NewReader([]byte(`{"idTag":"TAG1"}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body startResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, string(types.AuthorizationAccepted), body.Status)
}

func TestStopConnectorHappyPath(t *testing.T) {
	ts, _ := newTestServer(t, "")
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/connectors/1/stop", "application/json", bytes.NewReader([]byte(`{"idTag":"TAG1"}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body stopResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.True(t, body.Stopped)
}
