// Package localapi implements the charge point's local control/diagnostics
// HTTP surface: connector/registration status for monitoring, and a manual
// start/stop trigger for bench testing, guarded by a JWT bearer token.
package localapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"ocpp-chargepoint/internal/connector"
	"ocpp-chargepoint/internal/types"
)

// TransactionManager is the subset of internal/transaction.Manager the local
// API drives from a manual trigger.
type TransactionManager interface {
	StartTransaction(ctx context.Context, connectorID int, idTag string) (types.AuthorizationStatus, error)
	StopTransaction(ctx context.Context, connectorID int, idTag string, reason types.Reason) (bool, error)
}

// StatusManager reports registration status for the status endpoint.
type StatusManager interface {
	GetRegistrationStatus() types.RegistrationStatus
}

// Fifo reports queue depth for the status endpoint.
type Fifo interface {
	Size() (int, error)
}

// Server is the local control/diagnostics HTTP server.
type Server struct {
	addr      string
	jwtSecret string

	router     *mux.Router
	httpServer *http.Server
	logger     *logrus.Logger

	connectors *connector.Registry
	fifo       Fifo
	tx         TransactionManager
	status     StatusManager
}

// New builds a Server bound to addr. An empty jwtSecret disables bearer-token
// authentication, for local development.
func New(addr, jwtSecret string, connectors *connector.Registry, fifo Fifo, tx TransactionManager, status StatusManager, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}

	s := &Server{
		addr:       addr,
		jwtSecret:  jwtSecret,
		router:     mux.NewRouter(),
		logger:     logger,
		connectors: connectors,
		fifo:       fifo,
		tx:         tx,
		status:     status,
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware, s.recoveryMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	protected := s.router.NewRoute().Subrouter()
	protected.Use(s.authMiddleware)
	protected.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	protected.HandleFunc("/connectors/{id}/start", s.handleStart).Methods(http.MethodPost)
	protected.HandleFunc("/connectors/{id}/stop", s.handleStop).Methods(http.MethodPost)
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.addr).Info("local control API listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type connectorStatus struct {
	ConnectorID      int    `json:"connectorId"`
	Status           string `json:"status"`
	TransactionID    int    `json:"transactionId"`
	TransactionIdTag string `json:"transactionIdTag,omitempty"`
}

type statusResponse struct {
	RegistrationStatus string            `json:"registrationStatus"`
	FifoDepth          int               `json:"fifoDepth"`
	Connectors         []connectorStatus `json:"connectors"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	states, err := s.connectors.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list connectors")
		return
	}

	depth, err := s.fifo.Size()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read fifo depth")
		return
	}

	resp := statusResponse{
		RegistrationStatus: string(s.status.GetRegistrationStatus()),
		FifoDepth:          depth,
		Connectors:         make([]connectorStatus, 0, len(states)),
	}
	for _, st := range states {
		resp.Connectors = append(resp.Connectors, connectorStatus{
			ConnectorID:      st.ConnectorID,
			Status:           string(st.Status),
			TransactionID:    st.TransactionID,
			TransactionIdTag: st.TransactionIdTag,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type startRequest struct {
	IdTag string `json:"idTag"`
}

type startResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	connectorID, ok := connectorIDFromRequest(w, r)
	if !ok {
		return
	}

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IdTag == "" {
		writeError(w, http.StatusBadRequest, "idTag is required")
		return
	}

	status, err := s.tx.StartTransaction(r.Context(), connectorID, req.IdTag)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to start transaction: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, startResponse{Status: string(status)})
}

type stopRequest struct {
	IdTag  string `json:"idTag"`
	Reason string `json:"reason"`
}

type stopResponse struct {
	Stopped bool `json:"stopped"`
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	connectorID, ok := connectorIDFromRequest(w, r)
	if !ok {
		return
	}

	var req stopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reason := types.ReasonLocal
	if req.Reason != "" {
		reason = types.Reason(req.Reason)
	}

	stopped, err := s.tx.StopTransaction(r.Context(), connectorID, req.IdTag, reason)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to stop transaction: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, stopResponse{Stopped: stopped})
}

func connectorIDFromRequest(w http.ResponseWriter, r *http.Request) (int, bool) {
	idStr := mux.Vars(r)["id"]
	id, err := strconv.Atoi(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid connector id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// responseWriter wraps http.ResponseWriter to capture the status code for
// request logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapped.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
			"remote_addr": r.RemoteAddr,
		}).Info("local api request")
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.WithFields(logrus.Fields{
					"error": err,
					"stack": string(debug.Stack()),
					"path":  r.URL.Path,
				}).Error("panic recovered in local api handler")
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates a JWT bearer token against s.jwtSecret. An empty
// secret disables authentication, for local development and tests.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.jwtSecret == "" {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimPrefix(auth, "Bearer ")

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(s.jwtSecret), nil
		})
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "invalid bearer token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
