package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"ocpp-chargepoint/internal/types"
)

// SimulatorAdapter implements the HardwareAdapter interface for bench
// testing and demos: it generates id-tag presentation events on a timer
// and exposes TriggerEvent for manual triggering.
type SimulatorAdapter struct {
	name          string
	config        types.AdapterConfig
	status        types.AdapterStatus
	eventCallback types.EventCallback
	stopChan      chan struct{}
	isListening   bool
	mutex         sync.RWMutex
	logger        *slog.Logger
	eventInterval time.Duration
	connectorIDs  []int
	simulatedTags []string
}

// NewSimulatorAdapter creates a new simulator adapter instance.
func NewSimulatorAdapter(logger *slog.Logger) *SimulatorAdapter {
	return &SimulatorAdapter{
		name:   "simulator",
		logger: logger,
		status: types.AdapterStatus{
			Name:      "simulator",
			Status:    types.StatusDisabled,
			UpdatedAt: time.Now(),
		},
		eventInterval: 30 * time.Second,
		connectorIDs:  []int{1},
		simulatedTags: []string{
			"SIM_TAG_001",
			"SIM_TAG_002",
			"SIM_TAG_003",
		},
	}
}

// Name returns the adapter name.
func (s *SimulatorAdapter) Name() string {
	return s.name
}

// Initialize sets up the simulator with configuration.
func (s *SimulatorAdapter) Initialize(ctx context.Context, config types.AdapterConfig) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.config = config
	s.status.Status = types.StatusInitializing
	s.status.UpdatedAt = time.Now()

	if settings := config.Settings; settings != nil {
		if interval, ok := settings["eventInterval"].(float64); ok {
			s.eventInterval = time.Duration(interval) * time.Second
			if s.eventInterval < 100*time.Millisecond {
				s.eventInterval = 100 * time.Millisecond
			}
		}
		if tags, ok := settings["simulatedTags"].([]interface{}); ok {
			s.simulatedTags = make([]string, len(tags))
			for i, tag := range tags {
				if tagStr, ok := tag.(string); ok {
					s.simulatedTags[i] = tagStr
				}
			}
		}
		if connectors, ok := settings["connectorIds"].([]interface{}); ok {
			s.connectorIDs = make([]int, len(connectors))
			for i, c := range connectors {
				if cf, ok := c.(float64); ok {
					s.connectorIDs[i] = int(cf)
				}
			}
		}
	}

	s.status.Status = types.StatusActive
	s.status.UpdatedAt = time.Now()
	s.status.ErrorMessage = ""

	s.logger.Info("simulator adapter initialized",
		"name", s.name, "eventInterval", s.eventInterval, "tagCount", len(s.simulatedTags))

	return nil
}

// StartListening begins generating simulated events.
func (s *SimulatorAdapter) StartListening(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.isListening {
		return fmt.Errorf("simulator adapter is already listening")
	}

	if s.eventCallback == nil {
		return fmt.Errorf("no event callback registered")
	}

	s.stopChan = make(chan struct{})
	s.isListening = true
	s.status.Status = types.StatusActive
	s.status.UpdatedAt = time.Now()

	go s.generateEvents(ctx)

	s.logger.Info("simulator adapter started listening", "name", s.name)
	return nil
}

// StopListening stops generating simulated events.
func (s *SimulatorAdapter) StopListening(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isListening {
		return nil
	}

	close(s.stopChan)
	s.isListening = false
	s.status.UpdatedAt = time.Now()

	s.logger.Info("simulator adapter stopped listening", "name", s.name)
	return nil
}

// GetStatus returns the current adapter status.
func (s *SimulatorAdapter) GetStatus() types.AdapterStatus {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.status
}

// OnEvent registers a callback for id-tag presentation events.
func (s *SimulatorAdapter) OnEvent(callback types.EventCallback) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.eventCallback = callback
}

// IsHealthy returns true if the simulator is functioning properly.
func (s *SimulatorAdapter) IsHealthy() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.status.Status == types.StatusActive
}

func (s *SimulatorAdapter) generateEvents(ctx context.Context) {
	ticker := time.NewTicker(s.eventInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.generateRandomEvent()
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *SimulatorAdapter) generateRandomEvent() {
	s.mutex.RLock()
	callback := s.eventCallback
	tags := s.simulatedTags
	connectors := s.connectorIDs
	s.mutex.RUnlock()

	if callback == nil || len(tags) == 0 || len(connectors) == 0 {
		return
	}

	event := types.IdTagPresentedEvent{
		ConnectorID: connectors[rand.Intn(len(connectors))],
		IdTag:       tags[rand.Intn(len(tags))],
		Timestamp:   time.Now(),
		IsSimulated: true,
	}

	s.mutex.Lock()
	s.status.LastEvent = event.Timestamp
	s.status.UpdatedAt = time.Now()
	s.mutex.Unlock()

	s.logger.Debug("generated simulated event",
		"connectorId", event.ConnectorID, "idTag", event.IdTag)

	callback(event)
}

// TriggerEvent manually triggers an id-tag presentation on the given
// connector (useful for bench tests and demos).
func (s *SimulatorAdapter) TriggerEvent(connectorID int, idTag string) error {
	s.mutex.RLock()
	callback := s.eventCallback
	s.mutex.RUnlock()

	if callback == nil {
		return fmt.Errorf("no event callback registered")
	}

	event := types.IdTagPresentedEvent{
		ConnectorID: connectorID,
		IdTag:       idTag,
		Timestamp:   time.Now(),
		IsSimulated: true,
	}

	s.mutex.Lock()
	s.status.LastEvent = event.Timestamp
	s.status.UpdatedAt = time.Now()
	s.mutex.Unlock()

	s.logger.Info("manually triggered simulated event",
		"connectorId", event.ConnectorID, "idTag", event.IdTag)

	callback(event)
	return nil
}
