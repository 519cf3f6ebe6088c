package rfid

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ocpp-chargepoint/internal/types"
)

// RFIDAdapter implements the HardwareAdapter interface for RFID card readers,
// producing id-tag presentation events for a single fixed connector.
type RFIDAdapter struct {
	name          string
	config        types.AdapterConfig
	status        types.AdapterStatus
	eventCallback types.EventCallback
	isListening   bool
	mutex         sync.RWMutex
	logger        *slog.Logger
	devicePath    string
	baudRate      int
	frequency     string
	connectorID   int
}

// NewRFIDAdapter creates a new RFID adapter instance.
func NewRFIDAdapter(logger *slog.Logger) *RFIDAdapter {
	return &RFIDAdapter{
		name:   "rfid",
		logger: logger,
		status: types.AdapterStatus{
			Name:      "rfid",
			Status:    types.StatusDisabled,
			UpdatedAt: time.Now(),
		},
		baudRate:    9600,
		frequency:   "13.56MHz",
		connectorID: 1,
	}
}

// Name returns the adapter name.
func (r *RFIDAdapter) Name() string {
	return r.name
}

// Initialize sets up the RFID adapter with configuration.
func (r *RFIDAdapter) Initialize(ctx context.Context, config types.AdapterConfig) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.config = config
	r.status.Status = types.StatusInitializing
	r.status.UpdatedAt = time.Now()

	if settings := config.Settings; settings != nil {
		if devicePath, ok := settings["devicePath"].(string); ok {
			r.devicePath = devicePath
		}
		if baudRate, ok := settings["baudRate"].(float64); ok {
			r.baudRate = int(baudRate)
		}
		if frequency, ok := settings["frequency"].(string); ok {
			r.frequency = frequency
		}
		if connectorID, ok := settings["connectorId"].(float64); ok {
			r.connectorID = int(connectorID)
		}
	}

	if r.devicePath == "" {
		r.status.Status = types.StatusError
		r.status.ErrorMessage = "devicePath is required"
		r.status.UpdatedAt = time.Now()
		return fmt.Errorf("devicePath is required for RFID adapter")
	}

	if !ValidateFrequency(r.frequency) {
		r.status.Status = types.StatusError
		r.status.ErrorMessage = "unsupported frequency"
		r.status.UpdatedAt = time.Now()
		return fmt.Errorf("unsupported frequency: %s", r.frequency)
	}

	// TODO: open the serial/USB connection to the reader and verify it
	// responds before flipping the adapter active.

	r.status.Status = types.StatusActive
	r.status.UpdatedAt = time.Now()
	r.status.ErrorMessage = ""

	r.logger.Info("RFID adapter initialized",
		"name", r.name, "devicePath", r.devicePath, "baudRate", r.baudRate,
		"frequency", r.frequency, "connectorId", r.connectorID)

	return nil
}

// StartListening begins listening for card presentation events.
func (r *RFIDAdapter) StartListening(ctx context.Context) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.isListening {
		return fmt.Errorf("RFID adapter is already listening")
	}

	if r.eventCallback == nil {
		return fmt.Errorf("no event callback registered")
	}

	// TODO: start continuous card polling against devicePath; this
	// implementation is a framework stub without real hardware access.

	r.isListening = true
	r.status.Status = types.StatusActive
	r.status.UpdatedAt = time.Now()

	r.logger.Info("RFID adapter started listening", "name", r.name)

	return fmt.Errorf("RFID adapter is a framework implementation - actual hardware integration required")
}

// StopListening stops listening for card presentation events.
func (r *RFIDAdapter) StopListening(ctx context.Context) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.isListening {
		return nil
	}

	r.isListening = false
	r.status.UpdatedAt = time.Now()

	r.logger.Info("RFID adapter stopped listening", "name", r.name)
	return nil
}

// GetStatus returns the current adapter status.
func (r *RFIDAdapter) GetStatus() types.AdapterStatus {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.status
}

// OnEvent registers a callback for id-tag presentation events.
func (r *RFIDAdapter) OnEvent(callback types.EventCallback) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.eventCallback = callback
}

// IsHealthy returns true if the RFID reader is functioning properly.
func (r *RFIDAdapter) IsHealthy() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.status.Status == types.StatusActive
}

// processRawCardData converts raw RFID card data into an id-tag
// presentation event. Called by the hardware integration once it exists.
func (r *RFIDAdapter) processRawCardData(rawData []byte) (*types.IdTagPresentedEvent, error) {
	// TODO: parse the Wiegand/NFC frame in rawData to extract the card UID.
	event := &types.IdTagPresentedEvent{
		ConnectorID: r.connectorID,
		IdTag:       "placeholder_id",
		Timestamp:   time.Now(),
		IsSimulated: false,
	}

	return event, nil
}

// GetSupportedFrequencies returns a list of supported RFID frequencies.
func GetSupportedFrequencies() []string {
	return []string{
		"125kHz",
		"134.2kHz",
		"13.56MHz",
		"860-960MHz",
	}
}

// ValidateFrequency checks if the specified frequency is supported.
func ValidateFrequency(frequency string) bool {
	for _, f := range GetSupportedFrequencies() {
		if f == frequency {
			return true
		}
	}
	return false
}
