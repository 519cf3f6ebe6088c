package rfid

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocpp-chargepoint/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestRFIDAdapter_Initialize(t *testing.T) {
	tests := []struct {
		name        string
		config      types.AdapterConfig
		expectError bool
	}{
		{
			name: "valid configuration",
			config: types.AdapterConfig{
				Name:    "rfid",
				Enabled: true,
				Settings: map[string]interface{}{
					"devicePath":  "/dev/ttyUSB0",
					"baudRate":    9600.0,
					"frequency":   "13.56MHz",
					"connectorId": 1.0,
				},
			},
			expectError: false,
		},
		{
			name: "missing devicePath",
			config: types.AdapterConfig{
				Name:     "rfid",
				Enabled:  true,
				Settings: map[string]interface{}{},
			},
			expectError: true,
		},
		{
			name: "invalid frequency",
			config: types.AdapterConfig{
				Name:    "rfid",
				Enabled: true,
				Settings: map[string]interface{}{
					"devicePath": "/dev/ttyUSB0",
					"frequency":  "invalid",
				},
			},
			expectError: true,
		},
		{
			name: "LF RFID configuration",
			config: types.AdapterConfig{
				Name:    "rfid",
				Enabled: true,
				Settings: map[string]interface{}{
					"devicePath": "COM3",
					"baudRate":   115200.0,
					"frequency":  "125kHz",
				},
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := NewRFIDAdapter(testLogger())
			err := adapter.Initialize(context.Background(), tt.config)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, types.StatusActive, adapter.GetStatus().Status)
		})
	}
}

func TestRFIDAdapter_StartStopListening(t *testing.T) {
	adapter := NewRFIDAdapter(testLogger())

	config := types.AdapterConfig{
		Name:    "rfid",
		Enabled: true,
		Settings: map[string]interface{}{
			"devicePath": "/dev/ttyUSB0",
			"frequency":  "13.56MHz",
		},
	}
	require.NoError(t, adapter.Initialize(context.Background(), config))

	err := adapter.StartListening(context.Background())
	assert.Error(t, err, "expected error when starting without callback")

	adapter.OnEvent(func(event types.IdTagPresentedEvent) {})

	err = adapter.StartListening(context.Background())
	assert.Error(t, err, "expected error for framework implementation")

	assert.NoError(t, adapter.StopListening(context.Background()))
}

func TestRFIDAdapter_Status(t *testing.T) {
	adapter := NewRFIDAdapter(testLogger())

	status := adapter.GetStatus()
	assert.Equal(t, "rfid", status.Name)
	assert.Equal(t, types.StatusDisabled, status.Status)
	assert.Equal(t, "rfid", adapter.Name())
	assert.False(t, adapter.IsHealthy())
}

func TestRFIDAdapter_ProcessRawCardData(t *testing.T) {
	adapter := NewRFIDAdapter(testLogger())

	config := types.AdapterConfig{
		Name:    "rfid",
		Enabled: true,
		Settings: map[string]interface{}{
			"devicePath":  "/dev/ttyUSB0",
			"frequency":   "13.56MHz",
			"connectorId": 2.0,
		},
	}
	require.NoError(t, adapter.Initialize(context.Background(), config))

	event, err := adapter.processRawCardData([]byte{0xAA, 0xBB, 0xCC, 0xDD})
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.NotEmpty(t, event.IdTag)
	assert.Equal(t, 2, event.ConnectorID)
}

func TestGetSupportedFrequencies(t *testing.T) {
	frequencies := GetSupportedFrequencies()
	expected := []string{"125kHz", "134.2kHz", "13.56MHz", "860-960MHz"}
	assert.ElementsMatch(t, expected, frequencies)
}

func TestValidateFrequency(t *testing.T) {
	tests := []struct {
		frequency string
		valid     bool
	}{
		{"125kHz", true},
		{"134.2kHz", true},
		{"13.56MHz", true},
		{"860-960MHz", true},
		{"invalid", false},
		{"", false},
		{"2.4GHz", false},
	}

	for _, tt := range tests {
		t.Run(tt.frequency, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidateFrequency(tt.frequency))
		})
	}
}
