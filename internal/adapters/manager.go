package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ocpp-chargepoint/internal/adapters/rfid"
	"ocpp-chargepoint/internal/adapters/simulator"
	"ocpp-chargepoint/internal/types"
)

// AdapterManager manages the lifecycle of id-tag source adapters.
type AdapterManager struct {
	adapters      map[string]HardwareAdapter
	configs       map[string]types.AdapterConfig
	eventCallback types.EventCallback
	logger        *slog.Logger
	mutex         sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
}

// AdapterFactory creates a new adapter instance.
type AdapterFactory func(*slog.Logger) HardwareAdapter

var registeredAdapters = map[string]AdapterFactory{
	"simulator": func(logger *slog.Logger) HardwareAdapter { return simulator.NewSimulatorAdapter(logger) },
	"rfid":      func(logger *slog.Logger) HardwareAdapter { return rfid.NewRFIDAdapter(logger) },
}

// NewAdapterManager creates a new adapter manager instance.
func NewAdapterManager(logger *slog.Logger) *AdapterManager {
	ctx, cancel := context.WithCancel(context.Background())

	return &AdapterManager{
		adapters: make(map[string]HardwareAdapter),
		configs:  make(map[string]types.AdapterConfig),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// RegisterAdapter registers a new adapter type with the manager.
func RegisterAdapter(name string, factory AdapterFactory) {
	registeredAdapters[name] = factory
}

// GetRegisteredAdapterTypes returns a list of all registered adapter types.
func GetRegisteredAdapterTypes() []string {
	names := make([]string, 0, len(registeredAdapters))
	for name := range registeredAdapters {
		names = append(names, name)
	}
	return names
}

// LoadAdapters loads and initializes adapters based on configuration.
func (am *AdapterManager) LoadAdapters(configs []types.AdapterConfig) error {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	am.logger.Info("loading adapters", "count", len(configs))

	for _, config := range configs {
		if err := am.loadAdapter(config); err != nil {
			am.logger.Error("failed to load adapter", "name", config.Name, "error", err)
			continue
		}
	}

	am.logger.Info("adapters loaded", "total", len(configs), "active", len(am.adapters))
	return nil
}

func (am *AdapterManager) loadAdapter(config types.AdapterConfig) error {
	factory, exists := registeredAdapters[config.Name]
	if !exists {
		return fmt.Errorf("unknown adapter type: %s", config.Name)
	}

	if !config.Enabled {
		am.logger.Info("skipping disabled adapter", "name", config.Name)
		return nil
	}

	adapter := factory(am.logger)

	if err := adapter.Initialize(am.ctx, config); err != nil {
		return fmt.Errorf("failed to initialize adapter %s: %w", config.Name, err)
	}

	if am.eventCallback != nil {
		adapter.OnEvent(am.eventCallback)
	}

	am.adapters[config.Name] = adapter
	am.configs[config.Name] = config

	am.logger.Info("adapter loaded", "name", config.Name)
	return nil
}

// StartAll starts all loaded adapters.
func (am *AdapterManager) StartAll() error {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	am.logger.Info("starting all adapters", "count", len(am.adapters))

	var errs []error
	for name, adapter := range am.adapters {
		if err := adapter.StartListening(am.ctx); err != nil {
			am.logger.Error("failed to start adapter", "name", name, "error", err)
			errs = append(errs, fmt.Errorf("adapter %s: %w", name, err))
			continue
		}
		am.logger.Info("adapter started", "name", name)
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to start %d adapters: %v", len(errs), errs)
	}
	return nil
}

// StopAll stops all running adapters.
func (am *AdapterManager) StopAll() error {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	am.logger.Info("stopping all adapters", "count", len(am.adapters))

	var errs []error
	for name, adapter := range am.adapters {
		if err := adapter.StopListening(am.ctx); err != nil {
			am.logger.Error("failed to stop adapter", "name", name, "error", err)
			errs = append(errs, fmt.Errorf("adapter %s: %w", name, err))
			continue
		}
		am.logger.Info("adapter stopped", "name", name)
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to stop %d adapters: %v", len(errs), errs)
	}
	return nil
}

// Shutdown gracefully shuts down the adapter manager.
func (am *AdapterManager) Shutdown() error {
	am.logger.Info("shutting down adapter manager")

	if err := am.StopAll(); err != nil {
		am.logger.Error("error stopping adapters during shutdown", "error", err)
	}

	am.cancel()

	am.mutex.Lock()
	am.adapters = make(map[string]HardwareAdapter)
	am.configs = make(map[string]types.AdapterConfig)
	am.mutex.Unlock()

	return nil
}

// GetAdapter returns a specific adapter by name.
func (am *AdapterManager) GetAdapter(name string) (HardwareAdapter, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	adapter, exists := am.adapters[name]
	return adapter, exists
}

// GetAllAdapters returns all loaded adapters.
func (am *AdapterManager) GetAllAdapters() map[string]HardwareAdapter {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	result := make(map[string]HardwareAdapter)
	for name, adapter := range am.adapters {
		result[name] = adapter
	}
	return result
}

// GetAdapterStatus returns the status of all adapters.
func (am *AdapterManager) GetAdapterStatus() map[string]types.AdapterStatus {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	status := make(map[string]types.AdapterStatus)
	for name, adapter := range am.adapters {
		status[name] = adapter.GetStatus()
	}
	return status
}

// GetHealthyAdapters returns a list of healthy adapter names.
func (am *AdapterManager) GetHealthyAdapters() []string {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	var healthy []string
	for name, adapter := range am.adapters {
		if adapter.IsHealthy() {
			healthy = append(healthy, name)
		}
	}
	return healthy
}

// OnEvent registers a callback for all adapter events.
func (am *AdapterManager) OnEvent(callback types.EventCallback) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	am.eventCallback = callback
	for _, adapter := range am.adapters {
		adapter.OnEvent(callback)
	}
}

// ReloadAdapter reloads a specific adapter with new configuration.
func (am *AdapterManager) ReloadAdapter(config types.AdapterConfig) error {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	if existing, exists := am.adapters[config.Name]; exists {
		if err := existing.StopListening(am.ctx); err != nil {
			am.logger.Error("failed to stop existing adapter", "name", config.Name, "error", err)
		}
		delete(am.adapters, config.Name)
		delete(am.configs, config.Name)
	}

	if err := am.loadAdapter(config); err != nil {
		return fmt.Errorf("failed to reload adapter %s: %w", config.Name, err)
	}

	if config.Enabled {
		if adapter, exists := am.adapters[config.Name]; exists {
			if err := adapter.StartListening(am.ctx); err != nil {
				return fmt.Errorf("failed to start reloaded adapter %s: %w", config.Name, err)
			}
		}
	}

	return nil
}

// MonitorHealth periodically checks adapter health and logs status.
func (am *AdapterManager) MonitorHealth(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			am.checkAdapterHealth()
		case <-am.ctx.Done():
			return
		}
	}
}

func (am *AdapterManager) checkAdapterHealth() {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	for name, adapter := range am.adapters {
		status := adapter.GetStatus()
		if !adapter.IsHealthy() {
			am.logger.Warn("adapter health check failed",
				"name", name, "status", status.Status, "error", status.ErrorMessage)
		} else {
			am.logger.Debug("adapter health check passed", "name", name, "status", status.Status)
		}
	}
}
