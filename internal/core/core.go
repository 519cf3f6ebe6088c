// Package core wires every Transaction Core collaborator together into a
// single runnable charge point: store, connector registry, FIFO, auth
// cache, sender, transaction manager, drainer, hardware adapters, and the
// local control API.
package core

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ocpp-chargepoint/internal/adapters"
	"ocpp-chargepoint/internal/authcache"
	"ocpp-chargepoint/internal/collab"
	"ocpp-chargepoint/internal/config"
	"ocpp-chargepoint/internal/connector"
	"ocpp-chargepoint/internal/drainer"
	"ocpp-chargepoint/internal/localapi"
	"ocpp-chargepoint/internal/logging"
	"ocpp-chargepoint/internal/queue"
	"ocpp-chargepoint/internal/sender"
	"ocpp-chargepoint/internal/store"
	"ocpp-chargepoint/internal/transaction"
	"ocpp-chargepoint/internal/types"
)

// Core coordinates all Transaction Core components and services.
type Core struct {
	mu     sync.RWMutex
	config *config.Config
	logger *logrus.Logger

	store          store.Store
	connectors     *connector.Registry
	fifo           *queue.TransactionFifo
	authCache      *authcache.Cache
	sender         *sender.Sender
	txManager      *transaction.Manager
	drainer        *drainer.Drainer
	adapterManager *adapters.AdapterManager
	localAPI       *localapi.Server
	status         *registrationStatus
	events         *eventsHandler

	isRunning bool
	startTime time.Time
	version   string
	deviceID  string

	ctx    context.Context
	cancel context.CancelFunc
}

// Option is a functional option for configuring a Core.
type Option func(*Core)

// WithVersion sets the version reported by the core.
func WithVersion(version string) Option {
	return func(c *Core) { c.version = version }
}

// New builds a Core from cfg, initializing every collaborator but starting
// none of them; call Start to begin serving.
func New(cfg *config.Config, opts ...Option) (*Core, error) {
	logger := logging.Initialize(cfg.LogLevel)
	if cfg.LogFile != "" {
		if err := logging.SetupFileLogging(logger, cfg.LogFile); err != nil {
			logger.WithError(err).Warn("failed to enable file logging")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Core{
		config:   cfg,
		logger:   logger,
		version:  "unknown",
		deviceID: cfg.DeviceID,
		ctx:      ctx,
		cancel:   cancel,
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.initializeComponents(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize transaction core: %w", err)
	}

	return c, nil
}

func (c *Core) initializeComponents() error {
	c.logger.Info("initializing transaction core components")

	encryptionKey := parseEncryptionKey(c.config.EncryptionKey)

	s, err := store.New(store.Options{
		Backend:       c.config.StorageBackend,
		DatabasePath:  c.config.DatabasePath,
		EncryptionKey: encryptionKey,
		RedisAddr:     c.config.RedisAddr,
		RedisPassword: c.config.RedisPassword,
		RedisDB:       c.config.RedisDB,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	c.store = s

	registry, err := connector.New(s, c.config.ConnectorCount, connector.WithLogger(c.logger))
	if err != nil {
		return fmt.Errorf("failed to initialize connector registry: %w", err)
	}
	c.connectors = registry

	c.fifo = queue.New(s)
	c.authCache = authcache.New(s)
	c.status = newRegistrationStatus()

	senderCfg := sender.DefaultConfig(c.config.CentralSystemURL)
	c.sender = sender.New(senderCfg, c.logger)

	meterValues := &noopMeterValuesManager{}
	meterValues.SetTransactionFifo(c.fifo)

	c.events = newEventsHandler(c.logger)

	c.txManager = transaction.New(
		transaction.Config{ReserveConnectorZeroSupported: c.config.ReserveConnectorZeroSupported},
		c.connectors,
		c.fifo,
		c.sender,
		c.events,
		noopReservationManager{},
		c.authCache,
		noopSmartChargingManager{},
		meterValues,
		c.logger,
	)
	c.events.SetManager(c.txManager)

	c.drainer = drainer.New(
		drainer.Config{
			TransactionMessageAttempts:      c.config.TransactionMessageAttempts,
			TransactionMessageRetryInterval: c.config.TransactionMessageRetryInterval,
		},
		c.connectors,
		c.fifo,
		c.sender,
		c.authCache,
		c.events,
		c.status,
		c.logger,
	)

	slogLogger := logging.NewSlogLogger(c.logger)
	c.adapterManager = adapters.NewAdapterManager(slogLogger)
	c.adapterManager.OnEvent(c.events.onIdTagPresented)
	if err := c.adapterManager.LoadAdapters(c.config.GetAdapterConfigs()); err != nil {
		return fmt.Errorf("failed to load hardware adapters: %w", err)
	}

	if c.config.ControlAPIAddr != "" {
		c.localAPI = localapi.New(
			c.config.ControlAPIAddr,
			c.config.ControlAPIJWTSecret,
			c.connectors,
			c.fifo,
			c.txManager,
			c.status,
			c.logger,
		)
	}

	c.logger.Info("transaction core components initialized")
	return nil
}

// Start connects to the central system, starts the drainer and hardware
// adapters, and blocks until ctx is cancelled, at which point it performs a
// graceful shutdown.
func (c *Core) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return fmt.Errorf("transaction core is already running")
	}
	c.startTime = time.Now()
	c.isRunning = true
	c.mu.Unlock()

	c.logger.Info("starting transaction core")

	go func() {
		if err := c.sender.Connect(c.ctx); err != nil {
			c.logger.WithError(err).Warn("connect to central system abandoned")
			return
		}
		c.drainer.NotifyConnected()
	}()

	if err := c.adapterManager.StartAll(); err != nil {
		c.logger.WithError(err).Warn("one or more hardware adapters failed to start")
	}

	if c.localAPI != nil {
		go func() {
			if err := c.localAPI.Start(); err != nil {
				c.logger.WithError(err).Error("local control API stopped with error")
			}
		}()
	}

	c.logger.Info("transaction core started")

	select {
	case <-ctx.Done():
	case <-c.ctx.Done():
	}
	return c.shutdown()
}

// Stop requests a graceful shutdown of a running core.
func (c *Core) Stop() error {
	c.cancel()
	return nil
}

// Close releases the store without going through the full Start/shutdown
// lifecycle, for callers (the `status` CLI command) that only construct a
// Core to inspect it.
func (c *Core) Close() error {
	c.cancel()
	return c.store.Close()
}

func (c *Core) shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isRunning {
		return nil
	}
	c.logger.Info("shutting down transaction core")

	var errs []error

	if c.localAPI != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.localAPI.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("local api shutdown: %w", err))
		}
	}

	if err := c.adapterManager.Shutdown(); err != nil {
		errs = append(errs, fmt.Errorf("adapter manager shutdown: %w", err))
	}

	c.drainer.Stop()

	if err := c.sender.Close(); err != nil {
		errs = append(errs, fmt.Errorf("sender close: %w", err))
	}

	if err := c.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	c.isRunning = false

	if len(errs) > 0 {
		return fmt.Errorf("shutdown completed with errors: %v", errs)
	}
	c.logger.Info("transaction core stopped")
	return nil
}

// Status reports a lightweight operational snapshot, used by the
// CLI's `status` subcommand.
type Status struct {
	Running            bool
	RegistrationStatus types.RegistrationStatus
	FifoDepth          int
	ConnectorCount     int
}

// GetStatus returns the core's current status.
func (c *Core) GetStatus() (Status, error) {
	c.mu.RLock()
	running := c.isRunning
	c.mu.RUnlock()

	depth, err := c.fifo.Size()
	if err != nil {
		return Status{}, fmt.Errorf("failed to read fifo depth: %w", err)
	}

	states, err := c.connectors.List()
	if err != nil {
		return Status{}, fmt.Errorf("failed to list connectors: %w", err)
	}

	return Status{
		Running:            running,
		RegistrationStatus: c.status.GetRegistrationStatus(),
		FifoDepth:          depth,
		ConnectorCount:     len(states),
	}, nil
}

var _ collab.Fifo = (*queue.TransactionFifo)(nil)

// parseEncryptionKey derives the store's 32-byte AES-256 key from the
// configured secret via SHA-256, so any passphrase length works. An empty
// key falls back to a fixed default; a deployment wanting real secrecy
// configures EncryptionKey explicitly.
func parseEncryptionKey(secret string) []byte {
	if secret == "" {
		secret = "ocpp-chargepoint-default-encryption-key"
	}
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}
