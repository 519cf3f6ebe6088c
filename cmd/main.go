package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ocpp-chargepoint/internal/config"
	"ocpp-chargepoint/internal/core"
	"ocpp-chargepoint/internal/logging"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "chargepoint",
	Short: "OCPP 1.6 charge-point Transaction Core",
	Long: `A charge-point-side agent implementing the OCPP 1.6 Transaction Core:
durable start/stop transaction delivery to a central system, local
connector state, and retry-on-reconnect, independent of any particular
hardware or central-system vendor.`,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the transaction core and block until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStart()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Initialize the transaction core and print its current status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(startCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

func runStart() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := logging.Initialize(cfg.LogLevel)
	logger.WithField("central_system_url", cfg.CentralSystemURL).Info("starting OCPP transaction core")

	c, err := core.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to build transaction core: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("transaction core exited with error: %w", err)
	}
	logger.Info("transaction core stopped")
	return nil
}

func runStatus() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := core.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to build transaction core: %w", err)
	}
	defer c.Close()

	status, err := c.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to read status: %w", err)
	}

	fmt.Printf("running:             %v\n", status.Running)
	fmt.Printf("registration status: %s\n", status.RegistrationStatus)
	fmt.Printf("fifo depth:          %d\n", status.FifoDepth)
	fmt.Printf("connector count:     %d\n", status.ConnectorCount)
	return nil
}
