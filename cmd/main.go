package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"door-opener-bridge/internal/config"
	"door-opener-bridge/internal/logging"
	"door-opener-bridge/internal/service"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "door-opener-bridge",
	Short: "Door Opener Bridge - keep conditional doors open after they were toggled",
	Long: `A bridge that receives door toggle and player interaction events from a
game host over HTTP, WebSocket or a Redis list. Toggles that move a tracked
door into its opened direction start the door's stay-open window; interactions
are routed to the pending registration of the acting player.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return bridgeMain(ctx, cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and lets an explicit --log-level win
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

// bridgeMain runs the bridge until ctx is cancelled
func bridgeMain(ctx context.Context, cfg *config.Config) error {
	logger := logging.Initialize(cfg.LogLevel)
	if cfg.LogFile != "" {
		if err := logging.SetupFileLogging(logger, cfg.LogFile); err != nil {
			logging.LogConfigError(logging.NewComponentLogger(logger, "main"), err, "setup_file_logging")
			return fmt.Errorf("failed to setup file logging: %w", err)
		}
	}

	logger.WithFields(logrus.Fields{
		"database":      cfg.Database.Driver,
		"api_enabled":   cfg.API.Enabled,
		"redis_enabled": cfg.Redis.Enabled,
	}).Info("Bridge starting up")

	manager, err := service.NewManager(ctx, cfg, service.WithLogger(logger))
	if err != nil {
		return err
	}

	if err := manager.Start(ctx); err != nil {
		return err
	}

	logger.Info("Bridge shut down gracefully")
	return nil
}
