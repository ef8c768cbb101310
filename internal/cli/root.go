// Package cli provides the command-line interface for the trading engine.
package cli

import (
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Steinwealth/UltimaBot/internal/config"
	"github.com/Steinwealth/UltimaBot/internal/logging"
	"github.com/Steinwealth/UltimaBot/internal/security"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-01"
)

// skipSetup marks commands that run without loading the configuration.
const skipSetup = "skip-setup"

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd creates the root command for the CLI. The configuration and
// shared dependencies are loaded before any subcommand runs.
func NewRootCmd() *cobra.Command {
	app := &App{}

	rootCmd := &cobra.Command{
		Use:   "ultimabot",
		Short: "UltimaBot - automated trade decision and lifecycle engine",
		Long: `UltimaBot discovers trade candidates, forecasts profit and stop levels,
gates entries on risk and confidence, and manages every open trade until it
closes on take profit, stop loss, trailing stop, confidence decay or timeout.

Use 'ultimabot run' to start the engine.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipSetup] == "true" {
				return nil
			}

			configDir, _ := cmd.Flags().GetString("config")
			if configDir == "" {
				configDir = config.DefaultConfigDir()
			}
			cfg, err := config.Load(configDir)
			if err != nil {
				return err
			}

			logger := newLogger(cfg)
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				logging.SetDebugLevel()
				logger = logger.Level(zerolog.DebugLevel)
			}

			built, err := newApp(cfg, configDir, logger)
			if err != nil {
				return err
			}
			*app = *built
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/ultimabot)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newDiscoverCmd(app))
	rootCmd.AddCommand(newForecastCmd(app))
	rootCmd.AddCommand(newModeCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
	rootCmd.AddCommand(newSummaryCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{skipSetup: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				_ = output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("UltimaBot v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the engine configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(redacted(app.Config))
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path := filepath.Join(app.ConfigDir, "config.toml")
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": path})
			}
			output.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}

// redacted returns a copy of cfg with credentials masked.
func redacted(cfg *config.Config) config.Config {
	c := *cfg
	if c.Broker.Binance.APIKey != "" {
		c.Broker.Binance.APIKey = security.MaskCredential(c.Broker.Binance.APIKey)
	}
	if c.Broker.Binance.APISecret != "" {
		c.Broker.Binance.APISecret = "****"
	}
	if c.Notifications.Redis.Password != "" {
		c.Notifications.Redis.Password = "****"
	}
	c.Notifications.Webhook.URL = security.MaskURL(c.Notifications.Webhook.URL)
	return c
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Engine")
	output.Printf("  Mode:             %s\n", cfg.Engine.Mode)
	output.Printf("  Asset Class:      %s\n", cfg.Engine.AssetClass)
	output.Printf("  Poll Interval:    %s\n", cfg.Engine.PollInterval)
	output.Printf("  Scan Schedule:    %s\n", cfg.Engine.ScanSchedule)
	output.Printf("  Workers:          %d\n", cfg.Engine.Workers)
	output.Printf("  Confidence Floor: %s\n", FormatConfidence(cfg.Engine.ConfidenceFloor))
	output.Println()

	output.Bold("Risk")
	output.Printf("  Allocation:       %.0f%%\n", cfg.Risk.AllocationPercent*100)
	output.Printf("  Margin Buffer:    %.0f%%\n", cfg.Risk.MarginFloorBuffer*100)
	output.Printf("  Max Trade Risk:   %.1f%%\n", cfg.Risk.MaxTradeRisk*100)
	output.Printf("  Max Account Risk: %.1f%%\n", cfg.Risk.MaxAccountRisk*100)
	output.Printf("  Max ATR:          %.1f%%\n", cfg.Risk.MaxATRPercent*100)
	output.Println()

	output.Bold("Broker")
	output.Printf("  Kind:             %s\n", cfg.Broker.Kind)
	output.Printf("  ID:               %s\n", cfg.Broker.ID)
	output.Printf("  Model:            %s\n", cfg.Broker.ModelID)
	if cfg.IsPaper() {
		output.Printf("  Paper Balance:    %s\n", FormatUSD(cfg.Broker.Paper.Balance))
	}
	output.Println()

	output.Bold("Discovery")
	strategies := cfg.Discovery.CryptoStrategies
	if strings.EqualFold(cfg.Engine.AssetClass, "stock") {
		strategies = cfg.Discovery.StockStrategies
	}
	for _, s := range strategies {
		output.Printf("  %-20s quota %d\n", s, cfg.Quota(s))
	}
	output.Println()

	output.Bold("Notifications")
	output.Printf("  Enabled:          %v\n", cfg.Notifications.Enabled)
	output.Printf("  Terminal:         %v\n", cfg.Notifications.Terminal.Enabled)
	output.Printf("  Webhook:          %v\n", cfg.Notifications.Webhook.Enabled)
	output.Printf("  Redis:            %v\n", cfg.Notifications.Redis.Enabled)
	output.Printf("  Metrics:          %v (%s)\n", cfg.Metrics.Enabled, cfg.Metrics.Listen)
}
