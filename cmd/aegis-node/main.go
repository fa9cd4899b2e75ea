package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	aegiscam "github.com/thewriterben/ESP32WildlifeCAM-sub000"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "aegis-node",
	Short: "Wildlife camera capture, power and uplink orchestrator",
	Long: `aegis-node runs the capture/power/network loop of a solar wildlife camera.

Without hardware drivers it runs against the host simulation: a synthetic
camera, battery model, PIR and three radios, with an RTC that can run faster
than real time (sim.time_scale).`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the node using the provided config",
	RunE:  runNode,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate a config file without starting the node",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := aegiscam.LoadConfig(configPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "config %s looks good\n", configPath)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Poll the status endpoint and print a live summary",
	RunE:  pollStatus,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./data/config.yaml", "path to node configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	statusCmd.Flags().String("url", "http://localhost:9100/status", "status endpoint")
	statusCmd.Flags().Duration("interval", 2*time.Second, "refresh interval")
	statusCmd.Flags().Bool("once", false, "print a single snapshot and exit")

	rootCmd.AddCommand(runCmd, validateCmd, statusCmd)
}

func newLogger(cfg aegiscam.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
