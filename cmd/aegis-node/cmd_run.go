package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	aegiscam "github.com/thewriterben/ESP32WildlifeCAM-sub000"
)

func runNode(cmd *cobra.Command, args []string) error {
	cfg, err := aegiscam.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	node, err := aegiscam.NewNode(cfg, aegiscam.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("start node: %w", err)
	}
	logger.Info("node ready",
		zap.String("node_id", node.NodeID()),
		zap.String("status_addr", cfg.Status.Addr),
		zap.Float64("time_scale", cfg.Sim.TimeScale))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := node.Run(ctx); err != nil && err != context.Canceled {
		return fmt.Errorf("node exited: %w", err)
	}
	return nil
}
