package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	aegiscam "github.com/thewriterben/ESP32WildlifeCAM-sub000"
)

func main() {
	node, err := aegiscam.Open("../../data/config.yaml")
	if err != nil {
		log.Fatalf("start node: %v", err)
	}
	log.Printf("node %s up", node.NodeID())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := node.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("node exited: %v", err)
	}
}
