package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	aegiscam "github.com/thewriterben/ESP32WildlifeCAM-sub000"
)

func main() {
	cfg, err := aegiscam.LoadConfig("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	mesh := aegiscam.NewCallbackLink(aegiscam.LinkSpec{
		Kind:       aegiscam.LinkMesh,
		Cost:       0.2,
		Latency:    aegiscam.LatencySeconds,
		MaxPayload: 64 << 10,
	}, func(ctx context.Context, p aegiscam.Payload) error {
		fmt.Printf("%s payload=%d seq=%d priority=%s bytes=%d attempt=%d\n",
			time.Now().Format(time.RFC3339Nano),
			p.ID,
			p.SequenceID,
			p.Priority,
			p.Size,
			p.AttemptCount,
		)
		return nil
	})

	node, err := aegiscam.NewNode(cfg, aegiscam.WithLinks(mesh))
	if err != nil {
		log.Fatalf("start node: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := node.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("node exited: %v", err)
	}
}
