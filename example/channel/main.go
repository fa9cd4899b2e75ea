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

	uplink, payloads, closeUplink := aegiscam.NewChannelLink(aegiscam.LinkSpec{
		Kind:       aegiscam.LinkCellular,
		Cost:       3,
		Latency:    aegiscam.LatencyTens,
		MaxPayload: 2 << 20,
	}, 4)
	defer closeUplink()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go forward(ctx, "gateway", payloads)

	node, err := aegiscam.NewNode(cfg, aegiscam.WithLinks(uplink))
	if err != nil {
		log.Fatalf("start node: %v", err)
	}
	if err := node.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("node exited: %v", err)
	}
}

func forward(ctx context.Context, name string, payloads <-chan aegiscam.Payload) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-payloads:
			fmt.Printf("[%s] payload %d (%s, %d bytes) at %s\n", name, p.ID, p.Priority, p.Size, time.Now().Format(time.RFC3339))
		}
	}
}
