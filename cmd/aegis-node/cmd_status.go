package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	aegiscam "github.com/thewriterben/ESP32WildlifeCAM-sub000"
)

func pollStatus(cmd *cobra.Command, args []string) error {
	url, _ := cmd.Flags().GetString("url")
	interval, _ := cmd.Flags().GetDuration("interval")
	once, _ := cmd.Flags().GetBool("once")
	out := cmd.OutOrStdout()
	client := &http.Client{Timeout: 5 * time.Second}

	if once {
		return printStatusSnapshot(cmd.Context(), client, url, out)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fmt.Fprintf(out, "Streaming status from %s (Ctrl+C to stop)\n", url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printStatusSnapshot(ctx, client, url, out); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "status error: %v\n", err)
			}
		}
	}
}

func fetchStatus(ctx context.Context, client *http.Client, url string) (aegiscam.Status, error) {
	var st aegiscam.Status
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return st, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return st, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("decode status: %w", err)
	}
	return st, nil
}

func printStatusSnapshot(ctx context.Context, client *http.Client, url string, w io.Writer) error {
	st, err := fetchStatus(ctx, client, url)
	if err != nil {
		return err
	}
	line := fmt.Sprintf("[%s] state=%s power=%s battery=%.2fV queue=%d captures=%d delivered=%d abandoned=%d",
		time.Now().Format(time.RFC3339),
		st.State,
		st.PowerLevel,
		st.Power.BatteryVoltage,
		st.QueueDepth,
		st.Captures,
		st.Delivered,
		st.Abandoned,
	)
	if st.Fault != "" {
		line += " fault=" + st.Fault
	}
	if st.LastFailure != "" {
		line += " last_failure=" + st.LastFailure
	}
	_, err = fmt.Fprintln(w, line)
	return err
}
