package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aegiscam "github.com/thewriterben/ESP32WildlifeCAM-sub000"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policy:\n  max_attempts: 3\n"), 0o600))

	out, err := execute(t, "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "looks good")
}

func TestValidateCommandRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policy:\n  on_queue_full: block\n"), 0o600))

	_, err := execute(t, "validate", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "on_queue_full")
}

func TestStatusOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(aegiscam.Status{
			State:      "SLEEPING",
			PowerLevel: "LOW",
			QueueDepth: 2,
			Delivered:  9,
			Fault:      "no wake source could be armed",
		})
	}))
	defer srv.Close()

	out, err := execute(t, "status", "--once", "--url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "state=SLEEPING")
	assert.Contains(t, out, "queue=2")
	assert.Contains(t, out, "delivered=9")
	assert.True(t, strings.Contains(out, "fault=no wake source"), out)
}

func TestStatusOnceReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := execute(t, "status", "--once", "--url", srv.URL)
	require.Error(t, err)
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := newLogger(aegiscam.LogConfig{Level: "chatty"})
	require.Error(t, err)

	l, err := newLogger(aegiscam.LogConfig{Level: "warn"})
	require.NoError(t, err)
	_ = l.Sync()
}
