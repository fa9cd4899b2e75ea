package statushttp

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/app/diagnostics"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/domain"
)

func TestRoutes(t *testing.T) {
	diag := diagnostics.New(8)
	diag.Update(func(s *diagnostics.Status) {
		s.NodeID = "cam-1"
		s.State = "DRAINING"
		s.QueueDepth = 3
	})
	diag.Append(domain.TransmissionRecord{PayloadID: 1, Link: domain.LinkMesh, Outcome: domain.OutcomeSuccess, Attempt: 1})

	reg := prometheus.NewRegistry()
	up := prometheus.NewGauge(prometheus.GaugeOpts{Name: "aegis_queue_length", Help: "test"})
	reg.MustRegister(up)
	up.Set(3)

	srv := httptest.NewServer(NewRouter(diag, reg))
	defer srv.Close()

	res, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	var st diagnostics.Status
	require.NoError(t, json.NewDecoder(res.Body).Decode(&st))
	res.Body.Close()
	assert.Equal(t, "cam-1", st.NodeID)
	assert.Equal(t, "DRAINING", st.State)
	assert.Equal(t, 3, st.QueueDepth)
	assert.Equal(t, uint64(1), st.Delivered)

	res, err = http.Get(srv.URL + "/records")
	require.NoError(t, err)
	var recs []domain.TransmissionRecord
	require.NoError(t, json.NewDecoder(res.Body).Decode(&recs))
	res.Body.Close()
	require.Len(t, recs, 1)
	assert.Equal(t, domain.PayloadID(1), recs[0].PayloadID)

	res, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	assert.Contains(t, string(body), "aegis_queue_length 3")

	res, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	diag.Update(func(s *diagnostics.Status) { s.Fault = "no wake source could be armed" })
	res, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ = io.ReadAll(res.Body)
	res.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.True(t, strings.Contains(string(body), "wake source"))
}

func TestServerStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := NewServer(ln.Addr().String(), NewRouter(diagnostics.New(1), prometheus.NewRegistry()))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		res, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		res.Body.Close()
		return res.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	http.DefaultClient.CloseIdleConnections()
}
