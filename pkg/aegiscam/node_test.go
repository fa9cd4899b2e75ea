package aegiscam

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/domain"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/ports"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Journal.Dir = filepath.Join(dir, "journal")
	cfg.State.Path = filepath.Join(dir, "state.yaml")
	cfg.Status.Addr = "127.0.0.1:0"
	cfg.Sim.TimeScale = 3600
	return cfg
}

func runNode(t *testing.T, n *Node) (cancel func() error) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()
	return func() error {
		stop()
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("node did not stop")
			return nil
		}
	}
}

func TestNewNodeRequiresConfig(t *testing.T) {
	_, err := NewNode(nil)
	require.Error(t, err)
}

func TestNewNodeRequiresALink(t *testing.T) {
	cfg := testConfig(t)
	off := false
	cfg.Links.Mesh.Enabled = &off
	cfg.Links.Cellular.Enabled = &off
	cfg.Links.Satellite.Enabled = &off

	_, err := NewNode(cfg)
	require.Error(t, err)
}

func TestNodeDeliversMotionCaptures(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig(t)
	cfg.Sim.MotionEvery = time.Minute
	mesh, out, closeMesh := NewChannelLink(LinkSpec{Kind: LinkMesh, Cost: 0.2, Latency: LatencySeconds, MaxPayload: 1 << 20}, 0)
	defer closeMesh()

	n, err := NewNode(cfg, WithLinks(mesh))
	require.NoError(t, err)
	require.NotEmpty(t, n.NodeID())
	stop := runNode(t, n)

	select {
	case p := <-out:
		assert.Equal(t, domain.PriorityAlert, p.Priority)
		assert.NotEmpty(t, p.Bytes)
		assert.NotZero(t, p.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("no payload delivered")
	}

	require.NoError(t, stop())
	assert.NotZero(t, n.Status().Captures)
}

func TestNodeManualCapture(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig(t)
	cfg.Sim.MotionEvery = 24 * time.Hour
	var got []Payload
	delivered := make(chan struct{}, 1)
	cell := NewCallbackLink(LinkSpec{Kind: LinkCellular, Cost: 3, Latency: LatencyTens, MaxPayload: 1 << 20}, func(_ context.Context, p Payload) error {
		got = append(got, p)
		select {
		case delivered <- struct{}{}:
		default:
		}
		return nil
	})

	n, err := NewNode(cfg, WithLinks(cell))
	require.NoError(t, err)
	require.NoError(t, n.Capture())
	stop := runNode(t, n)

	select {
	case <-delivered:
	case <-time.After(5 * time.Second):
		t.Fatal("manual capture not delivered")
	}
	require.NoError(t, stop())

	require.NotEmpty(t, got)
	assert.Equal(t, domain.PriorityRoutine, got[0].Priority)
	recs := n.Records()
	require.NotEmpty(t, recs)
	assert.Equal(t, domain.LinkCellular, recs[0].Link)
	assert.Equal(t, domain.OutcomeSuccess, recs[0].Outcome)
}

func TestNodeKeepsIdentityAcrossRestarts(t *testing.T) {
	cfg := testConfig(t)
	mesh := NewCallbackLink(LinkSpec{Kind: LinkMesh, MaxPayload: 1024}, func(context.Context, Payload) error { return nil })

	first, err := NewNode(cfg, WithLinks(mesh))
	require.NoError(t, err)
	id := first.NodeID()
	require.NoError(t, first.Run(canceled()))

	second, err := NewNode(cfg, WithLinks(mesh))
	require.NoError(t, err)
	defer second.Close()
	assert.Equal(t, id, second.NodeID())
	assert.EqualValues(t, 2, second.ctl.Persistent().BootCount)
}

func TestWrapLinkAppliesSatelliteQuota(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Links.Satellite.DailyQuota = 1
	sat := wrapLink(cfg, NewCallbackLink(LinkSpec{Kind: LinkSatellite, MaxPayload: 340}, func(context.Context, Payload) error { return nil }))

	ctx := context.Background()
	require.True(t, sat.Available(ctx))
	require.NoError(t, sat.Send(ctx, Payload{ID: 1}))
	assert.False(t, sat.Available(ctx))
}

func TestWrapLinkAppliesTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Links.Mesh.Timeout = 20 * time.Millisecond
	slow := wrapLink(cfg, NewCallbackLink(LinkSpec{Kind: LinkMesh, MaxPayload: 1024}, func(ctx context.Context, _ Payload) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	err := slow.Send(context.Background(), Payload{ID: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func canceled() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

var _ ports.LinkAdapter = NewCallbackLink(LinkSpec{}, nil)
