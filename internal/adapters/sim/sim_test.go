package sim

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/domain"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/ports"
)

func TestCameraProducesJPEG(t *testing.T) {
	cam := NewCamera(64, 48, 0, 1)
	f, ok, err := cam.Capture(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, len(f.Bytes), f.Size)

	img, err := jpeg.Decode(bytes.NewReader(f.Bytes))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())

	broken := NewCamera(64, 48, 1, 1)
	_, ok, err = broken.Capture(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBatteryDrainsAndCharges(t *testing.T) {
	b := NewBattery(Config{BatteryVolts: 3.8, DrainPerRead: 0.1, ChargePerRead: 0.3, ChargeVolts: 5})
	v, err := b.ReadBattery(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 3.7, v, 1e-9)

	b.SetSolar(5.5)
	v, _ = b.ReadBattery(context.Background())
	assert.InDelta(t, 3.9, v, 1e-9)
	s, _ := b.ReadSolar(context.Background())
	assert.Equal(t, 5.5, s)
}

func TestLinkReliability(t *testing.T) {
	ctx := context.Background()
	good := NewLink(domain.LinkMesh, 1, domain.LatencySeconds, 1024, LinkBehaviour{Availability: 1}, 1, 7)
	assert.True(t, good.Available(ctx))
	require.NoError(t, good.Send(ctx, domain.Payload{ID: 3}))
	assert.Equal(t, []domain.PayloadID{3}, good.Delivered())

	bad := NewLink(domain.LinkCellular, 5, domain.LatencyTens, 1024, LinkBehaviour{Availability: 0, FailRate: 1}, 1, 7)
	assert.False(t, bad.Available(ctx))
	assert.True(t, errors.Is(bad.Send(ctx, domain.Payload{ID: 4}), ErrRadioNack))

	slow := NewLink(domain.LinkSatellite, 12, domain.LatencyMinutes, 340, LinkBehaviour{Availability: 1, Delay: time.Hour}, 1, 7)
	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, slow.Send(cctx, domain.Payload{ID: 5}), context.DeadlineExceeded)
}

func TestRTCWakeSources(t *testing.T) {
	rtc := NewRTC(3600)
	ctx := context.Background()

	_, err := rtc.Sleep(ctx)
	assert.ErrorIs(t, err, ErrNotArmed)

	require.NoError(t, rtc.ArmWake(time.Second))
	reason, err := rtc.Sleep(ctx)
	require.NoError(t, err)
	assert.Equal(t, ports.WakeTimer, reason)

	require.NoError(t, rtc.ArmWake(time.Hour))
	require.NoError(t, rtc.ArmEdgeWake(13, true))
	rtc.Edge()
	reason, err = rtc.Sleep(ctx)
	require.NoError(t, err)
	assert.Equal(t, ports.WakeMotion, reason)
	assert.Equal(t, ports.WakeMotion, rtc.LastWake())
}

func TestPIRFiresUntilCancelled(t *testing.T) {
	pir := NewPIR(time.Second, 1000, 3)
	ctx, cancel := context.WithCancel(context.Background())
	fired := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- pir.Run(ctx, func() {
			select {
			case fired <- struct{}{}:
			default:
			}
		})
	}()
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("pir never fired")
	}
	cancel()
	require.NoError(t, <-done)
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var c Config
	c.ApplyDefaults()
	require.NoError(t, c.Validate())
	assert.Equal(t, 1.0, c.Mesh.Availability)

	c.Cellular.FailRate = 1.5
	assert.Error(t, c.Validate())
}

func TestRTCDropsEdgeRaisedBeforeArming(t *testing.T) {
	rtc := NewRTC(1e6)
	rtc.Edge()
	require.NoError(t, rtc.ArmWake(time.Second))
	require.NoError(t, rtc.ArmEdgeWake(13, true))

	reason, err := rtc.Sleep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ports.WakeTimer, reason)
}
