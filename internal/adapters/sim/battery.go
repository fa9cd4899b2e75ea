package sim

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/ports"
)

// Battery models the supply rails behind the ADC. It is safe for concurrent
// use so a CLI or test can move the voltage while the node runs.
type Battery struct {
	volts  atomic.Uint64
	solar  atomic.Uint64
	drain  float64
	charge float64
	chgMin float64
}

func NewBattery(cfg Config) *Battery {
	b := &Battery{drain: cfg.DrainPerRead, charge: cfg.ChargePerRead, chgMin: cfg.ChargeVolts}
	b.Set(cfg.BatteryVolts)
	b.SetSolar(cfg.SolarVolts)
	return b
}

func (b *Battery) Set(v float64)      { b.volts.Store(math.Float64bits(v)) }
func (b *Battery) SetSolar(v float64) { b.solar.Store(math.Float64bits(v)) }
func (b *Battery) Volts() float64     { return math.Float64frombits(b.volts.Load()) }

func (b *Battery) ReadBattery(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	v := b.Volts() - b.drain
	if math.Float64frombits(b.solar.Load()) >= b.chgMin {
		v += b.charge
	}
	v = math.Max(0, math.Min(v, 4.25))
	b.Set(v)
	return v, nil
}

func (b *Battery) ReadSolar(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return math.Float64frombits(b.solar.Load()), nil
}

var _ ports.VoltageSensor = (*Battery)(nil)
