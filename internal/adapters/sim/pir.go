package sim

import (
	"context"
	"math/rand/v2"
	"time"
)

// PIR fires at random intervals averaging every, scaled like the RTC.
type PIR struct {
	every time.Duration
	scale float64
	rng   *rand.Rand
}

func NewPIR(every time.Duration, timeScale float64, seed uint64) *PIR {
	if timeScale <= 0 {
		timeScale = 1
	}
	return &PIR{every: every, scale: timeScale, rng: rand.New(rand.NewPCG(seed, 0x5049520a))}
}

// Run calls fire on every detection until ctx ends.
func (p *PIR) Run(ctx context.Context, fire func()) error {
	for {
		wait := time.Duration(p.rng.ExpFloat64() * float64(p.every) / p.scale)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
			fire()
		}
	}
}
