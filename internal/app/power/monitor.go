// Package power samples the supply rails, classifies them into NORMAL, LOW and
// CRITICAL and answers whether an operation fits the remaining energy budget.
package power

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/domain"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/ports"
)

type Monitor struct {
	cfg    Config
	sensor ports.VoltageSensor
	obs    ports.Observability
	now    func() time.Time

	sampling atomic.Bool

	mu       sync.RWMutex
	battery  window
	solar    window
	state    domain.PowerState
	sampled  bool
	failures int
	fault    error
}

func NewMonitor(cfg Config, sensor ports.VoltageSensor, obs ports.Observability) (*Monitor, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("power config: %w", err)
	}
	if sensor == nil {
		return nil, fmt.Errorf("voltage sensor is required")
	}
	if obs == nil {
		obs = ports.NopObservability{}
	}
	return &Monitor{
		cfg:     cfg,
		sensor:  sensor,
		obs:     obs,
		now:     time.Now,
		battery: newWindow(cfg.Window),
		solar:   newWindow(cfg.Window),
	}, nil
}

// Sample reads both rails, folds them into the moving averages and
// reclassifies. A failed read leaves the previous state in place; once
// MaxADCFailures reads fail in a row the monitor latches ErrADCFault and
// reports CRITICAL from then on.
func (m *Monitor) Sample(ctx context.Context) (domain.PowerState, error) {
	m.sampling.Store(true)
	defer m.sampling.Store(false)

	bat, err := m.sensor.ReadBattery(ctx)
	var sol float64
	if err == nil {
		sol, err = m.sensor.ReadSolar(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.failures++
		if m.failures >= m.cfg.MaxADCFailures && m.fault == nil {
			m.fault = fmt.Errorf("%w: %d consecutive read failures: %v", domain.ErrADCFault, m.failures, err)
			m.obs.LogCritical("power_adc_fault", m.fault)
		}
		if m.fault != nil {
			m.state.Level = domain.PowerCritical
			return m.state, m.fault
		}
		m.obs.LogError("power_sample_failed", err, ports.F("consecutive", m.failures))
		return m.state, fmt.Errorf("sample power: %w", err)
	}
	m.failures = 0

	avgBat := m.battery.push(bat)
	avgSol := m.solar.push(sol)

	prev := m.state.Level
	level := classify(m.cfg, prev, avgBat, !m.sampled)
	if m.fault != nil {
		level = domain.PowerCritical
	}
	m.state = domain.PowerState{
		BatteryVoltage: avgBat,
		SolarVoltage:   avgSol,
		Level:          level,
		Charging:       avgSol >= m.cfg.ChargeVoltage,
		SampledAt:      m.now(),
	}
	m.sampled = true

	if level != prev {
		m.obs.LogInfo("power_level_changed",
			ports.F("from", prev.String()),
			ports.F("to", level.String()),
			ports.F("battery_v", avgBat))
	}
	m.obs.SetGauge("aegis_battery_volts", avgBat)
	m.obs.SetGauge("aegis_solar_volts", avgSol)
	m.obs.SetGauge("aegis_power_level", float64(level))

	return m.state, m.fault
}

// State returns the last classified state without touching the ADC.
func (m *Monitor) State() domain.PowerState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Sampling reports whether a sample is in progress.
func (m *Monitor) Sampling() bool { return m.sampling.Load() }

// Fault returns the latched hardware fault, if any.
func (m *Monitor) Fault() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fault
}

// BudgetFor reports whether op is affordable in the current state.
func (m *Monitor) BudgetFor(op domain.Operation) bool {
	return m.Affords(m.State(), op)
}

// Affords reports whether op is affordable in st. CRITICAL only admits
// emergency-drain sends below CriticalDrainMaxCost.
func (m *Monitor) Affords(st domain.PowerState, op domain.Operation) bool {
	cost := m.EnergyFor(op)
	if st.Level == domain.PowerCritical {
		return op.Kind == domain.OpEmergencyDrain && cost <= m.cfg.CriticalDrainMaxCost
	}
	return cost <= m.available(st)
}

// EnergyFor returns the static cost of op in mWh.
func (m *Monitor) EnergyFor(op domain.Operation) float64 {
	switch op.Kind {
	case domain.OpCapture:
		return m.cfg.Costs.Capture
	case domain.OpTransmit, domain.OpEmergencyDrain:
		switch op.Link {
		case domain.LinkMesh:
			return m.cfg.Costs.Mesh
		case domain.LinkCellular:
			return m.cfg.Costs.Cellular
		case domain.LinkSatellite:
			return m.cfg.Costs.Satellite
		}
	}
	return 0
}

func (m *Monitor) available(st domain.PowerState) float64 {
	soc := (st.BatteryVoltage - m.cfg.MinVoltage) / (m.cfg.MaxVoltage - m.cfg.MinVoltage)
	switch {
	case soc < 0:
		soc = 0
	case soc > 1:
		soc = 1
	}
	avail := soc*m.cfg.CapacityMWh - m.cfg.ReserveMWh
	if st.Level == domain.PowerLow {
		avail *= m.cfg.LowBudgetRatio
	}
	return avail
}

// classify applies the hysteresis bands. The first sample has no history and
// is classified against the falling thresholds only.
func classify(cfg Config, prev domain.PowerLevel, v float64, first bool) domain.PowerLevel {
	if first {
		switch {
		case v < cfg.CriticalFalling:
			return domain.PowerCritical
		case v < cfg.LowFalling:
			return domain.PowerLow
		default:
			return domain.PowerNormal
		}
	}
	switch prev {
	case domain.PowerCritical:
		switch {
		case v >= cfg.LowRising:
			return domain.PowerNormal
		case v >= cfg.CriticalRising:
			return domain.PowerLow
		}
		return domain.PowerCritical
	case domain.PowerLow:
		switch {
		case v < cfg.CriticalFalling:
			return domain.PowerCritical
		case v >= cfg.LowRising:
			return domain.PowerNormal
		}
		return domain.PowerLow
	default:
		switch {
		case v < cfg.CriticalFalling:
			return domain.PowerCritical
		case v < cfg.LowFalling:
			return domain.PowerLow
		}
		return domain.PowerNormal
	}
}

// window is a fixed-size moving average.
type window struct {
	buf  []float64
	next int
	n    int
	sum  float64
}

func newWindow(size int) window { return window{buf: make([]float64, size)} }

func (w *window) push(v float64) float64 {
	if w.n == len(w.buf) {
		w.sum -= w.buf[w.next]
	} else {
		w.n++
	}
	w.buf[w.next] = v
	w.sum += v
	w.next = (w.next + 1) % len(w.buf)
	return w.sum / float64(w.n)
}
