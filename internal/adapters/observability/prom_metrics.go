package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/ports"
)

// PromObs logs through zap and records the node's metrics in Prometheus.
// Names that are not registered here are ignored.
type PromObs struct {
	log      *zap.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the node metrics on reg. A nil logger discards logs;
// a nil registerer uses the default one.
func NewPromObs(log *zap.Logger, reg prometheus.Registerer) *PromObs {
	if log == nil {
		log = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}

	p := &PromObs{
		log: log,
		counters: map[string]prometheus.Counter{
			"aegis_captures_total":           counter("aegis_captures_total", "Frames captured and wrapped into payloads."),
			"aegis_capture_failures_total":   counter("aegis_capture_failures_total", "Capture attempts that produced no frame."),
			"aegis_payloads_delivered_total": counter("aegis_payloads_delivered_total", "Payloads acknowledged by a link."),
			"aegis_payloads_failed_total":    counter("aegis_payloads_failed_total", "Send attempts that failed or timed out."),
			"aegis_payloads_abandoned_total": counter("aegis_payloads_abandoned_total", "Payloads dropped after exhausting their attempts or evicted."),
			"aegis_payloads_expired_total":   counter("aegis_payloads_expired_total", "Payloads dropped past their deadline or retry window."),
			"aegis_queue_dropped_total":      counter("aegis_queue_dropped_total", "Payloads lost to the queue-full policy."),
			"aegis_sleeps_total":             counter("aegis_sleeps_total", "Sleep entries."),
			"aegis_emergencies_total":        counter("aegis_emergencies_total", "Mid-cycle transitions into EMERGENCY."),
			"aegis_records_exported_total":   counter("aegis_records_exported_total", "Transmission records written to the export database."),
		},
		gauges: map[string]prometheus.Gauge{
			"aegis_queue_length":       gauge("aegis_queue_length", "Payloads waiting for delivery."),
			"aegis_battery_volts":      gauge("aegis_battery_volts", "Smoothed battery voltage."),
			"aegis_solar_volts":        gauge("aegis_solar_volts", "Smoothed solar panel voltage."),
			"aegis_power_level":        gauge("aegis_power_level", "Power level: 0 NORMAL, 1 LOW, 2 CRITICAL."),
			"aegis_controller_state":   gauge("aegis_controller_state", "Controller state ordinal."),
			"aegis_journal_size_bytes": gauge("aegis_journal_size_bytes", "Size of the payload journal on disk."),
			"aegis_journal_live":       gauge("aegis_journal_live", "Unsettled payloads in the journal."),
			"aegis_export_backlog":     gauge("aegis_export_backlog", "Transmission records waiting for export."),
		},
		histos: map[string]prometheus.Observer{
			"aegis_send_latency_seconds": prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "aegis_send_latency_seconds",
				Help:    "Time spent in a single link send.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
			}),
		},
	}

	for _, c := range p.counters {
		reg.MustRegister(c)
	}
	for _, g := range p.gauges {
		reg.MustRegister(g)
	}
	for _, h := range p.histos {
		reg.MustRegister(h.(prometheus.Collector))
	}
	return p
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log.Info(msg, zapFields(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

// LogCritical marks the entry so log shippers can page on it without the
// process exiting.
func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(zapFields(fields), zap.Error(err), zap.Bool("critical", true))...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func zapFields(fields []ports.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+2)
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
