package aegiscam

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/adapters/journal"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/adapters/observability"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/adapters/recordsink"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/adapters/sim"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/adapters/spool"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/adapters/statefile"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/adapters/statushttp"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/app/controller"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/app/diagnostics"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/app/links"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/app/power"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/app/remote"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/app/selector"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/app/transmit"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/domain"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/ports"
)

// Option customizes the dependencies used by Node.
type Option func(*overrides)

type overrides struct {
	camera   ports.Camera
	sensor   ports.VoltageSensor
	links    []ports.LinkAdapter
	wake     ports.WakeScheduler
	storage  ports.Storage
	obs      ports.Observability
	logger   *zap.Logger
	registry *prometheus.Registry
}

// WithCamera injects the camera driver. Without it a simulated camera is used.
func WithCamera(c Camera) Option {
	return func(o *overrides) {
		o.camera = c
	}
}

// WithVoltageSensor injects the ADC reader for battery and solar voltage.
func WithVoltageSensor(s VoltageSensor) Option {
	return func(o *overrides) {
		o.sensor = s
	}
}

// WithLinks replaces the simulated radios. Each link is still wrapped with
// the configured timeout for its kind, and satellite links with the daily
// quota.
func WithLinks(ls ...LinkAdapter) Option {
	return func(o *overrides) {
		o.links = append(o.links, ls...)
	}
}

// WithWakeScheduler injects the RTC/PMU. When set, the simulated PIR is not
// started; the caller signals motion through Node.Motion.
func WithWakeScheduler(w WakeScheduler) Option {
	return func(o *overrides) {
		o.wake = w
	}
}

// WithStorage overrides the spool directory configured under spool.dir.
func WithStorage(s Storage) Option {
	return func(o *overrides) {
		o.storage = s
	}
}

// WithObservability plugs in a custom logging and metrics backend.
func WithObservability(obs Observability) Option {
	return func(o *overrides) {
		o.obs = obs
	}
}

// WithLogger sets the zap logger behind the default observability backend.
func WithLogger(l *zap.Logger) Option {
	return func(o *overrides) {
		o.logger = l
	}
}

// WithRegistry sets the Prometheus registry metrics are recorded in and
// served from.
func WithRegistry(r *prometheus.Registry) Option {
	return func(o *overrides) {
		o.registry = r
	}
}

// Node wires power monitor, selector, queue and controller together with the
// status server, override watcher and record exporter, and runs them as one
// unit.
type Node struct {
	cfg      *Config
	obs      ports.Observability
	registry *prometheus.Registry
	ctl      *controller.Controller
	diag     *diagnostics.Diagnostics
	tasks    *remote.Tasks
	journal  *journal.FileJournal
	db       *sql.DB
	exporter *recordsink.PGSink
	watcher  *remote.Watcher
	status   *statushttp.Server
	pir      *sim.PIR
	rtc      *sim.RTC

	closeOnce sync.Once
	closeErr  error
}

// NewNode bootstraps the default adapters (simulated camera, battery, radios
// and RTC, file journal, YAML state file, Prometheus observability) and
// boots the controller. Options override any hardware-facing dependency.
func NewNode(cfg *Config, opts ...Option) (*Node, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var ov overrides
	for _, opt := range opts {
		if opt != nil {
			opt(&ov)
		}
	}

	n := &Node{cfg: cfg, registry: ov.registry}
	if n.registry == nil {
		n.registry = prometheus.NewRegistry()
	}
	n.obs = ov.obs
	if n.obs == nil {
		logger := ov.logger
		if logger == nil {
			logger = zap.NewNop()
		}
		n.obs = observability.NewPromObs(logger, n.registry)
	}

	seed := uint64(time.Now().UnixNano())

	sensor := ov.sensor
	if sensor == nil {
		sensor = sim.NewBattery(cfg.Sim)
	}
	camera := ov.camera
	if camera == nil {
		camera = sim.NewCamera(cfg.Sim.FrameWidth, cfg.Sim.FrameHeight, cfg.Sim.CameraFailRate, seed)
	}
	wake := ov.wake
	if wake == nil {
		n.rtc = sim.NewRTC(cfg.Sim.TimeScale)
		n.pir = sim.NewPIR(cfg.Sim.MotionEvery, cfg.Sim.TimeScale, seed+1)
		wake = n.rtc
	}

	raw := ov.links
	if len(raw) == 0 {
		raw = simLinks(cfg, seed+2)
	}
	adapters := make([]ports.LinkAdapter, 0, len(raw))
	for _, l := range raw {
		adapters = append(adapters, wrapLink(cfg, l))
	}
	if len(adapters) == 0 {
		return nil, fmt.Errorf("no link adapters configured")
	}

	mon, err := power.NewMonitor(cfg.Power, sensor, n.obs)
	if err != nil {
		return nil, err
	}

	n.diag = diagnostics.New(cfg.Diagnostics.Capacity)

	var jr ports.Journal
	if !cfg.Journal.Disabled {
		n.journal, err = journal.NewFileJournal(cfg.Journal.Dir)
		if err != nil {
			return nil, err
		}
		jr = n.journal
	}
	queue := transmit.NewQueue(cfg.Policy, jr, n.diag, n.obs)
	sel := selector.New(cfg.Selector, adapters, mon, n.diag)

	storage := ov.storage
	if storage == nil && cfg.Spool.Dir != "" {
		if storage, err = spool.New(cfg.Spool.Dir, cfg.Spool.MaxFrames); err != nil {
			return nil, errors.Join(err, n.Close())
		}
	}

	n.tasks = remote.NewTasks(cfg.Remote.Backlog)
	if cfg.Remote.OverridesFile != "" {
		n.watcher = remote.NewWatcher(cfg.Remote.OverridesFile, n.tasks, n.obs)
	}

	n.ctl, err = controller.New(cfg.Controller, controller.Deps{
		Camera:  camera,
		Power:   mon,
		Queue:   queue,
		Chooser: sel,
		Wake:    wake,
		Diag:    n.diag,
		Storage: storage,
		State:   statefile.New(cfg.State.Path),
		Tasks:   n.tasks,
		Obs:     n.obs,
	})
	if err != nil {
		return nil, errors.Join(err, n.Close())
	}
	n.ctl.Boot()

	if cfg.Export.ConnString != "" {
		n.db, err = sql.Open("postgres", cfg.Export.ConnString)
		if err != nil {
			return nil, errors.Join(err, n.Close())
		}
		n.exporter = recordsink.NewPGSink(n.db, cfg.Export.Table, n.ctl.Persistent().NodeID, cfg.Export.MaxPending, n.obs)
		n.diag.OnRecord(n.exporter.Observe)
		n.ctl.BeforeSleep(n.flushRecords)
	}
	if n.journal != nil {
		n.ctl.BeforeSleep(n.recordJournalGauges)
	}

	n.status = statushttp.NewServer(cfg.Status.Addr, statushttp.NewRouter(n.diag, n.registry))
	return n, nil
}

// Run starts the controller loop, status server, override watcher and, in
// simulation, the PIR. It blocks until ctx is cancelled or a component
// fails, then releases the journal and database handle.
func (n *Node) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return n.ctl.Run(ctx) })
	g.Go(func() error {
		if err := n.status.Run(ctx); err != nil {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	})
	if n.watcher != nil {
		g.Go(func() error { return n.watcher.Run(ctx) })
	}
	if n.pir != nil {
		g.Go(func() error { return n.pir.Run(ctx, n.motion) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if n.exporter != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		n.flushRecords(flushCtx)
		cancel()
	}
	return errors.Join(err, n.Close())
}

// Close releases the journal and database handle. Run calls it on exit.
func (n *Node) Close() error {
	n.closeOnce.Do(func() {
		var errs []error
		if n.journal != nil {
			if err := n.journal.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if n.db != nil {
			if err := n.db.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		n.closeErr = errors.Join(errs...)
	})
	return n.closeErr
}

// Motion is the PIR interrupt entry point. It is safe to call from any
// goroutine.
func (n *Node) Motion() { n.motion() }

// Capture requests one MANUAL capture at the next wake.
func (n *Node) Capture() error {
	return n.tasks.Push(remote.Task{Kind: remote.KindManualCapture})
}

// NodeID is the persistent identity assigned on first boot.
func (n *Node) NodeID() string { return n.ctl.Persistent().NodeID }

// Status returns the current diagnostics snapshot.
func (n *Node) Status() Status { return n.diag.Status() }

// Records returns the transmission trail, oldest first.
func (n *Node) Records() []TransmissionRecord { return n.diag.Records() }

// Registry is where the node's metrics live.
func (n *Node) Registry() *prometheus.Registry { return n.registry }

func (n *Node) motion() {
	n.ctl.Motion().Signal()
	if n.rtc != nil {
		n.rtc.Edge()
	}
}

func (n *Node) flushRecords(ctx context.Context) {
	if err := n.exporter.Flush(ctx); err != nil {
		n.obs.LogError("record_export_failed", err, ports.F("pending", n.exporter.Pending()))
	}
}

func (n *Node) recordJournalGauges(context.Context) {
	st := n.journal.Stats()
	n.obs.SetGauge("aegis_journal_size_bytes", float64(st.SizeBytes))
	n.obs.SetGauge("aegis_journal_live", float64(st.Live))
}

func simLinks(cfg *Config, seed uint64) []ports.LinkAdapter {
	var out []ports.LinkAdapter
	add := func(kind domain.LinkKind, lc LinkConfig, latency domain.LatencyClass, behave sim.LinkBehaviour, seed uint64) {
		if lc.On() {
			out = append(out, sim.NewLink(kind, lc.Cost, latency, lc.MaxPayload, behave, cfg.Sim.TimeScale, seed))
		}
	}
	add(domain.LinkMesh, cfg.Links.Mesh, domain.LatencySeconds, cfg.Sim.Mesh, seed)
	add(domain.LinkCellular, cfg.Links.Cellular, domain.LatencyTens, cfg.Sim.Cellular, seed+1)
	add(domain.LinkSatellite, cfg.Links.Satellite, domain.LatencyMinutes, cfg.Sim.Satellite, seed+2)
	return out
}

func wrapLink(cfg *Config, l ports.LinkAdapter) ports.LinkAdapter {
	var lc LinkConfig
	switch l.Kind() {
	case domain.LinkMesh:
		lc = cfg.Links.Mesh
	case domain.LinkCellular:
		lc = cfg.Links.Cellular
	case domain.LinkSatellite:
		lc = cfg.Links.Satellite
	}
	if lc.Timeout > 0 {
		l = links.WithTimeout(l, lc.Timeout)
	}
	if lc.DailyQuota > 0 {
		l = links.WithDailyQuota(l, lc.DailyQuota, time.Now)
	}
	return l
}
