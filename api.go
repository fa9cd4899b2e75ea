package aegiscam

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	base "github.com/thewriterben/ESP32WildlifeCAM-sub000/pkg/aegiscam"
)

// Re-exported errors for convenience.
var (
	ErrChannelLinkClosed = base.ErrChannelLinkClosed
)

// Type aliases so consumers can import the module root directly.
type (
	Config             = base.Config
	Policy             = base.Policy
	ControllerConfig   = base.ControllerConfig
	PowerConfig        = base.PowerConfig
	LinkConfig         = base.LinkConfig
	LogConfig          = base.LogConfig
	SimConfig          = base.SimConfig
	Node               = base.Node
	Option             = base.Option
	Payload            = base.Payload
	Frame              = base.Frame
	LinkKind           = base.LinkKind
	LatencyClass       = base.LatencyClass
	TransmissionRecord = base.TransmissionRecord
	Status             = base.Status
	Camera             = base.Camera
	VoltageSensor      = base.VoltageSensor
	LinkAdapter        = base.LinkAdapter
	WakeScheduler      = base.WakeScheduler
	Storage            = base.Storage
	Observability      = base.Observability
	Field              = base.Field
	LinkSpec           = base.LinkSpec
	SendFunc           = base.SendFunc
)

const (
	LinkMesh      = base.LinkMesh
	LinkCellular  = base.LinkCellular
	LinkSatellite = base.LinkSatellite

	LatencySeconds = base.LatencySeconds
	LatencyTens    = base.LatencyTens
	LatencyMinutes = base.LatencyMinutes
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

// Node runtime and options.
func Open(path string, opts ...Option) (*Node, error) {
	return base.Open(path, opts...)
}

func NewNode(cfg *Config, opts ...Option) (*Node, error) {
	return base.NewNode(cfg, opts...)
}

func WithCamera(c Camera) Option {
	return base.WithCamera(c)
}

func WithVoltageSensor(s VoltageSensor) Option {
	return base.WithVoltageSensor(s)
}

func WithLinks(ls ...LinkAdapter) Option {
	return base.WithLinks(ls...)
}

func WithWakeScheduler(w WakeScheduler) Option {
	return base.WithWakeScheduler(w)
}

func WithStorage(s Storage) Option {
	return base.WithStorage(s)
}

func WithObservability(obs Observability) Option {
	return base.WithObservability(obs)
}

func WithLogger(l *zap.Logger) Option {
	return base.WithLogger(l)
}

func WithRegistry(r *prometheus.Registry) Option {
	return base.WithRegistry(r)
}

// Link adapters.
func NewCallbackLink(spec LinkSpec, fn SendFunc) LinkAdapter {
	return base.NewCallbackLink(spec, fn)
}

func NewChannelLink(spec LinkSpec, buffer int) (LinkAdapter, <-chan Payload, func()) {
	return base.NewChannelLink(spec, buffer)
}
