package aegiscam

import (
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/adapters/sim"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/app/config"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/app/controller"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/app/power"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/ports"
)

// Config re-exports the root configuration struct so embedding programs can
// build or tweak it in code.
type Config = config.Config

type (
	// Policy controls queue capacity and the retry schedule.
	Policy = ports.Policy
	// ControllerConfig holds wake intervals, cooldown and drain budget.
	ControllerConfig = controller.Config
	// PowerConfig holds voltage thresholds and the energy model.
	PowerConfig = power.Config
	// LinkConfig tunes one radio.
	LinkConfig = config.LinkConfig
	// LogConfig selects the zap level and encoder.
	LogConfig = config.LogConfig
	// SimConfig drives the host simulation used when no hardware is injected.
	SimConfig = sim.Config
)

// LoadConfig reads, defaults and validates a YAML file.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return config.Default()
}

// Open loads the config at path and builds a Node from it.
func Open(path string, opts ...Option) (*Node, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return NewNode(cfg, opts...)
}
