package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/adapters/sim"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/app/controller"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/app/power"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/app/selector"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/ports"
)

type Config struct {
	Controller  controller.Config `yaml:"controller"`
	Power       power.Config      `yaml:"power"`
	Selector    selector.Config   `yaml:"selector"`
	Policy      ports.Policy      `yaml:"policy"`
	Links       LinksConfig       `yaml:"links"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Journal     JournalConfig     `yaml:"journal"`
	Spool       SpoolConfig       `yaml:"spool"`
	State       StateConfig       `yaml:"state"`
	Export      ExportConfig      `yaml:"export"`
	Status      StatusConfig      `yaml:"status"`
	Remote      RemoteConfig      `yaml:"remote"`
	Log         LogConfig         `yaml:"log"`
	Sim         sim.Config        `yaml:"sim"`
}

type LinksConfig struct {
	Mesh      LinkConfig `yaml:"mesh"`
	Cellular  LinkConfig `yaml:"cellular"`
	Satellite LinkConfig `yaml:"satellite"`
}

// LinkConfig tunes one radio. Timeout is the hard per-send bound and so
// defines the worst-case wake duration.
type LinkConfig struct {
	Enabled    *bool         `yaml:"enabled"`
	Cost       float64       `yaml:"cost"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxPayload int           `yaml:"max_payload"`
	DailyQuota int           `yaml:"daily_quota"`
}

func (l LinkConfig) On() bool { return l.Enabled == nil || *l.Enabled }

type DiagnosticsConfig struct {
	Capacity int `yaml:"capacity"`
}

type JournalConfig struct {
	Dir      string `yaml:"dir"`
	Disabled bool   `yaml:"disabled"`
}

// SpoolConfig enables the SD frame spool when Dir is set.
type SpoolConfig struct {
	Dir       string `yaml:"dir"`
	MaxFrames int    `yaml:"max_frames"`
}

type StateConfig struct {
	Path string `yaml:"path"`
}

// ExportConfig enables the Postgres record export when ConnString is set.
type ExportConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
	MaxPending int    `yaml:"max_pending"`
}

type StatusConfig struct {
	Addr string `yaml:"addr"`
}

// RemoteConfig enables operator overrides when OverridesFile is set.
type RemoteConfig struct {
	OverridesFile string `yaml:"overrides_file"`
	Backlog       int    `yaml:"backlog"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a fully defaulted configuration.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 64
	}
	if c.Policy.MaxAttempts == 0 {
		c.Policy.MaxAttempts = 5
	}
	if c.Policy.BaseBackoff == 0 {
		c.Policy.BaseBackoff = 30 * time.Second
	}
	if c.Policy.MaxBackoffExponent == 0 {
		c.Policy.MaxBackoffExponent = 6
	}
	if c.Policy.RetryWindow == 0 {
		c.Policy.RetryWindow = 24 * time.Hour
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = "drop_oldest_routine"
	}

	applyLinkDefaults(&c.Links.Mesh, 1, 10*time.Second, 64<<10, 0)
	applyLinkDefaults(&c.Links.Cellular, 5, 30*time.Second, 2<<20, 0)
	applyLinkDefaults(&c.Links.Satellite, 20, 5*time.Minute, 50_000, 50)

	if c.Diagnostics.Capacity == 0 {
		c.Diagnostics.Capacity = 128
	}
	if c.Journal.Dir == "" {
		c.Journal.Dir = "./data/journal"
	}
	if c.Spool.MaxFrames == 0 {
		c.Spool.MaxFrames = 200
	}
	if c.State.Path == "" {
		c.State.Path = "./data/state.yaml"
	}
	if c.Export.Table == "" {
		c.Export.Table = "transmissions"
	}
	if c.Export.MaxPending == 0 {
		c.Export.MaxPending = 512
	}
	if c.Status.Addr == "" {
		c.Status.Addr = ":9100"
	}
	if c.Remote.Backlog == 0 {
		c.Remote.Backlog = 16
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	c.Controller.ApplyDefaults()
	c.Power.ApplyDefaults()
	c.Selector.ApplyDefaults()
	c.Sim.ApplyDefaults()
}

func applyLinkDefaults(l *LinkConfig, cost float64, timeout time.Duration, maxPayload, quota int) {
	if l.Cost == 0 {
		l.Cost = cost
	}
	if l.Timeout == 0 {
		l.Timeout = timeout
	}
	if l.MaxPayload == 0 {
		l.MaxPayload = maxPayload
	}
	if l.DailyQuota == 0 {
		l.DailyQuota = quota
	}
}

func (c *Config) validate() error {
	if err := c.Controller.Validate(); err != nil {
		return fmt.Errorf("controller config: %w", err)
	}
	if err := c.Power.Validate(); err != nil {
		return fmt.Errorf("power config: %w", err)
	}
	if err := c.Sim.Validate(); err != nil {
		return fmt.Errorf("sim config: %w", err)
	}
	if c.Policy.MaxAttempts < 1 {
		return fmt.Errorf("policy.max_attempts must be at least 1")
	}
	if c.Policy.MaxQueueLen < 1 {
		return fmt.Errorf("policy.max_queue_len must be at least 1")
	}
	switch c.Policy.OnQueueFull {
	case "reject", "drop_oldest_routine":
	default:
		return fmt.Errorf("policy.on_queue_full must be reject or drop_oldest_routine, got %q", c.Policy.OnQueueFull)
	}
	for name, l := range map[string]LinkConfig{"mesh": c.Links.Mesh, "cellular": c.Links.Cellular, "satellite": c.Links.Satellite} {
		if l.Timeout <= 0 || l.MaxPayload <= 0 || l.Cost < 0 {
			return fmt.Errorf("links.%s: timeout and max_payload must be positive", name)
		}
	}
	if !c.Links.Mesh.On() && !c.Links.Cellular.On() && !c.Links.Satellite.On() {
		return fmt.Errorf("at least one link must be enabled")
	}
	if c.Status.Addr == "" {
		return fmt.Errorf("status.addr is required")
	}
	if !c.Journal.Disabled && c.Journal.Dir == "" {
		return fmt.Errorf("journal.dir is required")
	}
	if c.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}
	return nil
}
