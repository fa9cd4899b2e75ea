// Package sim stands in for the board when the node runs on a host: a
// camera that renders test frames, a battery model behind the ADC, radios
// with scripted reliability and an RTC that can run faster than real time.
package sim

import (
	"fmt"
	"time"
)

type Config struct {
	// TimeScale divides every sleep; 60 turns a five minute timer into five
	// seconds.
	TimeScale float64 `yaml:"time_scale"`

	BatteryVolts float64 `yaml:"battery_volts"`
	SolarVolts   float64 `yaml:"solar_volts"`
	// DrainPerRead is subtracted from the battery on every ADC read, and
	// ChargePerRead added while the panel is above ChargeVolts.
	DrainPerRead  float64 `yaml:"drain_per_read"`
	ChargePerRead float64 `yaml:"charge_per_read"`
	ChargeVolts   float64 `yaml:"charge_volts"`

	MotionEvery    time.Duration `yaml:"motion_every"`
	CameraFailRate float64       `yaml:"camera_fail_rate"`
	FrameWidth     int           `yaml:"frame_width"`
	FrameHeight    int           `yaml:"frame_height"`

	Mesh      LinkBehaviour `yaml:"mesh"`
	Cellular  LinkBehaviour `yaml:"cellular"`
	Satellite LinkBehaviour `yaml:"satellite"`
}

// LinkBehaviour scripts one simulated radio.
type LinkBehaviour struct {
	Availability float64       `yaml:"availability"`
	FailRate     float64       `yaml:"fail_rate"`
	Delay        time.Duration `yaml:"delay"`
}

func (c *Config) ApplyDefaults() {
	if c.TimeScale <= 0 {
		c.TimeScale = 1
	}
	if c.BatteryVolts == 0 {
		c.BatteryVolts = 3.9
	}
	if c.ChargeVolts == 0 {
		c.ChargeVolts = 5.0
	}
	if c.MotionEvery == 0 {
		c.MotionEvery = 2 * time.Minute
	}
	if c.FrameWidth == 0 {
		c.FrameWidth = 320
	}
	if c.FrameHeight == 0 {
		c.FrameHeight = 240
	}
	for _, lb := range []*LinkBehaviour{&c.Mesh, &c.Cellular, &c.Satellite} {
		if lb.Availability == 0 {
			lb.Availability = 1
		}
	}
	if c.Mesh.Delay == 0 {
		c.Mesh.Delay = 200 * time.Millisecond
	}
	if c.Cellular.Delay == 0 {
		c.Cellular.Delay = 2 * time.Second
	}
	if c.Satellite.Delay == 0 {
		c.Satellite.Delay = 20 * time.Second
	}
}

func (c *Config) Validate() error {
	for name, p := range map[string]float64{
		"camera_fail_rate":       c.CameraFailRate,
		"mesh.availability":      c.Mesh.Availability,
		"mesh.fail_rate":         c.Mesh.FailRate,
		"cellular.availability":  c.Cellular.Availability,
		"cellular.fail_rate":     c.Cellular.FailRate,
		"satellite.availability": c.Satellite.Availability,
		"satellite.fail_rate":    c.Satellite.FailRate,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("sim.%s must be within [0,1], got %v", name, p)
		}
	}
	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return fmt.Errorf("sim frame size must be positive")
	}
	return nil
}
