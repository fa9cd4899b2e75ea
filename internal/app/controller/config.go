package controller

import (
	"fmt"
	"time"
)

// Config holds the controller timings. Every value is board dependent.
type Config struct {
	MotionCooldown        time.Duration `yaml:"motion_cooldown"`
	MotionPin             int           `yaml:"motion_pin"`
	MotionRisingEdge      *bool         `yaml:"motion_rising_edge"`
	CaptureOnTimer        bool          `yaml:"capture_on_timer"`
	WakeInterval          time.Duration `yaml:"wake_interval"`
	RetryInterval         time.Duration `yaml:"retry_interval"`
	EmergencyWakeInterval time.Duration `yaml:"emergency_wake_interval"`
	DrainBudget           time.Duration `yaml:"drain_budget"`
	EmergencyRoutineTTL   time.Duration `yaml:"emergency_routine_ttl"`
	AlertDeadline         time.Duration `yaml:"alert_deadline"`
	RoutineDeadline       time.Duration `yaml:"routine_deadline"`
	NoWakeFallback        time.Duration `yaml:"no_wake_fallback"`
}

func (c *Config) ApplyDefaults() {
	if c.MotionCooldown == 0 {
		c.MotionCooldown = 5 * time.Second
	}
	if c.MotionPin == 0 {
		c.MotionPin = 13
	}
	if c.MotionRisingEdge == nil {
		rising := true
		c.MotionRisingEdge = &rising
	}
	if c.WakeInterval == 0 {
		c.WakeInterval = 300 * time.Second
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = 60 * time.Second
	}
	if c.EmergencyWakeInterval == 0 {
		c.EmergencyWakeInterval = time.Hour
	}
	if c.DrainBudget == 0 {
		c.DrainBudget = 90 * time.Second
	}
	if c.EmergencyRoutineTTL == 0 {
		c.EmergencyRoutineTTL = 30 * time.Minute
	}
	if c.AlertDeadline == 0 {
		c.AlertDeadline = 6 * time.Hour
	}
	if c.NoWakeFallback == 0 {
		c.NoWakeFallback = 30 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.MotionCooldown < 0 {
		return fmt.Errorf("motion_cooldown must not be negative")
	}
	if c.WakeInterval <= 0 || c.RetryInterval <= 0 || c.EmergencyWakeInterval <= 0 {
		return fmt.Errorf("wake intervals must be positive")
	}
	if c.EmergencyWakeInterval < c.WakeInterval {
		return fmt.Errorf("emergency_wake_interval (%s) must not be shorter than wake_interval (%s)", c.EmergencyWakeInterval, c.WakeInterval)
	}
	if c.DrainBudget <= 0 {
		return fmt.Errorf("drain_budget must be positive")
	}
	if c.AlertDeadline < 0 || c.RoutineDeadline < 0 {
		return fmt.Errorf("payload deadlines must not be negative")
	}
	if c.NoWakeFallback <= 0 {
		return fmt.Errorf("no_wake_fallback must be positive")
	}
	return nil
}
