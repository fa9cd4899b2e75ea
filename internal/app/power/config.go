package power

import (
	"errors"
	"fmt"
)

// Config holds the classification thresholds and the energy model. Each
// threshold has a falling (enter) and rising (exit) value so that readings
// hovering at a boundary do not flap.
type Config struct {
	Window int `yaml:"window"`

	LowFalling      float64 `yaml:"low_falling"`
	LowRising       float64 `yaml:"low_rising"`
	CriticalFalling float64 `yaml:"critical_falling"`
	CriticalRising  float64 `yaml:"critical_rising"`

	ChargeVoltage float64 `yaml:"charge_voltage"`

	MinVoltage     float64 `yaml:"min_voltage"`
	MaxVoltage     float64 `yaml:"max_voltage"`
	CapacityMWh    float64 `yaml:"capacity_mwh"`
	ReserveMWh     float64 `yaml:"reserve_mwh"`
	LowBudgetRatio float64 `yaml:"low_budget_fraction"`

	// CriticalDrainMaxCost caps the cost of a single emergency-drain send.
	CriticalDrainMaxCost float64 `yaml:"critical_drain_max_cost"`

	MaxADCFailures int `yaml:"max_adc_failures"`

	Costs CostTable `yaml:"costs"`
}

// CostTable is the static per-operation energy cost in mWh.
type CostTable struct {
	Capture   float64 `yaml:"capture"`
	Mesh      float64 `yaml:"mesh"`
	Cellular  float64 `yaml:"cellular"`
	Satellite float64 `yaml:"satellite"`
}

func (c *Config) ApplyDefaults() {
	if c.Window <= 0 {
		c.Window = 8
	}
	if c.LowFalling == 0 {
		c.LowFalling = 3.4
	}
	if c.LowRising == 0 {
		c.LowRising = 3.5
	}
	if c.CriticalFalling == 0 {
		c.CriticalFalling = 3.0
	}
	if c.CriticalRising == 0 {
		c.CriticalRising = 3.15
	}
	if c.ChargeVoltage == 0 {
		c.ChargeVoltage = 5.0
	}
	if c.MinVoltage == 0 {
		c.MinVoltage = 3.0
	}
	if c.MaxVoltage == 0 {
		c.MaxVoltage = 4.2
	}
	if c.CapacityMWh == 0 {
		c.CapacityMWh = 11_100
	}
	if c.LowBudgetRatio == 0 {
		c.LowBudgetRatio = 0.5
	}
	if c.CriticalDrainMaxCost == 0 {
		c.CriticalDrainMaxCost = 2
	}
	if c.MaxADCFailures <= 0 {
		c.MaxADCFailures = 5
	}
	if c.Costs == (CostTable{}) {
		c.Costs = CostTable{Capture: 0.5, Mesh: 0.2, Cellular: 3, Satellite: 12}
	}
}

func (c *Config) Validate() error {
	if c.CriticalFalling >= c.LowFalling {
		return errors.New("critical_falling must be below low_falling")
	}
	if c.LowRising < c.LowFalling {
		return errors.New("low_rising must not be below low_falling")
	}
	if c.CriticalRising < c.CriticalFalling {
		return errors.New("critical_rising must not be below critical_falling")
	}
	if c.MaxVoltage <= c.MinVoltage {
		return fmt.Errorf("max_voltage %.2f must exceed min_voltage %.2f", c.MaxVoltage, c.MinVoltage)
	}
	if c.LowBudgetRatio < 0 || c.LowBudgetRatio > 1 {
		return errors.New("low_budget_fraction must be within [0,1]")
	}
	return nil
}
