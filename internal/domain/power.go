package domain

import "time"

type PowerLevel uint8

const (
	PowerNormal PowerLevel = iota
	PowerLow
	PowerCritical
)

func (l PowerLevel) String() string {
	switch l {
	case PowerLow:
		return "LOW"
	case PowerCritical:
		return "CRITICAL"
	default:
		return "NORMAL"
	}
}

// PowerState is the smoothed supply reading and its classification.
type PowerState struct {
	BatteryVoltage float64    `json:"battery_voltage"`
	SolarVoltage   float64    `json:"solar_voltage"`
	Level          PowerLevel `json:"-"`
	Charging       bool       `json:"charging"`
	SampledAt      time.Time  `json:"sampled_at"`
}

// OpKind is the class of an energy-consuming operation.
type OpKind uint8

const (
	OpCapture OpKind = iota + 1
	OpTransmit
	// OpEmergencyDrain is a transmit attempted while the supply is critical.
	OpEmergencyDrain
)

// Operation describes something the power budget must approve.
type Operation struct {
	Kind OpKind
	Link LinkKind
}

func CaptureOp() Operation { return Operation{Kind: OpCapture} }

func TransmitOp(k LinkKind) Operation { return Operation{Kind: OpTransmit, Link: k} }

func EmergencyDrainOp(k LinkKind) Operation { return Operation{Kind: OpEmergencyDrain, Link: k} }
