package domain

// LinkKind names a radio path. The zero value means "no link".
type LinkKind uint8

const (
	LinkNone LinkKind = iota
	LinkMesh
	LinkCellular
	LinkSatellite
)

func (k LinkKind) String() string {
	switch k {
	case LinkMesh:
		return "MESH"
	case LinkCellular:
		return "CELLULAR"
	case LinkSatellite:
		return "SATELLITE"
	default:
		return "NONE"
	}
}

// LatencyClass is a coarse ordering of delivery latency, lower is faster.
type LatencyClass int

const (
	LatencySeconds LatencyClass = 1
	LatencyTens    LatencyClass = 2
	LatencyMinutes LatencyClass = 3
)

// MaxLatencyClass bounds the priority bonus computation.
const MaxLatencyClass = LatencyMinutes

// LinkDescriptor is a point-in-time view of one adapter, rebuilt on every
// selection cycle and never persisted.
type LinkDescriptor struct {
	Kind           LinkKind
	Available      bool
	PowerCost      float64
	LatencyClass   LatencyClass
	MaxPayloadSize int
}
