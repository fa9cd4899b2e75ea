package domain

import "errors"

// Failure taxonomy. All of these are handled inside the orchestrator; only
// ErrADCFault and ErrNoWakeSource become a persistent fault.
var (
	ErrCaptureFailed       = errors.New("capture failed: camera returned no frame")
	ErrLinkUnavailable     = errors.New("no qualifying link")
	ErrTransmissionTimeout = errors.New("transmission timeout")
	ErrDeliveryAbandoned   = errors.New("delivery abandoned")
	ErrPowerCritical       = errors.New("power critical")
	ErrADCFault            = errors.New("power monitor adc fault")
	ErrNoWakeSource        = errors.New("no wake source could be armed")
)

// FailureKind maps an error onto the name reported in status snapshots.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCaptureFailed):
		return "CaptureFailure"
	case errors.Is(err, ErrLinkUnavailable):
		return "LinkUnavailable"
	case errors.Is(err, ErrTransmissionTimeout):
		return "TransmissionTimeout"
	case errors.Is(err, ErrDeliveryAbandoned):
		return "DeliveryAbandoned"
	case errors.Is(err, ErrPowerCritical):
		return "PowerCritical"
	case errors.Is(err, ErrADCFault):
		return "ADCFault"
	case errors.Is(err, ErrNoWakeSource):
		return "NoWakeSource"
	default:
		return "TransmissionFailed"
	}
}
