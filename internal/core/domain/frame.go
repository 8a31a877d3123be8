package domain

import "time"

// Frame is a single decoded video frame as an 8-bit luminance plane.
// Pixels holds Width*Height bytes in row-major order.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	Pixels    []byte
}

// HealthState classifies the content of the most recently read frame.
type HealthState int

const (
	Healthy HealthState = iota
	BlackFrame
	FrozenOrNoise
	ReadFailure
)

func (h HealthState) String() string {
	switch h {
	case Healthy:
		return "HEALTHY"
	case BlackFrame:
		return "BLACK_FRAME"
	case FrozenOrNoise:
		return "FROZEN/NOISE"
	case ReadFailure:
		return "READ_FAILURE"
	default:
		return "UNKNOWN"
	}
}
