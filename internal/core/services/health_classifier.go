package services

import (
	"math"

	"vigil/internal/core/domain"
)

// HealthClassifier decides whether a decoded frame carries a live signal.
// It is a pure function of the frame content: mean luminance below the black
// threshold means signal loss, a near-zero standard deviation means a frozen
// image or a flat noise floor.
type HealthClassifier struct {
	blackMean    float64
	frozenStdDev float64
}

func NewHealthClassifier(blackMeanThreshold, frozenStdDevThreshold float64) *HealthClassifier {
	return &HealthClassifier{
		blackMean:    blackMeanThreshold,
		frozenStdDev: frozenStdDevThreshold,
	}
}

// Classify returns the health state of a single frame. A nil or empty frame
// is a read failure.
func (c *HealthClassifier) Classify(frame *domain.Frame) domain.HealthState {
	if frame == nil || len(frame.Pixels) == 0 {
		return domain.ReadFailure
	}

	mean, stddev := luminanceStats(frame.Pixels)

	if mean < c.blackMean {
		return domain.BlackFrame
	}
	if stddev < c.frozenStdDev {
		return domain.FrozenOrNoise
	}
	return domain.Healthy
}

func luminanceStats(pixels []byte) (mean, stddev float64) {
	n := float64(len(pixels))

	var sum float64
	for _, p := range pixels {
		sum += float64(p)
	}
	mean = sum / n

	var variance float64
	for _, p := range pixels {
		d := float64(p) - mean
		variance += d * d
	}
	variance /= n

	return mean, math.Sqrt(variance)
}
