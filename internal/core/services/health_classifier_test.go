package services

import (
	"testing"

	"vigil/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func uniformFrame(value byte, n int) *domain.Frame {
	pixels := make([]byte, n)
	for i := range pixels {
		pixels[i] = value
	}
	return &domain.Frame{Width: n, Height: 1, Pixels: pixels}
}

// alternatingFrame has mean (a+b)/2 and a large standard deviation.
func alternatingFrame(a, b byte, n int) *domain.Frame {
	pixels := make([]byte, n)
	for i := range pixels {
		if i%2 == 0 {
			pixels[i] = a
		} else {
			pixels[i] = b
		}
	}
	return &domain.Frame{Width: n, Height: 1, Pixels: pixels}
}

func defaultClassifier() *HealthClassifier {
	return NewHealthClassifier(10, 2)
}

func TestClassify_NoFrameIsReadFailure(t *testing.T) {
	c := defaultClassifier()

	assert.Equal(t, domain.ReadFailure, c.Classify(nil))
	assert.Equal(t, domain.ReadFailure, c.Classify(&domain.Frame{}))
}

func TestClassify_DarkFrameIsBlack(t *testing.T) {
	c := defaultClassifier()

	// mean 4.5, stddev 4.5: dark even though not uniform
	frame := alternatingFrame(0, 9, 1024)
	assert.Equal(t, domain.BlackFrame, c.Classify(frame))
}

func TestClassify_BlackCheckedBeforeFrozen(t *testing.T) {
	c := defaultClassifier()

	// uniform zeros: both thresholds undercut, black wins
	assert.Equal(t, domain.BlackFrame, c.Classify(uniformFrame(0, 1024)))
}

func TestClassify_UniformBrightFrameIsFrozen(t *testing.T) {
	c := defaultClassifier()

	assert.Equal(t, domain.FrozenOrNoise, c.Classify(uniformFrame(128, 1024)))
}

func TestClassify_MeanBoundaryIsNotBlack(t *testing.T) {
	c := defaultClassifier()

	// mean exactly 10 with large deviation: healthy, not black
	frame := alternatingFrame(0, 20, 1024)
	assert.Equal(t, domain.Healthy, c.Classify(frame))
}

func TestClassify_TexturedBrightFrameIsHealthy(t *testing.T) {
	c := defaultClassifier()

	frame := alternatingFrame(40, 220, 1024)
	assert.Equal(t, domain.Healthy, c.Classify(frame))
}

func TestClassify_ThresholdsAreConfigurable(t *testing.T) {
	strict := NewHealthClassifier(50, 30)

	// mean 45 is black under the stricter policy
	frame := alternatingFrame(20, 70, 1024)
	assert.Equal(t, domain.BlackFrame, strict.Classify(frame))
}

func TestClassify_IsDeterministic(t *testing.T) {
	c := defaultClassifier()
	frame := alternatingFrame(40, 220, 1024)

	first := c.Classify(frame)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Classify(frame))
	}
}
