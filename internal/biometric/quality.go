package biometric

import (
	"rollcall/internal/vision"
)

const (
	// minBlurVariance rejects frames with no focus detail.
	minBlurVariance = 5.0
	// minBrightness rejects frames captured in the dark.
	minBrightness = 30.0
)

// frameUsable is the enrollment quality gate. It filters out frames the
// extractor would produce garbage embeddings for rather than trusting the
// model to fail loudly.
func frameUsable(frame []byte) bool {
	img, err := vision.Decode(frame)
	if err != nil {
		return false
	}
	gray := vision.Gray(img)
	return vision.LaplacianVariance(gray) >= minBlurVariance && vision.Mean(gray) >= minBrightness
}
