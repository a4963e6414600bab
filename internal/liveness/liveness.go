// Package liveness screens a captured frame for presentation attacks: photos
// of photos, phone screens, and printed faces held up to the camera. It is a
// weighted heuristic over grayscale statistics, not a learned model; each
// signal contributes suspicion points and the frame fails once the total
// crosses the rejection threshold.
package liveness

import (
	"image"
	"log/slog"

	"rollcall/internal/vision"
)

const (
	// maxBrightness above which the frame is treated as a backlit screen.
	maxBrightness = 240.0
	// minLaplacianVariance below which the frame has no depth of field.
	minLaplacianVariance = 8.0
	// minTexture below which skin micro-texture is absent.
	minTexture = 1.2
	// maxEdgeRatio above which bezel-like hard borders dominate the frame.
	maxEdgeRatio = 0.38
	// minNoise below which natural sensor noise is missing.
	minNoise = 4.0

	// edgeGradientThreshold is the Sobel magnitude that counts as an edge.
	edgeGradientThreshold = 120.0

	// rejectionThreshold is the suspicion total at which a frame fails.
	rejectionThreshold = 4
)

// Stats are the raw per-frame measurements the signals are evaluated against.
type Stats struct {
	Brightness        float64
	LaplacianVariance float64
	Texture           float64
	EdgeRatio         float64
	Noise             float64
}

// Assessment is the verdict for one frame. Reasons lists every triggered
// signal, not only the ones needed to cross the threshold.
type Assessment struct {
	Live      bool
	Suspicion int
	Reasons   []string
	Stats     Stats
}

type signal struct {
	reason    string
	weight    int
	triggered func(s Stats) bool
}

// signals in evaluation order. All are always evaluated so the assessment
// explains the full picture, not just the first failure.
var signals = []signal{
	{reason: "overexposed, likely backlit screen", weight: 2, triggered: func(s Stats) bool {
		return s.Brightness > maxBrightness
	}},
	{reason: "flat surface, no depth of field", weight: 2, triggered: func(s Stats) bool {
		return s.LaplacianVariance < minLaplacianVariance
	}},
	{reason: "missing skin micro-texture", weight: 2, triggered: func(s Stats) bool {
		return s.Texture < minTexture
	}},
	{reason: "hard rectangular edges, likely device bezel", weight: 2, triggered: func(s Stats) bool {
		return s.EdgeRatio > maxEdgeRatio
	}},
	{reason: "missing sensor noise, likely digital display", weight: 1, triggered: func(s Stats) bool {
		return s.Noise < minNoise
	}},
}

// Detector scores frames for liveness.
type Detector struct {
	logger *slog.Logger
}

// Option configures the detector.
type Option func(*Detector)

// WithLogger sets the logger used for per-frame diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) { d.logger = logger }
}

// NewDetector builds a detector with the default thresholds.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Assess evaluates a single frame.
func (d *Detector) Assess(frame image.Image) Assessment {
	gray := vision.Gray(frame)
	stats := Stats{
		Brightness:        vision.Mean(gray),
		LaplacianVariance: vision.LaplacianVariance(gray),
		Texture:           vision.BlurDiffMean(gray),
		EdgeRatio:         vision.EdgeRatio(gray, edgeGradientThreshold),
		Noise:             vision.StdDev(gray),
	}

	assessment := Assessment{Stats: stats}
	for _, sig := range signals {
		if sig.triggered(stats) {
			assessment.Suspicion += sig.weight
			assessment.Reasons = append(assessment.Reasons, sig.reason)
		}
	}
	assessment.Live = assessment.Suspicion < rejectionThreshold

	if !assessment.Live {
		d.logger.Debug("liveness rejection",
			"suspicion", assessment.Suspicion,
			"reasons", assessment.Reasons,
			"brightness", stats.Brightness,
			"laplacian_variance", stats.LaplacianVariance,
		)
	}
	return assessment
}
