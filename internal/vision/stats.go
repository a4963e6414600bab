// Package vision provides frame decoding and the grayscale pixel statistics
// the liveness and biometric quality gates are built on. The heuristics need
// means, variances, and gradient measures, not a full imaging pipeline.
package vision

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
)

// Decode parses an uploaded frame (JPEG or PNG) into an image.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

// Gray converts an image to 8-bit grayscale.
func Gray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}
	return gray
}

// Mean returns the average pixel intensity.
func Mean(g *image.Gray) float64 {
	bounds := g.Bounds()
	n := bounds.Dx() * bounds.Dy()
	if n == 0 {
		return 0
	}
	var sum float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			sum += float64(g.GrayAt(x, y).Y)
		}
	}
	return sum / float64(n)
}

// StdDev returns the standard deviation of pixel intensity. Re-displayed
// digital images lack real sensor noise and score low here.
func StdDev(g *image.Gray) float64 {
	bounds := g.Bounds()
	n := bounds.Dx() * bounds.Dy()
	if n == 0 {
		return 0
	}
	mean := Mean(g)
	var sum float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			d := float64(g.GrayAt(x, y).Y) - mean
			sum += d * d
		}
	}
	return math.Sqrt(sum / float64(n))
}

// LaplacianVariance measures focus/depth. A printed photo held to the camera
// is very flat and yields a low value.
func LaplacianVariance(g *image.Gray) float64 {
	bounds := g.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	values := make([]float64, 0, (w-2)*(h-2))
	var sum float64
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			lap := 4*float64(g.GrayAt(x, y).Y) -
				float64(g.GrayAt(x-1, y).Y) -
				float64(g.GrayAt(x+1, y).Y) -
				float64(g.GrayAt(x, y-1).Y) -
				float64(g.GrayAt(x, y+1).Y)
			values = append(values, lap)
			sum += lap
		}
	}

	mean := sum / float64(len(values))
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return variance / float64(len(values))
}

// BlurDiffMean returns the mean absolute difference between the frame and a
// 7x7-blurred copy of itself. Real skin has micro-texture; screens and paper
// flatten under blur and score low.
func BlurDiffMean(g *image.Gray) float64 {
	bounds := g.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return 0
	}

	const radius = 3 // 7x7 window
	blurred := boxBlur(g, radius)

	var sum float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			sum += math.Abs(float64(g.GrayAt(x, y).Y) - blurred[(y-bounds.Min.Y)*w+(x-bounds.Min.X)])
		}
	}
	return sum / float64(w*h)
}

// EdgeRatio returns the fraction of pixels whose Sobel gradient magnitude
// exceeds the threshold. Phone screens held to a camera produce hard bezel
// borders and score high.
func EdgeRatio(g *image.Gray, threshold float64) float64 {
	bounds := g.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	edges := 0
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			gx := float64(g.GrayAt(x+1, y-1).Y) + 2*float64(g.GrayAt(x+1, y).Y) + float64(g.GrayAt(x+1, y+1).Y) -
				float64(g.GrayAt(x-1, y-1).Y) - 2*float64(g.GrayAt(x-1, y).Y) - float64(g.GrayAt(x-1, y+1).Y)
			gy := float64(g.GrayAt(x-1, y+1).Y) + 2*float64(g.GrayAt(x, y+1).Y) + float64(g.GrayAt(x+1, y+1).Y) -
				float64(g.GrayAt(x-1, y-1).Y) - 2*float64(g.GrayAt(x, y-1).Y) - float64(g.GrayAt(x+1, y-1).Y)
			if math.Hypot(gx, gy) > threshold {
				edges++
			}
		}
	}
	return float64(edges) / float64(w*h)
}

// boxBlur computes a mean filter with the given radius, clamping at borders.
func boxBlur(g *image.Gray, radius int) []float64 {
	bounds := g.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			var count int
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					sum += float64(g.GrayAt(bounds.Min.X+nx, bounds.Min.Y+ny).Y)
					count++
				}
			}
			out[y*w+x] = sum / float64(count)
		}
	}
	return out
}
