package stego

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/andresmejia3/snic/pkg/imageio"
)

// AnalysisResult holds metrics about the comparison between two images.
type AnalysisResult struct {
	MSE  float64 // Mean Squared Error
	PSNR float64 // Peak Signal-to-Noise Ratio (dB), +Inf for identical images
	// ModifiedPixels counts pixels with at least one changed colour channel.
	ModifiedPixels int
	// Heatmap is black where nothing changed, shading from green to red as
	// the change grows.
	Heatmap *image.NRGBA
}

// Analyze compares a cover with the stego image made from it. Both must have
// the same size, so a cover that was enlarged during encoding has to be
// resampled by the caller first.
func Analyze(original, stego image.Image, opts ...Option) (*AnalysisResult, error) {
	o := buildOptions(opts)

	img1 := imageio.ToNRGBA(original)
	img2 := imageio.ToNRGBA(stego)

	bounds := img1.Bounds()
	if bounds.Size() != img2.Bounds().Size() {
		return nil, fmt.Errorf("%w: %v vs %v", ErrDimensionMismatch, bounds.Size(), img2.Bounds().Size())
	}
	if bounds.Empty() {
		return nil, ErrEmptyImage
	}

	width, height := bounds.Dx(), bounds.Dy()
	var sumSquaredError float64
	heatmap := image.NewNRGBA(image.Rect(0, 0, width, height))
	result := &AnalysisResult{Heatmap: heatmap}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			p1 := getPixel(img1, x, y)
			p2 := getPixel(img2, x, y)

			var diffSum float64
			isModified := false

			// Alpha is always opaque in encoder output, so only colour counts.
			for i := 0; i < channelsPerPixel; i++ {
				diff := float64(p1[i]) - float64(p2[i])
				sumSquaredError += diff * diff
				diffSum += math.Abs(diff)

				if p1[i] != p2[i] {
					isModified = true
				}
			}

			if isModified {
				result.ModifiedPixels++
				// A difference of 1 becomes 50 brightness.
				intensity := uint8(math.Min(255, diffSum*50))
				heatmap.SetNRGBA(x, y, color.NRGBA{R: intensity, G: 255 - intensity, B: 0, A: 255})
			} else {
				heatmap.SetNRGBA(x, y, color.NRGBA{A: 255})
			}
		}
		if o.progress != nil {
			reportProgress(o.progress, width)
		}
	}

	totalPixels := float64(width * height)
	result.MSE = sumSquaredError / (totalPixels * channelsPerPixel)
	if result.MSE == 0 {
		result.PSNR = math.Inf(1)
	} else {
		result.PSNR = 10 * math.Log10((255*255)/result.MSE)
	}
	return result, nil
}
