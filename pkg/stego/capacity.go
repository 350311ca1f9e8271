package stego

import (
	"fmt"
	"math"
)

// Plan is the cover size and density chosen for a payload.
type Plan struct {
	Width          int
	Height         int
	Scale          float64
	BitsPerChannel int
	// MinRequiredBPC is the density the payload would need at the original
	// cover size. Zero when the cover has no payload pixels at all.
	MinRequiredBPC int
	// Utilization is the share of original capacity the payload fills at
	// the requested density. Zero when the cover had to grow to fit.
	Utilization float64
	// Upscaled is set when the payload did not fit the original cover.
	Upscaled bool
	// Headroom is set when the cover grew by HeadroomScale.
	Headroom bool
}

// Capacity is the number of payload bits a width x height stego image holds
// at the given density.
func Capacity(width, height, bitsPerChannel int) int {
	available := width*height - ReservedHeaderPixels
	if available <= 0 || bitsPerChannel < 1 {
		return 0
	}
	return available * channelsPerPixel * bitsPerChannel
}

// PlanCapacity decides how large the cover must be to hold payloadBits at
// targetBPC. It only ever changes the size, never the density.
func PlanCapacity(payloadBits, width, height, targetBPC int) (*Plan, error) {
	if targetBPC < MinBitsPerChannel || targetBPC > MaxEncodeBitsPerChannel {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBitsPerChannel, targetBPC)
	}
	if width <= 0 || height <= 0 {
		return nil, ErrEmptyImage
	}

	plan := &Plan{BitsPerChannel: targetBPC}
	scale := 1.0

	available := width*height - ReservedHeaderPixels
	fits := available > 0
	if fits {
		plan.MinRequiredBPC = ceilDiv(payloadBits, available*channelsPerPixel)
		fits = plan.MinRequiredBPC <= targetBPC
	}

	if !fits {
		channelsNeeded := ceilDiv(payloadBits, targetBPC)
		desiredPixels := ceilDiv(channelsNeeded, channelsPerPixel) + ReservedHeaderPixels
		scale = math.Sqrt(float64(desiredPixels) / float64(width*height))
		plan.Upscaled = true
	} else {
		plan.Utilization = float64(payloadBits) / float64(available*channelsPerPixel*targetBPC)
		if plan.Utilization > UtilizationThreshold {
			scale = HeadroomScale
			plan.Headroom = true
		}
	}

	plan.Scale = math.Max(1, scale)
	plan.Width = int(math.Ceil(float64(width) * plan.Scale))
	plan.Height = int(math.Ceil(float64(height) * plan.Scale))

	// Rounding in the square root can leave the result a few bits short.
	for Capacity(plan.Width, plan.Height, targetBPC) < payloadBits {
		plan.Height++
	}
	return plan, nil
}
