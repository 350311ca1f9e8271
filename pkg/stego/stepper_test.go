package stego

import (
	"image"
	"testing"
)

func TestLinearStepper(t *testing.T) {
	// 2x2 image, R/G/B per pixel, raster order.
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	stepper := makeLinearStepper(img)

	if stepper.pixelIndex() != 0 || stepper.channel != 0 {
		t.Errorf("Initial state incorrect: %+v", stepper)
	}

	stepper.step()
	if stepper.channel != 1 || stepper.pixelIndex() != 0 {
		t.Errorf("Step 1 failed: %+v", stepper)
	}

	stepper.step()
	if stepper.channel != 2 {
		t.Errorf("Step 2 failed: %+v", stepper)
	}

	// Alpha is never visited: channel 2 moves to the next pixel.
	stepper.step()
	if stepper.channel != 0 || stepper.pixelIndex() != 1 {
		t.Errorf("Step 3 (pixel change) failed: %+v", stepper)
	}

	*stepper.value() = 42
	if img.Pix[4] != 42 {
		t.Errorf("value() did not address pixel 1 red, Pix = %v", img.Pix[:8])
	}

	for i := 0; i < 2*channelsPerPixel; i++ {
		stepper.step()
	}
	if stepper.pixelIndex() != 3 || stepper.channel != 0 {
		t.Errorf("Stepping two pixels failed: %+v", stepper)
	}

	// The last pixel lies on the second row.
	stepper.step()
	*stepper.value() = 7
	if img.Pix[img.PixOffset(1, 1)+1] != 7 {
		t.Errorf("value() did not address pixel (1,1) green")
	}

	stepper.step()
	stepper.step()
	if !stepper.done() {
		t.Error("stepper should be exhausted")
	}
}

func TestShuffledStepperCoverage(t *testing.T) {
	// 10x10 image = 100 pixels, the first ReservedHeaderPixels are skipped.
	width, height := 10, 10
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	stepper := makeShuffledStepper(img)

	visited := make(map[int]bool)
	count := 0
	for !stepper.done() {
		idx := stepper.pixelIndex()
		if idx < ReservedHeaderPixels {
			t.Errorf("Shuffled stepper visited header pixel %d", idx)
		}
		if visited[idx] {
			t.Errorf("Shuffled stepper visited pixel %d twice", idx)
		}
		visited[idx] = true
		count++
		for c := 0; c < channelsPerPixel; c++ {
			stepper.step()
		}
	}

	expected := (width * height) - ReservedHeaderPixels
	if count != expected {
		t.Errorf("Shuffled stepper visited %d pixels, want %d", count, expected)
	}
}

func TestShuffledStepperTooSmall(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	if !makeShuffledStepper(img).done() {
		t.Error("16-pixel image has no payload pixels, stepper should start exhausted")
	}
}
