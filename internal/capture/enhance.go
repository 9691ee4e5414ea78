package capture

import (
	"image"

	"github.com/disintegration/imaging"
)

// enhanceCrop prepares a plate crop for character detection: crops below
// minHeight pixels are doubled in size, and an optional sharpen pass
// compensates for the interpolation blur.
func enhanceCrop(img image.Image, minHeight int, sharpen bool) image.Image {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	if b.Dy() < minHeight {
		img = imaging.Resize(img, b.Dx()*2, b.Dy()*2, imaging.Linear)
	}
	if sharpen {
		img = imaging.Sharpen(img, 0.8)
	}
	return img
}
