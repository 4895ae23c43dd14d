package images

import (
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

var (
	white = color.RGBA{255, 255, 255, 0}
	black = color.RGBA{0, 0, 0, 0}
)

// newColorFrame returns a uniform BGR frame of the given intensity.
func newColorFrame(t *testing.T, width, height int, v float64) gocv.Mat {
	t.Helper()
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(v, v, v, 0), height, width, gocv.MatTypeCV8UC3)
}

// newGrayFrame returns a uniform single-channel frame of the given intensity.
func newGrayFrame(t *testing.T, width, height int, v float64) gocv.Mat {
	t.Helper()
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(v, 0, 0, 0), height, width, gocv.MatTypeCV8UC1)
}

// newEllipseMask returns a binary mask holding one filled ellipse.
func newEllipseMask(t *testing.T, width, height int, center, axes image.Point) gocv.Mat {
	t.Helper()
	mask := newGrayFrame(t, width, height, 0)
	gocv.Ellipse(&mask, center, axes, 0, 0, 360, white, -1)
	return mask
}

// newCircleMask returns a binary mask holding one filled circle.
func newCircleMask(t *testing.T, width, height int, center image.Point, radius int) gocv.Mat {
	t.Helper()
	mask := newGrayFrame(t, width, height, 0)
	gocv.Circle(&mask, center, radius, white, -1)
	return mask
}

// paintRect sets every channel of every pixel inside r to v, without the
// antialiasing that the drawing primitives may apply.
func paintRect(t *testing.T, m *gocv.Mat, r image.Rectangle, v uint8) {
	t.Helper()
	channels := m.Channels()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			for c := 0; c < channels; c++ {
				m.SetUCharAt(y, x*channels+c, v)
			}
		}
	}
}
