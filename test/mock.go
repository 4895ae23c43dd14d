// Package test provides deterministic synthetic assay videos and end-to-end
// tests of the full detection pipeline.
package test

import (
	"image"
	"image/color"
	"math/rand"

	"gocv.io/x/gocv"
)

// Cell describes one dark object drawn into a synthetic frame.
type Cell struct {
	Center image.Point
	// Axes are the ellipse half-lengths; equal axes draw a circle.
	Axes image.Point
	// Angle rotates the ellipse, in degrees.
	Angle float64
}

// MockFrameGenerator creates deterministic test frames for idempotent testing.
//
// Frames are 3-channel BGR, uniform mid-gray like an empty, evenly lit channel,
// with cells drawn as filled black ellipses.
//
// @example
// gen := NewMockFrameGenerator(100, 100)
// frame := gen.GenerateCellFrame(test.Cell{Center: image.Pt(50, 50), Axes: image.Pt(30, 20)})
// defer frame.Close()
type MockFrameGenerator struct {
	width      int
	height     int
	background uint8
	rng        *rand.Rand
}

// NewMockFrameGenerator creates a new frame generator with specified dimensions.
//
// Arguments:
// - width: Frame width in pixels.
// - height: Frame height in pixels.
//
// Returns:
// - A configured MockFrameGenerator instance.
func NewMockFrameGenerator(width, height int) *MockFrameGenerator {
	return &MockFrameGenerator{
		width:      width,
		height:     height,
		background: 128,
		rng:        rand.New(rand.NewSource(42)), // Deterministic seed for reproducibility.
	}
}

// SetBackground changes the empty-channel intensity of later frames.
func (g *MockFrameGenerator) SetBackground(v uint8) {
	g.background = v
}

// Size returns the frame dimensions.
func (g *MockFrameGenerator) Size() image.Point {
	return image.Pt(g.width, g.height)
}

// GenerateStaticFrame creates an empty background frame.
//
// Returns:
// - A BGR Mat filled with the background intensity. The caller must Close it.
func (g *MockFrameGenerator) GenerateStaticFrame() gocv.Mat {
	v := float64(g.background)
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(v, v, v, 0), g.height, g.width, gocv.MatTypeCV8UC3)
}

// GenerateCellFrame draws cells onto a background frame.
//
// Arguments:
// - cells: The objects to draw, filled black.
//
// Returns:
// - A BGR Mat. The caller must Close it.
func (g *MockFrameGenerator) GenerateCellFrame(cells ...Cell) gocv.Mat {
	frame := g.GenerateStaticFrame()
	for _, c := range cells {
		gocv.Ellipse(&frame, c.Center, c.Axes, c.Angle, 0, 360, color.RGBA{0, 0, 0, 0}, -1)
	}
	return frame
}

// GenerateVideo builds a clip of n frames in which the given cells appear in
// the frames listed by present. All other frames are empty.
//
// Returns:
// - The frames; the caller must Close each of them.
func (g *MockFrameGenerator) GenerateVideo(n int, present map[int][]Cell) []gocv.Mat {
	frames := make([]gocv.Mat, n)
	for i := range frames {
		frames[i] = g.GenerateCellFrame(present[i]...)
	}
	return frames
}

// GenerateFlowVideo simulates a single cell drifting left to right across the
// channel, one step per frame, so that no pixel is covered in most frames.
//
// Arguments:
// - n: Number of frames.
// - axes: Cell half-lengths.
//
// Returns:
// - The frames; the caller must Close each of them.
func (g *MockFrameGenerator) GenerateFlowVideo(n int, axes image.Point) []gocv.Mat {
	frames := make([]gocv.Mat, n)
	span := g.width - 2*axes.X
	for i := range frames {
		x := axes.X + span*i/max(n-1, 1)
		frames[i] = g.GenerateCellFrame(Cell{Center: image.Pt(x, g.height/2), Axes: axes})
	}
	return frames
}

// AddNoise perturbs every pixel of frame by up to ±amplitude, reproducibly for
// a given generator.
func (g *MockFrameGenerator) AddNoise(frame *gocv.Mat, amplitude int) {
	if amplitude <= 0 {
		return
	}
	cols := frame.Cols() * frame.Channels()
	for y := 0; y < frame.Rows(); y++ {
		for x := 0; x < cols; x++ {
			v := int(frame.GetUCharAt(y, x)) + g.rng.Intn(2*amplitude+1) - amplitude
			frame.SetUCharAt(y, x, uint8(min(max(v, 0), 255)))
		}
	}
}

// CloseAll releases every frame.
func CloseAll(frames []gocv.Mat) {
	for i := range frames {
		frames[i].Close()
	}
}
