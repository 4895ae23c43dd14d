// Package images - This file contains the static background estimator.
//
// The background of a microfluidic assay is fixed: the channel walls, the
// illumination gradient and any dust on the optics do not move. Droplets and
// cells pass through quickly, so for every pixel the median intensity across
// the whole video is a reliable estimate of what that pixel looks like when
// nothing is in front of it.
//
// Pipeline Overview:
//
// ┌──────────────────────┐
// │ Every frame (gray)   │ ── Add() ──┐
// └──────────────────────┘            │
// ┌───────────────────────────────────▼──┐
// │ Per-pixel 256-bin intensity histogram │
// └──────────────────┬───────────────────┘
// ┌──────────────────▼───────────────────┐
// │ Median per pixel → BackgroundModel   │
// └──────────────────────────────────────┘
//
// Accumulating histograms instead of the raw frames keeps memory bounded by
// the frame size rather than by the length of the video.
package images

import (
	"image"
	"math"
	"runtime"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

const (
	// bins is the number of distinct 8-bit intensities.
	bins = 256
	// MaxBackgroundFrames is the most frames one estimator can accumulate.
	MaxBackgroundFrames = math.MaxUint16
)

// BackgroundModel is the per-pixel median reference image of one video.
//
// It is immutable once built and safe to share read-only between any number of
// segmentation calls. Call Close() when the video is done.
type BackgroundModel struct {
	mat    gocv.Mat
	frames int
}

// NewBackgroundModel builds a model from an existing single-channel image, for
// example a background written by an earlier run. The image is copied.
//
// Arguments:
//   - gray: A CV_8UC1 Mat.
//
// Returns:
//   - *BackgroundModel owning its own copy of the pixels.
//   - ErrNotGrayscale if gray is not single-channel 8-bit.
func NewBackgroundModel(gray gocv.Mat) (*BackgroundModel, error) {
	if gray.Empty() {
		return nil, ErrEmptyVideo
	}
	if gray.Type() != gocv.MatTypeCV8UC1 {
		return nil, ErrNotGrayscale
	}
	return &BackgroundModel{mat: gray.Clone(), frames: 1}, nil
}

// Mat returns the underlying single-channel image. The caller must neither
// modify nor close it.
func (b *BackgroundModel) Mat() gocv.Mat {
	return b.mat
}

// Size returns the model dimensions (X = columns, Y = rows).
func (b *BackgroundModel) Size() image.Point {
	return MatSize(b.mat)
}

// Frames returns how many frames contributed to the model.
func (b *BackgroundModel) Frames() int {
	return b.frames
}

// At returns the background intensity at column x, row y.
func (b *BackgroundModel) At(x, y int) uint8 {
	return b.mat.GetUCharAt(y, x)
}

// Close releases the native image.
func (b *BackgroundModel) Close() {
	b.mat.Close()
}

// BackgroundEstimator accumulates grayscale frames during the pre-scan and
// produces the median BackgroundModel.
//
// It is stateful only while frames are being added; Estimate() hands the result
// off and resets the estimator.
type BackgroundEstimator struct {
	size   image.Point
	counts []uint16
	frames int
}

// NewBackgroundEstimator returns an empty estimator.
func NewBackgroundEstimator() *BackgroundEstimator {
	return &BackgroundEstimator{}
}

// Len returns the number of frames accumulated so far.
func (e *BackgroundEstimator) Len() int {
	return e.frames
}

// Add accumulates one grayscale frame. The frame is read, never modified, and
// may be reused by the caller as soon as Add returns.
//
// Arguments:
//   - gray: A CV_8UC1 Mat. Every frame must have the size of the first one.
//
// Returns:
//   - ErrNotGrayscale for multi-channel input.
//   - *DimensionMismatchError when the size differs from earlier frames.
//   - ErrTooManyFrames once MaxBackgroundFrames frames were added.
func (e *BackgroundEstimator) Add(gray gocv.Mat) error {
	if gray.Empty() {
		return errors.New("cannot accumulate an empty frame")
	}
	if gray.Type() != gocv.MatTypeCV8UC1 {
		return ErrNotGrayscale
	}
	if e.frames >= MaxBackgroundFrames {
		return ErrTooManyFrames
	}

	if e.frames == 0 {
		e.size = MatSize(gray)
		e.counts = make([]uint16, e.size.X*e.size.Y*bins)
	} else if err := checkSize(e.size, gray); err != nil {
		return err
	}

	data, err := gray.DataPtrUint8()
	if err != nil {
		return errors.Wrap(err, "read frame samples")
	}
	for i, v := range data {
		e.counts[i*bins+int(v)]++
	}
	e.frames++
	return nil
}

// Estimate computes the per-pixel median of every frame added so far.
//
// For an even number of frames the two middle samples are averaged and the
// result truncated to 8 bits.
//
// Returns:
//   - *BackgroundModel the caller owns and must Close().
//   - ErrEmptyVideo if no frames were added.
func (e *BackgroundEstimator) Estimate() (*BackgroundModel, error) {
	if e.frames == 0 {
		return nil, ErrEmptyVideo
	}
	defer e.Reset()

	pixels := e.size.X * e.size.Y
	out := make([]byte, pixels)
	lo, hi := (e.frames-1)/2, e.frames/2
	for p := 0; p < pixels; p++ {
		a, b := medianPair(e.counts[p*bins:(p+1)*bins], lo, hi)
		out[p] = uint8((a + b) / 2)
	}

	view, err := gocv.NewMatFromBytes(e.size.Y, e.size.X, gocv.MatTypeCV8UC1, out)
	if err != nil {
		return nil, errors.Wrap(err, "build background image")
	}
	mat := view.Clone()
	view.Close()
	runtime.KeepAlive(out)

	return &BackgroundModel{mat: mat, frames: e.frames}, nil
}

// Reset discards every accumulated frame.
func (e *BackgroundEstimator) Reset() {
	e.size = image.Point{}
	e.counts = nil
	e.frames = 0
}

// medianPair walks one pixel's histogram and returns the intensities at
// zero-based sorted ranks lo and hi (lo <= hi).
func medianPair(hist []uint16, lo, hi int) (int, int) {
	var seen int
	a := -1
	for v, n := range hist {
		if n == 0 {
			continue
		}
		seen += int(n)
		if a < 0 && seen > lo {
			a = v
		}
		if seen > hi {
			return a, v
		}
	}
	return a, a
}

// EstimateBackground runs a complete pre-scan over an in-memory frame sequence.
//
// Arguments:
//   - frames: Color or grayscale frames of one video, in order.
//
// Returns:
//   - *BackgroundModel the caller owns.
//   - ErrEmptyVideo for an empty sequence, *DimensionMismatchError for mixed sizes.
func EstimateBackground(frames []gocv.Mat) (*BackgroundModel, error) {
	if len(frames) == 0 {
		return nil, ErrEmptyVideo
	}

	gray := gocv.NewMat()
	defer gray.Close()

	est := NewBackgroundEstimator()
	for i, frame := range frames {
		if err := ToGray(frame, &gray); err != nil {
			return nil, errors.Wrapf(err, "frame %d", i)
		}
		if err := est.Add(gray); err != nil {
			return nil, errors.Wrapf(err, "frame %d", i)
		}
	}
	return est.Estimate()
}
