// Package images - Error taxonomy for the frame-processing pipeline.
package images

import (
	"fmt"
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

var (
	// ErrEmptyVideo is returned when a background is requested from zero frames.
	ErrEmptyVideo = errors.New("no frames available for background estimation")
	// ErrNotGrayscale is returned when a single-channel frame was expected.
	ErrNotGrayscale = errors.New("frame is not single-channel")
	// ErrTooManyFrames is returned when a video exceeds MaxBackgroundFrames.
	ErrTooManyFrames = errors.New("too many frames for background estimation")
)

// DimensionMismatchError reports a frame whose geometry differs from the one
// established by the background model (or by the first frame of a pre-scan).
type DimensionMismatchError struct {
	// Want is the established size (X = columns, Y = rows).
	Want image.Point
	// Got is the offending frame's size.
	Got image.Point
}

// Error implements error.
func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("frame dimension mismatch: want %dx%d, got %dx%d",
		e.Want.X, e.Want.Y, e.Got.X, e.Got.Y)
}

// IsDimensionMismatch reports whether err is or wraps a *DimensionMismatchError.
func IsDimensionMismatch(err error) bool {
	var target *DimensionMismatchError
	return errors.As(err, &target)
}

// checkSize returns a *DimensionMismatchError when mat is not want-sized.
func checkSize(want image.Point, mat gocv.Mat) error {
	got := MatSize(mat)
	if got != want {
		return &DimensionMismatchError{Want: want, Got: got}
	}
	return nil
}
