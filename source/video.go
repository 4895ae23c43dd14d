// Package source provides the frame sources the pipeline controller reads
// from: video files, directories of stills and in-memory frame slices.
//
// Every source signals the end of its stream with io.EOF and can be rewound
// with Reset, which the controller does between its background pre-scan and
// the segmenting loop.
package source

import (
	"io"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Video reads frames from a video file through OpenCV's VideoCapture.
type Video struct {
	path    string
	capture *gocv.VideoCapture
	read    int
}

// OpenVideo opens a video file for reading.
//
// Arguments:
//   - path: Any container and codec the local OpenCV build can decode.
//
// Returns:
//   - *Video positioned at the first frame.
//   - error if the file cannot be opened.
func OpenVideo(path string) (*Video, error) {
	capture, err := gocv.OpenVideoCapture(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open video %s", path)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, errors.Errorf("open video %s: capture not opened", path)
	}
	return &Video{path: path, capture: capture}, nil
}

// Path returns the file the video was opened from.
func (v *Video) Path() string {
	return v.path
}

// FrameCount returns the container's frame count estimate. Some codecs report
// zero or an approximation.
func (v *Video) FrameCount() int {
	return int(v.capture.Get(gocv.VideoCaptureFrameCount))
}

// FPS returns the nominal frame rate.
func (v *Video) FPS() float64 {
	return v.capture.Get(gocv.VideoCaptureFPS)
}

// Read decodes the next frame into dst, or returns io.EOF when the capture
// has no more frames.
func (v *Video) Read(dst *gocv.Mat) error {
	if v.capture == nil {
		return errors.New("video is closed")
	}
	if ok := v.capture.Read(dst); !ok || dst.Empty() {
		return io.EOF
	}
	v.read++
	return nil
}

// Reset reopens the file. Seeking to frame zero is not reliable across codecs,
// so the capture is recreated instead.
func (v *Video) Reset() error {
	if v.capture != nil {
		v.capture.Close()
		v.capture = nil
	}
	capture, err := gocv.OpenVideoCapture(v.path)
	if err != nil {
		return errors.Wrapf(err, "reopen video %s", v.path)
	}
	v.capture = capture
	v.read = 0
	return nil
}

// Close releases the capture. It is safe to call more than once.
func (v *Video) Close() error {
	if v.capture == nil {
		return nil
	}
	err := v.capture.Close()
	v.capture = nil
	return err
}
