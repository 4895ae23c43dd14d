package source

import (
	"io"

	"gocv.io/x/gocv"
)

// Slice serves frames held in memory, mostly for tests and for callers that
// already decoded the video.
type Slice struct {
	frames []gocv.Mat
	pos    int
}

// NewSlice copies frames; the caller keeps ownership of its own Mats.
func NewSlice(frames ...gocv.Mat) *Slice {
	s := &Slice{frames: make([]gocv.Mat, len(frames))}
	for i, f := range frames {
		s.frames[i] = f.Clone()
	}
	return s
}

// Len returns the number of frames.
func (s *Slice) Len() int {
	return len(s.frames)
}

// Read copies the next frame into dst.
func (s *Slice) Read(dst *gocv.Mat) error {
	if s.pos >= len(s.frames) {
		return io.EOF
	}
	s.frames[s.pos].CopyTo(dst)
	s.pos++
	return nil
}

// Reset rewinds to the first frame.
func (s *Slice) Reset() error {
	s.pos = 0
	return nil
}

// Close releases the copied frames.
func (s *Slice) Close() error {
	for i := range s.frames {
		s.frames[i].Close()
	}
	s.frames = nil
	s.pos = 0
	return nil
}
