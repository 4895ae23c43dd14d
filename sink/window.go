// Package sink provides the frame sinks the pipeline controller presents its
// per-frame views to: an interactive window, a directory of PNG files and a
// headless discard sink.
package sink

import (
	"gocv.io/x/gocv"
)

const (
	keyEscape = 27
	keyQuit   = 'q'
)

// Window shows every frame in a HighGUI window. Pressing q or Esc, or closing
// the window, cancels the run.
type Window struct {
	window    *gocv.Window
	delay     int
	cancelled bool
}

// NewWindow opens a named display window.
//
// Arguments:
//   - title: Window title.
//   - delay: Milliseconds WaitKey blocks per frame; values below 1 become 1 so
//     playback never stalls on a key press.
func NewWindow(title string, delay int) *Window {
	if delay < 1 {
		delay = 1
	}
	return &Window{
		window: gocv.NewWindow(title),
		delay:  delay,
	}
}

// Present shows frame and polls the keyboard once.
func (w *Window) Present(frame gocv.Mat) error {
	if w.window == nil || w.cancelled {
		return nil
	}
	w.window.IMShow(frame)
	if key := w.window.WaitKey(w.delay); isQuitKey(key) || !w.window.IsOpen() {
		w.cancelled = true
	}
	return nil
}

// Cancelled reports whether the user asked to stop.
func (w *Window) Cancelled() bool {
	return w.cancelled
}

// Close destroys the window. It is safe to call more than once.
func (w *Window) Close() error {
	if w.window == nil {
		return nil
	}
	err := w.window.Close()
	w.window = nil
	return err
}

func isQuitKey(key int) bool {
	key &= 0xff
	return key == keyQuit || key == keyEscape
}

// Discard drops every frame, for headless runs that only need statistics.
type Discard struct {
	frames int
}

// Present counts the frame and drops it.
func (d *Discard) Present(gocv.Mat) error {
	d.frames++
	return nil
}

// Frames returns the number of frames presented.
func (d *Discard) Frames() int {
	return d.frames
}

// Cancelled always reports false.
func (d *Discard) Cancelled() bool {
	return false
}

// Close implements controller.FrameSink.
func (d *Discard) Close() error {
	return nil
}
