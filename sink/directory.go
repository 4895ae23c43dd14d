package sink

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Directory writes every presented frame to dir as frame-NNNNNN.png.
type Directory struct {
	dir      string
	maxWidth int
	written  int
}

// NewDirectory creates dir if needed.
//
// Arguments:
//   - dir: Output directory.
//   - maxWidth: Frames wider than this are downscaled with Lanczos resampling,
//     keeping the aspect ratio. Zero keeps the original size.
//
// Returns:
//   - *Directory ready for Present.
//   - error if dir cannot be created.
func NewDirectory(dir string, maxWidth int) (*Directory, error) {
	if maxWidth < 0 {
		return nil, errors.Errorf("max width must be >= 0, got %d", maxWidth)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create output directory %s", dir)
	}
	return &Directory{dir: dir, maxWidth: maxWidth}, nil
}

// Written returns the number of frames written so far.
func (d *Directory) Written() int {
	return d.written
}

// Path returns the file name the n-th frame is written to.
func (d *Directory) Path(n int) string {
	return filepath.Join(d.dir, fmt.Sprintf("frame-%06d.png", n))
}

// Present encodes frame as PNG.
func (d *Directory) Present(frame gocv.Mat) error {
	img, err := frame.ToImage()
	if err != nil {
		return errors.Wrap(err, "convert frame to image")
	}
	img = d.scale(img)

	path := d.Path(d.written)
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return errors.Wrapf(err, "encode %s", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close %s", path)
	}

	d.written++
	return nil
}

func (d *Directory) scale(img image.Image) image.Image {
	if d.maxWidth == 0 || img.Bounds().Dx() <= d.maxWidth {
		return img
	}
	return resize.Resize(uint(d.maxWidth), 0, img, resize.Lanczos3)
}

// Cancelled always reports false.
func (d *Directory) Cancelled() bool {
	return false
}

// Close implements controller.FrameSink; every file is closed by Present.
func (d *Directory) Close() error {
	return nil
}
