package source

import (
	"io"

	"github.com/nvr-ai/go-cytometry/util"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Directory reads a sequence of still images, ordered by the frame number at
// the end of each file name.
type Directory struct {
	dir   string
	files []util.FrameFile
	pos   int
}

// OpenDirectory lists the image files of dir. An empty directory is not an
// error here; the controller reports it as an empty video.
func OpenDirectory(dir string) (*Directory, error) {
	files, err := util.ListFrameFiles(dir)
	if err != nil {
		return nil, err
	}
	return &Directory{dir: dir, files: files}, nil
}

// Len returns the number of frames in the directory.
func (d *Directory) Len() int {
	return len(d.files)
}

// Read decodes the next image into dst as a 3-channel BGR frame.
func (d *Directory) Read(dst *gocv.Mat) error {
	if d.pos >= len(d.files) {
		return io.EOF
	}
	file := d.files[d.pos]

	img := gocv.IMRead(file.Path, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		return errors.Errorf("decode frame %s", file.Path)
	}

	img.CopyTo(dst)
	d.pos++
	return nil
}

// Reset rewinds to the first file.
func (d *Directory) Reset() error {
	d.pos = 0
	return nil
}

// Close implements controller.FrameSource; a directory holds no handles.
func (d *Directory) Close() error {
	return nil
}
