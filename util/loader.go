package util

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// FrameFile represents one still image of a frame sequence on disk.
type FrameFile struct {
	// Path is the path to the image file.
	Path string
	// Frame is the trailing number of the file name, or -1 if it has none.
	Frame int
}

// imageExtensions are the still formats OpenCV can decode without plugins.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// ListFrameFiles lists the image files of a frame directory in playback order.
//
// Arguments:
// - dir: Directory path containing image files such as frame-000001.png.
//
// Returns:
// - []FrameFile: Sorted by trailing frame number, then by name. Files without
// a trailing number sort first.
// - error: Error if the directory cannot be read.
func ListFrameFiles(dir string) ([]FrameFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read frame directory %s", dir)
	}

	var files []FrameFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := filepath.Ext(entry.Name())
		if !imageExtensions[strings.ToLower(ext)] {
			continue
		}
		files = append(files, FrameFile{
			Path:  filepath.Join(dir, entry.Name()),
			Frame: trailingNumber(strings.TrimSuffix(entry.Name(), ext)),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].Frame != files[j].Frame {
			return files[i].Frame < files[j].Frame
		}
		return files[i].Path < files[j].Path
	})

	return files, nil
}

// trailingNumber parses the digits at the end of stem, e.g. 12 for "frame-0012".
func trailingNumber(stem string) int {
	i := len(stem)
	for i > 0 && stem[i-1] >= '0' && stem[i-1] <= '9' {
		i--
	}
	n, err := strconv.Atoi(stem[i:])
	if err != nil {
		return -1
	}
	return n
}
