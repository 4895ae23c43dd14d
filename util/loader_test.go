package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListFrameFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"frame-10.png",
		"frame-2.png",
		"frame-000001.jpg",
		"cover.PNG",
		"notes.txt",
		"frame-3.bmp",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte{0}, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "frame-4.png"), 0o755))

	files, err := ListFrameFiles(dir)
	require.NoError(t, err)

	var names []string
	var frames []int
	for _, f := range files {
		names = append(names, filepath.Base(f.Path))
		frames = append(frames, f.Frame)
	}
	assert.Equal(t, []string{"cover.PNG", "frame-000001.jpg", "frame-2.png", "frame-3.bmp", "frame-10.png"}, names)
	assert.Equal(t, []int{-1, 1, 2, 3, 10}, frames)
}

func TestListFrameFiles_MissingDirectory(t *testing.T) {
	_, err := ListFrameFiles(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestTrailingNumber(t *testing.T) {
	assert.Equal(t, 12, trailingNumber("frame-0012"))
	assert.Equal(t, 7, trailingNumber("7"))
	assert.Equal(t, -1, trailingNumber("cover"))
	assert.Equal(t, -1, trailingNumber(""))
	assert.Equal(t, 3, trailingNumber("take2_shot3"))
}
