package source

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-cytometry/controller"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

var (
	_ controller.FrameSource = (*Video)(nil)
	_ controller.FrameSource = (*Directory)(nil)
	_ controller.FrameSource = (*Slice)(nil)
)

func newFrame(t *testing.T, v float64) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(v, v, v, 0), 24, 32, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { m.Close() })
	return m
}

// drain reads src to io.EOF and returns the first pixel of every frame.
func drain(t *testing.T, src controller.FrameSource) []uint8 {
	t.Helper()
	frame := gocv.NewMat()
	defer frame.Close()

	var firsts []uint8
	for {
		err := src.Read(&frame)
		if err == io.EOF {
			return firsts
		}
		require.NoError(t, err)
		firsts = append(firsts, frame.GetUCharAt(0, 0))
	}
}

func TestSlice(t *testing.T) {
	a, b := newFrame(t, 10), newFrame(t, 20)
	s := NewSlice(a, b)

	a.SetUCharAt(0, 0, 99)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []uint8{10, 20}, drain(t, s), "slice owns copies")
	assert.Empty(t, drain(t, s), "exhausted until reset")

	require.NoError(t, s.Reset())
	assert.Equal(t, []uint8{10, 20}, drain(t, s))

	require.NoError(t, s.Close())
	assert.Zero(t, s.Len())
}

func TestDirectory(t *testing.T) {
	dir := t.TempDir()
	// Written out of order; playback follows the trailing number.
	for _, n := range []int{3, 1, 2} {
		frame := newFrame(t, float64(n*40))
		require.True(t, gocv.IMWrite(filepath.Join(dir, fmt.Sprintf("frame-%d.png", n)), frame))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("not a frame"), 0o644))

	d, err := OpenDirectory(dir)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, 3, d.Len())
	assert.Equal(t, []uint8{40, 80, 120}, drain(t, d))

	require.NoError(t, d.Reset())
	frame := gocv.NewMat()
	defer frame.Close()
	require.NoError(t, d.Read(&frame))
	assert.Equal(t, 3, frame.Channels())
	assert.Equal(t, 32, frame.Cols())
	assert.Equal(t, 24, frame.Rows())
}

func TestDirectory_UndecodableFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame-1.png"), []byte("garbage"), 0o644))

	d, err := OpenDirectory(dir)
	require.NoError(t, err)

	frame := gocv.NewMat()
	defer frame.Close()
	err = d.Read(&frame)
	require.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
}

func TestDirectory_Missing(t *testing.T) {
	_, err := OpenDirectory(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestOpenVideo_Missing(t *testing.T) {
	_, err := OpenVideo(filepath.Join(t.TempDir(), "absent.avi"))
	assert.Error(t, err)
}

func TestVideo_CloseIsIdempotent(t *testing.T) {
	v := &Video{path: "unused"}
	assert.NoError(t, v.Close())

	frame := gocv.NewMat()
	defer frame.Close()
	assert.Error(t, v.Read(&frame))
}
