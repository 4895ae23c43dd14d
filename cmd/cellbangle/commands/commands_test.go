package commands

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-cytometry/controller"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// writeFrames stores the three-frame scenario as numbered PNG files.
func writeFrames(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(128, 128, 128, 0), 100, 100, gocv.MatTypeCV8UC3)
		if i == 1 {
			gocv.Ellipse(&frame, image.Pt(50, 50), image.Pt(30, 20), 0, 0, 360, color.RGBA{0, 0, 0, 0}, -1)
		}
		require.True(t, gocv.IMWrite(filepath.Join(dir, fmt.Sprintf("frame-%d.png", i)), frame))
		frame.Close()
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "disabled"))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRun_Headless(t *testing.T) {
	out, err := execute(t, "run", writeFrames(t), "--headless")
	require.NoError(t, err)

	var stats controller.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 3, stats.BackgroundFrames)
	assert.Equal(t, []int{0, 1, 0}, stats.PerFrame)
	assert.NotEmpty(t, stats.RunID)
}

func TestRun_ShapesAndOutputDir(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "views")
	out, err := execute(t, "run", writeFrames(t), "--output-dir", outDir, "--view", "mask", "--shapes")
	require.NoError(t, err)

	scanner := bufio.NewScanner(bytes.NewReader([]byte(out)))
	var lines []frameShapes
	for scanner.Scan() && len(lines) < 3 {
		var fs frameShapes
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &fs))
		lines = append(lines, fs)
	}
	require.Len(t, lines, 3)
	assert.Empty(t, lines[0].Shapes)
	require.Len(t, lines[1].Shapes, 1)
	assert.Equal(t, 1, lines[1].Summary.Count)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestRun_Errors(t *testing.T) {
	_, err := execute(t, "run", filepath.Join(t.TempDir(), "missing.avi"), "--headless")
	assert.Error(t, err)

	_, err = execute(t, "run", t.TempDir(), "--headless")
	assert.Error(t, err, "empty directory is an empty video")

	_, err = execute(t, "run", writeFrames(t), "--headless", "--fit", "square")
	assert.Error(t, err)
}

func TestBackground(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bg.png")
	out, err := execute(t, "background", writeFrames(t), "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "100x100, 3 frames")

	bg := gocv.IMRead(path, gocv.IMReadGrayScale)
	defer bg.Close()
	require.False(t, bg.Empty())
	assert.Equal(t, uint8(128), bg.GetUCharAt(50, 50))
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cellbangle.yaml")

	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	_, err = execute(t, "config", "init", path)
	assert.Error(t, err, "refuses to overwrite")

	out, err = execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "binary_threshold: 127")

	_, err = execute(t, "config", "show", "--format", "toml")
	assert.Error(t, err)
}
