package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/nvr-ai/go-cytometry/controller"
	"github.com/nvr-ai/go-cytometry/images"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("fit", "ellipse", "")
	fs.String("view", "overlay", "")
	fs.Int("max-frames", 0, "")
	fs.String("log-level", "info", "")
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("defaults differ (-want +got):\n%s", diff)
	}
	assert.Equal(t, float32(127), cfg.Pipeline.Segmentation.BinaryThreshold)
	assert.Equal(t, float32(225), cfg.Pipeline.Segmentation.OutlierCeiling)
	assert.Equal(t, 10, cfg.Pipeline.Segmentation.MorphologyIterations)
	assert.Equal(t, images.FitEllipse, cfg.Pipeline.Extraction.FitType)
	assert.Equal(t, controller.ViewOverlay, cfg.Pipeline.View)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
segmentation:
  binary_threshold: 100
  threshold_cleaned: true
extraction:
  fit_type: circle
  cell_radius_threshold: 6.5
view: mask
max_frames: 20
log:
  level: debug
profile:
  enabled: true
  report_interval: 2s
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, float32(100), cfg.Pipeline.Segmentation.BinaryThreshold)
	assert.True(t, cfg.Pipeline.Segmentation.ThresholdCleaned)
	assert.Equal(t, float32(225), cfg.Pipeline.Segmentation.OutlierCeiling, "unset keys keep defaults")
	assert.Equal(t, images.FitCircle, cfg.Pipeline.Extraction.FitType)
	assert.Equal(t, float32(6.5), cfg.Pipeline.Extraction.CellRadiusThreshold)
	assert.Equal(t, controller.ViewMask, cfg.Pipeline.View)
	assert.Equal(t, 20, cfg.Pipeline.MaxFrames)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Profile.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Profile.ReportInterval)
	assert.Equal(t, images.DefaultFillColor, cfg.Pipeline.Extraction.FillColor)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := writeFile(t, "extraction:\n  fit_type: circle\nview: mask\n")

	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--view", "edges", "--max-frames", "3"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, controller.ViewEdges, cfg.Pipeline.View, "changed flag wins")
	assert.Equal(t, 3, cfg.Pipeline.MaxFrames)
	assert.Equal(t, images.FitCircle, cfg.Pipeline.Extraction.FitType, "unchanged flag does not mask the file")
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown fit":       "extraction:\n  fit_type: square\n",
		"inverted limits":   "extraction:\n  area_exclusion_low: 3000\n",
		"unknown view":      "view: thermal\n",
		"threshold range":   "segmentation:\n  binary_threshold: 400\n",
		"bad log level":     "log:\n  level: chatty\n",
		"negative frames":   "max_frames: -1\n",
		"negative kernel":   "segmentation:\n  kernel_size: -3\n",
		"negative interval": "profile:\n  report_interval: -1s\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, content), nil)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestWriteDefault_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cellbangle.yaml")
	require.NoError(t, WriteDefault(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "report_interval: 5s")
	assert.Contains(t, string(data), "fit_type: ellipse")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("written defaults do not load back (-want +got):\n%s", diff)
	}

	assert.Error(t, WriteDefault(path), "existing file is not overwritten")
}
