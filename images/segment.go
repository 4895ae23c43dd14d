// Package images - This file contains the foreground segmentation stage
// using OpenCV (via gocv).
//
// The FrameSegmenter struct encapsulates the per-frame pipeline that turns a raw
// color frame into a binary foreground mask:
//  1. Grayscale conversion.
//  2. Absolute difference against the static BackgroundModel.
//  3. Outlier clamping (differences above the ceiling are zeroed).
//  4. Morphological erosion then dilation.
//  5. Binary thresholding.
//
// Pipeline Overview:
//
// ┌──────────────┐   ┌──────────────────┐
// │ Input Frame  │   │ BackgroundModel  │
// └──────┬───────┘   └────────┬─────────┘
// ┌──────▼─────────────────────▼───────┐
// │ Grayscale + AbsDiff                │
// └──────┬─────────────────────────────┘
// ┌──────▼─────────────────────────────┐
// │ Clamp outliers (> ceiling → 0)     │
// └──────┬──────────────────────┬──────┘
// ┌──────▼──────────────┐       │
// │ Erode ×N, Dilate ×N │       │ (default)
// └──────┬──────────────┘       │
// ┌──────▼──────────────────────▼──────┐
// │ Threshold (binary mask)            │
// └────────────────────────────────────┘
//
// By default the mask is thresholded from the clamped difference map and the
// morphological result is only kept for inspection, which reproduces the
// reference output exactly. Set ThresholdCleaned to threshold the cleaned map.
//
// Usage:
//
//	seg := images.NewFrameSegmenter(images.DefaultSegmenterConfig())
//	defer seg.Close()
//
//	mask := gocv.NewMat()
//	defer mask.Close()
//	if err := seg.Segment(frame, background, &mask); err != nil {
//	    return err
//	}
//
// Note: You must call Close() when finished to release native resources.
package images

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

const (
	// DefaultBinaryThreshold is the intensity cutoff for the final mask.
	DefaultBinaryThreshold = 127
	// DefaultOutlierCeiling is the difference above which a pixel is zeroed.
	DefaultOutlierCeiling = 225
	// DefaultMorphologyIterations is the erosion and dilation iteration count.
	DefaultMorphologyIterations = 10
	// DefaultKernelSize is the side of the square structuring element.
	DefaultKernelSize = 3

	// cannyLow and cannyHigh are the hysteresis thresholds of the edge view.
	cannyLow  = 5
	cannyHigh = 10
)

// SegmenterConfig holds the FrameSegmenter tuning parameters.
type SegmenterConfig struct {
	// BinaryThreshold: difference values strictly above it become foreground.
	BinaryThreshold float32 `mapstructure:"binary_threshold" yaml:"binary_threshold"`
	// OutlierCeiling: difference values strictly above it are zeroed.
	OutlierCeiling float32 `mapstructure:"outlier_ceiling" yaml:"outlier_ceiling"`
	// MorphologyIterations is applied to both erosion and dilation.
	MorphologyIterations int `mapstructure:"morphology_iterations" yaml:"morphology_iterations"`
	// KernelSize is the side of the rectangular structuring element.
	KernelSize int `mapstructure:"kernel_size" yaml:"kernel_size"`
	// ThresholdCleaned thresholds the eroded/dilated map instead of the raw one.
	ThresholdCleaned bool `mapstructure:"threshold_cleaned" yaml:"threshold_cleaned"`
}

// DefaultSegmenterConfig returns the reference segmentation parameters.
func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		BinaryThreshold:      DefaultBinaryThreshold,
		OutlierCeiling:       DefaultOutlierCeiling,
		MorphologyIterations: DefaultMorphologyIterations,
		KernelSize:           DefaultKernelSize,
	}
}

// Validate reports the first out-of-range parameter.
func (c SegmenterConfig) Validate() error {
	switch {
	case c.BinaryThreshold < 0 || c.BinaryThreshold > 255:
		return errors.Errorf("binary_threshold must be in [0, 255], got %v", c.BinaryThreshold)
	case c.OutlierCeiling < 0 || c.OutlierCeiling > 255:
		return errors.Errorf("outlier_ceiling must be in [0, 255], got %v", c.OutlierCeiling)
	case c.MorphologyIterations < 0:
		return errors.Errorf("morphology_iterations must be >= 0, got %d", c.MorphologyIterations)
	case c.KernelSize < 1:
		return errors.Errorf("kernel_size must be >= 1, got %d", c.KernelSize)
	}
	return nil
}

// FrameSegmenter converts color frames into foreground masks against a fixed
// BackgroundModel.
//
// The struct keeps scratch matrices so that consecutive frames do not allocate,
// but no result of one call influences the next. Always call Close() when done.
type FrameSegmenter struct {
	config  SegmenterConfig
	gray    gocv.Mat // Grayscale input frame
	delta   gocv.Mat // Clamped absolute difference against the background
	cleaned gocv.Mat // Delta after erosion and dilation
	kernel  gocv.Mat // Morphological structuring element
}

// NewFrameSegmenter constructs a FrameSegmenter with initialized OpenCV matrices.
//
// Arguments:
//   - config: Segmentation parameters; zero KernelSize falls back to the default.
//
// Returns:
//   - *FrameSegmenter ready for Segment().
func NewFrameSegmenter(config SegmenterConfig) *FrameSegmenter {
	if config.KernelSize < 1 {
		config.KernelSize = DefaultKernelSize
	}
	return &FrameSegmenter{
		config:  config,
		gray:    gocv.NewMat(),
		delta:   gocv.NewMat(),
		cleaned: gocv.NewMat(),
		kernel:  gocv.GetStructuringElement(gocv.MorphRect, image.Pt(config.KernelSize, config.KernelSize)),
	}
}

// Config returns the parameters the segmenter was built with.
func (s *FrameSegmenter) Config() SegmenterConfig {
	return s.config
}

// Subtract computes the clamped absolute difference between frame and the
// background into the internal delta matrix.
//
// Arguments:
//   - frame: Color or grayscale frame with the background's dimensions.
//   - bg: The video's BackgroundModel.
//
// Returns:
//   - *DimensionMismatchError when frame and bg differ in size.
func (s *FrameSegmenter) Subtract(frame gocv.Mat, bg *BackgroundModel) error {
	if bg == nil {
		return errors.New("background model is nil")
	}
	if err := checkSize(bg.Size(), frame); err != nil {
		return err
	}
	if err := ToGray(frame, &s.gray); err != nil {
		return errors.Wrap(err, "grayscale conversion")
	}

	gocv.AbsDiff(s.gray, bg.Mat(), &s.delta)

	// Values above the ceiling are lighting or border artifacts, not cells.
	gocv.Threshold(s.delta, &s.delta, s.config.OutlierCeiling, 255, gocv.ThresholdToZeroInv)
	return nil
}

// Clean erodes then dilates the delta matrix into the cleaned matrix, removing
// salt noise and closing small gaps.
func (s *FrameSegmenter) Clean() {
	s.delta.CopyTo(&s.cleaned)
	for i := 0; i < s.config.MorphologyIterations; i++ {
		gocv.Erode(s.cleaned, &s.cleaned, s.kernel)
	}
	for i := 0; i < s.config.MorphologyIterations; i++ {
		gocv.Dilate(s.cleaned, &s.cleaned, s.kernel)
	}
}

// Segment runs the full segmentation pipeline and writes the binary mask.
//
// Arguments:
//   - frame: The input frame (BGR or grayscale). Not modified.
//   - bg: The shared, read-only BackgroundModel.
//   - mask: Destination for the CV_8UC1 {0,255} foreground mask.
//
// Returns:
//   - *DimensionMismatchError if frame and bg differ in size.
func (s *FrameSegmenter) Segment(frame gocv.Mat, bg *BackgroundModel, mask *gocv.Mat) error {
	if err := s.Subtract(frame, bg); err != nil {
		return err
	}
	s.Clean()

	src := s.delta
	if s.config.ThresholdCleaned {
		src = s.cleaned
	}
	gocv.Threshold(src, mask, s.config.BinaryThreshold, 255, gocv.ThresholdBinary)
	return nil
}

// Difference returns the clamped difference map of the last call. The caller
// must neither modify nor close it.
func (s *FrameSegmenter) Difference() gocv.Mat {
	return s.delta
}

// Cleaned returns the eroded/dilated map of the last call. The caller must
// neither modify nor close it.
func (s *FrameSegmenter) Cleaned() gocv.Mat {
	return s.cleaned
}

// Edges writes the Canny edge map of a foreground mask into dst.
func (s *FrameSegmenter) Edges(mask gocv.Mat, dst *gocv.Mat) {
	gocv.Canny(mask, dst, cannyLow, cannyHigh)
}

// Close releases all OpenCV native resources used by the segmenter.
func (s *FrameSegmenter) Close() {
	s.gray.Close()
	s.delta.Close()
	s.cleaned.Close()
	s.kernel.Close()
}
