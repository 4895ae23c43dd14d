// Package images - This file contains contour tracing and geometric fitting.
package images

import (
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// FitType selects the geometric primitive fitted to each contour.
type FitType string

const (
	// FitEllipse fits a least-squares ellipse and filters on its area.
	FitEllipse FitType = "ellipse"
	// FitCircle fits the minimum enclosing circle and filters on its radius.
	FitCircle FitType = "circle"
)

const (
	// DefaultAreaExclusionLow is the smallest accepted ellipse area (inclusive).
	DefaultAreaExclusionLow = 200
	// DefaultAreaExclusionHigh is the ellipse area limit (exclusive).
	DefaultAreaExclusionHigh = 2000
	// DefaultCellRadiusThreshold is the circle radius a cell must exceed.
	DefaultCellRadiusThreshold = 4

	// minEllipsePoints is the fewest boundary points fitEllipse accepts.
	minEllipsePoints = 5
)

// DefaultFillColor is the BGR-ordered green used for accepted shapes.
var DefaultFillColor = color.RGBA{0, 255, 0, 0}

// ParseFitType converts a configuration string into a FitType.
func ParseFitType(s string) (FitType, error) {
	switch FitType(s) {
	case FitEllipse, FitCircle:
		return FitType(s), nil
	}
	return "", errors.Errorf("unknown fit type %q (want %q or %q)", s, FitEllipse, FitCircle)
}

// ShapeFit is one accepted primitive.
type ShapeFit struct {
	// Kind is the primitive that was fitted.
	Kind FitType `json:"kind" yaml:"kind"`
	// Center of the ellipse or circle, in pixels.
	Center image.Point `json:"center" yaml:"center"`
	// Axes holds the ellipse half-lengths (zero for circles).
	Axes [2]float32 `json:"axes,omitempty" yaml:"axes,omitempty"`
	// Angle is the ellipse rotation in degrees (zero for circles).
	Angle float64 `json:"angle,omitempty" yaml:"angle,omitempty"`
	// Radius of the circle (zero for ellipses).
	Radius float32 `json:"radius,omitempty" yaml:"radius,omitempty"`
	// Area is π·a·b for ellipses and π·r² for circles.
	Area float32 `json:"area" yaml:"area"`
}

// EllipseArea returns π times the product of the two half-lengths.
func EllipseArea(a, b float32) float32 {
	return math32.Pi * a * b
}

// CircleArea returns π·r².
func CircleArea(r float32) float32 {
	return math32.Pi * r * r
}

// DetectionResult is the per-frame output of the ShapeExtractor.
type DetectionResult struct {
	// Visualization is the mask in BGR with accepted shapes drawn filled.
	Visualization gocv.Mat
	// Contours holds every traced boundary, accepted or not.
	Contours [][]image.Point
	// Shapes holds the accepted fits in contour order.
	Shapes []ShapeFit
}

// Accepted returns the number of accepted shapes.
func (r *DetectionResult) Accepted() int {
	return len(r.Shapes)
}

// Close releases the visualization matrix.
func (r *DetectionResult) Close() {
	r.Visualization.Close()
}

// ExtractorConfig holds the ShapeExtractor parameters.
type ExtractorConfig struct {
	// FitType selects ellipse or circle fitting.
	FitType FitType `mapstructure:"fit_type" yaml:"fit_type"`
	// AreaExclusionLow is the inclusive lower ellipse area bound.
	AreaExclusionLow float32 `mapstructure:"area_exclusion_low" yaml:"area_exclusion_low"`
	// AreaExclusionHigh is the exclusive upper ellipse area bound.
	AreaExclusionHigh float32 `mapstructure:"area_exclusion_high" yaml:"area_exclusion_high"`
	// CellRadiusThreshold is the radius a circle must exceed.
	CellRadiusThreshold float32 `mapstructure:"cell_radius_threshold" yaml:"cell_radius_threshold"`
	// FillColor is used to paint accepted shapes.
	FillColor color.RGBA `mapstructure:"-" yaml:"-"`
}

// DefaultExtractorConfig returns the reference extraction parameters.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		FitType:             FitEllipse,
		AreaExclusionLow:    DefaultAreaExclusionLow,
		AreaExclusionHigh:   DefaultAreaExclusionHigh,
		CellRadiusThreshold: DefaultCellRadiusThreshold,
		FillColor:           DefaultFillColor,
	}
}

// Validate reports the first invalid parameter.
func (c ExtractorConfig) Validate() error {
	if _, err := ParseFitType(string(c.FitType)); err != nil {
		return err
	}
	if c.AreaExclusionLow < 0 || c.AreaExclusionLow >= c.AreaExclusionHigh {
		return errors.Errorf("area exclusion limits must satisfy 0 <= low < high, got [%v, %v)",
			c.AreaExclusionLow, c.AreaExclusionHigh)
	}
	if c.CellRadiusThreshold < 0 {
		return errors.Errorf("cell_radius_threshold must be >= 0, got %v", c.CellRadiusThreshold)
	}
	return nil
}

// ShapeExtractor traces contours in a foreground mask, fits a primitive to each
// and keeps the ones whose size looks like a cell.
//
// It holds no native resources and no cross-call state.
type ShapeExtractor struct {
	config ExtractorConfig
}

// NewShapeExtractor returns an extractor. An empty FitType means ellipse and a
// zero FillColor means DefaultFillColor.
func NewShapeExtractor(config ExtractorConfig) *ShapeExtractor {
	if config.FitType == "" {
		config.FitType = FitEllipse
	}
	if config.FillColor == (color.RGBA{}) {
		config.FillColor = DefaultFillColor
	}
	return &ShapeExtractor{config: config}
}

// Config returns the parameters the extractor was built with.
func (x *ShapeExtractor) Config() ExtractorConfig {
	return x.config
}

// Extract traces every closed boundary in the mask (full hierarchy), fits the
// configured primitive and renders accepted shapes onto a BGR copy of the mask.
//
// Arguments:
//   - mask: CV_8UC1 binary foreground mask. Not modified.
//
// Returns:
//   - *DetectionResult the caller owns and must Close().
//   - ErrNotGrayscale if mask is not single-channel 8-bit.
func (x *ShapeExtractor) Extract(mask gocv.Mat) (*DetectionResult, error) {
	if mask.Empty() {
		return nil, errors.New("cannot extract shapes from an empty mask")
	}
	if mask.Type() != gocv.MatTypeCV8UC1 {
		return nil, ErrNotGrayscale
	}

	hierarchy := gocv.NewMat()
	defer hierarchy.Close()

	contours := gocv.FindContoursWithParams(mask, &hierarchy, gocv.RetrievalTree, gocv.ChainApproxSimple)
	defer contours.Close()

	vis := gocv.NewMat()
	gocv.CvtColor(mask, &vis, gocv.ColorGrayToBGR)

	result := &DetectionResult{
		Visualization: vis,
		Contours:      contours.ToPoints(),
	}

	for i := 0; i < contours.Size(); i++ {
		fit, ok := x.fit(contours.At(i))
		if !ok {
			continue
		}
		x.draw(&result.Visualization, fit)
		result.Shapes = append(result.Shapes, fit)
	}
	return result, nil
}

// fit applies the configured primitive to one contour and reports whether the
// result passes the size filter.
func (x *ShapeExtractor) fit(contour gocv.PointVector) (ShapeFit, bool) {
	switch x.config.FitType {
	case FitCircle:
		cx, cy, radius := gocv.MinEnclosingCircle(contour)
		if radius <= x.config.CellRadiusThreshold {
			return ShapeFit{}, false
		}
		return ShapeFit{
			Kind:   FitCircle,
			Center: image.Pt(int(cx), int(cy)),
			Radius: radius,
			Area:   CircleArea(radius),
		}, true

	default:
		// Fewer points than an ellipse needs is ordinary noise, not an error.
		if contour.Size() < minEllipsePoints {
			return ShapeFit{}, false
		}
		rect := gocv.FitEllipse(contour)
		a, b := float32(rect.Width)/2, float32(rect.Height)/2
		area := EllipseArea(a, b)
		if area < x.config.AreaExclusionLow || area >= x.config.AreaExclusionHigh {
			return ShapeFit{}, false
		}
		return ShapeFit{
			Kind:   FitEllipse,
			Center: rect.Center,
			Axes:   [2]float32{a, b},
			Angle:  rect.Angle,
			Area:   area,
		}, true
	}
}

// draw paints an accepted shape filled.
func (x *ShapeExtractor) draw(img *gocv.Mat, s ShapeFit) {
	switch s.Kind {
	case FitCircle:
		gocv.Circle(img, s.Center, int(s.Radius), x.config.FillColor, -1)
	default:
		axes := image.Pt(int(math32.Round(s.Axes[0])), int(math32.Round(s.Axes[1])))
		gocv.Ellipse(img, s.Center, axes, s.Angle, 0, 360, x.config.FillColor, -1)
	}
}
