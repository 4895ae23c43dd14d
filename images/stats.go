package images

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates the accepted shapes of one frame into cytometry-style
// size statistics.
type Summary struct {
	Count      int     `json:"count"`
	MeanArea   float64 `json:"mean_area"`
	StdDevArea float64 `json:"stddev_area"`
	MedianArea float64 `json:"median_area"`
	MinArea    float64 `json:"min_area"`
	MaxArea    float64 `json:"max_area"`
	// MeanRadius is only populated for circle fits.
	MeanRadius float64 `json:"mean_radius,omitempty"`
}

// Summarize computes area statistics over the given shapes.
//
// Arguments:
//   - shapes: Accepted fits of one frame, in any order.
//
// Returns:
//   - Summary; the zero value for an empty input. StdDevArea is the sample
//     standard deviation and is zero for a single shape.
func Summarize(shapes []ShapeFit) Summary {
	if len(shapes) == 0 {
		return Summary{}
	}

	areas := make([]float64, len(shapes))
	var radii []float64
	for i, s := range shapes {
		areas[i] = float64(s.Area)
		if s.Kind == FitCircle {
			radii = append(radii, float64(s.Radius))
		}
	}

	sum := Summary{
		Count:   len(shapes),
		MinArea: floats.Min(areas),
		MaxArea: floats.Max(areas),
	}
	if len(areas) > 1 {
		sum.MeanArea, sum.StdDevArea = stat.MeanStdDev(areas, nil)
	} else {
		sum.MeanArea = areas[0]
	}

	sort.Float64s(areas)
	sum.MedianArea = stat.Quantile(0.5, stat.Empirical, areas, nil)

	if len(radii) > 0 {
		sum.MeanRadius = stat.Mean(radii, nil)
	}
	return sum
}
