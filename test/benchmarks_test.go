package test

import (
	"context"
	"fmt"
	"image"
	"testing"

	"github.com/nvr-ai/go-cytometry/controller"
	"github.com/nvr-ai/go-cytometry/images"
	"github.com/nvr-ai/go-cytometry/sink"
	"github.com/nvr-ai/go-cytometry/source"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

var benchmarkSizes = []image.Point{{320, 240}, {640, 480}, {1280, 720}}

// BenchmarkBackgroundEstimator measures histogram accumulation plus the final
// median over a 30-frame clip.
func BenchmarkBackgroundEstimator(b *testing.B) {
	for _, size := range benchmarkSizes[:2] {
		b.Run(fmt.Sprintf("%dx%d", size.X, size.Y), func(b *testing.B) {
			gen := NewMockFrameGenerator(size.X, size.Y)
			frames := gen.GenerateFlowVideo(30, image.Pt(15, 12))
			defer CloseAll(frames)

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				model, err := images.EstimateBackground(frames)
				if err != nil {
					b.Fatal(err)
				}
				model.Close()
			}
		})
	}
}

// BenchmarkSegmentExtract measures the per-frame cost of the segmenting loop.
func BenchmarkSegmentExtract(b *testing.B) {
	for _, size := range benchmarkSizes {
		b.Run(fmt.Sprintf("%dx%d", size.X, size.Y), func(b *testing.B) {
			gen := NewMockFrameGenerator(size.X, size.Y)
			bg := gen.GenerateStaticFrame()
			defer bg.Close()
			model, err := images.EstimateBackground([]gocv.Mat{bg})
			if err != nil {
				b.Fatal(err)
			}
			defer model.Close()

			frame := gen.GenerateCellFrame(
				Cell{Center: image.Pt(size.X/4, size.Y/2), Axes: image.Pt(20, 15)},
				Cell{Center: image.Pt(size.X/2, size.Y/2), Axes: image.Pt(18, 12), Angle: 45},
				Cell{Center: image.Pt(3*size.X/4, size.Y/2), Axes: image.Pt(3, 2)},
			)
			defer frame.Close()

			seg := images.NewFrameSegmenter(images.DefaultSegmenterConfig())
			defer seg.Close()
			x := images.NewShapeExtractor(images.DefaultExtractorConfig())
			mask := gocv.NewMat()
			defer mask.Close()

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := seg.Segment(frame, model, &mask); err != nil {
					b.Fatal(err)
				}
				result, err := x.Extract(mask)
				if err != nil {
					b.Fatal(err)
				}
				result.Close()
			}
		})
	}
}

// BenchmarkControllerRun measures a complete two-pass run of a short clip.
func BenchmarkControllerRun(b *testing.B) {
	gen := NewMockFrameGenerator(640, 480)
	frames := gen.GenerateFlowVideo(20, image.Pt(15, 12))
	defer CloseAll(frames)

	c := controller.New(controller.DefaultConfig(), controller.WithLogger(zerolog.Nop()))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Run(context.Background(), source.NewSlice(frames...), &sink.Discard{}); err != nil {
			b.Fatal(err)
		}
	}
}
