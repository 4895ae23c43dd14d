package commands

import (
	"encoding/json"
	"os"

	"github.com/nvr-ai/go-cytometry/config"
	"github.com/nvr-ai/go-cytometry/controller"
	"github.com/nvr-ai/go-cytometry/images"
	"github.com/nvr-ai/go-cytometry/logger"
	"github.com/nvr-ai/go-cytometry/profiler"
	"github.com/nvr-ai/go-cytometry/sink"
	"github.com/nvr-ai/go-cytometry/source"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type runOptions struct {
	headless    bool
	outputDir   string
	outputWidth int
	wait        int
	shapes      bool
}

func newRunCommand(load loadFunc) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run VIDEO|DIR",
		Short: "Detect cells in a video or a directory of frames",
		Long: `Run the two-pass pipeline over a video file or a directory of numbered
frame images and print run statistics as JSON.

The first pass builds the background model; the second segments every frame
and shows the selected view in a window, writes it to a directory, or drops
it when running headless. Press q or Esc in the window to stop early.`,
		Example: `  # Interactive playback with ellipse fits
  cellbangle run assay.avi

  # Circle fits, frames written to disk at most 640 px wide
  cellbangle run assay.avi --fit circle --output-dir out --output-width 640

  # Headless, one JSON line per frame with the accepted shapes
  cellbangle run frames/ --headless --shapes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			return runPipeline(cmd, args[0], cfg, opts)
		},
	}

	f := cmd.Flags()
	f.String("fit", string(images.FitEllipse), "fitted primitive (ellipse or circle)")
	f.String("view", string(controller.ViewOverlay), "presented view (overlay, mask or edges)")
	f.Int("max-frames", 0, "stop after this many frames (0 = all)")
	f.Bool("profile", false, "log periodic stage timing reports")
	f.BoolVar(&opts.headless, "headless", false, "do not open a window")
	f.StringVar(&opts.outputDir, "output-dir", "", "write every presented frame as PNG into this directory")
	f.IntVar(&opts.outputWidth, "output-width", 0, "downscale written frames to at most this width (0 = original)")
	f.IntVar(&opts.wait, "wait", 1, "milliseconds to wait for a key press per frame")
	f.BoolVar(&opts.shapes, "shapes", false, "print the accepted shapes of every frame as JSON lines")
	return cmd
}

// openSource picks the source implementation for path.
func openSource(path string) (controller.FrameSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open input %s", path)
	}
	if info.IsDir() {
		return source.OpenDirectory(path)
	}
	return source.OpenVideo(path)
}

// openSink picks the sink implementation for the run options.
func openSink(opts runOptions) (controller.FrameSink, error) {
	switch {
	case opts.outputDir != "":
		return sink.NewDirectory(opts.outputDir, opts.outputWidth)
	case opts.headless:
		return &sink.Discard{}, nil
	default:
		return sink.NewWindow("cellbangle", opts.wait), nil
	}
}

type frameShapes struct {
	Frame   int               `json:"frame"`
	Shapes  []images.ShapeFit `json:"shapes"`
	Summary images.Summary    `json:"summary"`
}

func runPipeline(cmd *cobra.Command, input string, cfg config.Config, opts runOptions) error {
	src, err := openSource(input)
	if err != nil {
		return err
	}
	dst, err := openSink(opts)
	if err != nil {
		src.Close()
		return err
	}

	rp := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{
		ReportInterval: cfg.Profile.ReportInterval,
		Logger:         *logger.WithComponent("profiler"),
	})
	if cfg.Profile.Enabled {
		rp.Start()
		defer func() {
			rp.Stop()
			rp.Report()
		}()
	}

	out := json.NewEncoder(cmd.OutOrStdout())
	ctrlOpts := []controller.Option{controller.WithProfiler(rp)}
	if opts.shapes {
		ctrlOpts = append(ctrlOpts, controller.WithResultFunc(func(i int, r *images.DetectionResult) {
			if err := out.Encode(frameShapes{Frame: i, Shapes: r.Shapes, Summary: images.Summarize(r.Shapes)}); err != nil {
				logger.WithComponent("cli").Warn().Err(err).Int("frame", i).Msg("write shapes")
			}
		}))
	}

	stats, err := controller.New(cfg.Pipeline, ctrlOpts...).Run(cmd.Context(), src, dst)
	if err != nil {
		return err
	}

	out.SetIndent("", "  ")
	return out.Encode(stats)
}
