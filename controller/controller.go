// Package controller - This file contains the pipeline controller that drives a
// video through background estimation, segmentation and shape extraction.
//
// Every run is two passes over the same source:
//
//	PreScanning ──(io.EOF)──▶ Reset ──▶ SegmentingLoop ──(EOF | cancel)──▶ Terminated
//
// The first pass feeds every frame to the BackgroundEstimator. The second pass
// segments each frame against the resulting model, extracts shapes and hands
// a view of the frame to the sink.
package controller

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/nvr-ai/go-cytometry/images"
	"github.com/nvr-ai/go-cytometry/logger"
	"github.com/nvr-ai/go-cytometry/profiler"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// State is the lifecycle phase of a run.
type State int

const (
	// PreScanning reads the whole source to build the background model.
	PreScanning State = iota
	// SegmentingLoop processes frames one at a time against the model.
	SegmentingLoop
	// Terminated is entered on end of stream, cancellation or error.
	Terminated
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case PreScanning:
		return "pre-scanning"
	case SegmentingLoop:
		return "segmenting"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}

// FrameSource yields decoded frames in order.
type FrameSource interface {
	// Read decodes the next frame into dst. It returns io.EOF once the stream
	// is exhausted.
	Read(dst *gocv.Mat) error
	// Reset rewinds the source to its first frame.
	Reset() error
	// Close releases the underlying handle.
	Close() error
}

// FrameSink consumes rendered frames.
type FrameSink interface {
	// Present displays or stores one frame. The sink must not keep frame.
	Present(frame gocv.Mat) error
	// Cancelled reports whether the consumer asked to stop.
	Cancelled() bool
	// Close releases the sink.
	Close() error
}

// ViewMode selects what the sink receives for every frame.
type ViewMode string

const (
	// ViewOverlay presents the mask with accepted shapes painted in.
	ViewOverlay ViewMode = "overlay"
	// ViewMask presents the raw binary foreground mask.
	ViewMask ViewMode = "mask"
	// ViewEdges presents the Canny edges of the mask.
	ViewEdges ViewMode = "edges"
)

// ParseViewMode converts a configuration string into a ViewMode. The empty
// string means ViewOverlay.
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(s) {
	case "", ViewOverlay:
		return ViewOverlay, nil
	case ViewMask, ViewEdges:
		return ViewMode(s), nil
	}
	return "", errors.Errorf("unknown view mode %q (want %q, %q or %q)", s, ViewOverlay, ViewMask, ViewEdges)
}

// Config holds everything a run needs.
type Config struct {
	Segmentation images.SegmenterConfig `mapstructure:"segmentation" yaml:"segmentation"`
	Extraction   images.ExtractorConfig `mapstructure:"extraction" yaml:"extraction"`
	View         ViewMode               `mapstructure:"view" yaml:"view"`
	// MaxFrames caps the segmenting loop; zero processes the whole source.
	MaxFrames int `mapstructure:"max_frames" yaml:"max_frames"`
}

// DefaultConfig returns the reference pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Segmentation: images.DefaultSegmenterConfig(),
		Extraction:   images.DefaultExtractorConfig(),
		View:         ViewOverlay,
	}
}

// Validate reports the first invalid parameter.
func (c Config) Validate() error {
	if err := c.Segmentation.Validate(); err != nil {
		return errors.Wrap(err, "segmentation")
	}
	if err := c.Extraction.Validate(); err != nil {
		return errors.Wrap(err, "extraction")
	}
	if _, err := ParseViewMode(string(c.View)); err != nil {
		return err
	}
	if c.MaxFrames < 0 {
		return errors.Errorf("max_frames must be >= 0, got %d", c.MaxFrames)
	}
	return nil
}

// Stats summarizes a finished run.
type Stats struct {
	RunID string `json:"run_id"`
	// BackgroundFrames is the number of frames the model was built from.
	BackgroundFrames int `json:"background_frames"`
	// Frames is the number of frames segmented.
	Frames int `json:"frames"`
	// Accepted is the total number of accepted shapes over all frames.
	Accepted int `json:"accepted"`
	// PerFrame holds the accepted shape count of every segmented frame.
	PerFrame []int `json:"per_frame"`
	// Cancelled is set when the sink or the context stopped the run early.
	Cancelled bool `json:"cancelled"`
}

// ResultFunc observes every frame's detections. The result is only valid for
// the duration of the call.
type ResultFunc func(frameIndex int, result *images.DetectionResult)

// Option configures a Controller.
type Option func(*Controller)

// WithResultFunc registers a per-frame observer.
func WithResultFunc(fn ResultFunc) Option {
	return func(c *Controller) { c.onResult = fn }
}

// WithProfiler records stage timings into rp instead of a private profiler.
func WithProfiler(rp *profiler.RuntimeProfiler) Option {
	return func(c *Controller) { c.profiler = rp }
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// Controller runs the two-pass cell detection pipeline.
type Controller struct {
	config   Config
	state    State
	onResult ResultFunc
	profiler *profiler.RuntimeProfiler
	log      zerolog.Logger
}

// New creates a controller. The configuration is validated by Run.
//
// Arguments:
//   - config: Pipeline parameters.
//   - opts: Optional observers, profiler and logger.
//
// Returns:
//   - *Controller in the PreScanning state.
func New(config Config, opts ...Option) *Controller {
	if config.View == "" {
		config.View = ViewOverlay
	}
	c := &Controller{
		config: config,
		state:  PreScanning,
		log:    *logger.WithComponent("controller"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.profiler == nil {
		c.profiler = profiler.NewRuntimeProfiler(profiler.ProfilingOptions{})
	}
	return c
}

// State returns the phase of the current or last run.
func (c *Controller) State() State {
	return c.state
}

// Profiler returns the profiler stage timings are recorded into.
func (c *Controller) Profiler() *profiler.RuntimeProfiler {
	return c.profiler
}

func (c *Controller) transition(log zerolog.Logger, next State) {
	log.Info().Stringer("from", c.state).Stringer("to", next).Msg("state transition")
	c.state = next
}

// Run drives src through both passes and presents every processed frame to
// sink. It owns src and sink and closes both before returning, whatever the
// outcome.
//
// End of stream, sink cancellation and context cancellation are normal
// termination and return a nil error.
//
// Arguments:
//   - ctx: Cancels the run between frames.
//   - src: The video to analyze.
//   - sink: Receives the view selected by Config.View.
//
// Returns:
//   - Stats of the run.
//   - images.ErrEmptyVideo if src yielded no frames.
//   - *images.DimensionMismatchError (wrapped) if frame sizes disagree.
func (c *Controller) Run(ctx context.Context, src FrameSource, sink FrameSink) (stats Stats, err error) {
	stats.RunID = uuid.NewString()
	log := c.log.With().Str("run_id", stats.RunID).Logger()
	c.state = PreScanning

	defer func() {
		if closeErr := closeAll(log, src, sink); err == nil {
			err = closeErr
		}
		c.transition(log, Terminated)
	}()

	if err := c.config.Validate(); err != nil {
		return stats, errors.Wrap(err, "invalid configuration")
	}

	model, cancelled, err := c.prescan(ctx, log, src)
	if err != nil {
		return stats, err
	}
	if cancelled {
		stats.Cancelled = true
		return stats, nil
	}
	defer model.Close()
	stats.BackgroundFrames = model.Frames()

	if err := src.Reset(); err != nil {
		return stats, errors.Wrap(err, "rewind source after pre-scan")
	}

	c.transition(log, SegmentingLoop)
	err = c.loop(ctx, log, src, sink, model, &stats)
	log.Info().
		Int("frames", stats.Frames).
		Int("accepted", stats.Accepted).
		Bool("cancelled", stats.Cancelled).
		Msg("run finished")
	return stats, err
}

// Background runs only the pre-scan pass and returns the model. It owns src
// and closes it before returning.
func (c *Controller) Background(ctx context.Context, src FrameSource) (*images.BackgroundModel, error) {
	log := c.log.With().Str("run_id", uuid.NewString()).Logger()
	c.state = PreScanning
	defer c.transition(log, Terminated)

	model, cancelled, err := c.prescan(ctx, log, src)
	if closeErr := src.Close(); closeErr != nil {
		log.Warn().Err(closeErr).Msg("close source")
	}
	if err != nil {
		return nil, err
	}
	if cancelled {
		return nil, ctx.Err()
	}
	return model, nil
}

// prescan feeds every frame of src into a BackgroundEstimator.
func (c *Controller) prescan(ctx context.Context, log zerolog.Logger, src FrameSource) (*images.BackgroundModel, bool, error) {
	defer c.profiler.StartOperation("prescan")()

	frame := gocv.NewMat()
	defer frame.Close()
	gray := gocv.NewMat()
	defer gray.Close()

	est := images.NewBackgroundEstimator()
	for i := 0; ; i++ {
		if ctx.Err() != nil {
			log.Info().Int("frames", i).Msg("pre-scan cancelled")
			return nil, true, nil
		}

		err := src.Read(&frame)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, false, errors.Wrapf(err, "pre-scan read frame %d", i)
		}

		if err := images.ToGray(frame, &gray); err != nil {
			return nil, false, errors.Wrapf(err, "pre-scan frame %d", i)
		}
		if err := est.Add(gray); err != nil {
			return nil, false, errors.Wrapf(err, "pre-scan frame %d", i)
		}
	}

	n := est.Len()
	model, err := est.Estimate()
	if err != nil {
		return nil, false, err
	}
	log.Info().
		Int("frames", n).
		Int("width", model.Size().X).
		Int("height", model.Size().Y).
		Msg("background model estimated")
	return model, false, nil
}

// loop segments frames until end of stream, cancellation, MaxFrames or a
// fatal error.
func (c *Controller) loop(
	ctx context.Context,
	log zerolog.Logger,
	src FrameSource,
	sink FrameSink,
	model *images.BackgroundModel,
	stats *Stats,
) error {
	seg := images.NewFrameSegmenter(c.config.Segmentation)
	defer seg.Close()
	extractor := images.NewShapeExtractor(c.config.Extraction)

	frame := gocv.NewMat()
	defer frame.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	edges := gocv.NewMat()
	defer edges.Close()

	for i := 0; c.config.MaxFrames == 0 || i < c.config.MaxFrames; i++ {
		if ctx.Err() != nil {
			stats.Cancelled = true
			return nil
		}

		if err := src.Read(&frame); err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warn().Err(err).Int("frame", i).Msg("read failed, ending run")
			}
			return nil
		}

		done := c.profiler.StartOperation("segment")
		err := seg.Segment(frame, model, &mask)
		done()
		if err != nil {
			return errors.Wrapf(err, "segment frame %d", i)
		}

		done = c.profiler.StartOperation("extract")
		result, err := extractor.Extract(mask)
		done()
		if err != nil {
			return errors.Wrapf(err, "extract frame %d", i)
		}

		accepted := result.Accepted()
		stats.Frames++
		stats.Accepted += accepted
		stats.PerFrame = append(stats.PerFrame, accepted)

		summary := images.Summarize(result.Shapes)
		c.profiler.RecordMetric("accepted_shapes", float64(accepted))
		if accepted > 0 {
			c.profiler.RecordMetric("mean_area", summary.MeanArea)
		}
		log.Debug().
			Int("frame", i).
			Int("contours", len(result.Contours)).
			Int("accepted", accepted).
			Float64("mean_area", summary.MeanArea).
			Msg("frame processed")

		if c.onResult != nil {
			c.onResult(i, result)
		}

		view := result.Visualization
		switch c.config.View {
		case ViewMask:
			view = mask
		case ViewEdges:
			seg.Edges(mask, &edges)
			view = edges
		}

		done = c.profiler.StartOperation("present")
		err = sink.Present(view)
		done()
		result.Close()
		if err != nil {
			return errors.Wrapf(err, "present frame %d", i)
		}

		if sink.Cancelled() {
			log.Info().Int("frame", i).Msg("sink requested stop")
			stats.Cancelled = true
			return nil
		}
	}
	return nil
}

// closeAll closes src and sink and returns the first failure.
func closeAll(log zerolog.Logger, src FrameSource, sink FrameSink) error {
	var first error
	if err := src.Close(); err != nil {
		log.Warn().Err(err).Msg("close source")
		first = errors.Wrap(err, "close source")
	}
	if err := sink.Close(); err != nil {
		log.Warn().Err(err).Msg("close sink")
		if first == nil {
			first = errors.Wrap(err, "close sink")
		}
	}
	return first
}
