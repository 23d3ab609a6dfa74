// Package controller - The pipeline driver that routes every frame through detection,
// classification, the recording state machine, annotation and the live view.
package controller

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-motion/common"
	"github.com/nvr-ai/go-motion/images"
	"github.com/nvr-ai/go-motion/motion"
	"github.com/nvr-ai/go-motion/source"
)

// ErrClosed is returned by Next after Close.
var ErrClosed = errors.New("controller closed")

// Detector finds motion regions between two frames of identical shape.
type Detector interface {
	Detect(prev, cur gocv.Mat) (gocv.Mat, []common.BoundingBox, error)
}

// Publisher receives every annotated frame for live viewing. Publish must not block.
type Publisher interface {
	Publish(frame gocv.Mat)
}

// Profiler records cycle timings and metrics.
type Profiler interface {
	StartOperation(name string) func()
	RecordMetric(name string, value float64)
}

// Status is the pipeline state exposed to the status endpoint.
type Status struct {
	motion.Snapshot
	FPS       float64 `json:"fps"`
	MotionFPS float64 `json:"motion_fps"`
	Boxes     int     `json:"boxes"`
	Frames    uint64  `json:"frames"`
	LiveDrops uint64  `json:"live_drops"`
	Done      bool    `json:"done"`
	Error     string  `json:"error,omitempty"`
}

// Controller drives one cycle per source frame. Next and Run must be called from a single
// goroutine; Status may be called from any goroutine.
type Controller struct {
	src       source.Source
	detector  Detector
	machine   *motion.Machine
	annotator *images.Annotator
	publisher Publisher
	profiler  Profiler
	policy    common.QuadrantPolicy
	logger    *zap.Logger
	rate      *motion.FrameRate

	prev    common.Frame
	primed  bool
	display common.Frame
	shown   bool
	lastAt  time.Time
	frames  uint64
	done    bool
	err     error

	mu     sync.RWMutex
	status Status
}

// Option configures a Controller.
type Option func(*Controller)

// WithAnnotator replaces the default overlay styling.
func WithAnnotator(a *images.Annotator) Option {
	return func(c *Controller) { c.annotator = a }
}

// WithPublisher sends annotated frames to a live view.
func WithPublisher(p Publisher) Option {
	return func(c *Controller) { c.publisher = p }
}

// WithProfiler records per-cycle timings and metrics.
func WithProfiler(p Profiler) Option {
	return func(c *Controller) { c.profiler = p }
}

// WithPolicy selects how the dominant quadrant is chosen among several boxes.
func WithPolicy(p common.QuadrantPolicy) Option {
	return func(c *Controller) { c.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a pipeline driver.
//
// Arguments:
//   - src: The frame source. The controller closes it in Close.
//   - detector: Compares consecutive frames.
//   - machine: The recording state machine.
//   - opts: Optional annotator, publisher, profiler, quadrant policy and logger.
//
// Returns:
//   - *Controller: The controller.
//
// @example
// ctrl := controller.New(src, images.NewDifferenceDetector(cfg), machine, controller.WithPublisher(pub))
// defer ctrl.Close()
// err := ctrl.Run(ctx)
func New(src source.Source, detector Detector, machine *motion.Machine, opts ...Option) *Controller {
	c := &Controller{
		src:       src,
		detector:  detector,
		machine:   machine,
		annotator: images.NewAnnotator(),
		policy:    common.PolicyLargest,
		logger:    zap.NewNop(),
		rate:      motion.NewFrameRate(0),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.status.Snapshot = machine.Snapshot()
	return c
}

// Next runs one cycle and returns the annotated frame of that cycle. The frame is owned by
// the controller and valid until the following call.
//
// The first call reads two frames since a cycle compares the previous frame with the
// current one. Once the stream ends or fails, the open recording is flushed and every later
// call returns the same error; source.ErrEndOfStream marks a normal end.
//
// Arguments:
//   - ctx: Cancels the cycle. Cancellation also ends the stream.
//
// Returns:
//   - common.Frame: The annotated frame.
//   - error: source.ErrEndOfStream, a *source.SourceError, images.ErrShapeMismatch or ctx.Err().
func (c *Controller) Next(ctx context.Context) (common.Frame, error) {
	if c.done {
		return common.Frame{}, c.err
	}
	if err := ctx.Err(); err != nil {
		return common.Frame{}, c.stop(err)
	}

	if !c.primed {
		first, err := c.src.Next(ctx)
		if err != nil {
			return common.Frame{}, c.stop(err)
		}
		c.prev, c.primed = first, true
		c.lastAt = first.Timestamp
	}

	cur, err := c.src.Next(ctx)
	if err != nil {
		return common.Frame{}, c.stop(err)
	}

	endCycle := c.startOperation("cycle")
	defer endCycle()

	endDetect := c.startOperation("detect")
	_, boxes, err := c.detector.Detect(c.prev.Mat, cur.Mat)
	endDetect()
	if err != nil {
		cur.Close()
		return common.Frame{}, c.stop(errors.Wrapf(err, "frame %d", cur.Seq))
	}

	shape := cur.Shape()
	result := common.NewDetectionResult(boxes, shape.Cols, shape.Rows, c.policy)
	c.machine.Observe(result, cur.Timestamp)
	c.rate.Tick(cur.Timestamp, result.MotionPresent)

	display := cur.Clone()
	clipID, recording := c.machine.Recording()
	overlay := images.Overlay{
		Boxes:         result.Boxes,
		MotionPresent: result.MotionPresent,
		Quadrant:      result.Quadrant,
		Recording:     recording,
		ClipID:        clipID,
		FPS:           c.rate.Current,
		MotionFPS:     c.rate.Motion,
	}
	if err := c.annotator.Annotate(&display.Mat, overlay); err != nil {
		c.logger.Warn("Failed to annotate frame", zap.Uint64("seq", cur.Seq), zap.Error(err))
	}

	c.machine.Capture(display)
	if c.publisher != nil {
		c.publisher.Publish(display.Mat)
	}

	c.prev.Close()
	c.prev, c.lastAt = cur, cur.Timestamp
	if c.shown {
		c.display.Close()
	}
	c.display, c.shown = display, true
	c.frames++

	c.record(result)
	c.logger.Debug("Cycle",
		zap.Uint64("seq", cur.Seq),
		zap.Int("boxes", len(result.Boxes)),
		zap.Stringer("quadrant", result.Quadrant),
		zap.Stringer("state", c.machine.State()))

	return display, nil
}

// Run drives cycles until the stream ends, fails or ctx is cancelled. An open recording is
// always handed off before Run returns.
//
// Returns:
//   - error: nil on end of stream or cancellation, otherwise the fatal error.
func (c *Controller) Run(ctx context.Context) error {
	for {
		if _, err := c.Next(ctx); err != nil {
			if errors.Is(err, source.ErrEndOfStream) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// Status returns a copy of the latest pipeline status.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Close flushes an open recording and releases the held frames and the source.
func (c *Controller) Close() error {
	c.stop(ErrClosed)
	if c.shown {
		c.display.Close()
		c.shown = false
	}
	return c.src.Close()
}

// stop ends the stream once: the open session is flushed at the last frame time.
func (c *Controller) stop(err error) error {
	if c.done {
		return c.err
	}
	c.done, c.err = true, err

	flushed := c.machine.Flush(c.lastAt)
	if c.primed {
		c.prev.Close()
		c.primed = false
	}

	switch {
	case errors.Is(err, source.ErrEndOfStream), errors.Is(err, ErrClosed):
		c.logger.Info("Stream ended", zap.Uint64("frames", c.frames), zap.Bool("flushed", flushed))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.logger.Info("Pipeline cancelled", zap.Uint64("frames", c.frames), zap.Bool("flushed", flushed))
	default:
		c.logger.Error("Pipeline failed", zap.Uint64("frames", c.frames), zap.Bool("flushed", flushed), zap.Error(err))
	}

	c.mu.Lock()
	c.status.Snapshot = c.machine.Snapshot()
	c.status.Done = true
	if !errors.Is(err, source.ErrEndOfStream) && !errors.Is(err, ErrClosed) {
		c.status.Error = err.Error()
	}
	c.mu.Unlock()

	return err
}

func (c *Controller) record(result common.DetectionResult) {
	snapshot := c.machine.Snapshot()

	c.mu.Lock()
	c.status.Snapshot = snapshot
	c.status.FPS = c.rate.Current
	c.status.MotionFPS = c.rate.Motion
	c.status.Boxes = len(result.Boxes)
	c.status.Frames = c.frames
	c.mu.Unlock()

	if c.profiler != nil {
		c.profiler.RecordMetric("boxes", float64(len(result.Boxes)))
		c.profiler.RecordMetric("buffered_frames", float64(snapshot.Buffered))
	}
}

func (c *Controller) startOperation(name string) func() {
	if c.profiler == nil {
		return func() {}
	}
	return c.profiler.StartOperation(name)
}
