package clip

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/go-motion/images"
	"github.com/nvr-ai/go-motion/motion"
	"github.com/nvr-ai/go-motion/notify"
)

// thumbnailQuality is the lossy WebP quality of poster images.
const thumbnailQuality = 75

// Handle describes a clip that has been written.
type Handle struct {
	ClipID    int
	Path      string
	Thumbnail string
	Frames    int
	Duration  time.Duration
}

// Finalizer writes closed sessions and announces them. Each session is processed on its own
// goroutine so the pipeline never waits for encoding or delivery.
type Finalizer struct {
	writer   Writer
	notifier notify.Notifier
	logger   *zap.Logger

	thumbnailWidth int
	ctx            context.Context
	group          errgroup.Group

	inFlight       atomic.Int64
	written        atomic.Int64
	writeFailures  atomic.Int64
	notifyFailures atomic.Int64
}

// Option configures a Finalizer.
type Option func(*Finalizer)

// WithThumbnails stores a WebP poster of the first frame next to every clip, scaled down to
// width pixels. A width <= 0 disables thumbnails.
func WithThumbnails(width int) Option {
	return func(f *Finalizer) { f.thumbnailWidth = width }
}

// WithContext sets the context passed to the writer and notifier of background jobs.
func WithContext(ctx context.Context) Option {
	return func(f *Finalizer) { f.ctx = ctx }
}

// NewFinalizer creates the clip boundary.
//
// Arguments:
//   - writer: Persists the frames of each session.
//   - notifier: Announces written clips; nil disables notifications.
//   - logger: Receives clip lifecycle messages and non-fatal failures.
//   - opts: Optional thumbnail and context settings.
//
// Returns:
//   - *Finalizer: The finalizer. Call Close to wait for in-flight clips.
//
// @example
// finalizer := clip.NewFinalizer(clip.NewFileWriter(cfg), notifier, log, clip.WithThumbnails(320))
// defer finalizer.Close()
// machine := motion.New(motion.DefaultConfig(), finalizer)
func NewFinalizer(writer Writer, notifier notify.Notifier, logger *zap.Logger, opts ...Option) *Finalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Finalizer{
		writer:   writer,
		notifier: notifier,
		logger:   logger,
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Finalize takes ownership of a closed session and processes it in the background.
func (f *Finalizer) Finalize(session motion.Clip) {
	f.inFlight.Add(1)
	f.group.Go(func() error {
		defer f.inFlight.Add(-1)
		// Failures are logged by Process and never stop the pipeline.
		_, _ = f.Process(f.ctx, session)
		return nil
	})
}

// Process writes a session, stores its thumbnail and sends the notification. It releases
// the session frames before returning.
//
// Arguments:
//   - ctx: Cancels writing and delivery.
//   - session: The closed session.
//
// Returns:
//   - Handle: The written clip. Zero when writing failed.
//   - error: A *WriteError when the clip could not be written, or a notification error.
func (f *Finalizer) Process(ctx context.Context, session motion.Clip) (Handle, error) {
	defer session.Close()

	log := f.logger.With(zap.Int("clip_id", session.ID))

	path, err := f.writer.WriteClip(ctx, session.Frames, session.ID, session.Shape, session.Duration())
	if err != nil {
		f.writeFailures.Add(1)
		log.Warn("Failed to write clip", zap.Int("frames", len(session.Frames)), zap.Error(err))
		return Handle{}, err
	}
	f.written.Add(1)

	handle := Handle{
		ClipID:   session.ID,
		Path:     path,
		Frames:   len(session.Frames),
		Duration: session.Duration(),
	}
	log.Info("Clip written",
		zap.String("path", path),
		zap.Int("frames", handle.Frames),
		zap.Duration("duration", handle.Duration))

	if f.thumbnailWidth > 0 {
		thumb, err := f.thumbnail(session, path)
		if err != nil {
			log.Warn("Failed to store thumbnail", zap.Error(err))
		}
		handle.Thumbnail = thumb
	}

	if f.notifier == nil {
		return handle, nil
	}

	event := notify.Event{
		ID:        uuid.New(),
		ClipID:    handle.ClipID,
		Path:      handle.Path,
		Thumbnail: handle.Thumbnail,
		Quadrant:  session.Quadrant,
		Frames:    handle.Frames,
		StartedAt: session.StartTime,
		Duration:  handle.Duration,
		Partial:   session.Partial,
	}
	if err := f.notifier.Notify(ctx, event); err != nil {
		f.notifyFailures.Add(1)
		log.Warn("Failed to send notification", zap.Error(err))
		return handle, err
	}
	return handle, nil
}

func (f *Finalizer) thumbnail(session motion.Clip, clipPath string) (string, error) {
	if len(session.Frames) == 0 {
		return "", nil
	}
	img, err := images.EncodeThumbnail(session.Frames[0].Mat, f.thumbnailWidth, thumbnailQuality)
	if err != nil {
		return "", err
	}
	path := strings.TrimSuffix(clipPath, filepath.Ext(clipPath)) + img.Format.Extension()
	if err := os.WriteFile(path, img.Data, 0o644); err != nil {
		return "", errors.Wrap(err, "failed to write thumbnail")
	}
	return path, nil
}

// Close waits for every in-flight session.
func (f *Finalizer) Close() error {
	return f.group.Wait()
}

// CollectMetrics reports clip throughput for the profiler.
func (f *Finalizer) CollectMetrics() map[string]float64 {
	return map[string]float64{
		"clips_in_flight":     float64(f.inFlight.Load()),
		"clips_written":       float64(f.written.Load()),
		"clip_write_failures": float64(f.writeFailures.Load()),
		"notify_failures":     float64(f.notifyFailures.Load()),
	}
}
