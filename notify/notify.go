// Package notify - Delivery of "clip recorded" notifications.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-motion/common"
)

// ErrNotify matches every NotifyError with errors.Is.
var ErrNotify = errors.New("notification failed")

// NotifyError reports a notification that could not be delivered. It is non-fatal: the clip
// itself has already been written.
type NotifyError struct {
	Notifier string
	ClipID   int
	Err      error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("%s notification for clip %d failed: %v", e.Notifier, e.ClipID, e.Err)
}

// Unwrap returns the underlying delivery error.
func (e *NotifyError) Unwrap() error { return e.Err }

// Cause returns the underlying delivery error for errors.Cause.
func (e *NotifyError) Cause() error { return e.Err }

// Is makes errors.Is(err, ErrNotify) true for every NotifyError.
func (e *NotifyError) Is(target error) bool { return target == ErrNotify }

// Event announces a finished clip.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	ClipID    int             `json:"clip_id"`
	Path      string          `json:"path"`
	Thumbnail string          `json:"thumbnail,omitempty"`
	Quadrant  common.Quadrant `json:"quadrant"`
	Frames    int             `json:"frames"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"-"`
	Partial   bool            `json:"partial"`
}

// Seconds is the clip duration in seconds.
func (e Event) Seconds() float64 {
	return e.Duration.Seconds()
}

// Subject is the one-line summary used by text notifiers.
func (e Event) Subject() string {
	return fmt.Sprintf("Motion recorded: clip %d (%s)", e.ClipID, e.Quadrant)
}

// Notifier delivers an Event to one destination.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LogNotifier writes events to the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier backed by logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the event at info level.
func (n *LogNotifier) Notify(_ context.Context, event Event) error {
	n.logger.Info("Clip recorded",
		zap.Stringer("event_id", event.ID),
		zap.Int("clip_id", event.ClipID),
		zap.String("path", event.Path),
		zap.String("thumbnail", event.Thumbnail),
		zap.Stringer("quadrant", event.Quadrant),
		zap.Int("frames", event.Frames),
		zap.Duration("duration", event.Duration),
		zap.Bool("partial", event.Partial))
	return nil
}

// Multi fans an event out to several notifiers. Every notifier is attempted; failures are
// combined into one error.
type Multi []Notifier

// Notify delivers event to every notifier in order.
func (m Multi) Notify(ctx context.Context, event Event) error {
	var err error
	for _, n := range m {
		err = multierr.Append(err, n.Notify(ctx, event))
	}
	return err
}
