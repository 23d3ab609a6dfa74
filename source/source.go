// Package source - Frame sources feeding the motion pipeline: capture devices, video files,
// network streams and directories of still images.
package source

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-motion/common"
)

// ErrEndOfStream is returned by Next once a finite source has no more frames. It is the
// normal way for a pipeline to stop.
var ErrEndOfStream = errors.New("end of stream")

// SourceError reports a failure of the underlying device or stream.
type SourceError struct {
	Op  string
	Src string
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %s: %v", e.Src, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *SourceError) Unwrap() error { return e.Err }

// Cause returns the underlying error for errors.Cause.
func (e *SourceError) Cause() error { return e.Err }

// Source yields frames in capture order.
type Source interface {
	// Next returns the next frame. The caller owns the returned Mat. It returns
	// ErrEndOfStream when a finite source is exhausted and a *SourceError on failure.
	Next(ctx context.Context) (common.Frame, error)
	// Close releases the device or file.
	Close() error
}
