// Package clip - Persistence and hand-off of finished recording sessions.
package clip

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-motion/common"
)

// ErrWrite matches every WriteError with errors.Is.
var ErrWrite = errors.New("clip write failed")

// WriteError reports a clip that could not be persisted.
type WriteError struct {
	ClipID int
	Path   string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write clip %d to %s: %v", e.ClipID, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *WriteError) Unwrap() error { return e.Err }

// Cause returns the underlying error for errors.Cause.
func (e *WriteError) Cause() error { return e.Err }

// Is makes errors.Is(err, ErrWrite) true for every WriteError.
func (e *WriteError) Is(target error) bool { return target == ErrWrite }

// Writer persists a sequence of frames as a playable clip.
type Writer interface {
	// WriteClip encodes frames and returns the location of the written clip.
	WriteClip(ctx context.Context, frames []common.Frame, clipID int, shape common.Shape, duration time.Duration) (string, error)
}

// WriterConfig configures a FileWriter.
type WriterConfig struct {
	// Dir is the output directory, created on first write.
	Dir string
	// Codec is the FourCC passed to the video encoder.
	Codec string
	// Extension selects the container, e.g. ".mp4".
	Extension string
}

// FileWriter encodes clips with the OpenCV video writer.
type FileWriter struct {
	config WriterConfig
}

// NewFileWriter creates a writer for config.
func NewFileWriter(config WriterConfig) *FileWriter {
	if config.Codec == "" {
		config.Codec = "avc1"
	}
	if config.Extension == "" {
		config.Extension = ".mp4"
	}
	return &FileWriter{config: config}
}

// Path returns the file a clip id is written to.
func (w *FileWriter) Path(clipID int) string {
	return filepath.Join(w.config.Dir, Name(clipID, w.config.Extension))
}

// Name is the base name of a clip file.
func Name(clipID int, ext string) string {
	return fmt.Sprintf("recording_%d%s", clipID, ext)
}

// PlaybackFPS is the frame rate at which frames play back in real time over duration. It
// falls back to 1 when the duration is shorter than a second per frame can express.
func PlaybackFPS(frames int, duration time.Duration) float64 {
	if frames == 0 || duration <= 0 {
		return 1
	}
	fps := float64(frames) / duration.Seconds()
	if fps < 1 {
		return 1
	}
	return fps
}

// WriteClip encodes frames to <Dir>/recording_<clipID><Extension>.
//
// Arguments:
//   - ctx: Cancels encoding between frames.
//   - frames: The frames to encode, all of the given shape.
//   - clipID: The clip id used in the file name.
//   - shape: The frame shape.
//   - duration: The wall-clock span of the session, used to derive the playback rate.
//
// Returns:
//   - string: The path of the written clip.
//   - error: A *WriteError if the clip could not be written.
func (w *FileWriter) WriteClip(ctx context.Context, frames []common.Frame, clipID int, shape common.Shape, duration time.Duration) (string, error) {
	path := w.Path(clipID)
	fail := func(err error) (string, error) {
		return "", &WriteError{ClipID: clipID, Path: path, Err: err}
	}

	if len(frames) == 0 {
		return fail(errors.New("no frames"))
	}
	if err := os.MkdirAll(w.config.Dir, 0o755); err != nil {
		return fail(errors.Wrap(err, "failed to create output directory"))
	}

	vw, err := gocv.VideoWriterFile(path, w.config.Codec, PlaybackFPS(len(frames), duration), shape.Cols, shape.Rows, shape.Channels != 1)
	if err != nil {
		return fail(errors.Wrapf(err, "failed to open video writer with codec %s", w.config.Codec))
	}
	defer vw.Close()

	if !vw.IsOpened() {
		return fail(errors.Errorf("video writer for codec %s is not open", w.config.Codec))
	}

	for i, f := range frames {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if got := f.Shape(); got != shape {
			return fail(errors.Errorf("frame %d has shape %s, want %s", i, got, shape))
		}
		if err := vw.Write(f.Mat); err != nil {
			return fail(errors.Wrapf(err, "failed to write frame %d", i))
		}
	}

	return path, nil
}
