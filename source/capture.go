package source

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-motion/common"
)

// maxEmptyReads is the number of consecutive empty frames tolerated before a source is
// considered broken.
const maxEmptyReads = 30

// CaptureSource reads frames through the OpenCV video capture API.
type CaptureSource struct {
	vc     *gocv.VideoCapture
	name   string
	file   bool
	seq    uint64
	start  time.Time
	now    func() time.Time
	logger *zap.Logger
}

// OpenDevice opens a local capture device such as a webcam.
//
// Arguments:
//   - id: The device index, 0 for the default camera.
//   - logger: Receives capture diagnostics.
//
// Returns:
//   - *CaptureSource: The opened source. Frames are stamped with the wall clock.
//   - error: A *SourceError if the device cannot be opened.
func OpenDevice(id int, logger *zap.Logger) (*CaptureSource, error) {
	return open(id, "device "+strconv.Itoa(id), false, logger)
}

// OpenURL opens a video file or network stream (rtsp://, http://).
//
// Video files end with ErrEndOfStream and are stamped with their playback position so that
// durations follow the recording, not the decoding speed. Network streams are stamped with
// the wall clock and a read failure is a *SourceError.
func OpenURL(url string, logger *zap.Logger) (*CaptureSource, error) {
	return open(url, url, !strings.Contains(url, "://"), logger)
}

func open(target interface{}, name string, file bool, logger *zap.Logger) (*CaptureSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	vc, err := gocv.OpenVideoCapture(target)
	if err != nil {
		return nil, &SourceError{Op: "open", Src: name, Err: err}
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, &SourceError{Op: "open", Src: name, Err: errors.New("capture is not open")}
	}

	logger.Info("Video source opened",
		zap.String("source", name),
		zap.Float64("fps", vc.Get(gocv.VideoCaptureFPS)),
		zap.Float64("width", vc.Get(gocv.VideoCaptureFrameWidth)),
		zap.Float64("height", vc.Get(gocv.VideoCaptureFrameHeight)))

	return &CaptureSource{
		vc:     vc,
		name:   name,
		file:   file,
		start:  time.Now(),
		now:    time.Now,
		logger: logger,
	}, nil
}

// Next reads the next non-empty frame.
func (s *CaptureSource) Next(ctx context.Context) (common.Frame, error) {
	for empty := 0; ; empty++ {
		if err := ctx.Err(); err != nil {
			return common.Frame{}, err
		}

		mat := gocv.NewMat()
		if ok := s.vc.Read(&mat); !ok {
			mat.Close()
			if s.file {
				return common.Frame{}, ErrEndOfStream
			}
			return common.Frame{}, &SourceError{Op: "read", Src: s.name, Err: errors.New("device read failed")}
		}

		if mat.Empty() {
			mat.Close()
			if empty >= maxEmptyReads {
				if s.file {
					return common.Frame{}, ErrEndOfStream
				}
				return common.Frame{}, &SourceError{Op: "read", Src: s.name, Err: errors.Errorf("%d consecutive empty frames", empty+1)}
			}
			s.logger.Debug("Skipping empty frame", zap.String("source", s.name))
			continue
		}

		s.seq++
		return common.Frame{Mat: mat, Timestamp: s.timestamp(), Seq: s.seq}, nil
	}
}

func (s *CaptureSource) timestamp() time.Time {
	if s.file {
		ms := s.vc.Get(gocv.VideoCapturePosMsec)
		return s.start.Add(time.Duration(ms * float64(time.Millisecond)))
	}
	return s.now()
}

// Close releases the capture.
func (s *CaptureSource) Close() error {
	return s.vc.Close()
}
