package source

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-motion/common"
	"github.com/nvr-ai/go-motion/images"
	"github.com/nvr-ai/go-motion/util"
)

// DirectoryConfig configures a DirectorySource.
type DirectoryConfig struct {
	// Dir contains the frames, e.g. frame-1.jpg ... frame-N.jpg.
	Dir string
	// FPS is the nominal rate used to stamp frames. Defaults to 10.
	FPS float64
	// Width and Height resize every frame; 0 keeps the aspect ratio or original size.
	Width  int
	Height int
	// Start is the timestamp of the first frame. Defaults to the time the source is opened.
	Start time.Time
}

// DirectorySource plays back a directory of still images as a finite stream. Frames are
// decoded lazily, one per Next call.
type DirectorySource struct {
	config DirectoryConfig
	files  []util.ImageFile
	pos    int
}

// OpenDirectory lists the images of config.Dir in playback order.
//
// Arguments:
//   - config: The directory and playback settings.
//
// Returns:
//   - *DirectorySource: The source.
//   - error: A *SourceError if the directory cannot be listed or holds no images.
func OpenDirectory(config DirectoryConfig) (*DirectorySource, error) {
	if config.FPS <= 0 {
		config.FPS = 10
	}
	if config.Start.IsZero() {
		config.Start = time.Now()
	}

	files, err := util.ListDirectoryImageFiles(config.Dir)
	if err != nil {
		return nil, &SourceError{Op: "open", Src: config.Dir, Err: err}
	}
	if len(files) == 0 {
		return nil, &SourceError{Op: "open", Src: config.Dir, Err: errors.New("no image files")}
	}
	return &DirectorySource{config: config, files: files}, nil
}

// Len is the number of frames in the directory.
func (s *DirectorySource) Len() int {
	return len(s.files)
}

// Next decodes the next image. Frame n (1-based) is stamped Start + (n-1)/FPS.
func (s *DirectorySource) Next(ctx context.Context) (common.Frame, error) {
	if err := ctx.Err(); err != nil {
		return common.Frame{}, err
	}
	if s.pos >= len(s.files) {
		return common.Frame{}, ErrEndOfStream
	}

	file := s.files[s.pos]
	s.pos++

	data, err := os.ReadFile(file.Path)
	if err != nil {
		return common.Frame{}, &SourceError{Op: "read", Src: file.Path, Err: err}
	}
	mat, err := images.DecodeToMat(data, s.config.Width, s.config.Height)
	if err != nil {
		mat.Close()
		return common.Frame{}, &SourceError{Op: "decode", Src: file.Path, Err: err}
	}

	offset := time.Duration(float64(s.pos-1) / s.config.FPS * float64(time.Second))
	return common.Frame{
		Mat:       mat,
		Timestamp: s.config.Start.Add(offset),
		Seq:       uint64(s.pos),
	}, nil
}

// Close is a no-op; files are read per frame.
func (s *DirectorySource) Close() error {
	return nil
}
