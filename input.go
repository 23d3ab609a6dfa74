package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-motion/config"
	"github.com/nvr-ai/go-motion/source"
)

// Supported file extensions
var supportedVideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv"}

// InputType represents the type of input being processed
type InputType int

const (
	InputCamera InputType = iota
	InputVideo
	InputDirectory
)

// InputConfig holds the input configuration
type InputConfig struct {
	Type     InputType
	Path     string
	DeviceID int
}

func (c InputConfig) String() string {
	switch c.Type {
	case InputCamera:
		return fmt.Sprintf("camera (device %d)", c.DeviceID)
	case InputVideo:
		return fmt.Sprintf("video %s", c.Path)
	case InputDirectory:
		return fmt.Sprintf("image directory %s", c.Path)
	default:
		return "unknown"
	}
}

// selectInput picks the frame source: an image directory, then a video file or stream URL,
// then the capture device.
func selectInput(cfg config.SourceConfig) (InputConfig, error) {
	if cfg.Directory != "" && cfg.URL != "" {
		return InputConfig{}, errors.New("cannot use both a video and an image directory")
	}

	switch {
	case cfg.Directory != "":
		info, err := os.Stat(cfg.Directory)
		if err != nil {
			return InputConfig{}, errors.Wrap(err, "image directory")
		}
		if !info.IsDir() {
			return InputConfig{}, errors.Errorf("not a directory: %s", cfg.Directory)
		}
		return InputConfig{Type: InputDirectory, Path: cfg.Directory}, nil
	case cfg.URL != "":
		if !strings.Contains(cfg.URL, "://") {
			if err := validateFile(cfg.URL, supportedVideoExtensions); err != nil {
				return InputConfig{}, errors.Wrap(err, "video validation error")
			}
		}
		return InputConfig{Type: InputVideo, Path: cfg.URL}, nil
	default:
		return InputConfig{Type: InputCamera, DeviceID: cfg.Device}, nil
	}
}

// validateFile checks if the file exists and has a supported extension
func validateFile(filePath string, supportedExtensions []string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return errors.Errorf("file not found: %s", filePath)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	for _, supportedExt := range supportedExtensions {
		if ext == supportedExt {
			return nil
		}
	}

	return errors.Errorf("unsupported file extension: %s. Supported extensions: %v", ext, supportedExtensions)
}

// openSource opens the selected input.
func openSource(input InputConfig, cfg config.Config, log *zap.Logger) (source.Source, error) {
	switch input.Type {
	case InputDirectory:
		return source.OpenDirectory(cfg.Directory())
	case InputVideo:
		return source.OpenURL(input.Path, log)
	default:
		return source.OpenDevice(input.DeviceID, log)
	}
}
