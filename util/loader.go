// Package util - Helpers for loading recorded image sequences from disk.
package util

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
	// Frame is the frame number parsed from the file name, or -1 when the name has none.
	Frame int
}

// IsImageFile reports whether the extension of name is a supported still image format.
func IsImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".bmp", ".webp":
		return true
	}
	return false
}

// FrameNumber parses the frame number from names such as "frame-12.jpg" or "0012.png".
func FrameNumber(name string) (int, bool) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.TrimPrefix(base, "frame-")
	base = strings.TrimPrefix(base, "frame_")
	n, err := strconv.Atoi(base)
	if err != nil {
		return -1, false
	}
	return n, true
}

// ListDirectoryImageFiles returns the image file paths of dir in playback order without
// reading them.
//
// Numbered files come first ordered by frame number, followed by the remaining files in
// name order.
func ListDirectoryImageFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read image directory %s", dir)
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() || !IsImageFile(entry.Name()) {
			continue
		}
		frame, _ := FrameNumber(entry.Name())
		files = append(files, ImageFile{
			Path:  filepath.Join(dir, entry.Name()),
			Frame: frame,
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		switch {
		case a.Frame >= 0 && b.Frame >= 0:
			return a.Frame < b.Frame
		case a.Frame >= 0:
			return true
		case b.Frame >= 0:
			return false
		default:
			return a.Path < b.Path
		}
	})

	return files, nil
}

// LoadDirectoryImageFiles reads all image files from a directory.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []ImageFile: Slice of ImageFile in playback order, each containing the raw bytes of an image file.
// - error: Error if loading fails.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	files, err := ListDirectoryImageFiles(dir)
	if err != nil {
		return nil, err
	}
	for i := range files {
		if files[i].Data, err = os.ReadFile(files[i].Path); err != nil {
			return nil, errors.Wrapf(err, "failed to read image %s", files[i].Path)
		}
	}
	return files, nil
}
