package images

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "github.com/chai2010/webp"
	"github.com/nfnt/resize"
	"gocv.io/x/gocv"
)

// DecodeImage decodes JPEG, PNG or WebP bytes into a Go-native image.Image.
//
// Arguments:
//   - data: The encoded image bytes.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: An error if the data is empty or cannot be decoded.
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// ResizeImage scales img to width x height using Lanczos resampling.
//
// A zero width or height preserves the aspect ratio along that axis; when both are zero
// the image is returned unchanged.
func ResizeImage(img image.Image, width, height int) image.Image {
	if width <= 0 && height <= 0 {
		return img
	}
	bounds := img.Bounds()
	if bounds.Dx() == width && bounds.Dy() == height {
		return img
	}
	return resize.Resize(uint(max(width, 0)), uint(max(height, 0)), img, resize.Lanczos3)
}

// DecodeToMat decodes encoded image bytes, resizes them to width x height, and converts
// the result to a 3-channel BGR gocv.Mat.
//
// Arguments:
//   - data: The encoded image bytes.
//   - width: The target width (0 keeps the aspect ratio or original size).
//   - height: The target height (0 keeps the aspect ratio or original size).
//
// Returns:
//   - gocv.Mat: The decoded frame. The caller owns it.
//   - error: An error if decoding or conversion fails.
func DecodeToMat(data []byte, width, height int) (gocv.Mat, error) {
	img, err := DecodeImage(data)
	if err != nil {
		return gocv.NewMat(), err
	}
	mat, err := gocv.ImageToMatRGB(ResizeImage(img, width, height))
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to convert image to Mat: %w", err)
	}
	return mat, nil
}
