package images

import (
	"bytes"
	"fmt"

	"github.com/chai2010/webp"
	"gocv.io/x/gocv"
)

// EncodeThumbnail renders a WebP poster image of a frame.
//
// Arguments:
//   - frame: The frame to encode. It is not modified.
//   - width: The maximum thumbnail width; larger frames are downscaled keeping the aspect ratio.
//   - quality: The lossy WebP quality in the range 0-100.
//
// Returns:
//   - Image: The encoded thumbnail.
//   - error: An error if conversion or encoding fails.
func EncodeThumbnail(frame gocv.Mat, width int, quality float32) (Image, error) {
	img, err := frame.ToImage()
	if err != nil {
		return Image{}, fmt.Errorf("failed to convert frame to image: %w", err)
	}

	if width > 0 && img.Bounds().Dx() > width {
		img = ResizeImage(img, width, 0)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: quality}); err != nil {
		return Image{}, fmt.Errorf("failed to encode webp thumbnail: %w", err)
	}

	return Image{
		Format: FormatWebP,
		Data:   buf.Bytes(),
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}, nil
}
