package images

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func getTestImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 160, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 160; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 100, 255})
		}
	}
	return img
}

func encode(t *testing.T, format ImageFormat) []byte {
	t.Helper()
	var buf bytes.Buffer
	switch format {
	case FormatJPEG:
		require.NoError(t, jpeg.Encode(&buf, getTestImage(), &jpeg.Options{Quality: 90}))
	case FormatPNG:
		require.NoError(t, png.Encode(&buf, getTestImage()))
	case FormatWebP:
		require.NoError(t, webp.Encode(&buf, getTestImage(), &webp.Options{Lossless: true}))
	}
	return buf.Bytes()
}

func TestDecodeImage(t *testing.T) {
	for _, format := range []ImageFormat{FormatJPEG, FormatPNG, FormatWebP} {
		t.Run(string(format), func(t *testing.T) {
			img, err := DecodeImage(encode(t, format))
			require.NoError(t, err)
			assert.Equal(t, 160, img.Bounds().Dx())
			assert.Equal(t, 120, img.Bounds().Dy())
		})
	}

	_, err := DecodeImage(nil)
	assert.Error(t, err)
	_, err = DecodeImage([]byte("not an image"))
	assert.Error(t, err)
}

func TestResizeImage(t *testing.T) {
	img := getTestImage()

	assert.Same(t, img, ResizeImage(img, 0, 0))

	resized := ResizeImage(img, 80, 60)
	assert.Equal(t, 80, resized.Bounds().Dx())
	assert.Equal(t, 60, resized.Bounds().Dy())

	keepAspect := ResizeImage(img, 40, 0)
	assert.Equal(t, 40, keepAspect.Bounds().Dx())
	assert.Equal(t, 30, keepAspect.Bounds().Dy())
}

func TestDecodeToMat(t *testing.T) {
	mat, err := DecodeToMat(encode(t, FormatPNG), 64, 48)
	require.NoError(t, err)
	defer mat.Close()

	assert.Equal(t, 48, mat.Rows())
	assert.Equal(t, 64, mat.Cols())
	assert.Equal(t, 3, mat.Channels())
	assert.Equal(t, gocv.MatTypeCV8UC3, mat.Type())
}

func TestEncodeThumbnail(t *testing.T) {
	frame := blankFrame(t)

	thumb, err := EncodeThumbnail(frame, 320, 75)
	require.NoError(t, err)
	assert.Equal(t, FormatWebP, thumb.Format)
	assert.Equal(t, 320, thumb.Width)
	assert.Equal(t, 240, thumb.Height)
	assert.NotEmpty(t, thumb.Data)

	decoded, err := DecodeImage(thumb.Data)
	require.NoError(t, err)
	assert.Equal(t, 320, decoded.Bounds().Dx())

	small, err := EncodeThumbnail(frame, 1024, 75)
	require.NoError(t, err)
	assert.Equal(t, 640, small.Width, "frames narrower than the limit keep their size")
}

func TestImageFormatExtension(t *testing.T) {
	assert.Equal(t, ".jpg", FormatJPEG.Extension())
	assert.Equal(t, ".webp", FormatWebP.Extension())
	assert.Equal(t, ".png", FormatPNG.Extension())
	assert.Equal(t, "", ImageFormat("gif").Extension())
}
