package images

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-motion/common"
)

func TestStatusText(t *testing.T) {
	assert.Equal(t, "STATUS: STABLE", StatusText(Overlay{}))
	assert.Equal(t, "STATUS: MOTION DETECTED in Top Right",
		StatusText(Overlay{MotionPresent: true, Quadrant: common.QuadrantTopRight}))
}

func TestAnnotatorDrawsOverlay(t *testing.T) {
	frame := blankFrame(t)
	before := frame.Clone()
	defer before.Close()

	overlay := Overlay{
		Boxes:         []common.BoundingBox{common.NewBoundingBox(image.Rect(40, 80, 200, 220), 20000)},
		MotionPresent: true,
		Quadrant:      common.QuadrantTopLeft,
		Recording:     true,
		ClipID:        3,
		FPS:           24.5,
		MotionFPS:     12,
	}

	require.NoError(t, NewAnnotator().Annotate(&frame, overlay))

	assert.Equal(t, 480, frame.Rows())
	assert.Equal(t, 640, frame.Cols())

	// The vertical guide line is drawn through the center column.
	assert.Equal(t, uint8(255), frame.GetVecbAt(400, 320)[0])
	// The horizontal guide line is drawn through the center row.
	assert.Equal(t, uint8(255), frame.GetVecbAt(240, 600)[1])
	// The box outline is drawn in red (BGR order).
	px := frame.GetVecbAt(150, 40)
	assert.Equal(t, uint8(255), px[2])
	assert.Equal(t, uint8(0), px[1])

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(frame, before, &diff)
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(diff, &gray, gocv.ColorBGRToGray)
	assert.Greater(t, gocv.CountNonZero(gray), 0)
}

func TestAnnotatorStableFrameHasNoBoxes(t *testing.T) {
	frame := blankFrame(t)
	annotator := NewAnnotator()
	annotator.ShowRate = false

	require.NoError(t, annotator.Annotate(&frame, Overlay{}))

	// Nothing is drawn away from the text row and the guide lines.
	px := frame.GetVecbAt(400, 100)
	assert.Equal(t, []uint8{0, 0, 0}, []uint8{px[0], px[1], px[2]})
}
