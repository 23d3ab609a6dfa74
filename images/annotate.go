package images

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-motion/common"
)

// Overlay is everything the Annotator draws on a frame for one cycle.
type Overlay struct {
	Boxes         []common.BoundingBox
	MotionPresent bool
	Quadrant      common.Quadrant
	Recording     bool
	ClipID        int
	FPS           float64
	MotionFPS     float64
}

// StatusText is the status line shown in the top-left corner.
func StatusText(o Overlay) string {
	if o.MotionPresent {
		return fmt.Sprintf("STATUS: MOTION DETECTED in %s", o.Quadrant)
	}
	return "STATUS: STABLE"
}

// Annotator draws presentation-only overlays onto frames. It never influences detection.
type Annotator struct {
	BoxColor   color.RGBA
	TextColor  color.RGBA
	GuideColor color.RGBA
	Font       gocv.HersheyFont
	FontScale  float64
	Thickness  int
	// ShowRate enables the FPS line below the status line.
	ShowRate bool
}

// NewAnnotator returns an annotator with the red-on-white styling of the live view.
func NewAnnotator() *Annotator {
	return &Annotator{
		BoxColor:   color.RGBA{255, 0, 0, 0},
		TextColor:  color.RGBA{255, 0, 0, 0},
		GuideColor: color.RGBA{255, 255, 255, 0},
		Font:       gocv.FontHersheyComplexSmall,
		FontScale:  1,
		Thickness:  2,
		ShowRate:   true,
	}
}

// Annotate draws the motion boxes, status text, recording marker and quadrant guide lines.
//
// Arguments:
//   - img: The frame to draw on, modified in place.
//   - o: The overlay for the current cycle.
//
// Returns:
//   - error: An error if any OpenCV drawing call fails.
func (a *Annotator) Annotate(img *gocv.Mat, o Overlay) error {
	width, height := img.Cols(), img.Rows()
	centerX, centerY := width/2, height/2

	for _, box := range o.Boxes {
		if err := gocv.Rectangle(img, box.Rect(), a.BoxColor, a.Thickness); err != nil {
			return err
		}
	}

	if err := gocv.PutText(img, StatusText(o), image.Pt(10, 30), a.Font, a.FontScale, a.TextColor, a.Thickness); err != nil {
		return err
	}

	if a.ShowRate {
		rate := fmt.Sprintf("FPS: %.1f | Motion FPS: %.1f", o.FPS, o.MotionFPS)
		if err := gocv.PutText(img, rate, image.Pt(10, 60), a.Font, a.FontScale, a.GuideColor, 1); err != nil {
			return err
		}
	}

	if o.Recording {
		marker := fmt.Sprintf("REC #%d", o.ClipID)
		if err := gocv.PutText(img, marker, image.Pt(width-120, 30), a.Font, a.FontScale, a.TextColor, a.Thickness); err != nil {
			return err
		}
	}

	// Quadrant guide lines.
	if err := gocv.Line(img, image.Pt(centerX, 0), image.Pt(centerX, height), a.GuideColor, 1); err != nil {
		return err
	}
	return gocv.Line(img, image.Pt(0, centerY), image.Pt(width, centerY), a.GuideColor, 1)
}
