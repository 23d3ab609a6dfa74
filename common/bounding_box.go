package common

import (
	"fmt"
	"image"
)

// BoundingBox represents the upright bounding rectangle of a motion region together with
// the pixel area of the contour it was derived from.
type BoundingBox struct {
	X, Y          int
	Width, Height int
	// Area is the contour area in pixels, not Width*Height.
	Area float64
}

// NewBoundingBox builds a BoundingBox from an image.Rectangle and a contour area.
//
// Arguments:
// - rect: The bounding rectangle of the contour.
// - area: The contour area in pixels.
//
// Returns:
// - A BoundingBox anchored at rect.Min.
//
// @example
// box := NewBoundingBox(image.Rect(10, 20, 110, 220), 18000)
// fmt.Println(box.Anchor()) // (10,20)
func NewBoundingBox(rect image.Rectangle, area float64) BoundingBox {
	rect = rect.Canon()
	return BoundingBox{
		X:      rect.Min.X,
		Y:      rect.Min.Y,
		Width:  rect.Dx(),
		Height: rect.Dy(),
		Area:   area,
	}
}

// Anchor returns the top-left corner of the box, which is the point used for quadrant
// classification.
func (b BoundingBox) Anchor() image.Point {
	return image.Pt(b.X, b.Y)
}

// Rect converts the bounding box to an image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("Region (%d, %d) %dx%d area=%.0f", b.X, b.Y, b.Width, b.Height, b.Area)
}
