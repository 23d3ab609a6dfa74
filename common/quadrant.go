package common

import (
	"fmt"
	"strings"
)

// Quadrant is the screen region of a motion anchor relative to the frame center.
type Quadrant int

// Quadrant values. The zero value is QuadrantNone so an empty DetectionResult reports no
// location.
const (
	QuadrantNone Quadrant = iota
	QuadrantTopLeft
	QuadrantTopRight
	QuadrantBottomLeft
	QuadrantBottomRight
	// QuadrantCenter is part of the vocabulary but Classify never returns it: an anchor
	// that sits exactly on the center falls in BottomRight.
	QuadrantCenter
)

var quadrantNames = map[Quadrant]string{
	QuadrantNone:        "None",
	QuadrantTopLeft:     "Top Left",
	QuadrantTopRight:    "Top Right",
	QuadrantBottomLeft:  "Bottom Left",
	QuadrantBottomRight: "Bottom Right",
	QuadrantCenter:      "Center",
}

func (q Quadrant) String() string {
	if name, ok := quadrantNames[q]; ok {
		return name
	}
	return fmt.Sprintf("Quadrant(%d)", int(q))
}

// MarshalText renders the quadrant by name for JSON and YAML payloads.
func (q Quadrant) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalText parses a quadrant name, case-insensitively.
func (q *Quadrant) UnmarshalText(text []byte) error {
	for value, name := range quadrantNames {
		if strings.EqualFold(name, string(text)) {
			*q = value
			return nil
		}
	}
	return fmt.Errorf("unknown quadrant %q", string(text))
}

// Classify maps the anchor of a bounding box to one of the four screen quadrants.
//
// The center is (frameWidth/2, frameHeight/2) using integer division. Coordinates strictly
// less than the center fall on the left/top; coordinates greater than or equal to the center
// fall on the right/bottom. The function is total: every box maps to exactly one of
// TopLeft, TopRight, BottomLeft or BottomRight.
//
// Arguments:
// - box: The bounding box to classify.
// - frameWidth: The width of the frame the box was found in.
// - frameHeight: The height of the frame the box was found in.
//
// Returns:
// - The quadrant containing the box anchor.
//
// @example
// q := Classify(BoundingBox{X: 10, Y: 10}, 640, 480) // QuadrantTopLeft
// q = Classify(BoundingBox{X: 320, Y: 240}, 640, 480) // QuadrantBottomRight
func Classify(box BoundingBox, frameWidth, frameHeight int) Quadrant {
	centerX, centerY := frameWidth/2, frameHeight/2

	left := box.X < centerX
	top := box.Y < centerY

	switch {
	case left && top:
		return QuadrantTopLeft
	case !left && top:
		return QuadrantTopRight
	case left && !top:
		return QuadrantBottomLeft
	default:
		return QuadrantBottomRight
	}
}

// QuadrantPolicy selects which box of a frame determines the reported quadrant.
type QuadrantPolicy string

const (
	// PolicyLargest reports the quadrant of the box with the largest area. Ties keep the
	// earliest box, so the result does not depend on contour order beyond that.
	PolicyLargest QuadrantPolicy = "largest"
	// PolicyLast reports the quadrant of the last box in contour order.
	PolicyLast QuadrantPolicy = "last"
)

// Valid reports whether the policy is one of the known values.
func (p QuadrantPolicy) Valid() bool {
	return p == PolicyLargest || p == PolicyLast
}

// Dominant classifies every box and returns the quadrant selected by policy.
// QuadrantNone is returned when there are no boxes.
func Dominant(boxes []BoundingBox, frameWidth, frameHeight int, policy QuadrantPolicy) Quadrant {
	if len(boxes) == 0 {
		return QuadrantNone
	}

	selected := 0
	switch policy {
	case PolicyLast:
		selected = len(boxes) - 1
	default:
		for i := 1; i < len(boxes); i++ {
			if boxes[i].Area > boxes[selected].Area {
				selected = i
			}
		}
	}

	return Classify(boxes[selected], frameWidth, frameHeight)
}

// DetectionResult summarizes one frame-pair comparison.
type DetectionResult struct {
	MotionPresent bool
	Quadrant      Quadrant
	Boxes         []BoundingBox
}

// NewDetectionResult classifies the retained boxes of one cycle. Motion is present when
// at least one box survived the minimum-area filter.
func NewDetectionResult(boxes []BoundingBox, frameWidth, frameHeight int, policy QuadrantPolicy) DetectionResult {
	return DetectionResult{
		MotionPresent: len(boxes) > 0,
		Quadrant:      Dominant(boxes, frameWidth, frameHeight, policy),
		Boxes:         boxes,
	}
}
