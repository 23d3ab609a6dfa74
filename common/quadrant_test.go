package common

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		box      BoundingBox
		width    int
		height   int
		expected Quadrant
	}{
		{name: "origin", box: BoundingBox{X: 0, Y: 0}, width: 640, height: 480, expected: QuadrantTopLeft},
		{name: "just left of center", box: BoundingBox{X: 319, Y: 239}, width: 640, height: 480, expected: QuadrantTopLeft},
		{name: "center x, top", box: BoundingBox{X: 320, Y: 10}, width: 640, height: 480, expected: QuadrantTopRight},
		{name: "left, center y", box: BoundingBox{X: 10, Y: 240}, width: 640, height: 480, expected: QuadrantBottomLeft},
		{name: "exact center", box: BoundingBox{X: 320, Y: 240}, width: 640, height: 480, expected: QuadrantBottomRight},
		{name: "far corner", box: BoundingBox{X: 639, Y: 479}, width: 640, height: 480, expected: QuadrantBottomRight},
		{name: "odd dimensions use integer center", box: BoundingBox{X: 2, Y: 2}, width: 5, height: 5, expected: QuadrantBottomRight},
		{name: "odd dimensions left of center", box: BoundingBox{X: 1, Y: 1}, width: 5, height: 5, expected: QuadrantTopLeft},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.box, tt.width, tt.height))
		})
	}
}

// TestClassifyIsTotal sweeps every anchor of a small frame and checks that one of the four
// quadrants is always returned.
func TestClassifyIsTotal(t *testing.T) {
	const width, height = 33, 17
	counts := make(map[Quadrant]int)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			q := Classify(BoundingBox{X: x, Y: y, Width: 1, Height: 1}, width, height)
			require.NotEqual(t, QuadrantNone, q)
			require.NotEqual(t, QuadrantCenter, q)
			counts[q]++
		}
	}

	assert.Equal(t, 16*8, counts[QuadrantTopLeft])
	assert.Equal(t, 17*8, counts[QuadrantTopRight])
	assert.Equal(t, 16*9, counts[QuadrantBottomLeft])
	assert.Equal(t, 17*9, counts[QuadrantBottomRight])
}

func TestDominant(t *testing.T) {
	boxes := []BoundingBox{
		{X: 10, Y: 10, Area: 9000},    // top left
		{X: 400, Y: 300, Area: 50000}, // bottom right
		{X: 400, Y: 10, Area: 12000},  // top right
	}

	assert.Equal(t, QuadrantNone, Dominant(nil, 640, 480, PolicyLargest))
	assert.Equal(t, QuadrantBottomRight, Dominant(boxes, 640, 480, PolicyLargest))
	assert.Equal(t, QuadrantTopRight, Dominant(boxes, 640, 480, PolicyLast))

	t.Run("ties keep the earliest box", func(t *testing.T) {
		tied := []BoundingBox{{X: 10, Y: 300, Area: 9000}, {X: 400, Y: 10, Area: 9000}}
		assert.Equal(t, QuadrantBottomLeft, Dominant(tied, 640, 480, PolicyLargest))
	})
}

func TestNewDetectionResult(t *testing.T) {
	empty := NewDetectionResult(nil, 640, 480, PolicyLargest)
	assert.False(t, empty.MotionPresent)
	assert.Equal(t, QuadrantNone, empty.Quadrant)
	assert.Empty(t, empty.Boxes)

	result := NewDetectionResult([]BoundingBox{NewBoundingBox(image.Rect(330, 250, 430, 350), 10000)}, 640, 480, PolicyLargest)
	assert.True(t, result.MotionPresent)
	assert.Equal(t, QuadrantBottomRight, result.Quadrant)
	assert.Len(t, result.Boxes, 1)
}

func TestQuadrantText(t *testing.T) {
	for _, q := range []Quadrant{QuadrantNone, QuadrantTopLeft, QuadrantTopRight, QuadrantBottomLeft, QuadrantBottomRight, QuadrantCenter} {
		text, err := q.MarshalText()
		require.NoError(t, err)

		var parsed Quadrant
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, q, parsed)
	}

	var q Quadrant
	assert.Error(t, q.UnmarshalText([]byte("middle")))
	assert.Equal(t, "Quadrant(42)", Quadrant(42).String())
}

func TestBoundingBox(t *testing.T) {
	box := NewBoundingBox(image.Rect(110, 220, 10, 20), 1234)
	assert.Equal(t, image.Pt(10, 20), box.Anchor())
	assert.Equal(t, 100, box.Width)
	assert.Equal(t, 200, box.Height)
	assert.Equal(t, image.Rect(10, 20, 110, 220), box.Rect())
	assert.Equal(t, "Region (10, 20) 100x200 area=1234", box.String())
}
