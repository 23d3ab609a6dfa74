// Package common - Shared value types that flow through the motion pipeline: frames,
// bounding boxes, quadrants and per-cycle detection results.
package common

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

// Shape is the spatial layout of a frame.
type Shape struct {
	Rows     int `json:"rows"`
	Cols     int `json:"cols"`
	Channels int `json:"channels"`
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Cols, s.Rows, s.Channels)
}

// Frame is a single captured image and its capture timestamp.
//
// The Mat is owned by whoever holds the Frame. Stages that need to keep a frame beyond the
// current cycle must Clone it.
type Frame struct {
	Mat       gocv.Mat
	Timestamp time.Time
	// Seq is the position of the frame in its source, starting at 1.
	Seq uint64
}

// Shape returns the rows, columns and channel count of the frame.
func (f Frame) Shape() Shape {
	return Shape{Rows: f.Mat.Rows(), Cols: f.Mat.Cols(), Channels: f.Mat.Channels()}
}

// Clone returns a deep copy of the frame.
func (f Frame) Clone() Frame {
	return Frame{Mat: f.Mat.Clone(), Timestamp: f.Timestamp, Seq: f.Seq}
}

// Close releases the native memory of the frame.
func (f Frame) Close() error {
	return f.Mat.Close()
}
