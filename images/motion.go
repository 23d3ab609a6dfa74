// Package images - This file contains the frame-differencing motion detector
// using OpenCV (via gocv).
//
// The DifferenceDetector struct encapsulates the pipeline that turns a pair of
// consecutive frames into candidate motion regions:
//  1. Absolute per-pixel difference.
//  2. Grayscale conversion.
//  3. Gaussian blur to suppress pixel-level noise.
//  4. Thresholding to create a binary mask of motion.
//  5. Morphological dilation to merge nearby changed pixels.
//  6. External contour extraction and minimum-area filtering.
//
// Pipeline Overview:
//
// ┌──────────────────────────┐
// │ Frame A, Frame B         │
// └──────┬───────────────────┘
// ┌────────────────────────────┐
// │ AbsDiff + Grayscale        │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Gaussian Blur              │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Thresholding (binary mask) │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Morphology (dilate xN)     │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Contours -> BoundingBoxes  │
// └────────────────────────────┘
//
// Usage:
//
//	det := images.NewDifferenceDetector(images.DefaultDetectorConfig())
//	defer det.Close()
//
//	mask, boxes, err := det.Detect(previous, current)
//
// Note: You must call Close() when finished to release native resources.
package images

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-motion/common"
)

var (
	// ErrShapeMismatch is returned when the two frames of a pair differ in rows, columns,
	// channel count or element type.
	ErrShapeMismatch = errors.New("frame shape mismatch")
	// ErrEmptyFrame is returned when one of the frames carries no pixels.
	ErrEmptyFrame = errors.New("empty frame")
)

// DetectorConfig holds the fixed parameters of the differencing pipeline.
type DetectorConfig struct {
	// MinContourArea is the minimum contour area, in pixels, for a region to be retained.
	MinContourArea float64
	// BlurKernelSize is the width and height of the Gaussian kernel. Must be odd.
	BlurKernelSize int
	// ThresholdValue is the intensity above which a blurred difference pixel counts as changed.
	ThresholdValue float32
	// DilationIterations is how many times the 3x3 dilation is applied to the mask.
	DilationIterations int
}

// DefaultDetectorConfig returns the parameters used by the reference camera setup.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		MinContourArea:     8000,
		BlurKernelSize:     5,
		ThresholdValue:     15,
		DilationIterations: 5,
	}
}

// DifferenceDetector compares two frames and reports the regions that changed.
//
// This struct is stateful only in the sense that it reuses its intermediate matrices across
// calls; the output depends solely on the input pair. It is not safe for concurrent use.
type DifferenceDetector struct {
	config DetectorConfig

	Delta     gocv.Mat // Absolute difference of the pair
	Gray      gocv.Mat // Single-channel difference
	Blurred   gocv.Mat // Gray after Gaussian blur
	Threshold gocv.Mat // Binary motion mask
	Kernel    gocv.Mat // 3x3 structuring element for dilation
}

// NewDifferenceDetector constructs a detector with initialized OpenCV matrices.
//
// Arguments:
//   - config: The pipeline parameters.
//
// Returns:
//   - *DifferenceDetector: The detector. Always call Close() to release memory.
func NewDifferenceDetector(config DetectorConfig) *DifferenceDetector {
	return &DifferenceDetector{
		config:    config,
		Delta:     gocv.NewMat(),
		Gray:      gocv.NewMat(),
		Blurred:   gocv.NewMat(),
		Threshold: gocv.NewMat(),
		Kernel:    gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3)),
	}
}

// Config returns the detector parameters.
func (d *DifferenceDetector) Config() DetectorConfig {
	return d.config
}

// Difference computes |a - b| and reduces it to a single channel in Gray.
//
// Arguments:
//   - a: The older frame.
//   - b: The newer frame.
//
// Returns:
//   - error: ErrEmptyFrame or ErrShapeMismatch when the pair cannot be differenced.
func (d *DifferenceDetector) Difference(a, b gocv.Mat) error {
	if a.Empty() || b.Empty() {
		return ErrEmptyFrame
	}
	if a.Rows() != b.Rows() || a.Cols() != b.Cols() || a.Type() != b.Type() {
		return errors.Wrapf(ErrShapeMismatch, "%dx%d (type %v) vs %dx%d (type %v)",
			a.Cols(), a.Rows(), a.Type(), b.Cols(), b.Rows(), b.Type())
	}

	gocv.AbsDiff(a, b, &d.Delta)

	switch d.Delta.Channels() {
	case 1:
		d.Delta.CopyTo(&d.Gray)
	case 4:
		gocv.CvtColor(d.Delta, &d.Gray, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(d.Delta, &d.Gray, gocv.ColorBGRToGray)
	}
	return nil
}

// Smooth applies the configured Gaussian blur to the grayscale difference.
func (d *DifferenceDetector) Smooth() {
	k := d.config.BlurKernelSize
	if k <= 1 {
		d.Gray.CopyTo(&d.Blurred)
		return
	}
	gocv.GaussianBlur(d.Gray, &d.Blurred, image.Pt(k, k), 0, 0, gocv.BorderDefault)
}

// ApplyThreshold converts the blurred difference to a binary mask. Pixels above the
// threshold become 255; others become 0.
func (d *DifferenceDetector) ApplyThreshold() {
	gocv.Threshold(d.Blurred, &d.Threshold, d.config.ThresholdValue, 255, gocv.ThresholdBinary)
}

// FillGaps dilates the binary mask DilationIterations times to connect fragmented regions.
func (d *DifferenceDetector) FillGaps() error {
	for i := 0; i < d.config.DilationIterations; i++ {
		if err := gocv.Dilate(d.Threshold, &d.Threshold, d.Kernel); err != nil {
			return errors.Wrapf(err, "dilate iteration %d", i)
		}
	}
	return nil
}

// Regions extracts the external contours of the mask and returns the bounding boxes of the
// contours whose area reaches MinContourArea, in contour order.
func (d *DifferenceDetector) Regions() []common.BoundingBox {
	contours := gocv.FindContours(d.Threshold, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var boxes []common.BoundingBox
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area < d.config.MinContourArea {
			continue
		}
		boxes = append(boxes, common.NewBoundingBox(gocv.BoundingRect(contour), area))
	}
	return boxes
}

// Detect runs the full differencing pipeline on a frame pair.
//
// Arguments:
//   - a: The older frame of the pair.
//   - b: The newer frame of the pair.
//
// Returns:
//   - gocv.Mat: The binary motion mask. It is owned by the detector and valid until the next call.
//   - []common.BoundingBox: The retained motion regions; empty when nothing changed.
//   - error: ErrShapeMismatch or ErrEmptyFrame when the pair cannot be compared.
//
// @example
// mask, boxes, err := det.Detect(prev.Mat, cur.Mat)
//
//	if err != nil {
//	    return err
//	}
//
// fmt.Printf("regions=%d changed=%d\n", len(boxes), gocv.CountNonZero(mask))
func (d *DifferenceDetector) Detect(a, b gocv.Mat) (gocv.Mat, []common.BoundingBox, error) {
	if err := d.Difference(a, b); err != nil {
		return d.Threshold, nil, err
	}
	d.Smooth()
	d.ApplyThreshold()
	if err := d.FillGaps(); err != nil {
		return d.Threshold, nil, err
	}
	return d.Threshold, d.Regions(), nil
}

// Close releases all OpenCV native resources used by the detector.
func (d *DifferenceDetector) Close() {
	d.Delta.Close()
	d.Gray.Close()
	d.Blurred.Close()
	d.Threshold.Close()
	d.Kernel.Close()
}
