// Package detection locates the radiation field and the BB fiducial in a
// single portal image. The pipeline is: clean spurious signal off the image
// borders, find the field centroid and its margined bounding box from a
// midpoint threshold, then isolate the BB by iteratively lowering an
// intensity band threshold until a component passes the shape criteria.
package detection

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"winstonlutz/internal/models"
	"winstonlutz/pkg/geometry"
)

// Params holds the tunable constants of the detection pipeline. The
// defaults reproduce the documented contracts; they are exposed mainly so
// the config file can adjust them for unusual imagers.
type Params struct {
	// EdgeWindow is the width in pixels of the border band inspected (and
	// stripped) by CleanEdges
	EdgeWindow int

	// BoxMargin is the fixed margin in pixels added to the field bounding
	// box on all four sides
	BoxMargin int

	// RoundnessTolerance is the allowed relative deviation of a candidate
	// component's fill ratio from pi/4
	RoundnessTolerance float64

	// MinFieldFraction and MaxFieldFraction bound the candidate component
	// pixel count as a fraction of the field bounding box area
	MinFieldFraction float64
	MaxFieldFraction float64

	// SymmetryRatio and SymmetryPixels bound the difference between a
	// candidate's bounding-box width and height; the looser of the two
	// applies
	SymmetryRatio  float64
	SymmetryPixels int

	// ThresholdStep is the fraction of the intensity spread the upper
	// threshold drops by on each failed BB search iteration
	ThresholdStep float64
}

// DefaultParams returns the detection parameters matching the documented
// detection contracts.
func DefaultParams() Params {
	return Params{
		EdgeWindow:         2,
		BoxMargin:          10,
		RoundnessTolerance: 0.2,
		MinFieldFraction:   0.003,
		MaxFieldFraction:   0.3,
		SymmetryRatio:      0.05,
		SymmetryPixels:     3,
		ThresholdStep:      0.05,
	}
}

// BoundingBox is a pixel-space rectangle with exclusive maxima. The field
// box carries the fixed margin, so its coordinates may extend past the
// image edges.
type BoundingBox struct {
	RowMin, RowMax int
	ColMin, ColMax int
}

// Area returns the pixel area of the box.
func (b BoundingBox) Area() int {
	return (b.RowMax - b.RowMin) * (b.ColMax - b.ColMin)
}

// Result holds the per-image detection outputs. It is produced once by
// Analyze and never mutated afterwards.
type Result struct {
	// FieldCAX is the centroid of the thresholded radiation field, in
	// pixel coordinates of the cleaned image
	FieldCAX geometry.Point

	// Box is the field bounding box expanded by the fixed margin
	Box BoundingBox

	// BB is the subpixel center of the fiducial
	BB geometry.Point
}

// Analyze runs the full detection pipeline on a raw image. It returns the
// cleaned image together with the detection result; all pixel coordinates
// in the result refer to the cleaned image.
func Analyze(im models.Image, p Params) (models.Image, Result, error) {
	cleaned := CleanEdges(im, p.EdgeWindow)
	cax, box, err := FindFieldCentroid(cleaned, p.BoxMargin)
	if err != nil {
		return cleaned, Result{}, err
	}
	bb, err := FindBB(cleaned, box, p)
	if err != nil {
		return cleaned, Result{}, err
	}
	return cleaned, Result{FieldCAX: cax, Box: box, BB: bb}, nil
}

// percentile returns the pth percentile (0-100) of the pixel intensities
// using linear interpolation between order statistics.
func percentile(pixels []float64, p float64) float64 {
	sorted := make([]float64, len(pixels))
	copy(sorted, pixels)
	sort.Float64s(sorted)
	return stat.Quantile(p/100, stat.LinInterp, sorted, nil)
}

// CleanEdges strips spurious high or low signal off the image borders.
// A border band of the given window width is inspected on all four sides;
// if any pixel in it falls more than 10% of the intensity range below the
// background reference or above the foreground reference, the band is
// removed and the check repeats on the new border. A safety bound of
// (smaller dimension)/10 iterations prevents eroding the whole image when
// no clean border exists.
func CleanEdges(im models.Image, window int) models.Image {
	safety := im.Rows / 10
	if im.Cols < im.Rows {
		safety = im.Cols / 10
	}
	for safety > 0 && hasEdgeNoise(im, window) {
		im = im.Crop(window, im.Rows-window, window, im.Cols-window)
		safety--
	}
	return im
}

// hasEdgeNoise reports whether any border pixel deviates from the
// near-minimum/near-maximum references by more than 10% of their spread.
func hasEdgeNoise(im models.Image, window int) bool {
	nearMin := percentile(im.Pixels, 5)
	nearMax := percentile(im.Pixels, 99.5)
	spread := nearMax - nearMin
	low := nearMin - spread/10
	high := nearMax + spread/10

	for r := 0; r < im.Rows; r++ {
		inBand := r < window || r >= im.Rows-window
		for c := 0; c < im.Cols; c++ {
			if !inBand && c >= window && c < im.Cols-window {
				continue
			}
			v := im.At(r, c)
			if v < low || v > high {
				return true
			}
		}
	}
	return false
}

// FindFieldCentroid locates the radiation field. The image is thresholded
// at the midpoint between its 5th and 99.9th percentile intensities; one
// binary erosion pass removes isolated noise pixels before the bounding box
// is taken and expanded by the margin. The field center is the centroid of
// the non-eroded threshold mask, at pixel-centroid precision.
func FindFieldCentroid(im models.Image, margin int) (geometry.Point, BoundingBox, error) {
	lo := percentile(im.Pixels, 5)
	hi := percentile(im.Pixels, 99.9)
	threshold := lo + (hi-lo)/2

	field := newMask(im.Rows, im.Cols)
	for i, v := range im.Pixels {
		if v >= threshold {
			field.bits[i] = true
		}
	}

	box, ok := field.erode().boundingBox()
	if !ok {
		return geometry.Point{}, BoundingBox{}, errFieldNotFound
	}
	box.RowMin -= margin
	box.RowMax += margin
	box.ColMin -= margin
	box.ColMax += margin

	var sumR, sumC float64
	n := 0
	for r := 0; r < im.Rows; r++ {
		for c := 0; c < im.Cols; c++ {
			if field.at(r, c) {
				sumR += float64(r)
				sumC += float64(c)
				n++
			}
		}
	}
	cax := geometry.Point{X: sumC / float64(n), Y: sumR / float64(n)}
	return cax, box, nil
}
