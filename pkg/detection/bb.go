package detection

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"winstonlutz/internal/models"
	"winstonlutz/pkg/geometry"
	"winstonlutz/pkg/profile"
)

// ErrBBNotFound is returned when the iterative threshold search exhausts
// its range without isolating the fiducial.
var ErrBBNotFound = errors.New("unable to locate the BB: make sure the field edges do not obscure the BB and that there are no artifacts in the image")

var errFieldNotFound = errors.New("no radiation field found above the midpoint threshold")

// FindBB locates the fiducial inside the field bounding box and returns its
// subpixel center.
//
// The search builds a binary mask of pixels inside an intensity band and
// labels its connected components. The component ranked third largest by
// pixel count is taken as the BB candidate: the two larger ones are
// typically the background and the radiation field. The ranking includes
// the out-of-band pixel count, and is a known fragility for pathological
// images (tiny fields, multiple bright artifacts); there is no fallback
// beyond lowering the threshold.
func FindBB(im models.Image, fieldBox BoundingBox, p Params) (geometry.Point, error) {
	hmin := percentile(im.Pixels, 5)
	hmax := percentile(im.Pixels, 99.9)
	spread := hmax - hmin
	upper := hmax
	lower := hmax - spread/1.5

	for {
		candidate, ok := bbCandidate(im, lower, upper, fieldBox, p)
		if ok {
			return subpixelCenter(im, candidate)
		}
		upper -= p.ThresholdStep * spread
		if upper < hmin {
			return geometry.Point{}, ErrBBNotFound
		}
	}
}

// bbCandidate builds the band mask for [lower, upper), selects the
// third-largest component and validates it against the three shape
// criteria. It returns false if no component qualifies at this threshold.
func bbCandidate(im models.Image, lower, upper float64, fieldBox BoundingBox, p Params) (mask, bool) {
	band := newMask(im.Rows, im.Cols)
	for i, v := range im.Pixels {
		if v >= lower && v < upper {
			band.bits[i] = true
		}
	}

	labels, n := band.label()
	if n+1 < 3 {
		// fewer than three regions counting the out-of-band background
		return mask{}, false
	}

	// pixel count per label, label 0 being the out-of-band background
	sizes := make([]int, n+1)
	for _, l := range labels {
		sizes[l]++
	}
	order := make([]int, n+1)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return sizes[order[i]] < sizes[order[j]]
	})
	third := order[len(order)-3]

	candidate := componentMask(labels, third, im.Rows, im.Cols)
	if !isRound(candidate, p) || !isModestSize(candidate, fieldBox, p) || !isSymmetric(candidate, p) {
		return mask{}, false
	}
	return candidate, true
}

// isRound checks that the component fills its bounding box the way a circle
// inscribed in its bounding square would, within the tolerance.
func isRound(m mask, p Params) bool {
	box, ok := m.boundingBox()
	if !ok || box.Area() == 0 {
		return false
	}
	fill := float64(m.count()) / float64(box.Area())
	expected := math.Pi / 4
	return fill > expected*(1-p.RoundnessTolerance) && fill < expected*(1+p.RoundnessTolerance)
}

// isModestSize checks that the component is roughly BB-sized relative to
// the field bounding box, excluding noise specks and oversized artifacts.
func isModestSize(m mask, fieldBox BoundingBox, p Params) bool {
	area := float64(fieldBox.Area())
	n := float64(m.count())
	return n > area*p.MinFieldFraction && n < area*p.MaxFieldFraction
}

// isSymmetric checks that the component's bounding box is close to square,
// excluding elongated artifacts. The ratio and absolute-pixel bounds are
// combined so the looser one applies.
func isSymmetric(m mask, p Params) bool {
	box, ok := m.boundingBox()
	if !ok {
		return false
	}
	h := float64(box.RowMax - box.RowMin)
	w := float64(box.ColMax - box.ColMin)
	px := float64(p.SymmetryPixels)
	if w > math.Max(h*(1+p.SymmetryRatio), h+px) {
		return false
	}
	if w < math.Min(h*(1-p.SymmetryRatio), h-px) {
		return false
	}
	return true
}

// subpixelCenter computes the weighted center of the BB component. The
// cleaned image is intensity-inverted and used as a weighting function for
// a 1D profile of the component mask along each axis; the half-maximum
// interpolated center of each profile gives the final coordinates.
func subpixelCenter(im models.Image, bb mask) (geometry.Point, error) {
	maxV := floats.Max(im.Pixels)
	minV := floats.Min(im.Pixels)

	colProfile := make([]float64, im.Cols)
	rowProfile := make([]float64, im.Rows)
	colWeight := make([]float64, im.Cols)
	rowWeight := make([]float64, im.Rows)
	for r := 0; r < im.Rows; r++ {
		for c := 0; c < im.Cols; c++ {
			inv := maxV + minV - im.At(r, c)
			if bb.at(r, c) {
				colProfile[c] += inv
				rowProfile[r] += inv
			}
			colWeight[c] += inv
			rowWeight[r] += inv
		}
	}
	for c := range colProfile {
		if colWeight[c] != 0 {
			colProfile[c] = math.Abs(colProfile[c] / colWeight[c])
		}
	}
	for r := range rowProfile {
		if rowWeight[r] != 0 {
			rowProfile[r] = math.Abs(rowProfile[r] / rowWeight[r])
		}
	}

	x, err := profile.New(colProfile).HalfMaxCenter()
	if err != nil {
		return geometry.Point{}, fmt.Errorf("BB x profile: %w", err)
	}
	y, err := profile.New(rowProfile).HalfMaxCenter()
	if err != nil {
		return geometry.Point{}, fmt.Errorf("BB y profile: %w", err)
	}
	return geometry.Point{X: x, Y: y}, nil
}
