// Package winstonlutz performs a Winston-Lutz test analysis over a set of
// portal images of a BB fiducial: per-image CAX/BB measurements, axis
// classification, and per-axis isocenter solves that back-project the image
// offsets and minimize the worst-case residual distance.
package winstonlutz

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"winstonlutz/pkg/geometry"
)

// ErrInsufficientImages is returned when an axis solve has fewer than two
// qualifying images. Adding images is the only remedy; retrying will not
// help.
var ErrInsufficientImages = errors.New("not enough images of the given type to identify the axis isocenter")

// Optimizer search bounds in mm: each spatial coordinate of the candidate
// isocenter, and the couch circle radius.
const (
	coordBound  = 30.0
	radiusBound = 28.0
)

// boundsPenaltyWeight steers the simplex back inside the search box when a
// candidate strays out of bounds.
const boundsPenaltyWeight = 1e3

// OffsetAxis selects a physical displacement direction for the sag metrics.
type OffsetAxis int

const (
	// OffsetX is the lateral (left/right) direction
	OffsetX OffsetAxis = iota
	// OffsetY is the vertical (up/down) direction
	OffsetY
	// OffsetZ is the longitudinal (in/out) direction
	OffsetZ
)

// String returns the conventional direction name for the offset axis.
func (a OffsetAxis) String() string {
	switch a {
	case OffsetX:
		return "x"
	case OffsetY:
		return "y"
	case OffsetZ:
		return "z"
	default:
		return fmt.Sprintf("OffsetAxis(%d)", int(a))
	}
}

// DistanceMetric selects how per-image distances are aggregated.
type DistanceMetric int

const (
	// Max reports the worst per-image distance
	Max DistanceMetric = iota
	// Median reports the median per-image distance
	Median
)

// axisSolution is the cached result of one per-axis isocenter solve.
type axisSolution struct {
	location geometry.Point
	radius   float64
	residual float64
}

// WinstonLutz analyzes an ordered collection of Winston-Lutz images. The
// image set is immutable after construction, so per-axis solve results are
// cached for the lifetime of the analysis and never invalidated.
type WinstonLutz struct {
	images    []*Image
	solutions map[Axis]*axisSolution
}

// New creates an analysis over the given images. The images are ordered by
// ascending (gantry, collimator, couch) angle tuple; duplicates are kept.
func New(images ...*Image) *WinstonLutz {
	sorted := make([]*Image, len(images))
	copy(sorted, images)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.GantryAngle() != b.GantryAngle() {
			return a.GantryAngle() < b.GantryAngle()
		}
		if a.CollimatorAngle() != b.CollimatorAngle() {
			return a.CollimatorAngle() < b.CollimatorAngle()
		}
		return a.CouchAngle() < b.CouchAngle()
	})
	return &WinstonLutz{
		images:    sorted,
		solutions: make(map[Axis]*axisSolution),
	}
}

// Images returns the ordered image collection.
func (wl *WinstonLutz) Images() []*Image {
	return wl.images
}

// ContainsAxis reports whether any image in the set is classified as the
// given axis.
func (wl *WinstonLutz) ContainsAxis(axis Axis) bool {
	for _, im := range wl.images {
		if im.VariableAxis() == axis {
			return true
		}
	}
	return false
}

// axisImages returns the images contributing to an axis solve: those
// classified as the axis itself plus the reference images.
func (wl *WinstonLutz) axisImages(axis Axis) []*Image {
	var out []*Image
	for _, im := range wl.images {
		if a := im.VariableAxis(); a == axis || a == Reference {
			out = append(out, im)
		}
	}
	return out
}

// solveAxis runs (or returns the cached result of) the bounded minimax
// optimization for one axis. The candidate parameter vector is
// (x, y, z, r); r only enters the objective for the couch axis.
//
// A partially converged optimizer result is trusted as-is: the reported
// optimum is used even when the convergence status indicates the internal
// criteria were not fully met. This is a documented risk of the method.
func (wl *WinstonLutz) solveAxis(axis Axis) (*axisSolution, error) {
	if sol, ok := wl.solutions[axis]; ok {
		return sol, nil
	}

	images := wl.axisImages(axis)
	if len(images) < 2 {
		return nil, fmt.Errorf("axis %s: %w", axis, ErrInsufficientImages)
	}

	objective, err := axisObjective(axis, images)
	if err != nil {
		return nil, err
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return objective(x) + boundsPenalty(x)
		},
	}
	start := []float64{0, 0, 0, 0}
	result, optErr := optimize.Minimize(problem, start, nil, &optimize.NelderMead{})
	if result == nil {
		return nil, fmt.Errorf("axis %s isocenter optimization: %v", axis, optErr)
	}

	sol := &axisSolution{
		location: geometry.Point{X: result.X[0], Y: result.X[1], Z: result.X[2]},
		radius:   result.X[3],
		residual: result.F,
	}
	wl.solutions[axis] = sol
	return sol, nil
}

// axisObjective builds the minimax objective for one axis: the maximum,
// over the contributing images, of the distance from the candidate
// isocenter to the image's geometric object. That object is the CAX ray
// for the gantry, the CAX-to-BB offset treated as a point for the
// collimator, and the same offset tested against a circle of the candidate
// radius for the couch.
func axisObjective(axis Axis, images []*Image) (func([]float64) float64, error) {
	switch axis {
	case Gantry:
		lines := make([]geometry.Line, len(images))
		for i, im := range images {
			lines[i] = im.CAXLineProjection()
		}
		return func(x []float64) float64 {
			candidate := geometry.Point{X: x[0], Y: x[1], Z: x[2]}
			worst := 0.0
			for _, l := range lines {
				if d := l.DistanceToPoint(candidate); d > worst {
					worst = d
				}
			}
			return worst
		}, nil
	case Collimator:
		points := cax2bbPoints(images)
		return func(x []float64) float64 {
			candidate := geometry.Point{X: x[0], Y: x[1], Z: x[2]}
			worst := 0.0
			for _, p := range points {
				if d := p.DistanceTo(candidate); d > worst {
					worst = d
				}
			}
			return worst
		}, nil
	case Couch:
		points := cax2bbPoints(images)
		return func(x []float64) float64 {
			circle := geometry.Circle{
				Center: geometry.Point{X: x[0], Y: x[1], Z: x[2]},
				Radius: x[3],
			}
			worst := 0.0
			for _, p := range points {
				if d := p.DistanceToCircle(circle); d > worst {
					worst = d
				}
			}
			return worst
		}, nil
	default:
		return nil, fmt.Errorf("no isocenter solve defined for axis %s", axis)
	}
}

func cax2bbPoints(images []*Image) []geometry.Point {
	points := make([]geometry.Point, len(images))
	for i, im := range images {
		points[i] = im.CAX2BBVector().AsPoint()
	}
	return points
}

// boundsPenalty penalizes candidate vectors outside the search box so the
// unconstrained simplex respects the documented bounds.
func boundsPenalty(x []float64) float64 {
	penalty := 0.0
	for i := 0; i < 3; i++ {
		if x[i] > coordBound {
			penalty += (x[i] - coordBound) * boundsPenaltyWeight
		} else if x[i] < -coordBound {
			penalty += (-coordBound - x[i]) * boundsPenaltyWeight
		}
	}
	if x[3] > radiusBound {
		penalty += (x[3] - radiusBound) * boundsPenaltyWeight
	} else if x[3] < 0 {
		penalty += -x[3] * boundsPenaltyWeight
	}
	return penalty
}

// GantryIsoSize returns the diameter in mm of the 3D gantry isocenter.
// Only images where the collimator and couch were at zero contribute.
func (wl *WinstonLutz) GantryIsoSize() (float64, error) {
	sol, err := wl.solveAxis(Gantry)
	if err != nil {
		return 0, err
	}
	return sol.residual * 2, nil
}

// GantryIso2BBVector returns the 3D vector in mm from the gantry isocenter
// to the BB (located at the origin). The optimizer solves for the
// origin-to-isocenter displacement, so the sign is inverted here.
func (wl *WinstonLutz) GantryIso2BBVector() (geometry.Vector, error) {
	sol, err := wl.solveAxis(Gantry)
	if err != nil {
		return geometry.Vector{}, err
	}
	return sol.location.AsVector().Negate(), nil
}

// CollimatorIsoSize returns the diameter in mm of the 2D collimator
// isocenter, in the plane normal to the gantry.
func (wl *WinstonLutz) CollimatorIsoSize() (float64, error) {
	sol, err := wl.solveAxis(Collimator)
	if err != nil {
		return 0, err
	}
	return sol.residual * 2, nil
}

// CollimatorIso2BBVector returns the 2D vector in mm from the collimator
// isocenter to the BB.
func (wl *WinstonLutz) CollimatorIso2BBVector() (geometry.Vector, error) {
	sol, err := wl.solveAxis(Collimator)
	if err != nil {
		return geometry.Vector{}, err
	}
	return geometry.Vector{X: -sol.location.X, Y: -sol.location.Y}, nil
}

// CouchIsoSize returns the diameter in mm of the 2D couch isocenter: twice
// the optimized circle radius.
func (wl *WinstonLutz) CouchIsoSize() (float64, error) {
	sol, err := wl.solveAxis(Couch)
	if err != nil {
		return 0, err
	}
	return sol.radius * 2, nil
}

// CouchIso2BBVector returns the 2D vector in mm from the couch isocenter
// to the BB.
func (wl *WinstonLutz) CouchIso2BBVector() (geometry.Vector, error) {
	sol, err := wl.solveAxis(Couch)
	if err != nil {
		return geometry.Vector{}, err
	}
	return geometry.Vector{X: -sol.location.X, Y: -sol.location.Y}, nil
}

// sagRange computes max-min of an offset over the gantry and reference
// images.
func (wl *WinstonLutz) sagRange(axis OffsetAxis, offset func(*Image) (float64, bool)) (float64, error) {
	images := wl.axisImages(Gantry)
	var values []float64
	for _, im := range images {
		if v, ok := offset(im); ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("no gantry or reference images with a defined %v offset", axis)
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return hi - lo, nil
}

// BBSagRange returns the range (max-min) in mm of the BB-referenced offset
// along the given direction across all gantry and reference images. It
// quantifies gantry-induced mechanical droop independent of the isocenter
// solve.
func (wl *WinstonLutz) BBSagRange(axis OffsetAxis) (float64, error) {
	return wl.sagRange(axis, func(im *Image) (float64, bool) {
		switch axis {
		case OffsetX:
			return im.BBXOffset(), true
		case OffsetY:
			return im.BBYOffset(), true
		default:
			return im.BBZOffset()
		}
	})
}

// EPIDSagRange returns the range in mm of the panel-referenced offset
// along the given direction across all gantry and reference images.
func (wl *WinstonLutz) EPIDSagRange(axis OffsetAxis) (float64, error) {
	return wl.sagRange(axis, func(im *Image) (float64, bool) {
		switch axis {
		case OffsetX:
			return im.EPIDXOffset(), true
		case OffsetY:
			return im.EPIDYOffset(), true
		default:
			return im.EPIDZOffset()
		}
	})
}

// aggregate reduces per-image distances with the requested metric.
func aggregate(values []float64, metric DistanceMetric) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("no images in the collection")
	}
	switch metric {
	case Max:
		worst := values[0]
		for _, v := range values[1:] {
			if v > worst {
				worst = v
			}
		}
		return worst, nil
	case Median:
		sorted := make([]float64, len(values))
		copy(sorted, values)
		sort.Float64s(sorted)
		return stat.Quantile(0.5, stat.LinInterp, sorted, nil), nil
	default:
		return 0, fmt.Errorf("unknown distance metric %d", metric)
	}
}

// CAX2BBDistance returns the aggregate distance in mm between the CAX and
// the BB over all images.
func (wl *WinstonLutz) CAX2BBDistance(metric DistanceMetric) (float64, error) {
	values := make([]float64, len(wl.images))
	for i, im := range wl.images {
		values[i] = im.CAX2BBDistance()
	}
	return aggregate(values, metric)
}

// CAX2EPIDDistance returns the aggregate distance in mm between the CAX
// and the panel center over all images.
func (wl *WinstonLutz) CAX2EPIDDistance(metric DistanceMetric) (float64, error) {
	values := make([]float64, len(wl.images))
	for i, im := range wl.images {
		values[i] = im.CAX2EPIDDistance()
	}
	return aggregate(values, metric)
}

// Results returns a text summary of the analysis. Metrics whose axes are
// absent from the image set are skipped rather than reported as errors.
func (wl *WinstonLutz) Results() string {
	var b strings.Builder
	b.WriteString("Winston-Lutz Analysis\n\n")
	fmt.Fprintf(&b, "Number of images: %d\n", len(wl.images))

	if maxDist, err := wl.CAX2BBDistance(Max); err == nil {
		fmt.Fprintf(&b, "Maximum 2D CAX->BB distance: %.2fmm\n", maxDist)
	}
	if medDist, err := wl.CAX2BBDistance(Median); err == nil {
		fmt.Fprintf(&b, "Median 2D CAX->BB distance: %.2fmm\n", medDist)
	}
	if size, err := wl.GantryIsoSize(); err == nil {
		vec, _ := wl.GantryIso2BBVector()
		fmt.Fprintf(&b, "Gantry 3D isocenter diameter: %.2fmm\n", size)
		fmt.Fprintf(&b, "Gantry iso->BB vector: (%.2f, %.2f, %.2f)mm\n", vec.X, vec.Y, vec.Z)
	}
	if sag, err := wl.BBSagRange(OffsetZ); err == nil {
		fmt.Fprintf(&b, "Gantry sag in the z-direction: %.2fmm\n", sag)
	}
	if sag, err := wl.EPIDSagRange(OffsetZ); err == nil {
		fmt.Fprintf(&b, "EPID sag in the z-direction: %.2fmm\n", sag)
	}
	if size, err := wl.CollimatorIsoSize(); err == nil {
		vec, _ := wl.CollimatorIso2BBVector()
		fmt.Fprintf(&b, "Collimator 2D isocenter diameter: %.2fmm\n", size)
		fmt.Fprintf(&b, "Collimator 2D iso->BB vector: (%.2f, %.2f)mm\n", vec.X, vec.Y)
	}
	if size, err := wl.CouchIsoSize(); err == nil {
		vec, _ := wl.CouchIso2BBVector()
		fmt.Fprintf(&b, "Couch 2D isocenter diameter: %.2fmm\n", size)
		fmt.Fprintf(&b, "Couch 2D iso->BB vector: (%.2f, %.2f)mm\n", vec.X, vec.Y)
	}
	return b.String()
}
