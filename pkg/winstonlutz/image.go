package winstonlutz

import (
	"fmt"
	"math"

	"winstonlutz/internal/models"
	"winstonlutz/pkg/detection"
	"winstonlutz/pkg/geometry"
)

// Axis identifies which mechanical axis varied while an image was taken.
type Axis int

const (
	// Reference means all axes were at zero
	Reference Axis = iota
	// Gantry means only the gantry was rotated
	Gantry
	// Collimator means only the collimator was rotated
	Collimator
	// Couch means only the couch was rotated
	Couch
	// Combo means more than one axis was rotated
	Combo
)

// String returns the axis name.
func (a Axis) String() string {
	switch a {
	case Reference:
		return "Reference"
	case Gantry:
		return "Gantry"
	case Collimator:
		return "Collimator"
	case Couch:
		return "Couch"
	case Combo:
		return "Combo"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

const (
	// angleTolerance is the window in degrees around 0/360 within which an
	// acquisition angle is treated as zero
	angleTolerance = 1.0

	// couchZeroTolerance is the wider window used to decide whether
	// longitudinal offsets are defined at all
	couchZeroTolerance = 2.0

	// rayHalfLength is the distance in mm the CAX line projection extends
	// to either side of the BB offset position
	rayHalfLength = 20.0
)

// Image is a single analyzed Winston-Lutz portal image: the cleaned pixel
// data, the acquisition metadata, and the detected field and BB positions.
// All fields are populated at construction and never mutated afterwards.
type Image struct {
	pixels models.Image
	acq    models.Acquisition
	detect detection.Result
}

// NewImage builds an analyzed image from raw pixel data and acquisition
// metadata. The detection pipeline (edge cleaning, field centroid, BB
// locator) runs once here; a detection failure fails construction.
func NewImage(im models.Image, acq models.Acquisition, p detection.Params) (*Image, error) {
	if acq.DPMM <= 0 {
		return nil, fmt.Errorf("invalid pixel density %g dpmm", acq.DPMM)
	}
	cleaned, res, err := detection.Analyze(im, p)
	if err != nil {
		return nil, fmt.Errorf("image at G=%.1f B=%.1f P=%.1f: %w",
			acq.GantryAngle, acq.CollimatorAngle, acq.CouchAngle, err)
	}
	return &Image{pixels: cleaned, acq: acq, detect: res}, nil
}

// nearZero reports whether an angle in degrees is within tol of 0 or 360.
func nearZero(deg, tol float64) bool {
	return math.Abs(deg) <= tol || math.Abs(deg-360) <= tol
}

// snapAngle maps angles within the tolerance of 0/360 to exactly 0.
func snapAngle(deg float64) float64 {
	if nearZero(deg, angleTolerance) {
		return 0
	}
	return deg
}

// GantryAngle returns the gantry angle in degrees, snapped to 0 when near
// 0/360.
func (im *Image) GantryAngle() float64 { return snapAngle(im.acq.GantryAngle) }

// CollimatorAngle returns the collimator angle in degrees, snapped to 0
// when near 0/360.
func (im *Image) CollimatorAngle() float64 { return snapAngle(im.acq.CollimatorAngle) }

// CouchAngle returns the couch angle in degrees, snapped to 0 when near
// 0/360.
func (im *Image) CouchAngle() float64 { return snapAngle(im.acq.CouchAngle) }

// VariableAxis classifies the image by which single axis was rotated.
// Combo is the fallback when more than one angle deviates from zero.
func (im *Image) VariableAxis() Axis {
	g0 := nearZero(im.acq.GantryAngle, angleTolerance)
	b0 := nearZero(im.acq.CollimatorAngle, angleTolerance)
	p0 := nearZero(im.acq.CouchAngle, angleTolerance)
	switch {
	case g0 && b0 && p0:
		return Reference
	case g0 && b0:
		return Couch
	case g0 && p0:
		return Collimator
	case b0 && p0:
		return Gantry
	default:
		return Combo
	}
}

// FieldCAX returns the detected field center in pixel coordinates.
func (im *Image) FieldCAX() geometry.Point { return im.detect.FieldCAX }

// BB returns the detected fiducial center in pixel coordinates.
func (im *Image) BB() geometry.Point { return im.detect.BB }

// Box returns the margined field bounding box in pixel coordinates.
func (im *Image) Box() detection.BoundingBox { return im.detect.Box }

// EPID returns the center of the imaging panel in pixel coordinates of the
// cleaned image.
func (im *Image) EPID() geometry.Point {
	return geometry.Point{
		X: float64(im.pixels.Cols) / 2,
		Y: float64(im.pixels.Rows) / 2,
	}
}

// CAX2BBVector returns the vector in mm from the field CAX to the BB.
func (im *Image) CAX2BBVector() geometry.Vector {
	return im.detect.BB.Sub(im.detect.FieldCAX).Scale(1 / im.acq.DPMM)
}

// CAX2EPIDVector returns the vector in mm from the field CAX to the panel
// center.
func (im *Image) CAX2EPIDVector() geometry.Vector {
	return im.EPID().Sub(im.detect.FieldCAX).Scale(1 / im.acq.DPMM)
}

// CAX2BBDistance returns the scalar distance in mm from the field CAX to
// the BB.
func (im *Image) CAX2BBDistance() float64 {
	return im.detect.FieldCAX.DistanceTo(im.detect.BB) / im.acq.DPMM
}

// CAX2EPIDDistance returns the scalar distance in mm from the field CAX to
// the panel center.
func (im *Image) CAX2EPIDDistance() float64 {
	return im.detect.FieldCAX.DistanceTo(im.EPID()) / im.acq.DPMM
}

// BBXOffset returns the left/right displacement in mm of the BB relative
// to the CAX, projected through the gantry angle.
func (im *Image) BBXOffset() float64 {
	return geometry.CosD(im.GantryAngle()) * im.CAX2BBVector().X
}

// BBYOffset returns the up/down displacement in mm of the BB relative to
// the CAX, projected through the gantry angle.
func (im *Image) BBYOffset() float64 {
	return -geometry.SinD(im.GantryAngle()) * im.CAX2BBVector().X
}

// BBZOffset returns the in/out (longitudinal) displacement in mm of the BB
// relative to the CAX. The offset is only defined when the couch is near
// zero; otherwise the second return is false and the value must be ignored.
func (im *Image) BBZOffset() (float64, bool) {
	if !nearZero(im.CouchAngle(), couchZeroTolerance) {
		return 0, false
	}
	return -im.CAX2BBVector().Y, true
}

// EPIDXOffset returns the left/right displacement in mm of the panel
// center relative to the CAX, projected through the gantry angle.
func (im *Image) EPIDXOffset() float64 {
	return geometry.CosD(im.GantryAngle()) * im.CAX2EPIDVector().X
}

// EPIDYOffset returns the up/down displacement in mm of the panel center
// relative to the CAX, projected through the gantry angle.
func (im *Image) EPIDYOffset() float64 {
	return -geometry.SinD(im.GantryAngle()) * im.CAX2EPIDVector().X
}

// EPIDZOffset returns the in/out displacement in mm of the panel center
// relative to the CAX, defined only when the couch is near zero.
func (im *Image) EPIDZOffset() (float64, bool) {
	if !nearZero(im.CouchAngle(), couchZeroTolerance) {
		return 0, false
	}
	return -im.CAX2EPIDVector().Y, true
}

// CAXLineProjection returns the 3D ray traced by the beam central axis in
// the plane perpendicular to the couch: a line through two points offset
// along the gantry direction from the BB offset position. The gantry
// isocenter solve minimizes distances to these rays.
func (im *Image) CAXLineProjection() geometry.Line {
	g := im.GantryAngle()
	z, _ := im.BBZOffset()
	p1 := geometry.Point{
		X: im.BBXOffset() + rayHalfLength*geometry.SinD(g),
		Y: im.BBYOffset() + rayHalfLength*geometry.CosD(g),
		Z: z,
	}
	p2 := geometry.Point{
		X: im.BBXOffset() - rayHalfLength*geometry.SinD(g),
		Y: im.BBYOffset() - rayHalfLength*geometry.CosD(g),
		Z: z,
	}
	return geometry.Line{P1: p1, P2: p2}
}

// String describes the image by its acquisition angles.
func (im *Image) String() string {
	return fmt.Sprintf("WLImage(G=%.1f, B=%.1f, P=%.1f)",
		im.GantryAngle(), im.CollimatorAngle(), im.CouchAngle())
}
