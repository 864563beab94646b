package winstonlutz

import (
	"math"
	"testing"

	"winstonlutz/internal/models"
	"winstonlutz/pkg/detection"
	"winstonlutz/pkg/geometry"
)

// testImage builds an Image directly from acquisition metadata and
// detection results, bypassing the pixel pipeline. Used for the
// classification and vector math tests where pixel data is irrelevant.
func testImage(g, b, p, dpmm float64, cax, bb geometry.Point, rows, cols int) *Image {
	return &Image{
		pixels: models.Image{Pixels: make([]float64, rows*cols), Rows: rows, Cols: cols},
		acq: models.Acquisition{
			GantryAngle:     g,
			CollimatorAngle: b,
			CouchAngle:      p,
			DPMM:            dpmm,
		},
		detect: detection.Result{FieldCAX: cax, BB: bb},
	}
}

// TestVariableAxis verifies the axis classification over the angle
// combinations
func TestVariableAxis(t *testing.T) {
	cases := []struct {
		g, b, p float64
		want    Axis
	}{
		{0, 0, 0, Reference},
		{45, 0, 0, Gantry},
		{0, 30, 0, Collimator},
		{0, 0, 20, Couch},
		{45, 30, 0, Combo},
		{45, 30, 20, Combo},
		{0, 30, 20, Combo},
		// angles within the tolerance of 0/360 count as zero
		{359.5, 0.4, 0, Reference},
		{180, 360, 0.9, Gantry},
	}
	for _, tc := range cases {
		im := testImage(tc.g, tc.b, tc.p, 1, geometry.Point{}, geometry.Point{}, 10, 10)
		if got := im.VariableAxis(); got != tc.want {
			t.Errorf("VariableAxis(G=%g, B=%g, P=%g): expected %s, got %s",
				tc.g, tc.b, tc.p, tc.want, got)
		}
	}
}

// TestAngleSnapping verifies that angles near 0/360 report as exactly 0
func TestAngleSnapping(t *testing.T) {
	im := testImage(359.5, 0.9, 45, 1, geometry.Point{}, geometry.Point{}, 10, 10)
	if g := im.GantryAngle(); g != 0 {
		t.Errorf("Expected gantry angle 0, got %g", g)
	}
	if b := im.CollimatorAngle(); b != 0 {
		t.Errorf("Expected collimator angle 0, got %g", b)
	}
	if p := im.CouchAngle(); p != 45 {
		t.Errorf("Expected couch angle 45, got %g", p)
	}
}

// TestCAXVectors verifies pixel-to-mm conversion of the CAX vectors
func TestCAXVectors(t *testing.T) {
	im := testImage(0, 0, 0, 2,
		geometry.Point{X: 100, Y: 100}, geometry.Point{X: 104, Y: 98}, 200, 200)

	v := im.CAX2BBVector()
	if v.X != 2 || v.Y != -1 || v.Z != 0 {
		t.Errorf("Expected CAX->BB vector (2,-1,0), got (%g,%g,%g)", v.X, v.Y, v.Z)
	}
	want := math.Sqrt(4*4+2*2) / 2
	if d := im.CAX2BBDistance(); math.Abs(d-want) > 1e-9 {
		t.Errorf("Expected CAX->BB distance %g, got %g", want, d)
	}

	// panel center of a 200x200 image is (100,100), coincident with the CAX
	e := im.CAX2EPIDVector()
	if e.X != 0 || e.Y != 0 {
		t.Errorf("Expected zero CAX->EPID vector, got (%g,%g)", e.X, e.Y)
	}
}

// TestDirectionalOffsets verifies the trigonometric projection of the
// lateral offset through the gantry angle
func TestDirectionalOffsets(t *testing.T) {
	// CAX->BB vector is (3,4) mm
	im := testImage(90, 0, 0, 1,
		geometry.Point{X: 0, Y: 0}, geometry.Point{X: 3, Y: 4}, 10, 10)

	if x := im.BBXOffset(); math.Abs(x) > 1e-9 {
		t.Errorf("Expected x offset 0 at G=90, got %g", x)
	}
	if y := im.BBYOffset(); math.Abs(y+3) > 1e-9 {
		t.Errorf("Expected y offset -3 at G=90, got %g", y)
	}
	z, ok := im.BBZOffset()
	if !ok {
		t.Fatalf("Expected z offset to be defined at couch 0")
	}
	if math.Abs(z+4) > 1e-9 {
		t.Errorf("Expected z offset -4, got %g", z)
	}
}

// TestZOffsetUndefined verifies that longitudinal offsets are reported as
// undefined, not zero, when the couch is rotated
func TestZOffsetUndefined(t *testing.T) {
	im := testImage(0, 0, 45, 1,
		geometry.Point{X: 0, Y: 0}, geometry.Point{X: 3, Y: 4}, 10, 10)
	if _, ok := im.BBZOffset(); ok {
		t.Errorf("Expected BB z offset undefined at couch 45")
	}
	if _, ok := im.EPIDZOffset(); ok {
		t.Errorf("Expected EPID z offset undefined at couch 45")
	}
}

// TestCAXLineProjection verifies the backprojected beam ray at the
// cardinal gantry angles
func TestCAXLineProjection(t *testing.T) {
	// BB 1mm from the CAX along +x at G=0: ray is the vertical line x=1
	im := testImage(0, 0, 0, 1,
		geometry.Point{X: 0, Y: 0}, geometry.Point{X: 1, Y: 0}, 10, 10)
	l := im.CAXLineProjection()
	if l.P1.X != 1 || l.P2.X != 1 {
		t.Errorf("Expected ray at x=1, got P1.X=%g P2.X=%g", l.P1.X, l.P2.X)
	}
	if math.Abs(l.P1.Y-20) > 1e-9 || math.Abs(l.P2.Y+20) > 1e-9 {
		t.Errorf("Expected ray spanning y=+-20, got %g and %g", l.P1.Y, l.P2.Y)
	}

	// same offset at G=90: the lateral offset rotates into -y and the ray
	// runs along x
	im = testImage(90, 0, 0, 1,
		geometry.Point{X: 0, Y: 0}, geometry.Point{X: 1, Y: 0}, 10, 10)
	l = im.CAXLineProjection()
	if math.Abs(l.P1.Y+1) > 1e-9 || math.Abs(l.P2.Y+1) > 1e-9 {
		t.Errorf("Expected ray at y=-1, got P1.Y=%g P2.Y=%g", l.P1.Y, l.P2.Y)
	}
	if math.Abs(l.P1.X-20) > 1e-9 || math.Abs(l.P2.X+20) > 1e-9 {
		t.Errorf("Expected ray spanning x=+-20, got %g and %g", l.P1.X, l.P2.X)
	}
}

// TestNewImageRejectsBadDPMM verifies construction fails without a valid
// pixel density
func TestNewImageRejectsBadDPMM(t *testing.T) {
	im, _ := models.NewImage(make([]float64, 100), 10, 10)
	if _, err := NewImage(im, models.Acquisition{DPMM: 0}, detection.DefaultParams()); err == nil {
		t.Errorf("Expected error for zero dpmm")
	}
}
