package detection

import (
	"errors"
	"math"
	"testing"

	"winstonlutz/internal/models"
)

// syntheticField builds a 200x200 portal-image fixture: a dim background,
// a bright 101x101 radiation field centered on (100,100) with a 3-pixel
// penumbra ring, and optionally a BB disc of radius 4.5 pixels at the
// given center. The penumbra gives the BB search band a second large
// component so the fiducial ranks third, as it does in real images.
func syntheticField(bbRow, bbCol int, withBB bool) models.Image {
	const (
		size       = 200
		fieldMin   = 50
		fieldMax   = 151 // exclusive
		background = 0.05
		penumbra   = 0.8
		fieldLevel = 1.0
		bbLevel    = 0.55
		bbRadius   = 4.5
	)
	pixels := make([]float64, size*size)
	for i := range pixels {
		pixels[i] = background
	}
	for r := fieldMin; r < fieldMax; r++ {
		for c := fieldMin; c < fieldMax; c++ {
			edge := r < fieldMin+3 || r >= fieldMax-3 || c < fieldMin+3 || c >= fieldMax-3
			if edge {
				pixels[r*size+c] = penumbra
			} else {
				pixels[r*size+c] = fieldLevel
			}
		}
	}
	if withBB {
		for r := bbRow - 5; r <= bbRow+5; r++ {
			for c := bbCol - 5; c <= bbCol+5; c++ {
				dr := float64(r - bbRow)
				dc := float64(c - bbCol)
				if dr*dr+dc*dc <= bbRadius*bbRadius {
					pixels[r*size+c] = bbLevel
				}
			}
		}
	}
	im, _ := models.NewImage(pixels, size, size)
	return im
}

// TestFindFieldCentroidRectangle verifies the field centroid and margined
// bounding box on a plain rectangular field
func TestFindFieldCentroidRectangle(t *testing.T) {
	const size = 100
	pixels := make([]float64, size*size)
	for r := 30; r < 70; r++ {
		for c := 20; c < 80; c++ {
			pixels[r*size+c] = 1.0
		}
	}
	im, _ := models.NewImage(pixels, size, size)

	cax, box, err := FindFieldCentroid(im, 10)
	if err != nil {
		t.Fatalf("FindFieldCentroid failed: %v", err)
	}

	if cax.X != 49.5 || cax.Y != 49.5 {
		t.Errorf("Expected centroid (49.5, 49.5), got (%g, %g)", cax.X, cax.Y)
	}

	// one erosion pass shrinks the mask by a pixel before the margin is
	// applied
	want := BoundingBox{RowMin: 21, RowMax: 79, ColMin: 11, ColMax: 89}
	if box != want {
		t.Errorf("Expected bounding box %+v, got %+v", want, box)
	}
}

// TestFindFieldCentroidUnbiasedByBB verifies that the BB does not pull the
// field centroid off the field center
func TestFindFieldCentroidUnbiasedByBB(t *testing.T) {
	im := syntheticField(96, 93, true)
	cax, _, err := FindFieldCentroid(im, 10)
	if err != nil {
		t.Fatalf("FindFieldCentroid failed: %v", err)
	}
	if math.Abs(cax.X-100) > 1e-9 || math.Abs(cax.Y-100) > 1e-9 {
		t.Errorf("Expected centroid (100, 100), got (%g, %g)", cax.X, cax.Y)
	}
}

// TestCleanEdgesStripsArtifact verifies that a hot border pixel causes the
// border band to be stripped
func TestCleanEdgesStripsArtifact(t *testing.T) {
	const size = 40
	pixels := make([]float64, size*size)
	for i := range pixels {
		pixels[i] = 0.5
	}
	pixels[5] = 1.0 // hot pixel on the top border
	im, _ := models.NewImage(pixels, size, size)

	cleaned := CleanEdges(im, 2)
	if cleaned.Rows != size-4 || cleaned.Cols != size-4 {
		t.Errorf("Expected %dx%d after one strip, got %dx%d",
			size-4, size-4, cleaned.Rows, cleaned.Cols)
	}
}

// TestCleanEdgesKeepsCleanImage verifies that a clean border is untouched
func TestCleanEdgesKeepsCleanImage(t *testing.T) {
	im := syntheticField(100, 100, true)
	cleaned := CleanEdges(im, 2)
	if cleaned.Rows != im.Rows || cleaned.Cols != im.Cols {
		t.Errorf("Expected dimensions unchanged, got %dx%d", cleaned.Rows, cleaned.Cols)
	}
}

// TestCleanEdgesSafetyBound verifies that cleaning stops rather than
// eroding the whole image when no clean border exists
func TestCleanEdgesSafetyBound(t *testing.T) {
	const size = 60
	pixels := make([]float64, size*size)
	for i := range pixels {
		pixels[i] = 0.5
	}
	// a trail of hot pixels down the diagonal keeps every successive
	// border band noisy
	for d := 0; d <= 12; d++ {
		pixels[d*size+d] = 10.0
	}
	im, _ := models.NewImage(pixels, size, size)

	cleaned := CleanEdges(im, 2)
	// safety bound is size/10 = 6 iterations of 2 pixels per side
	wantDim := size - 4*6
	if cleaned.Rows != wantDim || cleaned.Cols != wantDim {
		t.Errorf("Expected %dx%d after safety stop, got %dx%d",
			wantDim, wantDim, cleaned.Rows, cleaned.Cols)
	}
}

// TestFindBBCentered verifies subpixel BB localization on a centered disc
func TestFindBBCentered(t *testing.T) {
	im := syntheticField(100, 100, true)
	p := DefaultParams()
	_, box, err := FindFieldCentroid(im, p.BoxMargin)
	if err != nil {
		t.Fatalf("FindFieldCentroid failed: %v", err)
	}

	bb, err := FindBB(im, box, p)
	if err != nil {
		t.Fatalf("FindBB failed: %v", err)
	}
	if math.Abs(bb.X-100) > 0.1 || math.Abs(bb.Y-100) > 0.1 {
		t.Errorf("Expected BB near (100, 100), got (%g, %g)", bb.X, bb.Y)
	}
}

// TestFindBBOffset verifies localization of an off-center BB
func TestFindBBOffset(t *testing.T) {
	im := syntheticField(97, 104, true)
	p := DefaultParams()
	_, box, err := FindFieldCentroid(im, p.BoxMargin)
	if err != nil {
		t.Fatalf("FindFieldCentroid failed: %v", err)
	}

	bb, err := FindBB(im, box, p)
	if err != nil {
		t.Fatalf("FindBB failed: %v", err)
	}
	if math.Abs(bb.X-104) > 0.1 || math.Abs(bb.Y-97) > 0.1 {
		t.Errorf("Expected BB near (104, 97), got (%g, %g)", bb.X, bb.Y)
	}
}

// TestFindBBMissing verifies the detection error when no fiducial exists
func TestFindBBMissing(t *testing.T) {
	im := syntheticField(0, 0, false)
	p := DefaultParams()
	_, box, err := FindFieldCentroid(im, p.BoxMargin)
	if err != nil {
		t.Fatalf("FindFieldCentroid failed: %v", err)
	}

	if _, err := FindBB(im, box, p); !errors.Is(err, ErrBBNotFound) {
		t.Errorf("Expected ErrBBNotFound, got %v", err)
	}
}

// TestAnalyze runs the full pipeline and checks the combined result
func TestAnalyze(t *testing.T) {
	im := syntheticField(100, 102, true)
	cleaned, res, err := Analyze(im, DefaultParams())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if cleaned.Rows != im.Rows || cleaned.Cols != im.Cols {
		t.Errorf("Expected no edge cleaning on a clean image")
	}
	if math.Abs(res.FieldCAX.X-100) > 1e-9 || math.Abs(res.FieldCAX.Y-100) > 1e-9 {
		t.Errorf("Expected field CAX (100, 100), got (%g, %g)", res.FieldCAX.X, res.FieldCAX.Y)
	}
	if math.Abs(res.BB.X-102) > 0.1 || math.Abs(res.BB.Y-100) > 0.1 {
		t.Errorf("Expected BB near (102, 100), got (%g, %g)", res.BB.X, res.BB.Y)
	}
}
