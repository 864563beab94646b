package models

import "fmt"

// Image is a generic grayscale image held as a flat float64 array in
// row-major order. It carries no acquisition metadata; that lives in
// Acquisition so that detection code can operate on plain pixel data.
type Image struct {
	// Pixels is the intensity data in row-major order
	Pixels []float64

	// Rows and Cols are the image dimensions
	Rows, Cols int
}

// NewImage creates an image from a flat pixel array.
// The pixel slice is used as-is, not copied.
func NewImage(pixels []float64, rows, cols int) (Image, error) {
	if rows <= 0 || cols <= 0 {
		return Image{}, fmt.Errorf("invalid image dimensions %dx%d", rows, cols)
	}
	if len(pixels) != rows*cols {
		return Image{}, fmt.Errorf("pixel count %d does not match dimensions %dx%d", len(pixels), rows, cols)
	}
	return Image{Pixels: pixels, Rows: rows, Cols: cols}, nil
}

// At returns the intensity at the given row and column.
func (im Image) At(row, col int) float64 {
	return im.Pixels[row*im.Cols+col]
}

// Crop returns a copy of the sub-image [rowMin,rowMax) x [colMin,colMax).
func (im Image) Crop(rowMin, rowMax, colMin, colMax int) Image {
	rows := rowMax - rowMin
	cols := colMax - colMin
	out := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		copy(out[r*cols:(r+1)*cols], im.Pixels[(rowMin+r)*im.Cols+colMin:(rowMin+r)*im.Cols+colMax])
	}
	return Image{Pixels: out, Rows: rows, Cols: cols}
}

// Clone returns a deep copy of the image.
func (im Image) Clone() Image {
	out := make([]float64, len(im.Pixels))
	copy(out, im.Pixels)
	return Image{Pixels: out, Rows: im.Rows, Cols: im.Cols}
}

// Acquisition holds the machine state at the time an image was taken.
type Acquisition struct {
	// GantryAngle, CollimatorAngle and CouchAngle are in degrees, [0, 360)
	GantryAngle     float64
	CollimatorAngle float64
	CouchAngle      float64

	// DPMM is the pixel density in dots (pixels) per millimeter
	DPMM float64
}
