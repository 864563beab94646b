// Package imageio supplies images to the analysis core. It is a thin
// collaborator around the core boundary: it decodes grayscale portal images
// from a directory and reads the acquisition metadata (angles and pixel
// spacing) from a YAML manifest next to them. The core itself never parses
// a file format.
package imageio

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"gopkg.in/yaml.v3"

	"winstonlutz/internal/models"
	"winstonlutz/pkg/detection"
	"winstonlutz/pkg/winstonlutz"
)

// ManifestName is the filename of the acquisition manifest expected in an
// image directory.
const ManifestName = "manifest.yaml"

// Manifest describes a directory of Winston-Lutz images.
type Manifest struct {
	// DPMM is the pixel density in dots per millimeter, applied to every
	// image unless overridden per entry
	DPMM float64 `yaml:"dpmm"`

	// Images lists the image files with their acquisition angles
	Images []ManifestEntry `yaml:"images"`
}

// ManifestEntry is one image file plus its machine state.
type ManifestEntry struct {
	File       string  `yaml:"file"`
	Gantry     float64 `yaml:"gantry"`
	Collimator float64 `yaml:"collimator"`
	Couch      float64 `yaml:"couch"`

	// DPMM overrides the manifest-level pixel density when nonzero
	DPMM float64 `yaml:"dpmm,omitempty"`
}

// LoadManifest reads and parses a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading manifest: %w", err)
	}
	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("error parsing manifest: %w", err)
	}
	if len(m.Images) == 0 {
		return nil, fmt.Errorf("manifest lists no images")
	}
	return m, nil
}

// LoadGrayscale decodes an image file into a grayscale intensity grid with
// values in [0, 1].
func LoadGrayscale(path string) (models.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return models.Image{}, fmt.Errorf("error opening image %s: %w", path, err)
	}
	gray := imaging.Grayscale(img)
	bounds := gray.Bounds()
	rows := bounds.Dy()
	cols := bounds.Dx()
	pixels := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			// all three channels are equal after the grayscale conversion
			pixels[r*cols+c] = float64(gray.NRGBAAt(bounds.Min.X+c, bounds.Min.Y+r).R) / 255
		}
	}
	return models.NewImage(pixels, rows, cols)
}

// LoadDirectory loads every image named by the directory's manifest, runs
// the detection pipeline on each, and returns the analyzed images ready for
// a WinstonLutz analysis.
func LoadDirectory(dir string, params detection.Params) ([]*winstonlutz.Image, error) {
	manifest, err := LoadManifest(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, err
	}

	images := make([]*winstonlutz.Image, 0, len(manifest.Images))
	for _, entry := range manifest.Images {
		grid, err := LoadGrayscale(filepath.Join(dir, entry.File))
		if err != nil {
			return nil, err
		}
		dpmm := manifest.DPMM
		if entry.DPMM != 0 {
			dpmm = entry.DPMM
		}
		acq := models.Acquisition{
			GantryAngle:     entry.Gantry,
			CollimatorAngle: entry.Collimator,
			CouchAngle:      entry.Couch,
			DPMM:            dpmm,
		}
		img, err := winstonlutz.NewImage(grid, acq, params)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.File, err)
		}
		images = append(images, img)
	}
	return images, nil
}
