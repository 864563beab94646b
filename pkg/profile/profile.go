// Package profile provides 1D intensity profile analysis. The Winston-Lutz
// BB locator collapses the 2D fiducial mask into per-axis profiles and takes
// the half-maximum interpolated center of each as the subpixel coordinate.
package profile

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Profile is a 1D array of intensity samples.
type Profile struct {
	values []float64
}

// New creates a profile from the given samples. The slice is not copied.
func New(values []float64) Profile {
	return Profile{values: values}
}

// Values returns the underlying samples.
func (p Profile) Values() []float64 {
	return p.values
}

// HalfMaxCenter returns the center of the profile found by locating the two
// positions where the profile crosses half its peak height, linearly
// interpolated between samples, and averaging them. The crossing height is
// measured relative to the profile minimum so a nonzero baseline does not
// bias the result.
func (p Profile) HalfMaxCenter() (float64, error) {
	if len(p.values) < 2 {
		return 0, fmt.Errorf("profile too short for center detection: %d samples", len(p.values))
	}
	peak := floats.Max(p.values)
	base := floats.Min(p.values)
	if peak <= base {
		return 0, fmt.Errorf("flat profile has no center")
	}
	half := base + (peak-base)*0.5

	left, err := p.risingCrossing(half)
	if err != nil {
		return 0, err
	}
	right, err := p.fallingCrossing(half)
	if err != nil {
		return 0, err
	}
	return (left + right) / 2, nil
}

// risingCrossing finds the first index position, scanning left to right,
// where the profile rises through the given height.
func (p Profile) risingCrossing(height float64) (float64, error) {
	for i := 0; i < len(p.values)-1; i++ {
		lo, hi := p.values[i], p.values[i+1]
		if lo < height && hi >= height {
			return float64(i) + (height-lo)/(hi-lo), nil
		}
		if lo >= height {
			// profile starts at or above the height
			return float64(i), nil
		}
	}
	return 0, fmt.Errorf("no rising crossing at height %g", height)
}

// fallingCrossing finds the last index position, scanning right to left,
// where the profile falls through the given height.
func (p Profile) fallingCrossing(height float64) (float64, error) {
	for i := len(p.values) - 1; i > 0; i-- {
		lo, hi := p.values[i], p.values[i-1]
		if lo < height && hi >= height {
			return float64(i) - (height-lo)/(hi-lo), nil
		}
		if lo >= height {
			return float64(i), nil
		}
	}
	return 0, fmt.Errorf("no falling crossing at height %g", height)
}
