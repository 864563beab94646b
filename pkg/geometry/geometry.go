// Package geometry provides the small set of geometric value types used by
// the Winston-Lutz analysis: points, vectors, lines and circles, together
// with the distance operations the isocenter solver minimizes over.
package geometry

import "math"

// Point is a location in 2D or 3D space. For planar measurements Z is
// simply left at zero.
type Point struct {
	X, Y, Z float64
}

// Vector is a displacement in 2D or 3D space.
type Vector struct {
	X, Y, Z float64
}

// Line is the infinite line through two points. The two points also fix a
// direction, which matters for the beam-axis rays built from gantry images.
type Line struct {
	P1, P2 Point
}

// Circle is a circle of a given radius centered on a point.
type Circle struct {
	Center Point
	Radius float64
}

// DistanceTo returns the Euclidean distance between two points.
func (p Point) DistanceTo(q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	dz := p.Z - q.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// DistanceToCircle returns the distance from the point to the nearest point
// on the circle's boundary.
func (p Point) DistanceToCircle(c Circle) float64 {
	return math.Abs(p.DistanceTo(c.Center) - c.Radius)
}

// AsVector returns the point interpreted as a displacement from the origin.
func (p Point) AsVector() Vector {
	return Vector{X: p.X, Y: p.Y, Z: p.Z}
}

// Sub returns the vector from q to p.
func (p Point) Sub(q Point) Vector {
	return Vector{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

// AsPoint returns the vector interpreted as a point displaced from the origin.
func (v Vector) AsPoint() Point {
	return Point{X: v.X, Y: v.Y, Z: v.Z}
}

// Scale returns the vector scaled by s.
func (v Vector) Scale(s float64) Vector {
	return Vector{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Negate returns the vector pointing the opposite way.
func (v Vector) Negate() Vector {
	return v.Scale(-1)
}

// Length returns the Euclidean norm of the vector.
func (v Vector) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// cross returns the cross product of two vectors.
func cross(a, b Vector) Vector {
	return Vector{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

// DistanceToPoint returns the perpendicular distance from p to the infinite
// line, computed as |(p2-p1) x (p1-p)| / |p2-p1|.
func (l Line) DistanceToPoint(p Point) float64 {
	dir := l.P2.Sub(l.P1)
	length := dir.Length()
	if length == 0 {
		return l.P1.DistanceTo(p)
	}
	return cross(dir, l.P1.Sub(p)).Length() / length
}

// DistanceToCircle returns the distance from the line to the nearest point
// on the circle's boundary, using the line's closest approach to the
// circle's center.
func (l Line) DistanceToCircle(c Circle) float64 {
	return math.Abs(l.DistanceToPoint(c.Center) - c.Radius)
}

// SinD returns the sine of an angle given in degrees.
func SinD(deg float64) float64 {
	return math.Sin(deg * math.Pi / 180)
}

// CosD returns the cosine of an angle given in degrees.
func CosD(deg float64) float64 {
	return math.Cos(deg * math.Pi / 180)
}
