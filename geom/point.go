// Package geom holds the plain 2-D value types shared by the matcher,
// the transform library, and the fitter. Nothing here depends on any
// other package in this module.
package geom

import "math"

// Point is a 2-D coordinate. It carries no identity: two Points with
// equal fields are interchangeable.
type Point struct {
	X, Y float64
}

// Sub returns p-q.
func (p Point) Sub(q Point) Point {
	return Point{p.X - q.X, p.Y - q.Y}
}

// Add returns p+q.
func (p Point) Add(q Point) Point {
	return Point{p.X + q.X, p.Y + q.Y}
}

// Scale returns p scaled by s.
func (p Point) Scale(s float64) Point {
	return Point{p.X * s, p.Y * s}
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Dist2 returns the squared Euclidean distance between p and q,
// avoiding the sqrt when only comparisons are needed.
func (p Point) Dist2(q Point) float64 {
	dx, dy := p.X-q.X, p.Y-q.Y
	return dx*dx + dy*dy
}

// Norm returns the Euclidean length of p treated as a vector from the
// origin.
func (p Point) Norm() float64 {
	return math.Hypot(p.X, p.Y)
}
