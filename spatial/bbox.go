package spatial

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// BoundingBox is an axis-aligned box in 3D space. Min holds the lowest
// coordinate on every axis and Max the highest.
type BoundingBox struct {
	Min r3.Vector
	Max r3.Vector
}

// NewBoundingBox returns the box spanned by two opposite corners. The corners
// can be given in any order.
func NewBoundingBox(a, b r3.Vector) BoundingBox {
	return BoundingBox{
		Min: r3.Vector{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)},
		Max: r3.Vector{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)},
	}
}

// BoundingBoxFromCenter returns the box centered on center that extends by
// halfExtents on each side.
func BoundingBoxFromCenter(center, halfExtents r3.Vector) BoundingBox {
	return NewBoundingBox(center.Sub(halfExtents), center.Add(halfExtents))
}

// Size returns the extent of the box on each axis.
func (b BoundingBox) Size() r3.Vector {
	return b.Max.Sub(b.Min)
}

// HasVolume reports whether the box extends on every axis. A box without
// volume never intersects another box.
func (b BoundingBox) HasVolume() bool {
	s := b.Size()
	return s.X > 0 && s.Y > 0 && s.Z > 0
}

// Center returns the middle point of the box.
func (b BoundingBox) Center() r3.Vector {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Intersects reports whether both boxes share some interior volume. Boxes that
// only touch on a face, an edge or a corner do not intersect.
func (b BoundingBox) Intersects(o BoundingBox) bool {
	return b.Min.X < o.Max.X && b.Max.X > o.Min.X &&
		b.Min.Y < o.Max.Y && b.Max.Y > o.Min.Y &&
		b.Min.Z < o.Max.Z && b.Max.Z > o.Min.Z
}

// Contains reports whether o lies entirely inside b.
func (b BoundingBox) Contains(o BoundingBox) bool {
	return b.Min.X <= o.Min.X && b.Max.X >= o.Max.X &&
		b.Min.Y <= o.Min.Y && b.Max.Y >= o.Max.Y &&
		b.Min.Z <= o.Min.Z && b.Max.Z >= o.Max.Z
}

// Enlarge returns the smallest box containing both b and o.
func (b BoundingBox) Enlarge(o BoundingBox) BoundingBox {
	return BoundingBox{
		Min: r3.Vector{X: math.Min(b.Min.X, o.Min.X), Y: math.Min(b.Min.Y, o.Min.Y), Z: math.Min(b.Min.Z, o.Min.Z)},
		Max: r3.Vector{X: math.Max(b.Max.X, o.Max.X), Y: math.Max(b.Max.Y, o.Max.Y), Z: math.Max(b.Max.Z, o.Max.Z)},
	}
}

// Area returns the volume of the box.
func (b BoundingBox) Area() float64 {
	s := b.Size()
	return s.X * s.Y * s.Z
}

// Perimeter returns the sum of the box extents. It is the margin value used to
// rank split candidates.
func (b BoundingBox) Perimeter() float64 {
	s := b.Size()
	return s.X + s.Y + s.Z
}

// Overlap returns the volume shared by both boxes.
func (b BoundingBox) Overlap(o BoundingBox) float64 {
	overlap := 1.0
	for axis := 0; axis < 3; axis++ {
		lo := math.Max(coord(b.Min, axis), coord(o.Min, axis))
		hi := math.Min(coord(b.Max, axis), coord(o.Max, axis))
		if hi <= lo {
			return 0
		}
		overlap *= hi - lo
	}
	return overlap
}

// Equal reports whether both boxes have the same corners.
func (b BoundingBox) Equal(o BoundingBox) bool {
	return b.Min == o.Min && b.Max == o.Max
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[(%g, %g, %g), (%g, %g, %g)]",
		b.Min.X, b.Min.Y, b.Min.Z,
		b.Max.X, b.Max.Y, b.Max.Z,
	)
}

func coord(v r3.Vector, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}
