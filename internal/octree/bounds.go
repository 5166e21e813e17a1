package octree

import "github.com/golang/geo/r3"

// Bounds is a double-precision axis-aligned box.
type Bounds struct {
	Min, Max r3.Vector
}

func NewBounds(lo, hi r3.Vector) Bounds {
	return Bounds{Min: lo, Max: hi}
}

func BoundsFromCenterHalfExtents(center, half r3.Vector) Bounds {
	return Bounds{Min: center.Sub(half), Max: center.Add(half)}
}

// Overlaps is inclusive: touching boxes overlap.
func (b Bounds) Overlaps(o Bounds) bool {
	return b.Min.X <= o.Max.X && b.Max.X >= o.Min.X &&
		b.Min.Y <= o.Max.Y && b.Max.Y >= o.Min.Y &&
		b.Min.Z <= o.Max.Z && b.Max.Z >= o.Min.Z
}

func (b Bounds) ContainsPoint(p r3.Vector) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

func (b Bounds) Size() r3.Vector   { return b.Max.Sub(b.Min) }
func (b Bounds) Center() r3.Vector { return b.Min.Add(b.Max).Mul(0.5) }
