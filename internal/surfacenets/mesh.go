package surfacenets

import "github.com/chewxy/math32"

// Vertex is one output vertex. Position is in sample space of the chunk,
// Cell is the integer cell that produced it.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	Weights  [4]float32
	Cell     [3]int32
}

// AABB is a min/max bounding box in sample space.
type AABB struct {
	Min [3]float32
	Max [3]float32
}

// EmptyAABB returns an inverted box that any point will expand.
func EmptyAABB() AABB {
	inf := math32.Inf(1)
	return AABB{
		Min: [3]float32{inf, inf, inf},
		Max: [3]float32{-inf, -inf, -inf},
	}
}

func (b *AABB) Encapsulate(p [3]float32) {
	for i := 0; i < 3; i++ {
		b.Min[i] = math32.Min(b.Min[i], p[i])
		b.Max[i] = math32.Max(b.Max[i], p[i])
	}
}

// IsEmpty reports whether no point has been added.
func (b AABB) IsEmpty() bool { return b.Min[0] > b.Max[0] }

func (b AABB) Size() [3]float32 {
	if b.IsEmpty() {
		return [3]float32{}
	}
	return [3]float32{b.Max[0] - b.Min[0], b.Max[1] - b.Min[1], b.Max[2] - b.Min[2]}
}

// Output is the result of meshing one volume. An empty Output is valid.
type Output struct {
	Vertices []Vertex
	Indices  []uint32
	Bounds   AABB
}

func (o *Output) IsEmpty() bool      { return len(o.Vertices) == 0 || len(o.Indices) == 0 }
func (o *Output) TriangleCount() int { return len(o.Indices) / 3 }

func emptyOutput() Output { return Output{Bounds: EmptyAABB()} }
