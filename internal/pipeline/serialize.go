package pipeline

import (
	"encoding/binary"
	"fmt"
	"math"

	"voxellod.ai/internal/surfacenets"
)

// VertexSize is the byte size of one serialized vertex:
// position [3]f32, normal [3]f32, weights [4]f32, cell [3]i32.
const VertexSize = 13 * 4

// IndexSize is the byte size of one serialized index.
const IndexSize = 4

// Serialize flattens a mesh into native-endian byte buffers.
func Serialize(out *surfacenets.Output) MeshData {
	vb := make([]byte, len(out.Vertices)*VertexSize)
	for i, v := range out.Vertices {
		b := vb[i*VertexSize:]
		off := 0
		put := func(u uint32) {
			binary.NativeEndian.PutUint32(b[off:], u)
			off += 4
		}
		for _, f := range v.Position {
			put(math.Float32bits(f))
		}
		for _, f := range v.Normal {
			put(math.Float32bits(f))
		}
		for _, f := range v.Weights {
			put(math.Float32bits(f))
		}
		for _, c := range v.Cell {
			put(uint32(c))
		}
	}
	ib := make([]byte, len(out.Indices)*IndexSize)
	for i, idx := range out.Indices {
		binary.NativeEndian.PutUint32(ib[i*IndexSize:], idx)
	}
	return MeshData{
		Vertices:    vb,
		Indices:     ib,
		VertexCount: uint32(len(out.Vertices)),
		IndexCount:  uint32(len(out.Indices)),
		Bounds:      out.Bounds,
	}
}

// DecodeVertices is the inverse of the vertex half of Serialize.
func DecodeVertices(b []byte) ([]surfacenets.Vertex, error) {
	if len(b)%VertexSize != 0 {
		return nil, fmt.Errorf("vertex buffer length %d is not a multiple of %d", len(b), VertexSize)
	}
	vs := make([]surfacenets.Vertex, len(b)/VertexSize)
	for i := range vs {
		r := b[i*VertexSize:]
		off := 0
		next := func() uint32 {
			u := binary.NativeEndian.Uint32(r[off:])
			off += 4
			return u
		}
		v := &vs[i]
		for k := range v.Position {
			v.Position[k] = math.Float32frombits(next())
		}
		for k := range v.Normal {
			v.Normal[k] = math.Float32frombits(next())
		}
		for k := range v.Weights {
			v.Weights[k] = math.Float32frombits(next())
		}
		for k := range v.Cell {
			v.Cell[k] = int32(next())
		}
	}
	return vs, nil
}

// DecodeIndices is the inverse of the index half of Serialize.
func DecodeIndices(b []byte) ([]uint32, error) {
	if len(b)%IndexSize != 0 {
		return nil, fmt.Errorf("index buffer length %d is not a multiple of %d", len(b), IndexSize)
	}
	idx := make([]uint32, len(b)/IndexSize)
	for i := range idx {
		idx[i] = binary.NativeEndian.Uint32(b[i*IndexSize:])
	}
	return idx, nil
}
