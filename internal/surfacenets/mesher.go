// Package surfacenets extracts an isosurface from a sampled SDF volume with
// the Surface Nets algorithm: one vertex per sign-changing cell, quads
// across every sign-changing lattice edge.
package surfacenets

import (
	"voxellod.ai/internal/volume"
)

const cells = volume.SampleSize - 1

// Generate meshes vol. Positions are in sample units relative to the
// volume's first sample. A volume with no surface yields an empty Output
// and a nil error; the only error is an unsupported Config.Size.
func Generate(vol *volume.Volume, mats *volume.Materials, cfg Config) (Output, error) {
	if size := cfg.size(); size != volume.SampleSize {
		return Output{}, &UnsupportedSizeError{Size: size}
	}

	out := emptyOutput()
	idx := make([]int32, volume.SampleSizeCb)
	for i := range idx {
		idx[i] = -1
	}
	transition := cfg.NeighborMask & TransitionBits

	for x := 0; x < cells; x++ {
		for y := 0; y < cells; y++ {
			for z := 0; z < cells; z++ {
				processCell(vol, mats, x, y, z, idx, &out, transition, cfg.ShortestDiagonal)
			}
		}
	}

	filterBoundaryTriangles(&out)
	computeNormals(vol, &out, cfg)

	if !hasArea(&out) {
		return emptyOutput(), nil
	}
	return out, nil
}

func processCell(vol *volume.Volume, mats *volume.Materials, x, y, z int, idx []int32, out *Output, transition uint32, shortest bool) {
	base := volume.Index(x, y, z)
	var raw [8]int8
	for i, off := range volume.CornerOffsets {
		raw[i] = vol[base+off]
	}
	mask := CornerMask(raw)
	if mask == 0 || mask == 255 {
		return
	}
	var samples [8]float32
	for i, r := range raw {
		samples[i] = volume.ToFloat(r, 1)
	}
	edges := EdgeTable[mask]
	local := cellVertex(&samples, edges)
	pos := [3]float32{float32(x) + local[0], float32(y) + local[1], float32(z) + local[2]}
	cell := [3]int32{int32(x), int32(y), int32(z)}

	if transition != 0 && isBoundaryVertex(cell, transition) {
		pos = displacedPosition(vol, cell, pos)
	}

	idx[base] = int32(len(out.Vertices))
	out.Vertices = append(out.Vertices, Vertex{
		Position: pos,
		Weights:  materialWeights(mats, mask, base),
		Cell:     cell,
	})
	out.Bounds.Encapsulate(pos)

	emitQuads(x, y, z, edges, mask, idx, out, shortest)
}

// emitQuads connects the vertex of cell (x,y,z) with its three already
// visited neighbors around each crossing edge leaving corner 0.
//
//	c --- a
//	|     |
//	b --- d
func emitQuads(x, y, z int, edges uint16, mask uint8, idx []int32, out *Output, shortest bool) {
	flip := mask&1 == 0
	p := [3]int{x, y, z}
	for axis := 0; axis < 3; axis++ {
		if edges&(1<<axis) == 0 {
			continue
		}
		u, v := (axis+1)%3, (axis+2)%3
		if p[u] == 0 || p[v] == 0 {
			continue
		}
		pb, pc, pd := p, p, p
		pb[u]--
		pb[v]--
		pc[u]--
		pd[v]--

		a := idx[volume.Index(x, y, z)]
		b := idx[volume.Index(pb[0], pb[1], pb[2])]
		c := idx[volume.Index(pc[0], pc[1], pc[2])]
		d := idx[volume.Index(pd[0], pd[1], pd[2])]
		if a < 0 || b < 0 || c < 0 || d < 0 {
			continue
		}

		useAB := true
		if shortest {
			ab := sub(out.Vertices[a].Position, out.Vertices[b].Position)
			cd := sub(out.Vertices[c].Position, out.Vertices[d].Position)
			useAB = dot(ab, ab) < dot(cd, cd)
		}
		A, B, C, D := uint32(a), uint32(b), uint32(c), uint32(d)
		switch {
		case useAB && flip:
			out.Indices = append(out.Indices, A, B, C, A, D, B)
		case useAB:
			out.Indices = append(out.Indices, A, B, D, A, C, B)
		case flip:
			out.Indices = append(out.Indices, C, A, D, D, B, C)
		default:
			out.Indices = append(out.Indices, C, D, A, C, B, D)
		}
	}
}

// filterBoundaryTriangles drops triangles lying wholly past the last
// interior cell; the neighboring chunk owns them.
func filterBoundaryTriangles(out *Output) {
	outside := func(i uint32) bool {
		c := out.Vertices[i].Cell
		return c[0] > volume.LastInteriorCell || c[1] > volume.LastInteriorCell || c[2] > volume.LastInteriorCell
	}
	kept := out.Indices[:0]
	for t := 0; t+2 < len(out.Indices); t += 3 {
		tri := out.Indices[t : t+3]
		if outside(tri[0]) && outside(tri[1]) && outside(tri[2]) {
			continue
		}
		kept = append(kept, tri...)
	}
	out.Indices = kept
}

// hasArea reports whether at least one triangle is non-degenerate.
func hasArea(out *Output) bool {
	if len(out.Vertices) < 3 || len(out.Indices) < 3 {
		return false
	}
	for t := 0; t+2 < len(out.Indices); t += 3 {
		p0 := out.Vertices[out.Indices[t]].Position
		p1 := out.Vertices[out.Indices[t+1]].Position
		p2 := out.Vertices[out.Indices[t+2]].Position
		n := cross(sub(p1, p0), sub(p2, p0))
		if dot(n, n) > 1e-12 {
			return true
		}
	}
	return false
}
