package surfacenets

import (
	"github.com/chewxy/math32"

	"voxellod.ai/internal/volume"
)

var up = [3]float32{0, 1, 0}

// gradient is the normalized central difference over the 8 corners.
func gradient(s *[8]float32) [3]float32 {
	g := [3]float32{
		(s[1] + s[3] + s[5] + s[7]) - (s[0] + s[2] + s[4] + s[6]),
		(s[2] + s[3] + s[6] + s[7]) - (s[0] + s[1] + s[4] + s[5]),
		(s[4] + s[5] + s[6] + s[7]) - (s[0] + s[1] + s[2] + s[3]),
	}
	return normalizeOr(g, 1e-8, up)
}

// interpolatedGradient evaluates the analytic gradient of the trilinear
// interpolant at frac inside the cell.
func interpolatedGradient(s *[8]float32, frac [3]float32) [3]float32 {
	fx := math32.Min(math32.Max(frac[0], 0), 1)
	fy := math32.Min(math32.Max(frac[1], 0), 1)
	fz := math32.Min(math32.Max(frac[2], 0), 1)

	lerp := func(a, b, t float32) float32 { return a + (b-a)*t }

	// d/dx: differences along X, bilinear over (y, z).
	gx := lerp(
		lerp(s[1]-s[0], s[3]-s[2], fy),
		lerp(s[5]-s[4], s[7]-s[6], fy),
		fz)
	gy := lerp(
		lerp(s[2]-s[0], s[3]-s[1], fx),
		lerp(s[6]-s[4], s[7]-s[5], fx),
		fz)
	gz := lerp(
		lerp(s[4]-s[0], s[5]-s[1], fx),
		lerp(s[6]-s[2], s[7]-s[3], fx),
		fy)
	return normalizeOr([3]float32{gx, gy, gz}, 1e-8, up)
}

func cornerSamples(vol *volume.Volume, cell [3]int32) [8]float32 {
	base := volume.Index(int(cell[0]), int(cell[1]), int(cell[2]))
	var s [8]float32
	for i, off := range volume.CornerOffsets {
		s[i] = volume.ToFloat(vol[base+off], 1)
	}
	return s
}

func gradientNormals(vol *volume.Volume, out *Output) {
	for i := range out.Vertices {
		v := &out.Vertices[i]
		s := cornerSamples(vol, v.Cell)
		v.Normal = gradient(&s)
	}
}

func interpolatedGradientNormals(vol *volume.Volume, out *Output) {
	for i := range out.Vertices {
		v := &out.Vertices[i]
		s := cornerSamples(vol, v.Cell)
		frac := [3]float32{
			v.Position[0] - float32(v.Cell[0]),
			v.Position[1] - float32(v.Cell[1]),
			v.Position[2] - float32(v.Cell[2]),
		}
		v.Normal = interpolatedGradient(&s, frac)
	}
}

// geometryNormals accumulates angle-weighted face normals per vertex.
func geometryNormals(out *Output) {
	acc := make([][3]float32, len(out.Vertices))
	for t := 0; t+2 < len(out.Indices); t += 3 {
		i0, i1, i2 := out.Indices[t], out.Indices[t+1], out.Indices[t+2]
		p0 := out.Vertices[i0].Position
		p1 := out.Vertices[i1].Position
		p2 := out.Vertices[i2].Position

		n := cross(sub(p1, p0), sub(p2, p0))
		if dot(n, n) < 1e-12 {
			continue
		}
		n = normalizeOr(n, 0, up)

		add := func(idx uint32, a, b, c [3]float32) {
			w := cornerAngle(a, b, c)
			acc[idx][0] += n[0] * w
			acc[idx][1] += n[1] * w
			acc[idx][2] += n[2] * w
		}
		add(i0, p0, p1, p2)
		add(i1, p1, p2, p0)
		add(i2, p2, p0, p1)
	}
	for i := range out.Vertices {
		out.Vertices[i].Normal = normalizeOr(acc[i], 1e-12, up)
	}
}

// cornerAngle is the interior angle at a in triangle abc.
func cornerAngle(a, b, c [3]float32) float32 {
	e1, e2 := sub(b, a), sub(c, a)
	l1, l2 := dot(e1, e1), dot(e2, e2)
	if l1 < 1e-12 || l2 < 1e-12 {
		return 0
	}
	cos := dot(e1, e2) / math32.Sqrt(l1*l2)
	return math32.Acos(math32.Min(math32.Max(cos, -1), 1))
}

// blendBoundaryNormals replaces geometry normals near the chunk boundary
// with a mix that reaches the pure gradient at the boundary itself. Both
// sides of a seam see the same SDF there, so their normals agree.
func blendBoundaryNormals(vol *volume.Volume, out *Output, blendDistance float32) {
	for i := range out.Vertices {
		v := &out.Vertices[i]
		if !needsBoundaryBlend(v.Cell, blendDistance) {
			continue
		}
		f := boundaryBlendFactor(v.Cell, blendDistance)
		s := cornerSamples(vol, v.Cell)
		g := gradient(&s)
		mixed := [3]float32{
			v.Normal[0]*f + g[0]*(1-f),
			v.Normal[1]*f + g[1]*(1-f),
			v.Normal[2]*f + g[2]*(1-f),
		}
		if dot(mixed, mixed) > 1e-8 {
			v.Normal = normalizeOr(mixed, 0, v.Normal)
		}
	}
}

func computeNormals(vol *volume.Volume, out *Output, cfg Config) {
	switch cfg.NormalMode {
	case NormalGradient:
		gradientNormals(vol, out)
	case NormalInterpolatedGradient:
		interpolatedGradientNormals(vol, out)
	case NormalGeometry:
		geometryNormals(out)
	default:
		geometryNormals(out)
		blendBoundaryNormals(vol, out, cfg.BlendDistance)
	}
}

func sub(a, b [3]float32) [3]float32 { return [3]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }
func dot(a, b [3]float32) float32    { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

func cross(a, b [3]float32) [3]float32 {
	return [3]float32{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func normalizeOr(v [3]float32, minLenSq float32, fallback [3]float32) [3]float32 {
	l := dot(v, v)
	if l <= minLenSq || l == 0 {
		return fallback
	}
	inv := 1 / math32.Sqrt(l)
	return [3]float32{v[0] * inv, v[1] * inv, v[2] * inv}
}
