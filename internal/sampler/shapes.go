// Package sampler provides deterministic volume samplers: analytic SDF
// shapes for tests and demos, and a simplex-noise terrain.
package sampler

import (
	"math"

	"github.com/golang/geo/r3"

	"voxellod.ai/internal/volume"
)

// Sphere is a solid ball. Zero value is a sphere of DefaultSphereRadius at the origin.
type Sphere struct {
	Center   r3.Vector
	Radius   float64
	Material uint8
}

const DefaultSphereRadius = 20.0

func NewSphere(radius float64) Sphere { return Sphere{Radius: radius} }

func (s Sphere) Distance(x, y, z float64) (float64, uint8) {
	r := s.Radius
	if r == 0 {
		r = DefaultSphereRadius
	}
	return r3.Vector{X: x, Y: y, Z: z}.Sub(s.Center).Norm() - r, s.Material
}

func (s Sphere) SampleVolume(g [3]int64, vs float64, vol *volume.Volume, mats *volume.Materials) {
	volume.Fill(g, vs, vol, mats, s.Distance)
}

// GroundPlane is solid below Height.
type GroundPlane struct {
	Height   float64
	Material uint8
}

func (p GroundPlane) Distance(_, y, _ float64) (float64, uint8) { return y - p.Height, p.Material }

func (p GroundPlane) SampleVolume(g [3]int64, vs float64, vol *volume.Volume, mats *volume.Materials) {
	volume.Fill(g, vs, vol, mats, p.Distance)
}

// TiltedPlane is a plane through (0, Height, 0) rotated about Z by Angle
// radians. The zero Angle is horizontal.
type TiltedPlane struct {
	Height   float64
	Angle    float64
	Material uint8
}

// NewTiltedPlane returns the default 45 degree plane through the origin.
func NewTiltedPlane() TiltedPlane { return TiltedPlane{Angle: math.Pi / 4} }

func (p TiltedPlane) WithAngleDegrees(deg float64) TiltedPlane {
	p.Angle = deg * math.Pi / 180
	return p
}

func (p TiltedPlane) Distance(x, y, _ float64) (float64, uint8) {
	return (y-p.Height)*math.Cos(p.Angle) - x*math.Sin(p.Angle), p.Material
}

func (p TiltedPlane) SampleVolume(g [3]int64, vs float64, vol *volume.Volume, mats *volume.Materials) {
	volume.Fill(g, vs, vol, mats, p.Distance)
}

// Box is an axis-aligned box with exact exterior distance.
type Box struct {
	Center      r3.Vector
	HalfExtents r3.Vector
	Material    uint8
}

func NewBox(half r3.Vector) Box { return Box{HalfExtents: half} }

func (b Box) Distance(x, y, z float64) (float64, uint8) {
	d := r3.Vector{X: x, Y: y, Z: z}.Sub(b.Center).Abs().Sub(b.HalfExtents)
	outside := r3.Vector{X: math.Max(d.X, 0), Y: math.Max(d.Y, 0), Z: math.Max(d.Z, 0)}.Norm()
	inside := math.Min(math.Max(d.X, math.Max(d.Y, d.Z)), 0)
	return outside + inside, b.Material
}

func (b Box) SampleVolume(g [3]int64, vs float64, vol *volume.Volume, mats *volume.Materials) {
	volume.Fill(g, vs, vol, mats, b.Distance)
}
