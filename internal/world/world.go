// Package world ties one octree, its sampler and its presentation together
// and drives them frame by frame through the async pipeline.
package world

import (
	"context"

	"github.com/golang/geo/r3"

	"voxellod.ai/internal/octree"
	"voxellod.ai/internal/pipeline"
	"voxellod.ai/internal/surfacenets"
	"voxellod.ai/internal/volume"
)

// World is a single voxel world. It is not safe for concurrent use; the
// Driver serializes access.
type World struct {
	ID      pipeline.WorldID
	Config  octree.Config
	Leaves  octree.Leaves
	Sampler volume.Sampler
	Budget  octree.Budget
	Mesh    surfacenets.Config

	// Offset places the world's local origin in the global frame.
	Offset r3.Vector

	dirty []octree.Node
}

// New returns a world with no leaves.
func New(cfg octree.Config, s volume.Sampler) *World {
	return &World{
		ID:      pipeline.NewWorldID(),
		Config:  cfg,
		Leaves:  octree.NewLeaves(),
		Sampler: s,
		Budget:  octree.DefaultBudget,
		Mesh:    surfacenets.DefaultConfig(),
	}
}

// NewWithInitialLOD seeds the world with one leaf at lod at the origin.
func NewWithInitialLOD(cfg octree.Config, s volume.Sampler, lod int32) *World {
	w := New(cfg, s)
	w.Leaves = octree.NewLeavesWithInitial(lod)
	return w
}

func (w *World) ViewerToLocal(global r3.Vector) r3.Vector { return global.Sub(w.Offset) }
func (w *World) LocalToWorld(local r3.Vector) r3.Vector   { return local.Add(w.Offset) }

// Placement returns where a chunk's sample space sits in the global frame:
// the position of sample (0,0,0) and the size of one sample step.
func (w *World) Placement(n octree.Node) (origin r3.Vector, scale float64) {
	return w.LocalToWorld(w.Config.NodeMin(n)), w.Config.VoxelSizeAt(n.LOD)
}

// Refine runs one synchronous refinement against a global viewer
// position and adopts the resulting leaves.
func (w *World) Refine(viewer r3.Vector) octree.RefineOutput {
	out := octree.Refine(octree.RefineInput{
		Viewer:     w.ViewerToLocal(viewer),
		Config:     w.Config,
		PrevLeaves: w.Leaves,
		Budget:     w.Budget,
	})
	w.Leaves = out.NextLeaves
	return out
}

// ApplyTransitions applies precomputed groups to the leaf set in order.
func (w *World) ApplyTransitions(groups []octree.TransitionGroup) {
	for _, g := range groups {
		w.Leaves.Apply(g)
	}
}

// Invalidate marks every leaf overlapping region, in local coordinates,
// for re-meshing on the next request.
func (w *World) Invalidate(region octree.Bounds) int {
	n := 0
	for _, leaf := range w.Leaves.Sorted() {
		if w.Config.NodeBounds(leaf).Overlaps(region) {
			w.dirty = append(w.dirty, leaf)
			n++
		}
	}
	return n
}

// Request builds a refine-and-mesh request for a global viewer position
// and hands over any pending invalidations.
func (w *World) Request(viewer r3.Vector) pipeline.Request {
	local := w.ViewerToLocal(viewer)
	req := pipeline.Request{
		World:      w.ID,
		Config:     w.Config,
		Budget:     w.Budget,
		Sampler:    w.Sampler,
		Mesh:       w.Mesh,
		Leaves:     w.Leaves.Clone(),
		Viewer:     &local,
		Invalidate: w.dirty,
	}
	w.dirty = nil
	return req
}

// Requeue puts invalidations back after a failed cycle. Nodes that are no
// longer leaves or are already pending are skipped.
func (w *World) Requeue(nodes []octree.Node) {
	pending := make(map[octree.Node]struct{}, len(w.dirty))
	for _, n := range w.dirty {
		pending[n] = struct{}{}
	}
	for _, n := range nodes {
		if _, ok := pending[n]; ok || !w.Leaves.Contains(n) {
			continue
		}
		pending[n] = struct{}{}
		w.dirty = append(w.dirty, n)
	}
}

// Pending returns the number of invalidated leaves waiting for a cycle.
func (w *World) Pending() int { return len(w.dirty) }

// Adopt swaps in the leaves of a finished result.
func (w *World) Adopt(res *pipeline.Result) {
	if res.NextLeaves != nil {
		w.Leaves = res.NextLeaves
	}
}

// Update runs one full cycle synchronously and adopts its leaves.
func (w *World) Update(ctx context.Context, p *pipeline.Pipeline, viewer r3.Vector) (pipeline.Result, error) {
	req := w.Request(viewer)
	res, err := p.Process(ctx, req)
	if err != nil {
		w.Requeue(req.Invalidate)
		return res, err
	}
	w.Adopt(&res)
	return res, nil
}
