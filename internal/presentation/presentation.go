// Package presentation is the boundary between the meshing core and
// whatever displays chunks: an engine bridge, a log, a network stream.
package presentation

import (
	"voxellod.ai/internal/octree"
	"voxellod.ai/internal/pipeline"
)

// Layer receives chunk lifecycle events. Implementations must be safe for
// concurrent use.
type Layer interface {
	OnChunkReady(world pipeline.WorldID, node octree.Node, mesh pipeline.MeshData, hint pipeline.PresentationHint)
	OnChunkRemove(world pipeline.WorldID, node octree.Node)
	OnWorldDestroy(world pipeline.WorldID)
}

// Null discards every event. It serves headless runs and tests.
type Null struct{}

func (Null) OnChunkReady(pipeline.WorldID, octree.Node, pipeline.MeshData, pipeline.PresentationHint) {}
func (Null) OnChunkRemove(pipeline.WorldID, octree.Node)                                              {}
func (Null) OnWorldDestroy(pipeline.WorldID)                                                          {}

// Multi forwards each event to every layer in order.
type Multi []Layer

func (m Multi) OnChunkReady(w pipeline.WorldID, n octree.Node, mesh pipeline.MeshData, h pipeline.PresentationHint) {
	for _, l := range m {
		l.OnChunkReady(w, n, mesh, h)
	}
}

func (m Multi) OnChunkRemove(w pipeline.WorldID, n octree.Node) {
	for _, l := range m {
		l.OnChunkRemove(w, n)
	}
}

func (m Multi) OnWorldDestroy(w pipeline.WorldID) {
	for _, l := range m {
		l.OnWorldDestroy(w)
	}
}

// Apply delivers a pipeline result. For each transition the removals are
// issued before the new chunks so one transition lands as a unit; then
// invalidated chunks replace their nodes in place and invalidated nodes
// left without a surface are removed.
func Apply(l Layer, res *pipeline.Result) {
	for _, t := range res.Transitions {
		for _, n := range t.NodesToRemove {
			l.OnChunkRemove(res.World, n)
		}
		for _, c := range t.Chunks {
			l.OnChunkReady(c.World, c.Node, c.Mesh, c.Hint)
		}
	}
	for _, c := range res.Invalidated {
		l.OnChunkReady(c.World, c.Node, c.Mesh, c.Hint)
	}
	for _, n := range res.Cleared {
		l.OnChunkRemove(res.World, n)
	}
}
