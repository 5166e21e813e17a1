package pipeline

import (
	"context"
	"time"

	"voxellod.ai/internal/octree"
	"voxellod.ai/internal/surfacenets"
	"voxellod.ai/internal/volume"
)

// SampleTask names one node to sample and why.
type SampleTask struct {
	Node   octree.Node
	Source WorkSource
}

// SampleTasks lists the nodes implied by groups (added children for
// Subdivide, the parent for Merge) followed by the invalidated nodes.
func SampleTasks(groups []octree.TransitionGroup, invalidate []octree.Node) []SampleTask {
	var tasks []SampleTask
	for _, g := range groups {
		for _, n := range g.RenderNodes() {
			tasks = append(tasks, SampleTask{Node: n, Source: Refinement})
		}
	}
	for _, n := range invalidate {
		tasks = append(tasks, SampleTask{Node: n, Source: Invalidation})
	}
	return tasks
}

// Presample samples every task in parallel on the pipeline's pool.
// Homogeneous volumes come back with a nil Volume. The second result is
// the summed sampling time across tasks.
func (p *Pipeline) Presample(ctx context.Context, cfg octree.Config, s volume.Sampler, tasks []SampleTask) ([]PresampleOutput, time.Duration, error) {
	out := make([]PresampleOutput, len(tasks))
	times := make([]time.Duration, len(tasks))
	group := p.pool.NewGroupContext(ctx)
	for i, t := range tasks {
		group.Submit(func() {
			start := time.Now()
			out[i] = sampleNode(cfg, s, t)
			times[i] = time.Since(start)
		})
	}
	if err := group.Wait(); err != nil {
		return nil, 0, err
	}
	var total time.Duration
	for _, d := range times {
		total += d
	}
	return out, total, nil
}

func sampleNode(cfg octree.Config, s volume.Sampler, t SampleTask) PresampleOutput {
	vol := new(volume.Volume)
	mats := new(volume.Materials)
	s.SampleVolume(cfg.GridOffset(t.Node), cfg.VoxelSizeAt(t.Node.LOD), vol, mats)
	res := PresampleOutput{Node: t.Node, Source: t.Source}
	if !volume.IsHomogeneous(vol) {
		res.Volume = &SampledVolume{Volume: vol, Materials: mats}
	}
	return res
}

// Mesh runs the mesher over every non-homogeneous volume in parallel.
// Each node's neighbor mask is derived from leaves. Per-node mesher
// errors are returned in MeshResult.Err.
func (p *Pipeline) Mesh(ctx context.Context, samples []PresampleOutput, leaves octree.Leaves, maxLOD int32, base surfacenets.Config) ([]MeshResult, error) {
	var work []PresampleOutput
	for _, s := range samples {
		if s.Volume != nil {
			work = append(work, s)
		}
	}
	out := make([]MeshResult, len(work))
	group := p.pool.NewGroupContext(ctx)
	for i, s := range work {
		cfg := base
		cfg.NeighborMask = NeighborMask(s.Node, leaves, maxLOD)
		group.Submit(func() {
			start := time.Now()
			mesh, err := surfacenets.Generate(s.Volume.Volume, s.Volume.Materials, cfg)
			out[i] = MeshResult{
				Node:   s.Node,
				Output: mesh,
				Timing: time.Since(start),
				Source: s.Source,
				Err:    err,
			}
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Compose splits results by source. Invalidation meshes pass through
// ungrouped; refinement meshes are matched back to their group by node.
// Failed and empty meshes are dropped, and so is any group left with no
// mesh at all.
func Compose(results []MeshResult, groups []octree.TransitionGroup) ([]GroupedMesh, []NodeMesh) {
	byNode := make(map[octree.Node]surfacenets.Output, len(results))
	var ungrouped []NodeMesh
	for _, r := range results {
		if r.Err != nil || r.Output.IsEmpty() {
			continue
		}
		if r.Source == Invalidation {
			ungrouped = append(ungrouped, NodeMesh{Node: r.Node, Output: r.Output})
			continue
		}
		byNode[r.Node] = r.Output
	}
	var grouped []GroupedMesh
	for _, g := range groups {
		var meshes []NodeMesh
		for _, n := range g.RenderNodes() {
			if out, ok := byNode[n]; ok {
				meshes = append(meshes, NodeMesh{Node: n, Output: out})
			}
		}
		if len(meshes) == 0 {
			continue
		}
		grouped = append(grouped, GroupedMesh{GroupKey: g.GroupKey, Type: g.Type, Meshes: meshes})
	}
	return grouped, ungrouped
}

// Present serializes meshes into ReadyChunks. Subdivide groups fade in,
// merge groups fade out and ungrouped meshes appear immediately.
func Present(world WorldID, grouped []GroupedMesh, ungrouped []NodeMesh) []ReadyChunk {
	var chunks []ReadyChunk
	for _, g := range grouped {
		hint := PresentationHint{Kind: FadeIn, GroupKey: g.GroupKey}
		if g.Type == octree.Merge {
			hint.Kind = FadeOut
		}
		for _, m := range g.Meshes {
			chunks = append(chunks, ReadyChunk{World: world, Node: m.Node, Mesh: Serialize(&m.Output), Hint: hint})
		}
	}
	for _, m := range ungrouped {
		chunks = append(chunks, ReadyChunk{
			World: world,
			Node:  m.Node,
			Mesh:  Serialize(&m.Output),
			Hint:  PresentationHint{Kind: Immediate},
		})
	}
	return chunks
}
