// Package pipeline turns octree transitions into presentable meshes:
// presample, mesh, compose and present, with an optional refinement pass
// in front and an asynchronous single-flight wrapper around the whole.
package pipeline

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/golang/geo/r3"
	"go.uber.org/zap"

	"voxellod.ai/internal/metrics"
	"voxellod.ai/internal/octree"
	"voxellod.ai/internal/surfacenets"
	"voxellod.ai/internal/volume"
)

type Options struct {
	// Workers bounds the fan-out pool. Zero uses GOMAXPROCS.
	Workers int
	Logger  *zap.Logger
	Metrics *metrics.Collector
}

// Pipeline owns the worker pool shared by the parallel stages.
type Pipeline struct {
	pool    pond.Pool
	log     *zap.Logger
	metrics *metrics.Collector
}

func New(opts Options) *Pipeline {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		pool:    pond.NewPool(workers),
		log:     log,
		metrics: opts.Metrics,
	}
}

// Close waits for running tasks and stops the pool.
func (p *Pipeline) Close() { p.pool.StopAndWait() }

// Request is one refinement and meshing cycle.
type Request struct {
	World   WorldID
	Config  octree.Config
	Budget  octree.Budget
	Sampler volume.Sampler
	Mesh    surfacenets.Config

	// Leaves is the current leaf snapshot. It is never modified.
	Leaves octree.Leaves

	// Viewer, when set, runs refinement against Leaves first and its
	// transitions are appended to Transitions.
	Viewer *r3.Vector

	// Transitions already decided by the caller. Leaves must not have
	// them applied yet.
	Transitions []octree.TransitionGroup

	// Invalidate re-meshes leaves in place. Nodes that stop being leaves
	// during this cycle are skipped.
	Invalidate []octree.Node
}

// Result is the outcome of one Process call.
type Result struct {
	World WorldID

	// NextLeaves is Leaves with every transition applied. The caller swaps
	// it in before starting the next cycle.
	NextLeaves octree.Leaves

	// Transitions lists collapses first, then subdivisions, each keeping
	// the viewer-distance order refinement produced.
	Transitions []CompletedTransition

	// Invalidated holds Immediate chunks for re-meshed nodes.
	Invalidated []ReadyChunk

	// Cleared lists invalidated nodes that no longer have a surface. Their
	// previous chunks must be removed.
	Cleared []octree.Node

	// Expired lists every node removed by Transitions.
	Expired []octree.Node

	Stats Stats

	// Err is set when the cycle did not complete.
	Err error
}

// Chunks returns every ready chunk in presentation order.
func (r *Result) Chunks() []ReadyChunk {
	var out []ReadyChunk
	for _, t := range r.Transitions {
		out = append(out, t.Chunks...)
	}
	return append(out, r.Invalidated...)
}

// Process runs one cycle synchronously.
func (p *Pipeline) Process(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	res := Result{World: req.World}
	wid := uint64(req.World)

	groups := req.Transitions
	next := req.Leaves.Clone()
	for _, g := range groups {
		next.Apply(g)
	}
	if req.Viewer != nil {
		t := time.Now()
		ro := octree.Refine(octree.RefineInput{
			Viewer:     *req.Viewer,
			Config:     req.Config,
			PrevLeaves: next,
			Budget:     req.Budget,
		})
		res.Stats.RefineTime = time.Since(t)
		res.Stats.Refine = ro.Stats
		p.metrics.RecordRefine(wid, res.Stats.RefineTime)
		groups = append(append([]octree.TransitionGroup(nil), groups...), ro.Transitions...)
		next = ro.NextLeaves
	}
	res.NextLeaves = next

	// Chained subdivisions add nodes that a later group replaces again; only
	// nodes that end up as leaves are meshed.
	var tasks []SampleTask
	rendered := map[octree.Node]struct{}{}
	for _, task := range SampleTasks(groups, nil) {
		if next.Contains(task.Node) {
			tasks = append(tasks, task)
			rendered[task.Node] = struct{}{}
		}
	}
	// Nodes replaced or added in this cycle are meshed through their
	// transition.
	var invalidate []octree.Node
	for _, n := range req.Invalidate {
		if _, ok := rendered[n]; ok || !next.Contains(n) {
			continue
		}
		rendered[n] = struct{}{}
		invalidate = append(invalidate, n)
		tasks = append(tasks, SampleTask{Node: n, Source: Invalidation})
	}
	res.Stats.Nodes = len(tasks)

	t := time.Now()
	samples, sampleTotal, err := p.Presample(ctx, req.Config, req.Sampler, tasks)
	if err != nil {
		return res, err
	}
	res.Stats.PresampleTime = time.Since(t)
	p.metrics.RecordSample(wid, sampleTotal)
	for _, s := range samples {
		if s.Volume == nil {
			res.Stats.Homogeneous++
		}
	}

	t = time.Now()
	meshes, err := p.Mesh(ctx, samples, next, req.Config.MaxLOD, req.Mesh)
	if err != nil {
		return res, err
	}
	res.Stats.MeshTime = time.Since(t)
	p.metrics.RecordMesh(wid, res.Stats.MeshTime)
	for _, m := range meshes {
		var sizeErr *surfacenets.UnsupportedSizeError
		switch {
		case errors.As(m.Err, &sizeErr):
			res.Stats.Failed++
			p.log.Warn("mesh skipped", zap.Stringer("node", m.Node), zap.Int("size", sizeErr.Size))
		case m.Err != nil:
			res.Stats.Failed++
			p.log.Warn("mesh failed", zap.Stringer("node", m.Node), zap.Error(m.Err))
		case m.Output.IsEmpty():
			res.Stats.Empty++
		default:
			res.Stats.Meshed++
		}
	}

	grouped, ungrouped := Compose(meshes, groups)
	chunks := Present(req.World, grouped, ungrouped)
	res.Stats.Chunks = len(chunks)

	res.Transitions = completeTransitions(groups, chunks)
	remeshed := map[octree.Node]struct{}{}
	for _, c := range chunks {
		if c.Hint.Kind == Immediate {
			res.Invalidated = append(res.Invalidated, c)
			remeshed[c.Node] = struct{}{}
		}
	}
	failed := map[octree.Node]struct{}{}
	for _, m := range meshes {
		if m.Err != nil {
			failed[m.Node] = struct{}{}
		}
	}
	for _, n := range invalidate {
		_, ok := remeshed[n]
		_, bad := failed[n]
		if !ok && !bad {
			res.Cleared = append(res.Cleared, n)
		}
	}
	for _, tr := range res.Transitions {
		res.Expired = append(res.Expired, tr.NodesToRemove...)
	}

	res.Stats.TotalTime = time.Since(start)
	p.log.Debug("cycle processed",
		zap.Stringer("world", req.World),
		zap.Int("transitions", len(res.Transitions)),
		zap.Int("nodes", res.Stats.Nodes),
		zap.Int("homogeneous", res.Stats.Homogeneous),
		zap.Int("chunks", res.Stats.Chunks),
		zap.Int("cleared", len(res.Cleared)),
		zap.Duration("refine", res.Stats.RefineTime),
		zap.Duration("presample", res.Stats.PresampleTime),
		zap.Duration("mesh", res.Stats.MeshTime),
	)
	return res, nil
}

// completeTransitions attaches chunks to every group, including groups
// that produced none, and orders collapses before subdivisions.
func completeTransitions(groups []octree.TransitionGroup, chunks []ReadyChunk) []CompletedTransition {
	type key struct {
		node octree.Node
		kind HintKind
	}
	byGroup := map[key][]ReadyChunk{}
	for _, c := range chunks {
		if c.Hint.Kind != Immediate {
			k := key{c.Hint.GroupKey, c.Hint.Kind}
			byGroup[k] = append(byGroup[k], c)
		}
	}
	out := make([]CompletedTransition, 0, len(groups))
	for _, g := range groups {
		kind := FadeIn
		if g.Type == octree.Merge {
			kind = FadeOut
		}
		out = append(out, CompletedTransition{
			GroupKey:      g.GroupKey,
			Type:          g.Type,
			NodesToRemove: g.NodesToRemove,
			NodesToAdd:    g.NodesToAdd,
			Chunks:        byGroup[key{g.GroupKey, kind}],
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].IsCollapse() && !out[j].IsCollapse()
	})
	return out
}
