package world

import (
	"github.com/golang/geo/r3"
	"go.uber.org/zap"

	"voxellod.ai/internal/octree"
	"voxellod.ai/internal/pipeline"
	"voxellod.ai/internal/presentation"
)

// Driver advances a World once per frame: it collects a finished cycle,
// adopts its leaves, presents it, and submits the next cycle. At most one
// cycle is in flight, so a result always matches the leaves it is applied to.
type Driver struct {
	world *World
	async *pipeline.Async
	layer presentation.Layer
	log   *zap.Logger

	lastViewer *r3.Vector
	settled    bool
	// inflight holds the invalidations of the running cycle.
	inflight []octree.Node
}

func NewDriver(w *World, p *pipeline.Pipeline, layer presentation.Layer, log *zap.Logger) *Driver {
	if layer == nil {
		layer = presentation.Null{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{
		world: w,
		async: p.NewAsync(),
		layer: layer,
		log:   log.With(zap.Stringer("world", w.ID)),
	}
}

func (d *Driver) World() *World { return d.world }

// Tick polls the in-flight cycle and starts a new one for viewer. It
// returns the result applied during this tick, if any.
func (d *Driver) Tick(viewer r3.Vector) (pipeline.Result, bool) {
	res, done := d.async.Poll()
	if done {
		if res.Err != nil {
			d.world.Requeue(d.inflight)
			d.settled = false
			d.log.Warn("cycle failed", zap.Error(res.Err), zap.Int("requeued", d.world.Pending()))
		} else {
			d.world.Adopt(&res)
			presentation.Apply(d.layer, &res)
			d.settled = len(res.Transitions) == 0 && len(res.Invalidated) == 0 && len(res.Cleared) == 0
			d.log.Debug("cycle applied",
				zap.Int("transitions", len(res.Transitions)),
				zap.Int("chunks", res.Stats.Chunks),
				zap.Int("leaves", d.world.Leaves.Len()),
			)
		}
		d.inflight = nil
	}

	if d.async.Busy() {
		return res, done && res.Err == nil
	}
	// Nothing changes until the viewer moves or something is invalidated.
	if d.settled && d.lastViewer != nil && *d.lastViewer == viewer && len(d.world.dirty) == 0 {
		return res, done && res.Err == nil
	}
	v := viewer
	d.lastViewer = &v
	req := d.world.Request(viewer)
	if d.async.Start(req) {
		d.inflight = req.Invalidate
	} else {
		d.world.Requeue(req.Invalidate)
	}
	return res, done && res.Err == nil
}

// LastViewer returns the viewer of the most recent submitted cycle.
func (d *Driver) LastViewer() (r3.Vector, bool) {
	if d.lastViewer == nil {
		return r3.Vector{}, false
	}
	return *d.lastViewer, true
}

// Settled reports whether the last applied cycle changed nothing.
func (d *Driver) Settled() bool { return d.settled }

func (d *Driver) Busy() bool { return d.async.Busy() }

// Close drops any in-flight cycle and tells the layer the world is gone.
func (d *Driver) Close() {
	d.async.Cancel()
	d.async.Close()
	d.layer.OnWorldDestroy(d.world.ID)
}
