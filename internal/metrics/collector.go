// Package metrics collects per-world meshing statistics. Recording is
// explicit: callers hold a *Collector and nothing is global.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LODSlots is the number of per-LOD counters; higher LODs share the last slot.
const LODSlots = 16

const (
	worldLabel = "world"
	lodLabel   = "lod"
	stageLabel = "stage"
)

// Stage names used for timing metrics.
const (
	StageRefine = "refine"
	StageSample = "sample"
	StageMesh   = "mesh"
)

// World holds the counters of one world.
type World struct {
	LeavesPerLOD   [LODSlots]uint32
	VerticesPerLOD [LODSlots]uint64
	IndicesPerLOD  [LODSlots]uint64

	VisibleNodes     uint32
	VisibleTriangles uint64
	MeshMemoryBytes  uint64

	MeshTimings   *RollingWindow
	RefineTimings *RollingWindow
	SampleTimings *RollingWindow

	LastRefineUS uint64
	LastMeshUS   uint64

	TotalChunksGenerated uint64
}

func NewWorld() *World {
	return &World{
		MeshTimings:   NewRollingWindow(DefaultWindow),
		RefineTimings: NewRollingWindow(DefaultWindow),
		SampleTimings: NewRollingWindow(DefaultWindow),
	}
}

// Reset clears everything except TotalChunksGenerated.
func (w *World) Reset() {
	total := w.TotalChunksGenerated
	*w = *NewWorld()
	w.TotalChunksGenerated = total
}

func (w *World) TotalLeaves() uint32 {
	var s uint32
	for _, v := range w.LeavesPerLOD {
		s += v
	}
	return s
}

func (w *World) TotalVertices() uint64 {
	var s uint64
	for _, v := range w.VerticesPerLOD {
		s += v
	}
	return s
}

func (w *World) TotalIndices() uint64 {
	var s uint64
	for _, v := range w.IndicesPerLOD {
		s += v
	}
	return s
}

func (w *World) MeshMemoryMB() float64 { return float64(w.MeshMemoryBytes) / (1 << 20) }

func (w *World) clone() World {
	c := *w
	c.MeshTimings = cloneWindow(w.MeshTimings)
	c.RefineTimings = cloneWindow(w.RefineTimings)
	c.SampleTimings = cloneWindow(w.SampleTimings)
	return c
}

func cloneWindow(src *RollingWindow) *RollingWindow {
	w := NewRollingWindow(src.Cap())
	for _, v := range src.Values() {
		w.Push(v)
	}
	return w
}

func lodSlot(lod int32) int {
	if lod < 0 {
		return 0
	}
	if lod >= LODSlots {
		return LODSlots - 1
	}
	return int(lod)
}

func subSat[T ~uint32 | ~uint64](a, b T) T {
	if b > a {
		return 0
	}
	return a - b
}

// Chunk describes one presented mesh.
type Chunk struct {
	LOD      int32
	Vertices int
	Indices  int
	// Bytes is the serialized size of vertex and index buffers.
	Bytes int
}

// Collector records per-world statistics and mirrors them to Prometheus.
// Every method is a no-op on a nil Collector or when Enabled is false.
// Enabled is read without synchronization; set it before sharing.
type Collector struct {
	Enabled bool

	mu     sync.Mutex
	worlds map[uint64]*World

	chunks    *prometheus.GaugeVec
	vertices  *prometheus.GaugeVec
	triangles *prometheus.GaugeVec
	memory    *prometheus.GaugeVec
	generated *prometheus.CounterVec
	timings   *prometheus.HistogramVec
}

// NewCollector returns an enabled collector. Metrics are registered with
// reg; a nil reg keeps them unregistered.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		Enabled: true,
		worlds:  map[uint64]*World{},

		chunks: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "voxellod_chunks",
			Help: "The number of presented chunks.",
		}, []string{worldLabel, lodLabel}),

		vertices: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "voxellod_vertices",
			Help: "The number of vertices in presented chunks.",
		}, []string{worldLabel, lodLabel}),

		triangles: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "voxellod_triangles",
			Help: "The number of triangles in presented chunks.",
		}, []string{worldLabel}),

		memory: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "voxellod_mesh_memory_bytes",
			Help: "The serialized size of presented meshes.",
		}, []string{worldLabel}),

		generated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxellod_chunks_generated_total",
			Help: "The total number of chunks generated.",
		}, []string{worldLabel}),

		timings: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voxellod_stage_duration_seconds",
			Help:    "The duration of refinement, sampling and meshing passes.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}, []string{worldLabel, stageLabel}),
	}
}

func (c *Collector) on() bool { return c != nil && c.Enabled }

func (c *Collector) world(id uint64) *World {
	w, ok := c.worlds[id]
	if !ok {
		w = NewWorld()
		c.worlds[id] = w
	}
	return w
}

func worldName(id uint64) string { return strconv.FormatUint(id, 10) }

func (c *Collector) RecordChunk(world uint64, ch Chunk) {
	if !c.on() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	w := c.world(world)
	slot := lodSlot(ch.LOD)
	w.LeavesPerLOD[slot]++
	w.VerticesPerLOD[slot] += uint64(ch.Vertices)
	w.IndicesPerLOD[slot] += uint64(ch.Indices)
	w.MeshMemoryBytes += uint64(ch.Bytes)
	w.VisibleNodes++
	w.VisibleTriangles += uint64(ch.Indices / 3)
	w.TotalChunksGenerated++

	c.export(world, slot, w)
	c.generated.WithLabelValues(worldName(world)).Inc()
}

func (c *Collector) export(world uint64, slot int, w *World) {
	name, lod := worldName(world), strconv.Itoa(slot)
	c.chunks.WithLabelValues(name, lod).Set(float64(w.LeavesPerLOD[slot]))
	c.vertices.WithLabelValues(name, lod).Set(float64(w.VerticesPerLOD[slot]))
	c.triangles.WithLabelValues(name).Set(float64(w.VisibleTriangles))
	c.memory.WithLabelValues(name).Set(float64(w.MeshMemoryBytes))
}

// RemoveChunk undoes RecordChunk. Counters saturate at zero.
func (c *Collector) RemoveChunk(world uint64, ch Chunk) {
	if !c.on() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	w := c.world(world)
	slot := lodSlot(ch.LOD)
	w.LeavesPerLOD[slot] = subSat(w.LeavesPerLOD[slot], 1)
	w.VerticesPerLOD[slot] = subSat(w.VerticesPerLOD[slot], uint64(ch.Vertices))
	w.IndicesPerLOD[slot] = subSat(w.IndicesPerLOD[slot], uint64(ch.Indices))
	w.MeshMemoryBytes = subSat(w.MeshMemoryBytes, uint64(ch.Bytes))
	w.VisibleNodes = subSat(w.VisibleNodes, 1)
	w.VisibleTriangles = subSat(w.VisibleTriangles, uint64(ch.Indices/3))
	c.export(world, slot, w)
}

func (c *Collector) RecordRefine(world uint64, d time.Duration) {
	c.recordTiming(world, StageRefine, d)
}

func (c *Collector) RecordSample(world uint64, d time.Duration) {
	c.recordTiming(world, StageSample, d)
}

func (c *Collector) RecordMesh(world uint64, d time.Duration) {
	c.recordTiming(world, StageMesh, d)
}

func (c *Collector) recordTiming(world uint64, stage string, d time.Duration) {
	if !c.on() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	w := c.world(world)
	us := uint64(d.Microseconds())
	switch stage {
	case StageRefine:
		w.RefineTimings.Push(us)
		w.LastRefineUS = us
	case StageMesh:
		w.MeshTimings.Push(us)
		w.LastMeshUS = us
	case StageSample:
		w.SampleTimings.Push(us)
	}
	c.timings.WithLabelValues(worldName(world), stage).Observe(d.Seconds())
}

// Snapshot returns a copy of a world's counters.
func (c *Collector) Snapshot(world uint64) (World, bool) {
	if c == nil {
		return World{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.worlds[world]
	if !ok {
		return World{}, false
	}
	return w.clone(), true
}

// Reset clears a world's counters, keeping its generated total.
func (c *Collector) Reset(world uint64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if w, ok := c.worlds[world]; ok {
		w.Reset()
	}
	labels := prometheus.Labels{worldLabel: worldName(world)}
	c.chunks.DeletePartialMatch(labels)
	c.vertices.DeletePartialMatch(labels)
	c.triangles.DeletePartialMatch(labels)
	c.memory.DeletePartialMatch(labels)
}

// Forget drops every record of a world.
func (c *Collector) Forget(world uint64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.worlds, world)
	labels := prometheus.Labels{worldLabel: worldName(world)}
	c.chunks.DeletePartialMatch(labels)
	c.vertices.DeletePartialMatch(labels)
	c.triangles.DeletePartialMatch(labels)
	c.memory.DeletePartialMatch(labels)
	c.generated.DeletePartialMatch(labels)
	c.timings.DeletePartialMatch(labels)
}
