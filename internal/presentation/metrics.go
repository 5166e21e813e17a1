package presentation

import (
	"sync"

	"voxellod.ai/internal/metrics"
	"voxellod.ai/internal/octree"
	"voxellod.ai/internal/pipeline"
)

type chunkKey struct {
	world pipeline.WorldID
	node  octree.Node
}

// Metrics records presented chunks in a collector. A chunk presented
// again for the same node replaces the earlier record.
type Metrics struct {
	c *metrics.Collector

	mu   sync.Mutex
	live map[chunkKey]metrics.Chunk
}

func NewMetrics(c *metrics.Collector) *Metrics {
	return &Metrics{c: c, live: map[chunkKey]metrics.Chunk{}}
}

func (m *Metrics) OnChunkReady(w pipeline.WorldID, n octree.Node, mesh pipeline.MeshData, _ pipeline.PresentationHint) {
	ch := metrics.Chunk{
		LOD:      n.LOD,
		Vertices: int(mesh.VertexCount),
		Indices:  int(mesh.IndexCount),
		Bytes:    mesh.Size(),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := chunkKey{w, n}
	if old, ok := m.live[k]; ok {
		m.c.RemoveChunk(uint64(w), old)
	}
	m.live[k] = ch
	m.c.RecordChunk(uint64(w), ch)
}

func (m *Metrics) OnChunkRemove(w pipeline.WorldID, n octree.Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := chunkKey{w, n}
	if old, ok := m.live[k]; ok {
		delete(m.live, k)
		m.c.RemoveChunk(uint64(w), old)
	}
}

func (m *Metrics) OnWorldDestroy(w pipeline.WorldID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.live {
		if k.world == w {
			delete(m.live, k)
		}
	}
	m.c.Forget(uint64(w))
}

// Live returns the number of chunks currently tracked.
func (m *Metrics) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}
