package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRollingWindow(t *testing.T) {
	w := NewRollingWindow(3)
	require.True(t, w.IsEmpty())
	_, _, ok := w.MinMax()
	require.False(t, ok)

	w.Push(10)
	w.Push(20)
	w.Push(30)
	require.Equal(t, 3, w.Len())
	require.Equal(t, uint64(60), w.Sum())
	require.Equal(t, 20.0, w.Average())

	w.Push(40)
	require.Equal(t, 3, w.Len())
	require.Equal(t, uint64(90), w.Sum())
	require.Equal(t, 30.0, w.Average())
	require.Equal(t, []uint64{20, 30, 40}, w.Values())

	lo, hi, ok := w.MinMax()
	require.True(t, ok)
	require.Equal(t, uint64(20), lo)
	require.Equal(t, uint64(40), hi)

	last, ok := w.Last()
	require.True(t, ok)
	require.Equal(t, uint64(40), last)

	w.Clear()
	require.True(t, w.IsEmpty())
	require.Equal(t, 0.0, w.Average())
}

func TestRollingWindowDefaultCapacity(t *testing.T) {
	w := NewRollingWindow(0)
	require.Equal(t, DefaultWindow, w.Cap())
	for i := 0; i < 200; i++ {
		w.Push(uint64(i))
	}
	require.Equal(t, DefaultWindow, w.Len())
	lo, hi, _ := w.MinMax()
	require.Equal(t, uint64(200-DefaultWindow), lo)
	require.Equal(t, uint64(199), hi)
}

func TestCollectorChunks(t *testing.T) {
	c := NewCollector(nil)
	c.RecordChunk(1, Chunk{LOD: 0, Vertices: 1000, Indices: 3000, Bytes: 64000})
	c.RecordChunk(1, Chunk{LOD: 1, Vertices: 500, Indices: 1500, Bytes: 32000})
	c.RecordChunk(1, Chunk{LOD: 0, Vertices: 800, Indices: 2400, Bytes: 51200})

	w, ok := c.Snapshot(1)
	require.True(t, ok)
	require.Equal(t, uint32(2), w.LeavesPerLOD[0])
	require.Equal(t, uint32(1), w.LeavesPerLOD[1])
	require.Equal(t, uint32(3), w.TotalLeaves())
	require.Equal(t, uint32(3), w.VisibleNodes)
	require.Equal(t, uint64(2300), w.TotalVertices())
	require.Equal(t, uint64(6900), w.TotalIndices())
	require.Equal(t, uint64(2300), w.VisibleTriangles)

	c.RemoveChunk(1, Chunk{LOD: 0, Vertices: 1000, Indices: 3000, Bytes: 64000})
	w, _ = c.Snapshot(1)
	require.Equal(t, uint32(1), w.LeavesPerLOD[0])
	require.Equal(t, uint32(2), w.VisibleNodes)
	require.Equal(t, uint64(3), w.TotalChunksGenerated)

	// Removing more than was recorded saturates.
	c.RemoveChunk(1, Chunk{LOD: 5, Vertices: 10, Indices: 30, Bytes: 1 << 30})
	w, _ = c.Snapshot(1)
	require.Equal(t, uint32(0), w.LeavesPerLOD[5])
	require.Equal(t, uint64(0), w.MeshMemoryBytes)
}

func TestCollectorHighLODSharesLastSlot(t *testing.T) {
	c := NewCollector(nil)
	c.RecordChunk(2, Chunk{LOD: 40, Vertices: 3, Indices: 3})
	w, _ := c.Snapshot(2)
	require.Equal(t, uint32(1), w.LeavesPerLOD[LODSlots-1])
}

func TestCollectorTimings(t *testing.T) {
	c := NewCollector(nil)
	c.RecordMesh(1, time.Millisecond)
	c.RecordMesh(1, 2*time.Millisecond)
	c.RecordMesh(1, 3*time.Millisecond)
	c.RecordRefine(1, 250*time.Microsecond)
	c.RecordSample(1, 10*time.Microsecond)

	w, _ := c.Snapshot(1)
	require.Equal(t, 3, w.MeshTimings.Len())
	require.Equal(t, 2000.0, w.MeshTimings.Average())
	require.Equal(t, uint64(3000), w.LastMeshUS)
	require.Equal(t, uint64(250), w.LastRefineUS)
	require.Equal(t, 1, w.SampleTimings.Len())
}

func TestCollectorDisabled(t *testing.T) {
	c := NewCollector(nil)
	c.Enabled = false
	c.RecordChunk(1, Chunk{LOD: 0, Vertices: 10, Indices: 30})
	c.RecordMesh(1, time.Millisecond)
	_, ok := c.Snapshot(1)
	require.False(t, ok)

	var nilCollector *Collector
	nilCollector.RecordChunk(1, Chunk{})
	nilCollector.RecordRefine(1, time.Second)
	nilCollector.Reset(1)
	_, ok = nilCollector.Snapshot(1)
	require.False(t, ok)
}

func TestCollectorResetKeepsTotal(t *testing.T) {
	c := NewCollector(nil)
	c.RecordChunk(1, Chunk{LOD: 2, Vertices: 10, Indices: 30, Bytes: 100})
	c.RecordMesh(1, time.Millisecond)
	c.Reset(1)
	w, _ := c.Snapshot(1)
	require.Equal(t, uint32(0), w.TotalLeaves())
	require.True(t, w.MeshTimings.IsEmpty())
	require.Equal(t, uint64(1), w.TotalChunksGenerated)

	c.Forget(1)
	_, ok := c.Snapshot(1)
	require.False(t, ok)
}

func TestSnapshotIsACopy(t *testing.T) {
	c := NewCollector(nil)
	c.RecordMesh(1, time.Millisecond)
	w, _ := c.Snapshot(1)
	w.MeshTimings.Push(99)
	again, _ := c.Snapshot(1)
	require.Equal(t, 1, again.MeshTimings.Len())
}

func TestCollectorExportsPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordChunk(7, Chunk{LOD: 1, Vertices: 12, Indices: 36, Bytes: 768})
	c.RecordChunk(7, Chunk{LOD: 1, Vertices: 6, Indices: 18, Bytes: 384})

	expected := `
# HELP voxellod_chunks The number of presented chunks.
# TYPE voxellod_chunks gauge
voxellod_chunks{lod="1",world="7"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "voxellod_chunks"))
	require.Equal(t, 2.0, testutil.ToFloat64(c.generated.WithLabelValues("7")))
	require.Equal(t, 1152.0, testutil.ToFloat64(c.memory.WithLabelValues("7")))
}
