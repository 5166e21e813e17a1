package indexdb

import (
	"context"
	"path/filepath"
	"testing"

	"voxellod.ai/internal/octree"
	"voxellod.ai/internal/pipeline"
	"voxellod.ai/internal/presentation"
)

func openTest(t *testing.T) *SQLiteIndex {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "index", "chunks.sqlite"), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mesh(v uint32) pipeline.MeshData {
	return pipeline.MeshData{
		Vertices:    make([]byte, int(v)*pipeline.VertexSize),
		Indices:     make([]byte, int(v)*pipeline.IndexSize),
		VertexCount: v,
		IndexCount:  v,
	}
}

func TestSQLiteIndex_TracksPresentedChunks(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	parent := octree.NewNode(0, 0, 0, 2)
	kids := parent.Children()
	res := &pipeline.Result{
		World: 3,
		Transitions: []pipeline.CompletedTransition{{
			GroupKey:      parent,
			Type:          octree.Subdivide,
			NodesToRemove: []octree.Node{parent},
			NodesToAdd:    kids,
			Chunks: []pipeline.ReadyChunk{
				{World: 3, Node: kids[0], Mesh: mesh(6), Hint: pipeline.PresentationHint{Kind: pipeline.FadeIn, GroupKey: parent}},
				{World: 3, Node: kids[1], Mesh: mesh(9), Hint: pipeline.PresentationHint{Kind: pipeline.FadeIn, GroupKey: parent}},
			},
		}},
	}
	s.OnChunkReady(3, parent, mesh(3), pipeline.PresentationHint{Kind: pipeline.Immediate})
	presentation.Apply(s, res)
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	chunks, err := s.Chunks(ctx, 3)
	if err != nil {
		t.Fatalf("chunks: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("chunks: got %d want 2: %+v", len(chunks), chunks)
	}
	if chunks[0].Node != kids[0] || chunks[0].Vertices != 6 || chunks[0].Hint != "fade_in" {
		t.Fatalf("first chunk: %+v", chunks[0])
	}
	if chunks[1].Bytes != 9*pipeline.VertexSize+9*pipeline.IndexSize {
		t.Fatalf("second chunk bytes: %d", chunks[1].Bytes)
	}

	counts, err := s.CountByLOD(ctx, 3)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[1] != 2 || counts[2] != 0 {
		t.Fatalf("counts: %v", counts)
	}
}

func TestSQLiteIndex_ReplaceAndDestroy(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	n := octree.NewNode(1, 2, 3, 0)

	s.OnChunkReady(1, n, mesh(3), pipeline.PresentationHint{})
	s.OnChunkReady(1, n, mesh(12), pipeline.PresentationHint{})
	s.OnChunkReady(2, n, mesh(3), pipeline.PresentationHint{})
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	chunks, err := s.Chunks(ctx, 1)
	if err != nil || len(chunks) != 1 || chunks[0].Vertices != 12 {
		t.Fatalf("re-presented chunk should replace: %+v %v", chunks, err)
	}

	s.OnWorldDestroy(1)
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if chunks, _ := s.Chunks(ctx, 1); len(chunks) != 0 {
		t.Fatalf("destroyed world should be empty: %+v", chunks)
	}
	if chunks, _ := s.Chunks(ctx, 2); len(chunks) != 1 {
		t.Fatalf("other worlds are untouched: %+v", chunks)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqRemove}

	s.OnChunkReady(1, octree.Node{}, mesh(3), pipeline.PresentationHint{})
	s.OnChunkRemove(1, octree.Node{})
	s.OnWorldDestroy(1)

	st := s.Stats()
	if st.DropReadyTotal != 1 || st.DropRemoveTotal != 1 || st.DropDestroyTotal != 1 {
		t.Fatalf("drop stats: %+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_ClosedIsNoop(t *testing.T) {
	s := openTest(t)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	s.OnChunkReady(1, octree.Node{}, mesh(3), pipeline.PresentationHint{})
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("flush after close: %v", err)
	}
}
