// Package eventlog records chunk lifecycle events as compressed JSONL.
package eventlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"voxellod.ai/internal/octree"
	"voxellod.ai/internal/pipeline"
)

const (
	KindReady   = "ready"
	KindRemove  = "remove"
	KindDestroy = "destroy"
)

type NodeRef struct {
	X   int32 `json:"x"`
	Y   int32 `json:"y"`
	Z   int32 `json:"z"`
	LOD int32 `json:"lod"`
}

func RefOf(n octree.Node) NodeRef { return NodeRef{X: n.X, Y: n.Y, Z: n.Z, LOD: n.LOD} }

func (r NodeRef) Node() octree.Node { return octree.NewNode(r.X, r.Y, r.Z, r.LOD) }

// Event is one line of the log.
type Event struct {
	Seq      uint64   `json:"seq"`
	Time     string   `json:"time"`
	Kind     string   `json:"kind"`
	World    uint64   `json:"world"`
	Node     *NodeRef `json:"node,omitempty"`
	Hint     string   `json:"hint,omitempty"`
	GroupKey *NodeRef `json:"group_key,omitempty"`
	Vertices uint32   `json:"vertices,omitempty"`
	Indices  uint32   `json:"indices,omitempty"`
	Bytes    int      `json:"bytes,omitempty"`
}

// Layer is a presentation layer that appends every lifecycle call to a
// rotating JSONL log under dir/events. Write failures are logged and
// counted; they never reach the pipeline.
type Layer struct {
	w   *segmentLog
	log *zap.Logger

	errors atomic.Uint64
}

func New(dir string, log *zap.Logger) *Layer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Layer{
		w:   newSegmentLog(filepath.Join(dir, "events"), "chunks"),
		log: log,
	}
}

func (l *Layer) OnChunkReady(world pipeline.WorldID, node octree.Node, mesh pipeline.MeshData, hint pipeline.PresentationHint) {
	ref := RefOf(node)
	ev := Event{
		Kind:     KindReady,
		World:    uint64(world),
		Node:     &ref,
		Hint:     hint.Kind.String(),
		Vertices: mesh.VertexCount,
		Indices:  mesh.IndexCount,
		Bytes:    mesh.Size(),
	}
	if hint.Kind != pipeline.Immediate {
		g := RefOf(hint.GroupKey)
		ev.GroupKey = &g
	}
	l.write(ev)
}

func (l *Layer) OnChunkRemove(world pipeline.WorldID, node octree.Node) {
	ref := RefOf(node)
	l.write(Event{Kind: KindRemove, World: uint64(world), Node: &ref})
}

func (l *Layer) OnWorldDestroy(world pipeline.WorldID) {
	l.write(Event{Kind: KindDestroy, World: uint64(world)})
	if err := l.w.Flush(); err != nil {
		l.fail(err)
	}
}

func (l *Layer) write(ev Event) {
	if _, err := l.w.Append(ev); err != nil {
		l.fail(err)
	}
}

func (l *Layer) fail(err error) {
	if l.errors.Add(1) == 1 {
		l.log.Warn("event log write failed", zap.Error(err))
	}
}

// Errors returns how many writes have failed.
func (l *Layer) Errors() uint64 { return l.errors.Load() }

// Segment returns the open log file and how many events it holds from this
// layer.
func (l *Layer) Segment() (string, int) { return l.w.Segment() }

func (l *Layer) Flush() error { return l.w.Flush() }
func (l *Layer) Close() error { return l.w.Close() }

// ReadDir decodes every event file under dir/events in file name order.
func ReadDir(dir string) ([]Event, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "events", "*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	var out []Event
	for _, p := range paths {
		evs, err := ReadFile(p)
		if err != nil {
			return out, err
		}
		out = append(out, evs...)
	}
	return out, nil
}

func ReadFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []Event
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var ev Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			return out, err
		}
		out = append(out, ev)
	}
	return out, sc.Err()
}
