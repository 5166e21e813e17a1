package pipeline

import (
	"fmt"
	"sync/atomic"
	"time"

	"voxellod.ai/internal/octree"
	"voxellod.ai/internal/surfacenets"
	"voxellod.ai/internal/volume"
)

// WorldID identifies a world across pipeline results and presentation calls.
type WorldID uint64

var lastWorldID atomic.Uint64

// NewWorldID returns a process-unique id. Ids start at 1.
func NewWorldID() WorldID { return WorldID(lastWorldID.Add(1)) }

func (id WorldID) String() string { return fmt.Sprintf("world-%d", uint64(id)) }

// WorkSource tags why a node is being meshed.
type WorkSource uint8

const (
	// Refinement work belongs to a transition group.
	Refinement WorkSource = iota
	// Invalidation work re-meshes a node in place, outside any group.
	Invalidation
)

func (s WorkSource) String() string {
	if s == Invalidation {
		return "invalidation"
	}
	return "refinement"
}

// HintKind tells the consumer how to animate a chunk's appearance.
type HintKind uint8

const (
	Immediate HintKind = iota
	FadeIn
	FadeOut
)

func (k HintKind) String() string {
	switch k {
	case FadeIn:
		return "fade_in"
	case FadeOut:
		return "fade_out"
	default:
		return "immediate"
	}
}

// PresentationHint carries the group a faded chunk belongs to. GroupKey
// is meaningless for Immediate hints.
type PresentationHint struct {
	Kind     HintKind
	GroupKey octree.Node
}

func (h PresentationHint) String() string {
	if h.Kind == Immediate {
		return h.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", h.Kind, h.GroupKey)
}

// SampledVolume is an owned sample grid ready for meshing.
type SampledVolume struct {
	Volume    *volume.Volume
	Materials *volume.Materials
}

// PresampleOutput is one sampled node. Volume is nil when the node is
// homogeneous and needs no mesh.
type PresampleOutput struct {
	Node   octree.Node
	Volume *SampledVolume
	Source WorkSource
}

// MeshResult is one meshed node.
type MeshResult struct {
	Node   octree.Node
	Output surfacenets.Output
	Timing time.Duration
	Source WorkSource
	Err    error
}

// NodeMesh pairs a node with its non-empty mesh.
type NodeMesh struct {
	Node   octree.Node
	Output surfacenets.Output
}

// GroupedMesh is the surviving meshes of one transition group.
type GroupedMesh struct {
	GroupKey octree.Node
	Type     octree.TransitionType
	Meshes   []NodeMesh
}

// MeshData is a mesh flattened into byte buffers. See Serialize for the
// layout.
type MeshData struct {
	Vertices    []byte
	Indices     []byte
	VertexCount uint32
	IndexCount  uint32
	Bounds      surfacenets.AABB
}

// Size is the combined length of both buffers.
func (m MeshData) Size() int { return len(m.Vertices) + len(m.Indices) }

// ReadyChunk is a mesh ready to hand to a presentation layer.
type ReadyChunk struct {
	World WorldID
	Node  octree.Node
	Mesh  MeshData
	Hint  PresentationHint
}

// CompletedTransition is a transition group with whatever chunks it
// produced. Consumers remove NodesToRemove and present Chunks in the same
// update. Chunks may be empty when every added node was homogeneous.
type CompletedTransition struct {
	GroupKey      octree.Node
	Type          octree.TransitionType
	NodesToRemove []octree.Node
	NodesToAdd    []octree.Node
	Chunks        []ReadyChunk
}

func (t CompletedTransition) IsCollapse() bool { return t.Type == octree.Merge }

// Stats describes one Process call.
type Stats struct {
	Refine octree.Stats

	Nodes       int
	Homogeneous int
	Meshed      int
	Empty       int
	Failed      int
	Chunks      int

	RefineTime    time.Duration
	PresampleTime time.Duration
	MeshTime      time.Duration
	TotalTime     time.Duration
}
