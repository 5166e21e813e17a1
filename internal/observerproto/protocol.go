// Package observerproto defines the JSON messages streamed to chunk
// observers over WebSocket.
package observerproto

// Version is the observer protocol version.
const Version = "0.1"

const (
	TypeSubscribe    = "SUBSCRIBE"
	TypeChunkReady   = "CHUNK_READY"
	TypeChunkRemove  = "CHUNK_REMOVE"
	TypeWorldDestroy = "WORLD_DESTROY"
)

// MeshEncoding describes ChunkReadyMsg buffers: base64 of the native-endian
// vertex records (position, normal, material weights as float32, cell as
// int32; 52 bytes each) and uint32 indices.
const MeshEncoding = "VTX52_NATIVE_B64"

// Client -> Server. First message on the connection, and can be re-sent to
// update the filter.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Worlds restricts the stream; empty means every world.
	Worlds []uint64 `json:"worlds,omitempty"`
	// IncludeMesh adds the vertex and index buffers to CHUNK_READY.
	IncludeMesh bool `json:"include_mesh"`
	// MaxLOD drops chunks coarser than this LOD; nil means no limit.
	MaxLOD *int32 `json:"max_lod,omitempty"`
}

// HTTP response for GET /v1/observe/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	MeshEncoding    string      `json:"mesh_encoding"`
	VertexSize      int         `json:"vertex_size"`
	IndexSize       int         `json:"index_size"`
	Worlds          []WorldInfo `json:"worlds"`
}

type WorldInfo struct {
	ID        uint64     `json:"id"`
	VoxelSize float64    `json:"voxel_size"`
	MinLOD    int32      `json:"min_lod"`
	MaxLOD    int32      `json:"max_lod"`
	Offset    [3]float64 `json:"offset"`
	Leaves    int        `json:"leaves"`
}

type NodeRef struct {
	X   int32 `json:"x"`
	Y   int32 `json:"y"`
	Z   int32 `json:"z"`
	LOD int32 `json:"lod"`
}

// Server -> Client.
type ChunkReadyMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Seq             uint64   `json:"seq"`
	World           uint64   `json:"world"`
	Node            NodeRef  `json:"node"`
	Hint            string   `json:"hint"`
	GroupKey        *NodeRef `json:"group_key,omitempty"`

	VertexCount uint32     `json:"vertex_count"`
	IndexCount  uint32     `json:"index_count"`
	BoundsMin   [3]float32 `json:"bounds_min"`
	BoundsMax   [3]float32 `json:"bounds_max"`

	Encoding string `json:"encoding,omitempty"`
	Vertices string `json:"vertices,omitempty"`
	Indices  string `json:"indices,omitempty"`
}

// Server -> Client.
type ChunkRemoveMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Seq             uint64  `json:"seq"`
	World           uint64  `json:"world"`
	Node            NodeRef `json:"node"`
}

// Server -> Client.
type WorldDestroyMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Seq             uint64 `json:"seq"`
	World           uint64 `json:"world"`
}
