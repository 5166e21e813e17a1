// Package observer streams chunk lifecycle events to loopback WebSocket
// clients. Server is a presentation layer.
package observer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"voxellod.ai/internal/observerproto"
	"voxellod.ai/internal/octree"
	"voxellod.ai/internal/pipeline"
)

// WorldSource lists the worlds advertised by the bootstrap endpoint.
type WorldSource func() []observerproto.WorldInfo

type Server struct {
	worlds WorldSource
	log    *zap.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	seq      atomic.Uint64

	mu       sync.RWMutex
	sessions map[string]*session
	evicted  atomic.Uint64
}

type session struct {
	id  string
	out chan []byte

	mu  sync.RWMutex
	sub observerproto.SubscribeMsg

	dropped atomic.Uint64

	// gone is closed once the session is evicted.
	gone    chan struct{}
	evicted atomic.Bool
}

// evict marks the session as too slow to keep in sync. It reports whether
// this call did the marking.
func (s *session) evict() bool {
	if !s.evicted.CompareAndSwap(false, true) {
		return false
	}
	close(s.gone)
	return true
}

func (s *session) filter() observerproto.SubscribeMsg {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sub
}

func (s *session) setFilter(sub observerproto.SubscribeMsg) {
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
}

func (s *session) wants(world uint64, lod int32, hasLOD bool) bool {
	if s.evicted.Load() {
		return false
	}
	sub := s.filter()
	if len(sub.Worlds) > 0 && !slices.Contains(sub.Worlds, world) {
		return false
	}
	if hasLOD && sub.MaxLOD != nil && lod > *sub.MaxLOD {
		return false
	}
	return true
}

const sessionQueue = 4096

var errSlowObserver = errors.New("observer too slow")

func NewServer(worlds WorldSource, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if worlds == nil {
		worlds = func() []observerproto.WorldInfo { return nil }
	}
	return &Server{
		worlds:   worlds,
		log:      logger,
		sessions: map[string]*session{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only, see isLoopbackRemote
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		worlds := s.worlds()
		if worlds == nil {
			worlds = []observerproto.WorldInfo{}
		}
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			MeshEncoding:    observerproto.MeshEncoding,
			VertexSize:      pipeline.VertexSize,
			IndexSize:       pipeline.IndexSize,
			Worlds:          worlds,
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := parseSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sess := &session{
			id:  fmt.Sprintf("O%d", s.nextID.Add(1)),
			out:  make(chan []byte, sessionQueue),
			sub:  sub,
			gone: make(chan struct{}),
		}
		s.mu.Lock()
		s.sessions[sess.id] = sess
		s.mu.Unlock()
		log := s.log.With(zap.String("session", sess.id))
		log.Debug("observer joined", zap.Uint64s("worlds", sub.Worlds))
		defer func() {
			s.mu.Lock()
			delete(s.sessions, sess.id)
			s.mu.Unlock()
			log.Debug("observer left", zap.Uint64("dropped", sess.dropped.Load()))
		}()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case <-sess.gone:
					_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "observer too slow"), time.Now().Add(time.Second))
					_ = conn.Close()
					writeErr <- errSlowObserver
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if sub, ok := parseSubscribe(msg); ok {
				sess.setFilter(sub)
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func parseSubscribe(msg []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
		return sub, false
	}
	return sub, true
}

// Sessions returns the number of subscribed observers.
func (s *Server) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Evicted returns the number of observers disconnected because a removal
// could not be queued.
func (s *Server) Evicted() uint64 { return s.evicted.Load() }

// Dropped returns the total number of messages dropped for slow observers.
func (s *Server) Dropped() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n uint64
	for _, sess := range s.sessions {
		n += sess.dropped.Load()
	}
	return n
}

func ref(n octree.Node) observerproto.NodeRef {
	return observerproto.NodeRef{X: n.X, Y: n.Y, Z: n.Z, LOD: n.LOD}
}

func (s *Server) OnChunkReady(world pipeline.WorldID, node octree.Node, mesh pipeline.MeshData, hint pipeline.PresentationHint) {
	if s.Sessions() == 0 {
		return
	}
	msg := observerproto.ChunkReadyMsg{
		Type:            observerproto.TypeChunkReady,
		ProtocolVersion: observerproto.Version,
		Seq:             s.seq.Add(1),
		World:           uint64(world),
		Node:            ref(node),
		Hint:            hint.Kind.String(),
		VertexCount:     mesh.VertexCount,
		IndexCount:      mesh.IndexCount,
		BoundsMin:       mesh.Bounds.Min,
		BoundsMax:       mesh.Bounds.Max,
	}
	if hint.Kind != pipeline.Immediate {
		g := ref(hint.GroupKey)
		msg.GroupKey = &g
	}
	bare, err := json.Marshal(msg)
	if err != nil {
		s.log.Warn("encode chunk", zap.Error(err))
		return
	}
	var full []byte
	s.broadcast(uint64(world), node.LOD, true, false, func(sub observerproto.SubscribeMsg) []byte {
		if !sub.IncludeMesh {
			return bare
		}
		if full == nil {
			msg.Encoding = observerproto.MeshEncoding
			msg.Vertices = base64.StdEncoding.EncodeToString(mesh.Vertices)
			msg.Indices = base64.StdEncoding.EncodeToString(mesh.Indices)
			full, _ = json.Marshal(msg)
		}
		return full
	})
}

func (s *Server) OnChunkRemove(world pipeline.WorldID, node octree.Node) {
	if s.Sessions() == 0 {
		return
	}
	b, _ := json.Marshal(observerproto.ChunkRemoveMsg{
		Type:            observerproto.TypeChunkRemove,
		ProtocolVersion: observerproto.Version,
		Seq:             s.seq.Add(1),
		World:           uint64(world),
		Node:            ref(node),
	})
	// Removals are not LOD-filtered so clients can always drop what they hold.
	s.broadcast(uint64(world), node.LOD, false, true, func(observerproto.SubscribeMsg) []byte { return b })
}

func (s *Server) OnWorldDestroy(world pipeline.WorldID) {
	if s.Sessions() == 0 {
		return
	}
	b, _ := json.Marshal(observerproto.WorldDestroyMsg{
		Type:            observerproto.TypeWorldDestroy,
		ProtocolVersion: observerproto.Version,
		Seq:             s.seq.Add(1),
		World:           uint64(world),
	})
	s.broadcast(uint64(world), 0, false, true, func(observerproto.SubscribeMsg) []byte { return b })
}

// broadcast is called from the presentation goroutine; it never blocks.
// A full queue drops a ready message but evicts the session for a removal,
// since a client that misses one would keep a stale chunk forever.
func (s *Server) broadcast(world uint64, lod int32, hasLOD, removal bool, encode func(observerproto.SubscribeMsg) []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		if !sess.wants(world, lod, hasLOD) {
			continue
		}
		select {
		case sess.out <- encode(sess.filter()):
		default:
			if !removal {
				sess.dropped.Add(1)
			} else if sess.evict() {
				s.evicted.Add(1)
				s.log.Warn("observer evicted", zap.String("session", sess.id))
			}
		}
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
