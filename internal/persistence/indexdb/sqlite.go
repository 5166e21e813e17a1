// Package indexdb keeps a SQLite index of the chunks currently presented
// for each world.
package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"voxellod.ai/internal/octree"
	"voxellod.ai/internal/pipeline"
)

// SQLiteIndex is a presentation layer. Calls enqueue work for a single
// writer goroutine and never block; when the queue is full the request is
// dropped and counted.
type SQLiteIndex struct {
	db  *sql.DB
	log *zap.Logger

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropReady   atomic.Uint64
	dropRemove  atomic.Uint64
	dropDestroy atomic.Uint64
	writeFail   atomic.Uint64
}

type reqKind int

const (
	reqReady reqKind = iota + 1
	reqRemove
	reqDestroy
	reqFlush
)

type req struct {
	kind reqKind

	world pipeline.WorldID
	node  octree.Node
	chunk chunkRow
	done  chan struct{}
}

type chunkRow struct {
	Vertices uint32
	Indices  uint32
	Bytes    int
	Hint     string
	MinX     float32
	MinY     float32
	MinZ     float32
	MaxX     float32
	MaxY     float32
	MaxZ     float32
}

// Chunk is one presented chunk as stored in the index.
type Chunk struct {
	World     pipeline.WorldID
	Node      octree.Node
	Vertices  uint32
	Indices   uint32
	Bytes     int
	Hint      string
	UpdatedAt string
}

type Stats struct {
	DropReadyTotal   uint64
	DropRemoveTotal  uint64
	DropDestroyTotal uint64
	WriteFailTotal   uint64
	QueueDepth       int
	QueueCapacity    int
}

const defaultQueue = 65536

func OpenSQLite(path string, log *zap.Logger) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:  db,
		log: log,
		ch:  make(chan req, defaultQueue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			world INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			lod INTEGER NOT NULL,
			vertices INTEGER NOT NULL,
			indices INTEGER NOT NULL,
			bytes INTEGER NOT NULL,
			hint TEXT NOT NULL,
			min_x REAL NOT NULL,
			min_y REAL NOT NULL,
			min_z REAL NOT NULL,
			max_x REAL NOT NULL,
			max_y REAL NOT NULL,
			max_z REAL NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (world, lod, x, y, z)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_world_lod ON chunks(world, lod);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) OnChunkReady(world pipeline.WorldID, node octree.Node, mesh pipeline.MeshData, hint pipeline.PresentationHint) {
	if s == nil || s.closed.Load() {
		return
	}
	r := req{
		kind:  reqReady,
		world: world,
		node:  node,
		chunk: chunkRow{
			Vertices: mesh.VertexCount,
			Indices:  mesh.IndexCount,
			Bytes:    mesh.Size(),
			Hint:     hint.Kind.String(),
			MinX:     mesh.Bounds.Min[0], MinY: mesh.Bounds.Min[1], MinZ: mesh.Bounds.Min[2],
			MaxX: mesh.Bounds.Max[0], MaxY: mesh.Bounds.Max[1], MaxZ: mesh.Bounds.Max[2],
		},
	}
	select {
	case s.ch <- r:
	default:
		s.dropReady.Add(1)
	}
}

func (s *SQLiteIndex) OnChunkRemove(world pipeline.WorldID, node octree.Node) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqRemove, world: world, node: node}:
	default:
		s.dropRemove.Add(1)
	}
}

func (s *SQLiteIndex) OnWorldDestroy(world pipeline.WorldID) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqDestroy, world: world}:
	default:
		s.dropDestroy.Add(1)
	}
}

// Flush blocks until every request queued before it is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		DropReadyTotal:   s.dropReady.Load(),
		DropRemoveTotal:  s.dropRemove.Load(),
		DropDestroyTotal: s.dropDestroy.Load(),
		WriteFailTotal:   s.writeFail.Load(),
		QueueDepth:       len(s.ch),
		QueueCapacity:    cap(s.ch),
	}
}

// Chunks lists the indexed chunks of a world, coarsest first.
func (s *SQLiteIndex) Chunks(ctx context.Context, world pipeline.WorldID) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT x,y,z,lod,vertices,indices,bytes,hint,updated_at FROM chunks WHERE world=? ORDER BY lod DESC, x, y, z`,
		int64(world))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Chunk
	for rows.Next() {
		c := Chunk{World: world}
		if err := rows.Scan(&c.Node.X, &c.Node.Y, &c.Node.Z, &c.Node.LOD, &c.Vertices, &c.Indices, &c.Bytes, &c.Hint, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountByLOD returns the number of indexed chunks per LOD for a world.
func (s *SQLiteIndex) CountByLOD(ctx context.Context, world pipeline.WorldID) (map[int32]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT lod, COUNT(*) FROM chunks WHERE world=? GROUP BY lod`, int64(world))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[int32]int{}
	for rows.Next() {
		var lod int32
		var n int
		if err := rows.Scan(&lod, &n); err != nil {
			return nil, err
		}
		out[lod] = n
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	upsert, _ := s.db.Prepare(`INSERT OR REPLACE INTO chunks(world,x,y,z,lod,vertices,indices,bytes,hint,min_x,min_y,min_z,max_x,max_y,max_z,updated_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	remove, _ := s.db.Prepare(`DELETE FROM chunks WHERE world=? AND lod=? AND x=? AND y=? AND z=?`)
	destroy, _ := s.db.Prepare(`DELETE FROM chunks WHERE world=?`)
	defer func() {
		for _, st := range []*sql.Stmt{upsert, remove, destroy} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.log.Warn("index begin failed", zap.Error(err))
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeFail.Add(1)
			s.log.Warn("index commit failed", zap.Error(err))
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func(err error) {
		s.writeFail.Add(1)
		s.log.Warn("index write failed", zap.Error(err))
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil {
			return
		}
		begin()
		if tx == nil {
			s.writeFail.Add(1)
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback(err)
			return
		}
		opCount++
	}

	for r := range s.ch {
		n := r.node
		switch r.kind {
		case reqReady:
			c := r.chunk
			exec(upsert, int64(r.world), n.X, n.Y, n.Z, n.LOD,
				c.Vertices, c.Indices, c.Bytes, c.Hint,
				c.MinX, c.MinY, c.MinZ, c.MaxX, c.MaxY, c.MaxZ,
				time.Now().UTC().Format(time.RFC3339Nano))
		case reqRemove:
			exec(remove, int64(r.world), n.LOD, n.X, n.Y, n.Z)
		case reqDestroy:
			exec(destroy, int64(r.world))
		case reqFlush:
			commit()
			close(r.done)
			continue
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
