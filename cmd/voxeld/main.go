// Command voxeld drives one voxel world headlessly: it moves a scripted
// viewer, runs the LOD pipeline every frame and fans chunk lifecycle
// events out to the configured sinks.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"voxellod.ai/internal/config"
	"voxellod.ai/internal/metrics"
	"voxellod.ai/internal/observerproto"
	"voxellod.ai/internal/persistence/eventlog"
	"voxellod.ai/internal/persistence/indexdb"
	"voxellod.ai/internal/persistence/snapshot"
	"voxellod.ai/internal/pipeline"
	"voxellod.ai/internal/presentation"
	"voxellod.ai/internal/transport/observer"
	"voxellod.ai/internal/world"
)

func main() {
	var (
		configPath  = flag.String("config", "./configs/voxellod.yaml", "path to voxellod.yaml (empty for defaults)")
		dev         = flag.Bool("dev", false, "development logging")
		frames      = flag.Int("frames", -1, "frames to run (0 runs until interrupted, -1 uses the config)")
		metricsAddr = flag.String("metrics_addr", "", "override outputs.metrics_addr")
		observeAddr = flag.String("observer_addr", "", "override outputs.observer_addr")
		snapPath    = flag.String("snapshot", "", "leaf-set snapshot to resume from and save to on exit (optional)")
	)
	flag.Parse()

	logger := newLogger(*dev)
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if *frames >= 0 {
		cfg.Viewer.Frames = *frames
	}
	if s := strings.TrimSpace(*metricsAddr); s != "" {
		cfg.Outputs.MetricsAddr = s
	}
	if s := strings.TrimSpace(*observeAddr); s != "" {
		cfg.Outputs.ObserverAddr = s
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)
	collector.Enabled = cfg.Pipeline.Metrics

	p := pipeline.New(pipeline.Options{
		Workers: cfg.Pipeline.Workers,
		Logger:  logger.Named("pipeline"),
		Metrics: collector,
	})
	defer p.Close()

	w, err := newWorld(cfg)
	if err != nil {
		logger.Fatal("build world", zap.Error(err))
	}

	if path := strings.TrimSpace(*snapPath); path != "" {
		if snap, err := snapshot.ReadSnapshot(path); err == nil {
			if err := w.Restore(snap); err != nil {
				logger.Fatal("restore snapshot", zap.String("path", path), zap.Error(err))
			}
			logger.Info("restored snapshot", zap.String("path", path), zap.Int("leaves", w.Leaves.Len()))
		} else if !errors.Is(err, os.ErrNotExist) {
			logger.Fatal("read snapshot", zap.String("path", path), zap.Error(err))
		}
	}

	layers := presentation.Multi{presentation.NewMetrics(collector)}
	if dir := strings.TrimSpace(cfg.Outputs.EventLogDir); dir != "" {
		el := eventlog.New(dir, logger.Named("eventlog"))
		defer func() {
			if err := el.Close(); err != nil {
				logger.Warn("close event log", zap.Error(err))
			}
		}()
		layers = append(layers, el)
	}
	if path := strings.TrimSpace(cfg.Outputs.IndexDB); path != "" {
		idx, err := indexdb.OpenSQLite(path, logger.Named("indexdb"))
		if err != nil {
			logger.Fatal("open index db", zap.Error(err))
		}
		defer idx.Close()
		layers = append(layers, idx)
	}

	muxes := map[string]*http.ServeMux{}
	mux := func(addr string) *http.ServeMux {
		m, ok := muxes[addr]
		if !ok {
			m = http.NewServeMux()
			m.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
				rw.WriteHeader(http.StatusOK)
				_, _ = rw.Write([]byte("ok"))
			})
			muxes[addr] = m
		}
		return m
	}
	if addr := strings.TrimSpace(cfg.Outputs.MetricsAddr); addr != "" {
		mux(addr).Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	if addr := strings.TrimSpace(cfg.Outputs.ObserverAddr); addr != "" {
		obs := observer.NewServer(worldInfo(w), logger.Named("observer"))
		m := mux(addr)
		m.HandleFunc("/v1/observe", obs.WSHandler())
		m.HandleFunc("/v1/observe/bootstrap", obs.BootstrapHandler())
		layers = append(layers, obs)
	}

	driver := world.NewDriver(w, p, layers, logger.Named("world"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	for addr, m := range muxes {
		srv := &http.Server{Addr: addr, Handler: m, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer stop()
		return run(gctx, driver, cfg.Viewer, logger)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("stopped", zap.Error(err))
	}
	driver.Close()

	if path := strings.TrimSpace(*snapPath); path != "" {
		viewer, _ := driver.LastViewer()
		if err := snapshot.WriteSnapshot(path, w.Snapshot(viewer)); err != nil {
			logger.Error("write snapshot", zap.String("path", path), zap.Error(err))
		}
	}

	if snap, ok := collector.Snapshot(uint64(w.ID)); ok {
		logger.Info("world summary",
			zap.Uint32("leaves", snap.TotalLeaves()),
			zap.Uint64("vertices", snap.TotalVertices()),
			zap.Uint64("indices", snap.TotalIndices()),
			zap.Float64("mesh_mb", snap.MeshMemoryMB()),
			zap.Uint64("chunks_generated", snap.TotalChunksGenerated),
			zap.Float64("avg_mesh_us", snap.MeshTimings.Average()),
		)
	}
}

func newLogger(dev bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if dev {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return logger.Named("voxeld")
}

func newWorld(cfg config.Config) (*world.World, error) {
	smp, err := cfg.BuildSampler()
	if err != nil {
		return nil, err
	}
	mc, err := cfg.MeshConfig()
	if err != nil {
		return nil, err
	}
	w := world.NewWithInitialLOD(cfg.OctreeConfig(), smp, cfg.Octree.InitialLOD)
	w.Budget = cfg.OctreeBudget()
	w.Mesh = mc
	return w, nil
}

func worldInfo(w *world.World) observer.WorldSource {
	oc := w.Config
	info := observerproto.WorldInfo{
		ID:        uint64(w.ID),
		VoxelSize: oc.VoxelSize,
		MinLOD:    oc.MinLOD,
		MaxLOD:    oc.MaxLOD,
		Offset:    [3]float64{w.Offset.X, w.Offset.Y, w.Offset.Z},
	}
	return func() []observerproto.WorldInfo { return []observerproto.WorldInfo{info} }
}

// run ticks the driver once per frame along a straight viewer path.
// Frames 0 runs until ctx is done.
func run(ctx context.Context, d *world.Driver, v config.ViewerSpec, logger *zap.Logger) error {
	dt := time.Duration(v.FrameMs) * time.Millisecond
	ticker := time.NewTicker(dt)
	defer ticker.Stop()

	start, vel := v.Start.Vector(), v.Velocity.Vector()
	cycles := 0
	for frame := 0; v.Frames == 0 || frame < v.Frames; frame++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		viewer := start.Add(vel.Mul(dt.Seconds() * float64(frame)))
		if res, ok := d.Tick(viewer); ok {
			cycles++
			if len(res.Transitions) > 0 {
				logger.Debug("frame",
					zap.Int("frame", frame),
					zap.Stringer("viewer", viewer),
					zap.Int("transitions", len(res.Transitions)),
					zap.Int("chunks", res.Stats.Chunks),
				)
			}
		}
	}
	logger.Info("viewer path finished", zap.Int("frames", v.Frames), zap.Int("cycles", cycles))
	return nil
}
