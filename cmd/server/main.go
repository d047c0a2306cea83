package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"voxelsiege.gg/internal/ext"
	persistlog "voxelsiege.gg/internal/persistence/log"
	"voxelsiege.gg/internal/persistence/snapshot"
	"voxelsiege.gg/internal/sim/tuning"
	"voxelsiege.gg/internal/sim/world"
	"voxelsiege.gg/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		seed       = flag.Int64("seed", 1337, "terrain seed (ignored when -map is set)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		extDir     = flag.String("extensions", "./extensions", "extension modules directory (.so)")
		mapPath    = flag.String("map", "", "path to a map snapshot to load (optional)")
		saveMap    = flag.Bool("save_map_on_exit", true, "write a map snapshot on shutdown")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite runtime index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	w, err := world.New(world.FromTuning(*worldID, *seed, tune), nil, nil)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	if mp := strings.TrimSpace(*mapPath); mp != "" {
		t, hdr, err := snapshot.ReadMap(mp)
		if err != nil {
			logger.Fatalf("read map: %v", err)
		}
		if hdr.WorldID != "" && hdr.WorldID != *worldID {
			logger.Fatalf("map world id mismatch: flag=%s map=%s", *worldID, hdr.WorldID)
		}
		if err := w.UseTerrain(t); err != nil {
			logger.Fatalf("use map: %v", err)
		}
		logger.Printf("loaded map=%s tick=%d", filepath.Base(mp), hdr.Tick)
	}

	// Persistence: compressed JSONL logs are the source of truth; the sqlite
	// index is an optional queryable read model.
	editLog := persistlog.NewEditLogger(worldDir)
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer editLog.Close()
	defer auditLog.Close()

	idx, err := openRuntimeIndex(worldDir, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.RecordTuning(tune); err != nil {
			logger.Printf("index backend: record tuning: %v", err)
		}
	}
	w.SetEditLogger(multiEditLogger{a: editLog, b: idx})
	w.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})

	// Extensions load before init completes so init-only capabilities work.
	ext.LoadDir(*extDir, w.Registry(), w.Host(), logger)
	w.CompleteInit()

	ctx, cancel := signalContext()
	defer cancel()

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m := w.Metrics()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP voxelsiege_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE voxelsiege_world_tick gauge\n")
		fmt.Fprintf(rw, "voxelsiege_world_tick{world=%q} %d\n", *worldID, m.Tick)

		fmt.Fprintf(rw, "# HELP voxelsiege_world_players Current number of players.\n")
		fmt.Fprintf(rw, "# TYPE voxelsiege_world_players gauge\n")
		fmt.Fprintf(rw, "voxelsiege_world_players{world=%q} %d\n", *worldID, m.Players)

		fmt.Fprintf(rw, "# HELP voxelsiege_world_clients Current number of connected clients.\n")
		fmt.Fprintf(rw, "# TYPE voxelsiege_world_clients gauge\n")
		fmt.Fprintf(rw, "voxelsiege_world_clients{world=%q} %d\n", *worldID, m.Clients)

		fmt.Fprintf(rw, "# HELP voxelsiege_world_solid_blocks Solid cell count.\n")
		fmt.Fprintf(rw, "# TYPE voxelsiege_world_solid_blocks gauge\n")
		fmt.Fprintf(rw, "voxelsiege_world_solid_blocks{world=%q} %d\n", *worldID, m.SolidBlocks)

		fmt.Fprintf(rw, "# HELP voxelsiege_world_edits_total Edit requests by outcome.\n")
		fmt.Fprintf(rw, "# TYPE voxelsiege_world_edits_total counter\n")
		fmt.Fprintf(rw, "voxelsiege_world_edits_total{world=%q,outcome=%q} %d\n", *worldID, "accepted", m.EditsAccepted)
		fmt.Fprintf(rw, "voxelsiege_world_edits_total{world=%q,outcome=%q} %d\n", *worldID, "denied", m.EditsDenied)

		fmt.Fprintf(rw, "# HELP voxelsiege_world_collapsed_total Cells vacated by integrity cascades.\n")
		fmt.Fprintf(rw, "# TYPE voxelsiege_world_collapsed_total counter\n")
		fmt.Fprintf(rw, "voxelsiege_world_collapsed_total{world=%q} %d\n", *worldID, m.Collapsed)

		fmt.Fprintf(rw, "# HELP voxelsiege_world_queue_depth Channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE voxelsiege_world_queue_depth gauge\n")
		fmt.Fprintf(rw, "voxelsiege_world_queue_depth{world=%q,queue=%q} %d\n", *worldID, "inbox", m.QueueDepths.Inbox)
		fmt.Fprintf(rw, "voxelsiege_world_queue_depth{world=%q,queue=%q} %d\n", *worldID, "join", m.QueueDepths.Join)
		fmt.Fprintf(rw, "voxelsiege_world_queue_depth{world=%q,queue=%q} %d\n", *worldID, "leave", m.QueueDepths.Leave)

		fmt.Fprintf(rw, "# HELP voxelsiege_world_step_us Last tick step duration in microseconds.\n")
		fmt.Fprintf(rw, "# TYPE voxelsiege_world_step_us gauge\n")
		fmt.Fprintf(rw, "voxelsiege_world_step_us{world=%q} %d\n", *worldID, m.StepUS)

		if idx != nil {
			fmt.Fprintf(rw, "# HELP voxelsiege_index_dropped_total Index entries dropped under backpressure.\n")
			fmt.Fprintf(rw, "# TYPE voxelsiege_index_dropped_total counter\n")
			fmt.Fprintf(rw, "voxelsiege_index_dropped_total{world=%q} %d\n", *worldID, idx.Dropped())
		}
	})

	if envBool("VS_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(w, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// The loop has stopped; safe to touch world state directly.
	<-worldDone
	w.Shutdown()
	if *saveMap {
		path := filepath.Join(worldDir, "maps", fmt.Sprintf("%d.map.zst", w.CurrentTick()))
		if err := snapshot.WriteMap(path, *worldID, w.CurrentTick(), *seed, w.Terrain()); err != nil {
			logger.Printf("map save: %v", err)
		} else {
			logger.Printf("saved map=%s", path)
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func envBool(name string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

type multiEditLogger struct {
	a world.EditLogger
	b world.EditLogger
}

func (m multiEditLogger) WriteEdit(entry world.EditLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteEdit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteEdit(entry)
	}
	return nil
}

type multiAuditLogger struct {
	a world.AuditLogger
	b world.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
