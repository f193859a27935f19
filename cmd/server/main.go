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

	"voxelglow.dev/internal/persistence/indexdb"
	persistlog "voxelglow.dev/internal/persistence/log"
	"voxelglow.dev/internal/sim/catalogs"
	"voxelglow.dev/internal/sim/tuning"
	"voxelglow.dev/internal/sim/world"
	"voxelglow.dev/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the partition index database")
		noGen      = flag.Bool("no_gen", false, "leave fresh partitions empty instead of generating terrain")
		pprofHTTP  = flag.Bool("pprof", false, "enable pprof endpoints")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("no materials.json in %s; using builtin catalog", *configDir)
			cats = catalogs.Builtin()
		} else {
			logger.Fatalf("load catalogs: %v", err)
		}
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Default()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index db: %v", err)
		}
		defer idx.Close()
	}

	schedLog := persistlog.NewSchedLogger(worldDir)
	defer schedLog.Close()

	w, err := world.New(world.Config{
		WorldID:  *worldID,
		Tuning:   tune,
		DataDir:  worldDir,
		Sink:     schedLog,
		Index:    idx,
		Generate: !*noGen,
	}, cats)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	defer func() {
		if err := w.Close(); err != nil {
			logger.Printf("world close: %v", err)
		}
	}()

	ctx, cancel := signalContext()
	defer cancel()

	loop := world.NewLoop(w)
	go loop.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		fmt.Fprintf(rw, "# HELP voxelglow_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE voxelglow_world_tick gauge\n")
		fmt.Fprintf(rw, "voxelglow_world_tick{world=%q} %d\n", *worldID, w.CurrentTick())

		fmt.Fprintf(rw, "# HELP voxelglow_loaded_partitions Resident partition count.\n")
		fmt.Fprintf(rw, "# TYPE voxelglow_loaded_partitions gauge\n")
		fmt.Fprintf(rw, "voxelglow_loaded_partitions{world=%q} %d\n", *worldID, w.LoadedCount())
	})
	if *pprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(loop, logger).Handler())

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
