package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/goblin-trade/goblin-core-v1-sub000/api/grpcserver"
	"github.com/goblin-trade/goblin-core-v1-sub000/api/httpserver"
	"github.com/goblin-trade/goblin-core-v1-sub000/infra/config"
	"github.com/goblin-trade/goblin-core-v1-sub000/infra/kafka"
	"github.com/goblin-trade/goblin-core-v1-sub000/infra/logging"
	"github.com/goblin-trade/goblin-core-v1-sub000/infra/sequence"
	"github.com/goblin-trade/goblin-core-v1-sub000/infra/storage"
	entrywal "github.com/goblin-trade/goblin-core-v1-sub000/infra/wal/entry"
	exitwal "github.com/goblin-trade/goblin-core-v1-sub000/infra/wal/exit"
	"github.com/goblin-trade/goblin-core-v1-sub000/jobs/broadcaster"
	"github.com/goblin-trade/goblin-core-v1-sub000/service"
	"github.com/goblin-trade/goblin-core-v1-sub000/snapshot"
)

func main() {
	cfgPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	// ---------------- Config ----------------

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		zap.NewExample().Sugar().Fatalf("config: %v", err)
	}

	log, err := logging.New(logging.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		zap.NewExample().Sugar().Fatalf("logger: %v", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------- Storage ----------------

	backend, err := storage.Open(cfg.Storage)
	if err != nil {
		log.Fatalw("storage init failed", "kind", cfg.Storage.Kind, "error", err)
	}
	defer backend.Close()

	// A memory backend starts empty; the newest snapshot brings it close to
	// the log and replay does the rest.
	if !storage.Durable(cfg.Storage.Kind) {
		restoreSnapshot(cfg.Snapshot.Dir, backend, log)
	}

	// ---------------- Entry WAL ----------------

	entryWAL, err := entrywal.Open(entrywal.Config{
		Dir:             cfg.WAL.Dir,
		SegmentSize:     cfg.WAL.SegmentSize,
		SegmentDuration: cfg.WAL.SegmentDuration,
	})
	if err != nil {
		log.Fatalw("entry WAL init failed", "error", err)
	}
	defer entryWAL.Close()

	// ---------------- Exit WAL ----------------

	exitWAL, err := exitwal.Open(cfg.Outbox.Dir)
	if err != nil {
		log.Fatalw("exit WAL init failed", "error", err)
	}
	defer exitWAL.Close()

	// ---------------- Service ----------------

	clock := sequence.NewClock(sequence.New(0), time.Now)
	svc, err := service.NewOrderService(cfg.Market, backend, clock, entryWAL, exitWAL, log)
	if err != nil {
		log.Fatalw("service init failed", "error", err)
	}

	// ---------------- WAL REPLAY ----------------

	if _, err := svc.ReplayFromWAL(cfg.WAL.Dir); err != nil {
		log.Fatalw("WAL replay failed", "error", err)
	}

	// ---------------- Background Jobs ----------------

	hub := httpserver.NewHub(log)
	go hub.Run(ctx)

	sinks := []broadcaster.Publisher{hub}
	if cfg.Kafka.Enabled {
		pub, closeFn, err := kafkaPublisher(cfg.Kafka)
		if err != nil {
			log.Fatalw("kafka init failed", "client", cfg.Kafka.Client, "error", err)
		}
		defer closeFn()
		sinks = append(sinks, pub)
	}
	bc := broadcaster.New(exitWAL, cfg.Kafka.PollInterval, log, sinks...)
	go bc.Run(ctx)

	if cfg.Snapshot.Interval > 0 {
		svc.StartSnapshotJob(ctx, &snapshot.Writer{Dir: cfg.Snapshot.Dir, Keep: 3}, cfg.Snapshot.Interval)
	}

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		log.Fatalw("listen failed", "addr", cfg.GRPC.Addr, "error", err)
	}
	grpcSrv := grpcserver.NewGRPCServer(grpcserver.NewServer(svc, log))
	go func() {
		log.Infow("gRPC listening", "addr", cfg.GRPC.Addr)
		if err := grpcSrv.Serve(lis); err != nil {
			log.Errorw("gRPC server exited", "error", err)
			stop()
		}
	}()

	// ---------------- HTTP ----------------

	httpSrv := httpserver.New(svc, hub, log)
	go func() {
		if err := httpSrv.Start(cfg.HTTP.Addr); err != nil {
			log.Errorw("HTTP server exited", "error", err)
			stop()
		}
	}()

	log.Infow("goblin engine running", "grpc", cfg.GRPC.Addr, "http", cfg.HTTP.Addr, "storage", cfg.Storage.Kind)

	<-ctx.Done()

	// ---------------- Shutdown ----------------

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("HTTP shutdown", "error", err)
	}
	grpcSrv.GracefulStop()
}

func restoreSnapshot(dir string, backend storage.Backend, log *zap.SugaredLogger) {
	path, err := snapshot.Latest(dir)
	if err != nil {
		log.Fatalw("snapshot lookup failed", "dir", dir, "error", err)
	}
	if path == "" {
		return
	}
	info, err := snapshot.Load(path, backend.Apply)
	if err != nil {
		log.Fatalw("snapshot load failed", "path", path, "error", err)
	}
	log.Infow("snapshot loaded", "path", info.Path, "seq", info.Seq, "slots", info.Count)
}

func kafkaPublisher(cfg config.Kafka) (broadcaster.Publisher, func() error, error) {
	if cfg.Client == "kafka-go" {
		p := kafka.NewProducer(cfg.Brokers, cfg.Topic)
		return p, p.Close, nil
	}
	p, err := broadcaster.NewSaramaPublisher(cfg.Brokers, cfg.Topic)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}
