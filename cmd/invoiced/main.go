package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/app"
	"github.com/joseph-ayodele/invoice-extractor/internal/async"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/ingest"
	"github.com/joseph-ayodele/invoice-extractor/internal/logging"
)

func main() {
	cfg := common.LoadConfig()
	logger, flush := logging.New(cfg.Log)
	defer flush()
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	queue := async.NewDispatcher(a.Processor, logger,
		async.WithWorkers(cfg.Worker.Workers),
		async.WithQueueSize(cfg.Worker.QueueSize),
		async.WithProcessTimeout(cfg.Worker.ProcessTimeout),
		async.WithRetention(cfg.Worker.TaskRetention),
	)
	intake := ingest.NewIntake(a.Documents, queue, logger)

	resumePending(ctx, a, queue, logger)

	if len(cfg.Ingest.WatchDirs) > 0 {
		events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       cfg.Ingest.WatchDirs,
			InitialScan: cfg.Ingest.InitialScan,
			Debounce:    cfg.Ingest.Debounce,
			SkipHidden:  true,
		}, logger)
		if err != nil {
			logger.Error("failed to start watcher", "dirs", cfg.Ingest.WatchDirs, "error", err)
			os.Exit(1)
		}
		go intake.Consume(ctx, events, cfg.Ingest.BatchID)
		go func() {
			for err := range errs {
				logger.Warn("watcher reported an error", "error", err)
			}
		}()
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	logger.Info("invoiced listening", "addr", cfg.Server.GRPCAddr, "workers", cfg.Worker.Workers, "provider", cfg.LLM.Provider)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ProcessTimeout+10*time.Second)
	defer cancel()
	if err := queue.Shutdown(shutdownCtx); err != nil {
		logger.Warn("queue did not drain", "error", err)
	}
	grpcServer.GracefulStop()
}

// resumePending queues documents that were registered but never dispatched,
// e.g. because the previous process stopped first.
func resumePending(ctx context.Context, a *app.App, queue *async.Dispatcher, logger *slog.Logger) {
	docs, err := a.Documents.ListByStatus(ctx, constants.StatusPending, 0)
	if err != nil {
		logger.Warn("could not list pending documents", "error", err)
		return
	}
	for _, d := range docs {
		if _, err := queue.Submit(ctx, async.Job{FilePath: d.FilePath, DocumentID: d.ID}); err != nil {
			logger.Warn("could not resume document", "document_id", d.ID, "error", err)
			return
		}
	}
	if len(docs) > 0 {
		logger.Info("resumed pending documents", "count", len(docs))
	}
}
