package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/writing-eval/internal/async"
	"github.com/joseph-ayodele/writing-eval/internal/common"
	"github.com/joseph-ayodele/writing-eval/internal/evaluation"
	"github.com/joseph-ayodele/writing-eval/internal/llm/providers"
	"github.com/joseph-ayodele/writing-eval/internal/notify"
	"github.com/joseph-ayodele/writing-eval/internal/pipeline"
	repo "github.com/joseph-ayodele/writing-eval/internal/repository"
)

const healthService = "writingeval.Evaluator"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel()}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	addr := cfg.Server.GRPCAddr
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	drv, pool, err := repo.Open(ctx, repo.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer repo.Close(drv, pool, logger)

	if err := repo.HealthCheck(ctx, drv, 5*time.Second, logger); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	if err := repo.Migrate(ctx, drv, logger); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	adapters, err := providers.Build(cfg.Providers.Ordered(), logger)
	if err != nil {
		logger.Error("failed to configure providers", "error", err)
		os.Exit(2)
	}
	validator, err := evaluation.NewValidator(logger, evaluation.WithLenientNormalize(cfg.Evaluation.LenientNormalize))
	if err != nil {
		logger.Error("failed to compile evaluation schema", "error", err)
		os.Exit(1)
	}
	orchestrator, err := pipeline.NewOrchestrator(logger, validator, adapters...)
	if err != nil {
		logger.Error("failed to build orchestrator", "error", err)
		os.Exit(1)
	}

	answers := repo.NewAnswerRepository(drv, logger)
	runner := pipeline.NewRunner(logger,
		repo.NewJobRepository(drv, logger),
		repo.NewAttemptRepository(drv, logger),
		repo.NewEvaluationRepository(drv, logger),
		pipeline.NewAssembler(logger, answers),
		orchestrator,
	)

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Redis.Addr != "" {
		notifier = notify.NewRedis(ctx, notify.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		}, logger)
	}
	defer func() { _ = notifier.Close() }()

	wakeups, err := notifier.Subscribe(ctx)
	if err != nil {
		logger.Warn("wake-up subscription failed, polling only", "error", err)
		wakeups = nil
	}

	scheduler := async.NewScheduler(runner, logger,
		async.WithWorkers(cfg.Worker.Workers),
		async.WithPollInterval(cfg.Worker.PollInterval),
		async.WithRunTimeout(cfg.Worker.RunTimeout),
		async.WithWakeups(wakeups),
	)
	scheduler.Start()

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", addr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(healthService, grpc_health_v1.HealthCheckResponse_SERVING)
	go watchDatabase(ctx, healthServer, func(ctx context.Context) error {
		return repo.HealthCheck(ctx, drv, 2*time.Second, logger)
	}, logger)

	logger.Info("writing-eval daemon listening", "addr", addr, "workers", cfg.Worker.Workers)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.RunTimeout+5*time.Second)
	defer cancel()
	scheduler.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
}

// watchDatabase flips the evaluator health status while the database is unreachable.
func watchDatabase(ctx context.Context, hs *health.Server, ping func(context.Context) error, logger *slog.Logger) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	serving := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		err := ping(ctx)
		switch {
		case err != nil && serving:
			logger.Warn("database unreachable, reporting NOT_SERVING", "error", err)
			hs.SetServingStatus(healthService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
			serving = false
		case err == nil && !serving:
			logger.Info("database reachable again, reporting SERVING")
			hs.SetServingStatus(healthService, grpc_health_v1.HealthCheckResponse_SERVING)
			serving = true
		}
	}
}

func logLevel() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
