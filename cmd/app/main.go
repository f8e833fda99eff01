package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/config"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/ports/adapter"
	aiAdapters "github.com/nickunderhill/ai-interviewer-sub002/internal/infra/adapters/ai"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/infra/api"
	pg "github.com/nickunderhill/ai-interviewer-sub002/internal/infra/db/postgres"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/infra/db/postgres/migrations"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/infra/logging"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/infra/metrics"
	red "github.com/nickunderhill/ai-interviewer-sub002/internal/infra/redis"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/infra/sched"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/infra/security"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/infra/worker"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/usecase"
)

// set via -ldflags
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if err := runApp(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("exit")
	}
}

func runApp(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	if cfg.Database.Migrate {
		m, err := migrations.NewMigrator(cfg.Database.URL, logger)
		if err != nil {
			return fmt.Errorf("migrator: %w", err)
		}
		if err := m.Up(); err != nil {
			return err
		}
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	ops := pg.NewOperationRepoCacheDecorator(pg.NewOperationRepo(pool, tm), redisClient, cfg.Redis.TTL, logger)
	sessions := pg.NewInterviewRepo(pool, tm)

	// ---- Credentials ----
	encSvc, err := security.NewEncryptionService(cfg.Security.EncryptionKey)
	if err != nil {
		return fmt.Errorf("encryption: %w", err)
	}
	creds := security.NewCredentialProvider(pg.NewCredentialRepo(pool), encSvc, cfg.AI.DefaultProvider, map[string]string{
		"openai": cfg.AI.OpenAIModel,
		"gemini": cfg.AI.GeminiModel,
	})

	// ---- Provider gateways ----
	gateway := aiAdapters.NewLimitedGateway(
		aiAdapters.NewMultiGateway(cfg.AI.DefaultProvider, providerGateways(cfg, logger)...),
		cfg.AI.ConcurrentLimit, cfg.AI.RequestsPerSecond, cfg.AI.Burst,
	)
	logger.Info().Str("provider", cfg.AI.DefaultProvider).Msg("provider gateway ready")

	// ---- Use cases ----
	assembler := usecase.NewContextAssembler(sessions, usecase.NewTiktokenCounter("cl100k_base", logger), cfg.AI.PromptTokenBudget)
	executor := usecase.NewExecutor(ops, assembler, gateway, creds, usecase.NewInterviewSink(sessions), usecase.ExecutorConfig{
		MaxRetries:  cfg.Executor.MaxRetries,
		BaseBackoff: cfg.Executor.BaseBackoff,
		Jitter:      cfg.Executor.Jitter,
		RunCeiling:  cfg.Executor.RunCeiling,
	}, logger)

	workers := worker.NewPool(cfg.Executor.Workers, cfg.Executor.QueueSize, cfg.Executor.RunCeiling, logger)
	dispatcher := worker.NewDispatcher(workers, executor, ops, cfg.Executor.SweepInterval, logger)
	limiter := red.NewRateLimiter(redisClient, cfg.RateLimit.StartsPerWindow, cfg.RateLimit.Window)
	facade := usecase.NewOrchestrator(ops, sessions, dispatcher, limiter, logger)
	reaper := sched.NewStaleReaper(ops, cfg.Executor.SweepInterval*6, cfg.Executor.StaleAfter, logger)

	// ---- HTTP ----
	auth := api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	srv := api.NewServer(facade, auth, map[string]api.HealthCheck{
		"postgres": func(ctx context.Context) error {
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return err
			}
			defer conn.Release()
			return conn.Conn().Ping(ctx)
		},
		"redis": redisClient.Ping,
	}, cfg.HTTP.RequestTimeout, logger)
	apiServer := &http.Server{Addr: cfg.HTTP.Addr, Handler: srv.Handler(), ReadHeaderTimeout: 5 * time.Second}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.Metrics.Addr, Handler: metricsMux, ReadHeaderTimeout: 5 * time.Second}

	// ---- Run group ----
	var g run.Group
	g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))
	{
		wctx, wcancel := context.WithCancel(ctx)
		g.Add(func() error { return workers.Run(wctx) }, func(error) { wcancel() })
	}
	{
		dctx, dcancel := context.WithCancel(ctx)
		g.Add(func() error { return dispatcher.Run(dctx) }, func(error) { dcancel() })
	}
	{
		rctx, rcancel := context.WithCancel(ctx)
		g.Add(func() error { return reaper.Run(rctx) }, func(error) { rcancel() })
	}
	{
		sctx, scancel := context.WithCancel(ctx)
		g.Add(func() error {
			pg.ReportPoolStats(sctx, pool, 15*time.Second)
			return nil
		}, func(error) { scancel() })
	}
	g.Add(serve(apiServer, "api", logger), shutdown(apiServer))
	g.Add(serve(metricsServer, "metrics", logger), shutdown(metricsServer))

	logger.Info().Str("version", version).Str("addr", cfg.HTTP.Addr).Msg("starting")
	err = g.Run()
	var sig run.SignalError
	if errors.As(err, &sig) {
		logger.Info().Str("signal", sig.Signal.String()).Msg("shutdown requested")
		return nil
	}
	return err
}

// providerGateways lists the routable providers. The canned noop provider is dev-only.
func providerGateways(cfg *config.Config, logger *zerolog.Logger) []adapter.ProviderGateway {
	gws := []adapter.ProviderGateway{
		aiAdapters.NewOpenAIGateway(cfg.AI.OpenAIBaseURL, cfg.AI.OpenAIModel, cfg.AI.CallTimeout),
		aiAdapters.NewGeminiGateway(cfg.AI.GeminiBaseURL, cfg.AI.GeminiModel, cfg.AI.CallTimeout),
	}
	if cfg.Runtime.Dev {
		gws = append(gws, aiAdapters.NewNoopGateway(logger))
	}
	return gws
}

func serve(s *http.Server, name string, logger *zerolog.Logger) func() error {
	return func() error {
		logger.Info().Str("server", name).Str("addr", s.Addr).Msg("listening")
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s server: %w", name, err)
		}
		return nil
	}
}

func shutdown(s *http.Server) func(error) {
	return func(error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	}
}
