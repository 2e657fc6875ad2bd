package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/joiner/cache"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/joiner/consumer"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/joiner/handler"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/simjoin"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/storage/postgres"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/middleware"
	pg "github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting join service", "port", cfg.Server.Port, "workers", cfg.Join.Workers)

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer shutdownMetrics(context.Background())
	}

	db, err := pg.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	breaker := resilience.NewCircuitBreaker("postgres", resilience.CircuitBreakerConfig{
		OnStateChange: func(name string, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	store := postgres.NewStore(db, breaker, resilience.RetryConfig{})

	engineCfg := simjoin.EngineConfig{
		Workers: cfg.Join.Workers,
		Metrics: m,
		Sampler: tracing.NewSampler(cfg.Tracing),
	}
	var (
		joinCache   *cache.JoinCache
		redisClient *pkgredis.Client
	)
	redisClient, err = pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, join caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		joinCache = cache.New(redisClient, cfg.Redis)
		engineCfg.Cache = joinCache
		slog.Info("join cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}
	engine := simjoin.NewEngine(store, engineCfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := handler.Deps{Runner: engine, Pairs: store}
	if joinCache != nil {
		deps.Cache = joinCache
	}
	if len(cfg.Kafka.Brokers) > 0 {
		requests := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.JoinRequests)
		defer requests.Close()
		completions := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.JoinComplete)
		defer completions.Close()
		deps.Requests = requests

		jc := consumer.New(kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.JoinRequests,
			consumer.HandleMessage(engine, completions, cfg.Join)))
		go func() {
			if err := jc.Start(ctx); err != nil {
				slog.Error("join consumer error", "error", err)
			}
		}()
		slog.Info("async joins enabled",
			"requests_topic", cfg.Kafka.Topics.JoinRequests,
			"complete_topic", cfg.Kafka.Topics.JoinComplete,
		)
	} else {
		slog.Warn("no kafka brokers configured, async joins disabled")
	}

	checker := health.NewChecker()
	checker.Register("postgres", health.Ping(db.Ping, true))
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		return health.Ping(redisClient.Ping, false)(ctx)
	})
	checker.Register("postgres_breaker", func(ctx context.Context) health.ComponentHealth {
		if state := breaker.GetState(); state != resilience.StateClosed {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "circuit " + state.String()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := handler.New(deps, cfg.Join)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/joins", h.Join)
	mux.HandleFunc("POST /api/v1/joins/async", h.JoinAsync)
	mux.HandleFunc("POST /api/v1/evaluations", h.Evaluate)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Join.RequestTimeout)(chain)
	if cfg.Server.JoinsPerMinute > 0 {
		limiter := middleware.NewLimiter(cfg.Server.JoinsPerMinute, time.Minute)
		go limiter.Run(ctx)
		chain = middleware.RateLimit(limiter)(chain)
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("join service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("join service stopped")
}
