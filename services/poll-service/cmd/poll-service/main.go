package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/chosei-dev/chosei/libs/auth"
	"github.com/chosei-dev/chosei/libs/config"
	"github.com/chosei-dev/chosei/libs/db"
	"github.com/chosei-dev/chosei/libs/httpx"
	"github.com/chosei-dev/chosei/libs/kafkax"
	otelx "github.com/chosei-dev/chosei/libs/otel"
	"github.com/chosei-dev/chosei/libs/runtime"
	"github.com/chosei-dev/chosei/services/poll-service/internal/availability"
	"github.com/chosei-dev/chosei/services/poll-service/internal/handlers"
	"github.com/chosei-dev/chosei/services/poll-service/internal/outbox"
	"github.com/chosei-dev/chosei/services/poll-service/internal/registration"
	"github.com/chosei-dev/chosei/services/poll-service/internal/session"
	"github.com/chosei-dev/chosei/services/poll-service/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "poll-service")
	logger := runtime.NewLogger(service)
	if err := run(service, logger); err != nil {
		logger.Error("poll-service exited", "err", err)
		panic(err)
	}
}

func run(service string, logger *slog.Logger) error {
	port, err := config.Port("PORT", "8080")
	if err != nil {
		return err
	}
	loc, err := config.Location("TIMEZONE", "UTC")
	if err != nil {
		return err
	}
	slotMinutes, err := config.Int("DEFAULT_SLOT_MINUTES", availability.DefaultIntervalMinutes, 1, 24*60)
	if err != nil {
		return err
	}
	limitPerMinute, err := config.Int("RATE_LIMIT_PER_MINUTE", 120, 1, 100000)
	if err != nil {
		return err
	}
	bodyLimit, err := config.Int("BODY_LIMIT_BYTES", 1<<20, 1024, 16<<20)
	if err != nil {
		return err
	}
	requestTimeout, err := config.Duration("REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		return err
	}
	cacheTTL, err := config.Duration("EVENT_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return err
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelCfg, err := otelx.ConfigFromEnv(service)
	if err != nil {
		return err
	}
	otelShutdown, err := otelx.Setup(ctx, otelCfg)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		return err
	}
	pool, err := db.Open(ctx, dbURL, db.Options{})
	if err != nil {
		return err
	}
	defer pool.Close()

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}

	outboxRepo := outbox.NewRepository()
	events := storage.NewEventRepository(pool)
	votes := storage.NewVoteRepository(pool, outboxRepo)
	patterns := storage.NewPatternRepository(pool, outboxRepo)

	var reader handlers.EventReader = events
	limiter := httpx.Limiter(httpx.NewMemoryLimiter(limitPerMinute, time.Minute))
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		redisDB, err := config.Int("REDIS_DB", 0, 0, 15)
		if err != nil {
			return err
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()

		reader = storage.NewEventCache(events, rdb, cacheTTL, logger)
		limiter = httpx.NewRedisLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "poll:rl"))
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		logger.Info("redis enabled", "addr", addr, "per_minute", limitPerMinute)
	}

	if brokers := kafkax.SplitBrokers(config.String("KAFKA_BROKERS", "")); len(brokers) > 0 {
		writer := kafkax.NewWriter(brokers)
		defer func() { _ = writer.Close() }()
		publisher := outbox.NewPublisher(pool, outboxRepo, writer, logger, outbox.PublisherConfig{
			PollEvery: 2 * time.Second,
			BatchSize: 50,
		})
		go publisher.Run(ctx)
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	} else {
		logger.Warn("KAFKA_BROKERS not set; outbox events stay unpublished")
	}

	var keys *auth.KeySet
	if jwksURL := config.String("JWKS_URL", ""); jwksURL != "" {
		keys = auth.NewKeySet(jwksURL, 10*time.Minute, &http.Client{Timeout: 5 * time.Second})
	}
	authn := session.NewAuthenticator(config.String("JWT_SECRET", ""), keys)

	pipeline := availability.Pipeline{
		DefaultIntervalMinutes: slotMinutes,
		Location:               loc,
	}
	registrar := registration.New(pipeline, patterns, logger)

	availabilityH := handlers.NewAvailabilityHandler(registrar, patterns, authn, loc, logger)
	eventH := handlers.NewEventHandler(events, reader, votes, patterns, authn, pipeline, logger)

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/v1/availability", availabilityH.Submit)
	mux.HandleFunc("/api/v1/availability/patterns", availabilityH.ListPatterns)
	mux.HandleFunc("/api/v1/events", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			eventH.Get(w, r)
			return
		}
		eventH.Create(w, r)
	})
	mux.HandleFunc("/api/v1/events/votes", eventH.Vote)
	mux.HandleFunc("/api/v1/events/suggestions", eventH.Suggestions)

	handler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods:   config.List("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS"),
			AllowedHeaders:   config.List("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id"),
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(bodyLimit)),
		httpx.WithTimeout(requestTimeout),
		httpx.RateLimit(limiter, logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true)),
	)
	handler = otelhttp.NewHandler(handler, "poll")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	if err := startGrpcServer(ctx, logger, checks); err != nil {
		logger.Error("grpc server failed to start", "err", err)
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
	return nil
}
