package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/medsage/medsage-server/internal/classifier"
	"github.com/medsage/medsage-server/internal/config"
	"github.com/medsage/medsage-server/internal/diagnosis"
	"github.com/medsage/medsage-server/internal/genai"
	"github.com/medsage/medsage-server/internal/health"
	"github.com/medsage/medsage-server/internal/httputil"
	"github.com/medsage/medsage-server/internal/patient"
	"github.com/medsage/medsage-server/internal/ratelimit"
	"github.com/medsage/medsage-server/internal/session"
	"github.com/medsage/medsage-server/internal/telemetry"
	"github.com/medsage/medsage-server/internal/upload"
	"github.com/medsage/medsage-server/internal/web"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	loader := config.NewLoader(*configDir, slog.Default())
	if err := loader.Load(); err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(loader.Config().Telemetry.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	cfg := loader.Config()

	// Connect to PostgreSQL
	dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		logger.Warn("database not reachable (diagnoses will not persist)", "error", err)
	} else {
		logger.Info("database connected")
	}

	// Connect to Redis
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable (rate limits and sessions are per-instance)", "error", err)
			rdb = nil
		} else {
			logger.Info("redis connected")
		}
	}

	metrics := telemetry.NewMetrics()

	saver, err := upload.NewSaver(cfg.Upload.Dir)
	if err != nil {
		logger.Error("failed to prepare upload directory", "error", err)
		os.Exit(1)
	}

	var sessionStore session.Store
	if rdb != nil {
		sessionStore = session.NewRedisStore(rdb)
	} else {
		sessionStore = session.NewMemoryStore()
	}
	sessions := session.NewManager(sessionStore, func() config.SessionConfig {
		return loader.Config().Session
	})

	var imageClassifier diagnosis.ImageClassifier
	if cfg.Classifier.Enabled {
		sidecar := classifier.NewSidecarModel(func() config.ClassifierConfig {
			return loader.Config().Classifier
		})
		imageClassifier = classifier.NewAdapter(sidecar)
	}

	generator := genai.NewClient(func() config.GenAIConfig {
		return loader.Config().GenAI
	})
	composer := diagnosis.NewComposer(generator)

	diagHandler := diagnosis.NewHandler(loader.Config, diagnosis.NewStore(dbPool), imageClassifier, composer, saver, sessions, metrics)
	patientHandler := patient.NewHandler(patient.NewStore(dbPool))
	webHandler := web.NewHandler(sessions)
	checker := health.NewChecker(dbPool, func() config.HealthConfig {
		return loader.Config().Health
	}, metrics)

	limiter := ratelimit.NewLimiter(rdb)
	diagnoseLimit := ratelimit.Middleware(limiter, ratelimit.Options{
		Operation: "diagnose",
		Limit: func() (int64, time.Duration) {
			rl := loader.Config().RateLimit
			return int64(rl.MaxRequests), rl.Window
		},
	}, metrics)

	// Router setup
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(observeRequests(metrics))

	r.Get("/", webHandler.Index)
	r.Get("/review", webHandler.Review)
	r.Get("/print", webHandler.Print)
	r.Get("/health", healthHandler(checker))

	r.Route("/api", func(r chi.Router) {
		r.With(diagnoseLimit).Post("/diagnose", diagHandler.Diagnose)
		r.Get("/diagnoses", diagHandler.ListDiagnoses)
		r.Get("/diagnoses/{id}", diagHandler.GetDiagnosis)
		r.Post("/diagnoses/{id}/complete", diagHandler.CompleteDiagnosis)
		r.Get("/stats", diagHandler.Stats)
		r.Post("/patients", patientHandler.CreatePatient)
		r.Get("/patients/{id}", patientHandler.GetPatient)
		r.Post("/logout", webHandler.Logout)
	})

	// Metrics are served on their own port, away from the public surface.
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	metricsSrv.Shutdown(ctx)
	logger.Info("server stopped")
}

func healthHandler(checker *health.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := checker.Status(r.Context())
		code := http.StatusOK
		if !status.Healthy {
			code = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, code, status)
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := context.WithValue(r.Context(), requestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func observeRequests(metrics *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			// The route pattern keeps the label set bounded: one value
			// per route, not one per path parameter.
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			metrics.RecordRequest(route, fmt.Sprintf("%d", ww.Status()), float64(time.Since(start).Milliseconds()))
		})
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

func generateRequestID() string {
	now := time.Now()
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("req_%d_%s", now.UnixMilli(), hex.EncodeToString(b))
}

func logLevel(s string) slog.Level {
	switch s {
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
