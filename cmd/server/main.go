package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/your-org/storefront/internal/cache"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/connection"
	"github.com/your-org/storefront/internal/handlers"
	"github.com/your-org/storefront/internal/imaging"
	"github.com/your-org/storefront/internal/middleware"
	"github.com/your-org/storefront/internal/repositories"
	"github.com/your-org/storefront/internal/usecases"
	"github.com/your-org/storefront/pkg/logger"
)

const (
	// Startup resolution gets this long before requests start arriving.
	resolveTimeout = 30 * time.Second

	healthInterval     = 30 * time.Second
	pingTimeout        = 5 * time.Second
	shutdownTimeout    = 30 * time.Second
	goroutineThreshold = 10000
)

// App holds every long-lived dependency of the server.
type App struct {
	config     *config.Config
	logger     *zap.Logger
	resolver   *connection.Resolver
	imageCache *cache.ShardedCache
	documents  *usecases.DocumentUsecase
	images     *usecases.ImageUsecase
	server     *http.Server

	initOnce sync.Once
	initErr  error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	shutdownOnce sync.Once
}

// NewApp creates an uninitialized application.
func NewApp() *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		ctx:    ctx,
		cancel: cancel,
	}
}

// Initialize wires all components. It runs once; later calls return the first result.
func (a *App) Initialize() error {
	a.initOnce.Do(func() {
		a.initErr = a.doInitialize()
	})
	return a.initErr
}

func (a *App) doInitialize() error {
	configPath := os.Getenv("APP_CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// A missing file is fine: defaults and environment variables still apply.
	fileErr := config.Load(configPath)
	if fileErr != nil {
		if err := config.Load(""); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	a.config = config.Get()

	if err := logger.Init(a.config.Log.Level, a.config.Log.Development); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.logger = logger.Get()
	if fileErr != nil {
		a.logger.Warn("config file not loaded, using defaults and environment",
			zap.String("path", configPath),
			zap.Error(fileErr),
		)
	}
	a.logger.Info("configuration loaded",
		zap.String("server_host", a.config.Server.Host),
		zap.Int("server_port", a.config.Server.Port),
		zap.Bool("database_configured", a.config.Database.URI != ""),
	)

	return a.wire()
}

// wire builds the store resolver, usecases and HTTP server from a.config and a.logger.
func (a *App) wire() error {
	// 1. Image buffer for the mock store. With the default TTL of 0 nothing
	// expires and the cleanup worker does not start.
	a.imageCache = cache.NewShardedCache(a.config.Storage.ImageCacheShards, a.config.Storage.ImageCacheTTL)
	a.imageCache.StartCleanupWorker()

	// 2. Store resolver. Nothing connects here; the first Get picks MongoDB or
	// the mock store, and every later Get returns that same handle.
	a.resolver = connection.NewResolver(a.config, a.logger,
		connection.WithMockFactory(func(cfg config.StorageConfig, log *zap.Logger) connection.MockStore {
			return repositories.NewMockStore(cfg.SnapshotPath, log.Named("mockdb"),
				repositories.WithImageCache(a.imageCache),
			)
		}),
	)

	// 3. Usecases ask the resolver for the store on every call.
	a.documents = usecases.NewDocumentUsecase(a.resolver, logger.Named("documents"), a.config.Concurrency.DBMaxConcurrentOp)
	a.images = usecases.NewImageUsecase(a.resolver, imaging.NewChain(logger.Named("imaging")), logger.Named("images"))

	// 4. HTTP server. WriteTimeout stays above the request timeout so the
	// timeout middleware answers first.
	addr := fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port)
	a.server = &http.Server{
		Addr:         addr,
		Handler:      a.router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: a.config.Server.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return nil
}

// resolveStore picks the store before the listener opens so the first
// request does not pay for connection retries.
func (a *App) resolveStore() {
	ctx, cancel := context.WithTimeout(a.ctx, resolveTimeout)
	defer cancel()

	h := a.resolver.Get(ctx)
	fields := []zap.Field{zap.Stringer("mode", h.Mode)}
	if h.Reason != "" {
		fields = append(fields, zap.String("reason", h.Reason))
	}
	a.logger.Info("document store ready", fields...)
}

func (a *App) router() http.Handler {
	r := chi.NewRouter()

	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(goroutineThreshold))
	health.AddReadinessCheck("document-store", a.storeReady)

	// Probes and metrics stay outside the middleware chain.
	r.Get("/health", a.healthCheckHandler)
	r.Get("/live", health.LiveEndpoint)
	r.Get("/ready", health.ReadyEndpoint)
	r.Handle("/metrics", promhttp.Handler())

	docs := handlers.NewCollectionHandler(a.documents, logger.Named("http.collections"))
	images := handlers.NewImageHandler(a.images, logger.Named("http.images"), a.config.Server.MaxUploadBytes)
	limiter := middleware.NewRateLimiter(a.config.Concurrency.HTTPMaxRequests, time.Minute)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequestIDMiddleware)
		r.Use(middleware.LoggingMiddleware(a.logger))
		r.Use(middleware.RecoveryMiddleware(a.logger))
		r.Use(middleware.TimeoutMiddleware(a.config.Server.RequestTimeout))
		r.Use(middleware.RateLimitMiddleware(limiter, a.logger))

		r.Route("/collections", docs.Routes)
		r.Route("/images", images.Routes)
	})

	return r
}

func (a *App) storeReady() error {
	h, ok := a.resolver.Resolved()
	if !ok {
		return errors.New("document store not resolved yet")
	}
	ctx, cancel := context.WithTimeout(a.ctx, pingTimeout)
	defer cancel()
	return h.Ping(ctx)
}

// healthCheckHandler reports the store mode and whether the store answers.
func (a *App) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	h := a.resolver.Get(ctx)
	health := map[string]interface{}{
		"status":    "ok",
		"mode":      h.Mode.String(),
		"timestamp": time.Now().Unix(),
	}
	if h.Reason != "" {
		health["reason"] = h.Reason
	}

	status := http.StatusOK
	if err := h.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		health["status"] = "unhealthy"
		health["error"] = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(health); err != nil {
		a.logger.Debug("failed to write health response", zap.Error(err))
	}
}

// StartBackgroundJobs starts the periodic store check.
func (a *App) StartBackgroundJobs() {
	a.wg.Add(1)
	go a.periodicHealthCheck()
}

func (a *App) periodicHealthCheck() {
	defer a.wg.Done()

	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			a.logger.Info("background health check stopped")
			return
		case <-ticker.C:
			if err := a.storeReady(); err != nil {
				a.logger.Warn("background health check failed", zap.Error(err))
			} else {
				a.logger.Debug("background health check ok")
			}
		}
	}
}

// Start initializes the app, resolves the store and serves HTTP in a goroutine.
func (a *App) Start() error {
	if err := a.Initialize(); err != nil {
		return err
	}

	a.resolveStore()
	a.StartBackgroundJobs()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("starting HTTP server", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	return nil
}

// Shutdown drains HTTP traffic, stops workers and closes the store.
func (a *App) Shutdown() error {
	var shutdownErr error

	a.shutdownOnce.Do(func() {
		a.logger.Info("shutting down")

		// 1. Stop the periodic health check and anything else watching a.ctx.
		a.cancel()

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// 2. Stop accepting requests and let in-flight ones finish. The store
		// must still be open here.
		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				a.logger.Error("failed to stop HTTP server", zap.Error(err))
				shutdownErr = err
			}
		}

		// 3. Cache sweeper.
		if a.imageCache != nil {
			a.imageCache.StopCleanupWorker()
		}

		// 4. Store. The mock store has already persisted every mutation, so
		// closing it writes nothing; MongoDB disconnects its pool.
		if a.resolver != nil {
			if err := a.resolver.Close(ctx); err != nil {
				a.logger.Error("failed to close document store", zap.Error(err))
				if shutdownErr == nil {
					shutdownErr = err
				}
			}
		}

		// 5. Wait for the server goroutine and background jobs.
		done := make(chan struct{})
		go func() {
			a.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			a.logger.Info("background workers stopped")
		case <-ctx.Done():
			a.logger.Warn("timed out waiting for background workers")
		}

		a.logger.Info("shutdown complete")
		_ = logger.Sync()
	})

	return shutdownErr
}

func main() {
	app := NewApp()

	if err := app.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := app.Shutdown(); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown failed: %v\n", err)
		os.Exit(1)
	}
}
