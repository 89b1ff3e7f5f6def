// Package connection decides, once per process, whether the storefront talks
// to MongoDB or to the file-backed mock store.
package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/storefront/internal/cache"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain"
	"github.com/your-org/storefront/internal/repositories"
)

const defaultRetryDelay = 2 * time.Second

// RealStore is what a real database connection must provide.
type RealStore interface {
	domain.DocumentStore
	domain.BlobStore
	Ping(ctx context.Context) error
}

// MockStore is what the fallback store must provide.
type MockStore interface {
	domain.DocumentStore
	domain.ImageStore
}

// RealFactory opens a real database connection.
type RealFactory func(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (RealStore, error)

// MockFactory builds the fallback store. It must not fail.
type MockFactory func(cfg config.StorageConfig, logger *zap.Logger) MockStore

// Handle is the resolved store. Exactly one of Images and Blobs is set,
// matching Mode.
type Handle struct {
	Mode   domain.Mode
	Store  domain.DocumentStore
	Images domain.ImageStore
	Blobs  domain.BlobStore

	// Reason explains why the mock store was chosen. Empty in real mode.
	Reason string

	real RealStore
}

// SupportsImageStore reports whether StoreImage/GetImage are available.
func (h *Handle) SupportsImageStore() bool {
	return h.Images != nil
}

// Ping checks the real connection. The mock store is always reachable.
func (h *Handle) Ping(ctx context.Context) error {
	if h.real == nil {
		return nil
	}
	return h.real.Ping(ctx)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRealFactory replaces the MongoDB connector.
func WithRealFactory(f RealFactory) Option {
	return func(r *Resolver) {
		r.realFactory = f
	}
}

// WithMockFactory replaces the mock store constructor.
func WithMockFactory(f MockFactory) Option {
	return func(r *Resolver) {
		r.mockFactory = f
	}
}

// WithRetryDelay sets the pause between connection attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(r *Resolver) {
		r.retryDelay = d
	}
}

// Resolver lazily resolves the store on first use. Every caller, concurrent or
// not, receives the same Handle.
type Resolver struct {
	dbCfg      config.DatabaseConfig
	storageCfg config.StorageConfig
	logger     *zap.Logger

	realFactory RealFactory
	mockFactory MockFactory
	retryDelay  time.Duration

	once   sync.Once
	mu     sync.RWMutex
	handle *Handle
}

// NewResolver creates a resolver. Nothing is connected until Get is called.
func NewResolver(cfg *config.Config, logger *zap.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		dbCfg:       cfg.Database,
		storageCfg:  cfg.Storage,
		logger:      logger.Named("connection"),
		realFactory: DefaultRealFactory,
		mockFactory: DefaultMockFactory,
		retryDelay:  defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultRealFactory connects to MongoDB.
func DefaultRealFactory(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (RealStore, error) {
	store, err := repositories.NewMongoStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// DefaultMockFactory opens the snapshot-backed mock store.
func DefaultMockFactory(cfg config.StorageConfig, logger *zap.Logger) MockStore {
	images := cache.NewShardedCache(cfg.ImageCacheShards, cfg.ImageCacheTTL)
	return repositories.NewMockStore(cfg.SnapshotPath, logger.Named("mockdb"), repositories.WithImageCache(images))
}

// Get resolves the store on the first call and returns the cached Handle
// afterwards. It never fails: any connection problem yields the mock store.
func (r *Resolver) Get(ctx context.Context) *Handle {
	r.once.Do(func() {
		h := r.resolve(ctx)
		r.mu.Lock()
		r.handle = h
		r.mu.Unlock()
	})

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handle
}

// Resolved returns the handle without triggering resolution.
func (r *Resolver) Resolved() (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handle, r.handle != nil
}

// Close releases the resolved store, if any.
func (r *Resolver) Close(ctx context.Context) error {
	h, ok := r.Resolved()
	if !ok {
		return nil
	}
	if err := h.Store.Close(ctx); err != nil {
		return fmt.Errorf("close %s store: %w", h.Mode, err)
	}
	return nil
}

func (r *Resolver) resolve(ctx context.Context) *Handle {
	if r.dbCfg.URI == "" {
		return r.mock("no database URI configured")
	}

	attempts := r.dbCfg.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			r.logger.Info("retrying database connection",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", r.retryDelay),
			)
			select {
			case <-ctx.Done():
				return r.mock(fmt.Sprintf("connection cancelled: %v", ctx.Err()))
			case <-time.After(r.retryDelay):
			}
		}

		store, err := r.realFactory(ctx, r.dbCfg, r.logger)
		if err != nil {
			lastErr = err
			r.logger.Warn("database connection failed",
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			continue
		}

		connectAttempts.WithLabelValues("success").Inc()
		setModeGauge(domain.ModeReal)
		r.logger.Info("using real document store",
			zap.String("database", r.dbCfg.Name),
			zap.Int("attempts", attempt+1),
		)
		return &Handle{
			Mode:  domain.ModeReal,
			Store: store,
			Blobs: store,
			real:  store,
		}
	}

	connectAttempts.WithLabelValues("failure").Inc()
	return r.mock(fmt.Sprintf("database unreachable after %d attempts: %v", attempts, lastErr))
}

func (r *Resolver) mock(reason string) *Handle {
	store := r.mockFactory(r.storageCfg, r.logger)
	setModeGauge(domain.ModeMock)
	r.logger.Warn("using mock document store",
		zap.String("reason", reason),
		zap.String("snapshot", r.storageCfg.SnapshotPath),
	)
	return &Handle{
		Mode:   domain.ModeMock,
		Store:  store,
		Images: store,
		Reason: reason,
	}
}
