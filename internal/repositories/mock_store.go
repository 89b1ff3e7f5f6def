package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/storefront/internal/cache"
	"github.com/your-org/storefront/internal/domain"
)

// PersistHook observes snapshot write failures. The mutation that triggered
// the write has already been applied in memory when the hook runs.
type PersistHook func(path string, err error)

// MockOption configures a MockStore.
type MockOption func(*MockStore)

// WithPersistHook replaces the default failure hook (log + metric).
func WithPersistHook(hook PersistHook) MockOption {
	return func(s *MockStore) {
		s.onPersistError = hook
	}
}

// WithImageCache sets the buffer cache used by the image store.
func WithImageCache(c domain.Cache) MockOption {
	return func(s *MockStore) {
		s.images = c
	}
}

// WithSeedAdmin sets the administrator written into a fresh snapshot.
func WithSeedAdmin(admin SeedAdmin) MockOption {
	return func(s *MockStore) {
		s.seedAdmin = admin
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) MockOption {
	return func(s *MockStore) {
		s.now = now
	}
}

// MockStore is an in-process document store persisted to a single JSON file.
// Every find+mutate+persist sequence runs under mu, so concurrent callers
// observe mutations one at a time and the file always reflects the latest one.
type MockStore struct {
	path   string
	logger *zap.Logger

	mu          sync.RWMutex
	collections map[string][]domain.Document
	counter     int64
	closed      bool

	images         domain.Cache
	seedAdmin      SeedAdmin
	onPersistError PersistHook
	now            func() time.Time
}

// NewMockStore loads the snapshot at path, or seeds and writes a fresh one
// when the file does not exist. It never fails: an unreadable snapshot is
// moved aside and replaced by seed data.
func NewMockStore(path string, logger *zap.Logger, opts ...MockOption) *MockStore {
	s := &MockStore{
		path:        path,
		logger:      logger,
		collections: make(map[string][]domain.Document),
		seedAdmin:   SeedAdmin{Email: DefaultAdminEmail, Password: DefaultAdminPassword},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.images == nil {
		s.images = cache.NewShardedCache(0, 0)
	}
	if s.onPersistError == nil {
		s.onPersistError = s.logPersistError
	}

	s.mu.Lock()
	s.load()
	s.mu.Unlock()
	return s
}

// load must be called with mu held.
func (s *MockStore) load() {
	snap, err := readSnapshot(s.path)
	switch {
	case err == nil:
		s.collections = snap
		s.counter = maxIDSuffix(snap)
		s.logger.Info("mock store loaded from snapshot",
			zap.String("path", s.path),
			zap.Int("collections", len(snap)),
			zap.Int64("counter", s.counter),
		)
		s.updateGauges()
		return

	case errors.Is(err, errNoSnapshot):
		s.logger.Info("no snapshot found, seeding mock store", zap.String("path", s.path))

	default:
		s.logger.Error("snapshot unreadable, seeding mock store",
			zap.String("path", s.path),
			zap.Error(err),
		)
		if moved, qErr := quarantineSnapshot(s.path); qErr == nil {
			s.logger.Warn("unreadable snapshot moved aside", zap.String("moved_to", moved))
		}
	}

	seed, counter, err := seedData(s.seedAdmin, s.now())
	if err != nil {
		s.logger.Error("failed to build seed data", zap.Error(err))
		seed, counter = snapshot{}, 0
	}
	s.collections = seed
	s.counter = counter
	s.persist()
}

// Reload discards in-memory state and re-reads the snapshot, the same way a
// process restart would. The image buffer cache is left alone.
func (s *MockStore) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = make(map[string][]domain.Document)
	s.counter = 0
	s.load()
}

// Collection implements domain.DocumentStore. The collection itself is
// created lazily by the first operation that touches it.
func (s *MockStore) Collection(name string) domain.Collection {
	return &mockCollection{store: s, name: name}
}

// Mode implements domain.DocumentStore
func (s *MockStore) Mode() domain.Mode {
	return domain.ModeMock
}

// Close implements domain.DocumentStore
func (s *MockStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// CollectionNames lists collections currently held in memory.
func (s *MockStore) CollectionNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	return names
}

// docs returns the named collection, creating it on first access. mu must be held for writing.
func (s *MockStore) docs(name string) []domain.Document {
	docs, ok := s.collections[name]
	if !ok {
		docs = []domain.Document{}
		s.collections[name] = docs
	}
	return docs
}

// nextID mints "<prefix>_<n>". mu must be held for writing.
func (s *MockStore) nextID(prefix string) string {
	s.counter++
	return fmt.Sprintf("%s_%d", prefix, s.counter)
}

// persist writes every collection to disk. Failures are reported through the
// hook and otherwise swallowed. mu must be held.
func (s *MockStore) persist() {
	s.updateGauges()
	if err := writeSnapshot(s.path, snapshot(s.collections)); err != nil {
		snapshotFailures.Inc()
		s.onPersistError(s.path, err)
		return
	}
	snapshotWrites.Inc()
}

func (s *MockStore) logPersistError(path string, err error) {
	s.logger.Error("failed to persist mock store snapshot, changes kept in memory only",
		zap.String("path", path),
		zap.Error(err),
	)
}

func (s *MockStore) updateGauges() {
	for name, docs := range s.collections {
		mockDocuments.WithLabelValues(name).Set(float64(len(docs)))
	}
}

// idPrefix derives the id prefix from a collection name: "products" -> "product".
func idPrefix(collection string) string {
	prefix := strings.TrimSuffix(collection, "s")
	if prefix == "" {
		return "doc"
	}
	return prefix
}

var _ domain.DocumentStore = (*MockStore)(nil)
