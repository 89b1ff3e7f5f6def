package usecases

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/your-org/storefront/internal/connection"
	"github.com/your-org/storefront/internal/domain"
	"github.com/your-org/storefront/internal/imaging"
	"github.com/your-org/storefront/internal/repositories"
)

// MockDocumentStore is a mock implementation of DocumentStore
type MockDocumentStore struct {
	mock.Mock
}

var _ domain.DocumentStore = (*MockDocumentStore)(nil)

func (m *MockDocumentStore) Collection(name string) domain.Collection {
	args := m.Called(name)
	return args.Get(0).(domain.Collection)
}

func (m *MockDocumentStore) Mode() domain.Mode {
	args := m.Called()
	return args.Get(0).(domain.Mode)
}

func (m *MockDocumentStore) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockCollection is a mock implementation of Collection
type MockCollection struct {
	mock.Mock
}

var _ domain.Collection = (*MockCollection)(nil)

func (m *MockCollection) Find(ctx context.Context, filter domain.Document) domain.Cursor {
	args := m.Called(ctx, filter)
	return args.Get(0).(domain.Cursor)
}

func (m *MockCollection) FindOne(ctx context.Context, filter domain.Document) (domain.Document, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.Document), args.Error(1)
}

func (m *MockCollection) InsertOne(ctx context.Context, doc domain.Document) (*domain.InsertOneResult, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.InsertOneResult), args.Error(1)
}

func (m *MockCollection) InsertMany(ctx context.Context, docs []domain.Document) (*domain.InsertManyResult, error) {
	args := m.Called(ctx, docs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.InsertManyResult), args.Error(1)
}

func (m *MockCollection) UpdateOne(ctx context.Context, filter domain.Document, update domain.Update) (*domain.UpdateResult, error) {
	args := m.Called(ctx, filter, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UpdateResult), args.Error(1)
}

func (m *MockCollection) DeleteOne(ctx context.Context, filter domain.Document) (*domain.DeleteResult, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeleteResult), args.Error(1)
}

func (m *MockCollection) DeleteMany(ctx context.Context, filter domain.Document) (*domain.DeleteResult, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeleteResult), args.Error(1)
}

// MockCursor is a mock implementation of Cursor
type MockCursor struct {
	mock.Mock
}

var _ domain.Cursor = (*MockCursor)(nil)

func (m *MockCursor) Sort(fields ...domain.SortField) domain.Cursor {
	args := m.Called(fields)
	return args.Get(0).(domain.Cursor)
}

func (m *MockCursor) Limit(n int64) domain.Cursor {
	args := m.Called(n)
	return args.Get(0).(domain.Cursor)
}

func (m *MockCursor) All(ctx context.Context) ([]domain.Document, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Document), args.Error(1)
}

// MockImageStore is a mock implementation of ImageStore
type MockImageStore struct {
	mock.Mock
}

var _ domain.ImageStore = (*MockImageStore)(nil)

func (m *MockImageStore) StoreImage(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	args := m.Called(ctx, data, filename, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockImageStore) GetImage(ctx context.Context, id string) (*domain.ImageRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ImageRecord), args.Error(1)
}

// MockBlobStore is a mock implementation of BlobStore
type MockBlobStore struct {
	mock.Mock
}

var _ domain.BlobStore = (*MockBlobStore)(nil)

func (m *MockBlobStore) OpenBlob(ctx context.Context, id string) (*domain.Blob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Blob), args.Error(1)
}

func (m *MockBlobStore) UploadBlob(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	args := m.Called(ctx, data, filename, contentType)
	return args.String(0), args.Error(1)
}

// staticProvider always returns the same handle
type staticProvider struct {
	handle *connection.Handle
}

func (p staticProvider) Get(ctx context.Context) *connection.Handle { return p.handle }

func newDocumentUsecase(t *testing.T, coll *MockCollection, name string) (*DocumentUsecase, *MockDocumentStore) {
	t.Helper()
	store := new(MockDocumentStore)
	store.On("Collection", name).Return(coll).Maybe()
	u := NewDocumentUsecase(staticProvider{&connection.Handle{Mode: domain.ModeMock, Store: store}}, zaptest.NewLogger(t), 4)
	u.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	return u, store
}

const hexID = "65a1f0c2e4b0a1b2c3d4e5f6"

func TestDocumentUsecaseGetTriesNativeIDFirst(t *testing.T) {
	coll := new(MockCollection)
	u, _ := newDocumentUsecase(t, coll, "orders")
	oid, _ := domain.ParseNativeID(hexID)
	want := domain.Document{domain.IDField: hexID, "status": "paid"}

	coll.On("FindOne", mock.Anything, domain.Document{domain.IDField: oid}).Return(nil, domain.ErrNotFound).Once()
	coll.On("FindOne", mock.Anything, domain.Document{domain.IDField: hexID}).Return(want, nil).Once()

	got, err := u.Get(context.Background(), "orders", hexID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	coll.AssertExpectations(t)
}

func TestDocumentUsecaseGetStringID(t *testing.T) {
	coll := new(MockCollection)
	u, _ := newDocumentUsecase(t, coll, "products")

	coll.On("FindOne", mock.Anything, domain.Document{domain.IDField: "product_9"}).Return(nil, domain.ErrNotFound).Once()

	_, err := u.Get(context.Background(), "products", "product_9")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	coll.AssertNumberOfCalls(t, "FindOne", 1)
}

func TestDocumentUsecaseGetStoreError(t *testing.T) {
	coll := new(MockCollection)
	u, _ := newDocumentUsecase(t, coll, "orders")
	boom := errors.New("socket closed")

	coll.On("FindOne", mock.Anything, mock.Anything).Return(nil, boom).Once()

	_, err := u.Get(context.Background(), "orders", hexID)
	assert.ErrorIs(t, err, boom)
	coll.AssertNumberOfCalls(t, "FindOne", 1)
}

func TestDocumentUsecaseListAppliesSortAndLimit(t *testing.T) {
	coll := new(MockCollection)
	cursor := new(MockCursor)
	u, _ := newDocumentUsecase(t, coll, "products")

	filter := domain.Document{"category": "apparel"}
	sort := domain.SortBy("priceEGP", domain.Descending)
	docs := []domain.Document{{domain.IDField: "product_2"}}

	coll.On("Find", mock.Anything, filter).Return(cursor).Once()
	cursor.On("Sort", sort).Return(cursor).Once()
	cursor.On("Limit", int64(3)).Return(cursor).Once()
	cursor.On("All", mock.Anything).Return(docs, nil).Once()

	got, err := u.List(context.Background(), "products", ListQuery{Filter: filter, Sort: sort, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, docs, got)
	cursor.AssertExpectations(t)
}

func TestDocumentUsecaseListWithoutOptions(t *testing.T) {
	coll := new(MockCollection)
	cursor := new(MockCursor)
	u, _ := newDocumentUsecase(t, coll, "products")

	coll.On("Find", mock.Anything, domain.Document(nil)).Return(cursor).Once()
	cursor.On("All", mock.Anything).Return([]domain.Document{}, nil).Once()

	got, err := u.List(context.Background(), "products", ListQuery{})
	require.NoError(t, err)
	assert.Empty(t, got)
	cursor.AssertNotCalled(t, "Sort", mock.Anything)
	cursor.AssertNotCalled(t, "Limit", mock.Anything)
}

func TestDocumentUsecaseCreateStampsCreatedAt(t *testing.T) {
	coll := new(MockCollection)
	u, _ := newDocumentUsecase(t, coll, "orders")
	input := domain.Document{"status": "pending"}

	coll.On("InsertOne", mock.Anything, mock.MatchedBy(func(d domain.Document) bool {
		return d["status"] == "pending" && d["createdAt"] == "2024-05-01T10:00:00Z"
	})).Return(&domain.InsertOneResult{InsertedID: "order_7"}, nil).Once()

	id, err := u.Create(context.Background(), "orders", input)
	require.NoError(t, err)
	assert.Equal(t, "order_7", id)
	assert.NotContains(t, input, "createdAt", "caller's document is not modified")
	coll.AssertExpectations(t)
}

func TestDocumentUsecaseCreateMany(t *testing.T) {
	coll := new(MockCollection)
	u, _ := newDocumentUsecase(t, coll, "users")

	coll.On("InsertMany", mock.Anything, mock.MatchedBy(func(docs []domain.Document) bool {
		return len(docs) == 2 && docs[0]["createdAt"] != nil && docs[1]["createdAt"] == "keep"
	})).Return(&domain.InsertManyResult{InsertedIDs: []any{"user_1", "user_2"}}, nil).Once()

	ids, err := u.CreateMany(context.Background(), "users", []domain.Document{
		{"email": "a@example.com"},
		{"email": "b@example.com", "createdAt": "keep"},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"user_1", "user_2"}, ids)
}

func TestDocumentUsecaseUpdate(t *testing.T) {
	coll := new(MockCollection)
	u, _ := newDocumentUsecase(t, coll, "orders")

	coll.On("UpdateOne", mock.Anything, domain.Document{domain.IDField: "order_7"}, mock.MatchedBy(func(up domain.Update) bool {
		return up.Set["status"] == "shipped" && up.Set["updatedAt"] == "2024-05-01T10:00:00Z"
	})).Return(&domain.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil).Once()

	res, err := u.Update(context.Background(), "orders", "order_7", domain.Document{"status": "shipped"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.MatchedCount)
}

func TestDocumentUsecaseUpdateNotFound(t *testing.T) {
	coll := new(MockCollection)
	u, _ := newDocumentUsecase(t, coll, "orders")

	coll.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&domain.UpdateResult{}, nil)

	_, err := u.Update(context.Background(), "orders", hexID, domain.Document{"status": "shipped"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	coll.AssertNumberOfCalls(t, "UpdateOne", 2)
}

func TestDocumentUsecaseDelete(t *testing.T) {
	coll := new(MockCollection)
	u, _ := newDocumentUsecase(t, coll, "orders")
	oid, _ := domain.ParseNativeID(hexID)

	coll.On("DeleteOne", mock.Anything, domain.Document{domain.IDField: oid}).Return(&domain.DeleteResult{DeletedCount: 1}, nil).Once()

	require.NoError(t, u.Delete(context.Background(), "orders", hexID))
	coll.AssertNumberOfCalls(t, "DeleteOne", 1)

	coll.On("DeleteOne", mock.Anything, domain.Document{domain.IDField: "order_404"}).Return(&domain.DeleteResult{}, nil).Once()
	assert.ErrorIs(t, u.Delete(context.Background(), "orders", "order_404"), domain.ErrNotFound)
}

func TestDocumentUsecaseDeleteMatching(t *testing.T) {
	coll := new(MockCollection)
	u, _ := newDocumentUsecase(t, coll, "orders")

	coll.On("DeleteMany", mock.Anything, domain.Document{"status": "cancelled"}).Return(&domain.DeleteResult{DeletedCount: 4}, nil).Once()

	n, err := u.DeleteMatching(context.Background(), "orders", domain.Document{"status": "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestDocumentUsecaseRejectsInvalidCollection(t *testing.T) {
	coll := new(MockCollection)
	u, store := newDocumentUsecase(t, coll, "orders")

	for _, name := range []string{"", "orders$", "system.users"} {
		_, err := u.Get(context.Background(), name, "x")
		assert.ErrorIs(t, err, ErrInvalidCollection, name)
	}
	store.AssertNotCalled(t, "Collection", mock.Anything)
}

func TestDocumentUsecaseRateLimited(t *testing.T) {
	coll := new(MockCollection)
	store := new(MockDocumentStore)
	u := NewDocumentUsecase(staticProvider{&connection.Handle{Store: store}}, zaptest.NewLogger(t), 1)

	require.NoError(t, u.rateLimiter.Acquire(context.Background()))
	defer u.rateLimiter.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := u.List(ctx, "orders", ListQuery{})
	assert.ErrorIs(t, err, ErrRateLimited)
	coll.AssertNotCalled(t, "Find", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "Collection", mock.Anything)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2)
	ctx := context.Background()

	require.NoError(t, rl.Acquire(ctx))
	require.NoError(t, rl.Acquire(ctx))
	assert.Equal(t, 2, rl.InFlight())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, rl.Acquire(cancelled), context.Canceled)

	rl.Release()
	rl.Release()
	rl.Release()
	assert.Equal(t, 0, rl.InFlight())

	assert.Equal(t, 10, NewRateLimiter(0).maxConcurrent)
}

func TestImageUsecaseUploadMockMode(t *testing.T) {
	images := new(MockImageStore)
	u := NewImageUsecase(staticProvider{&connection.Handle{Mode: domain.ModeMock, Images: images}}, imaging.NewChain(zaptest.NewLogger(t)), zaptest.NewLogger(t))

	images.On("StoreImage", mock.Anything, []byte("png"), "a.png", "image/png").Return("img_7", nil).Once()

	res, err := u.Upload(context.Background(), []byte("png"), "a.png", "image/png")
	require.NoError(t, err)
	assert.Equal(t, "img_7", res.ID)
	assert.Equal(t, "/api/images/img_7", res.URL)
	assert.Equal(t, domain.ModeMock, res.Mode)
	images.AssertExpectations(t)
}

func TestImageUsecaseUploadRealMode(t *testing.T) {
	blobs := new(MockBlobStore)
	u := NewImageUsecase(staticProvider{&connection.Handle{Mode: domain.ModeReal, Blobs: blobs}}, imaging.NewChain(zaptest.NewLogger(t)), zaptest.NewLogger(t))

	blobs.On("UploadBlob", mock.Anything, []byte("jpg"), "b.jpg", "image/jpeg").Return(hexID, nil).Once()

	res, err := u.Upload(context.Background(), []byte("jpg"), "b.jpg", "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, hexID, res.ID)
	assert.Equal(t, domain.ModeReal, res.Mode)
	blobs.AssertExpectations(t)
}

func TestImageUsecaseUploadValidation(t *testing.T) {
	images := new(MockImageStore)
	u := NewImageUsecase(staticProvider{&connection.Handle{Mode: domain.ModeMock, Images: images}}, imaging.NewChain(zaptest.NewLogger(t)), zaptest.NewLogger(t))
	ctx := context.Background()

	_, err := u.Upload(ctx, nil, "a.png", "image/png")
	assert.ErrorIs(t, err, ErrEmptyUpload)

	_, err = u.Upload(ctx, []byte("%PDF"), "a.pdf", "application/pdf")
	assert.ErrorIs(t, err, ErrUnsupportedMedia)

	_, err = NewImageUsecase(staticProvider{&connection.Handle{}}, nil, zaptest.NewLogger(t)).
		Upload(ctx, []byte("png"), "a.png", "image/png")
	assert.ErrorIs(t, err, ErrNoImageBackend)

	images.AssertNotCalled(t, "StoreImage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestImageUsecaseResolveAgainstMockStore(t *testing.T) {
	store := repositories.NewMockStore(filepath.Join(t.TempDir(), "mock-db.json"), zaptest.NewLogger(t))
	h := &connection.Handle{Mode: domain.ModeMock, Store: store, Images: store}
	u := NewImageUsecase(staticProvider{h}, imaging.NewChain(zaptest.NewLogger(t)), zaptest.NewLogger(t))
	ctx := context.Background()

	up, err := u.Upload(ctx, []byte("GIF89a"), "dot.gif", "image/gif")
	require.NoError(t, err)

	res := u.Resolve(ctx, up.ID)
	assert.Equal(t, imaging.SourceImageStore, res.Source)
	assert.Equal(t, []byte("GIF89a"), res.Data)

	store.ForgetCachedImages()
	res = u.Resolve(ctx, up.ID)
	assert.Equal(t, imaging.SourceImageStore, res.Source, "rehydrated from the mirror")
	assert.Equal(t, []byte("GIF89a"), res.Data)

	assert.Equal(t, imaging.SourcePlaceholder, u.Resolve(ctx, "placeholder_3").Source)
	assert.Equal(t, imaging.SourceUnavailable, u.Resolve(ctx, "img_404").Source)
}
