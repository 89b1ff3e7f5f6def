package imaging

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/your-org/storefront/internal/domain"
	"github.com/your-org/storefront/internal/repositories"
)

type fakeBlobs struct {
	blobs map[string]*domain.Blob
	err   error
	calls int
}

func (f *fakeBlobs) OpenBlob(ctx context.Context, id string) (*domain.Blob, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if b, ok := f.blobs[id]; ok {
		return b, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeBlobs) UploadBlob(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	return "", errors.New("read only")
}

func newMockStore(t *testing.T) *repositories.MockStore {
	t.Helper()
	return repositories.NewMockStore(filepath.Join(t.TempDir(), "mock-db.json"), zaptest.NewLogger(t))
}

const nativeID = "65a1f0c2e4b0a1b2c3d4e5f6"

func TestResolvePlaceholderIsDeterministic(t *testing.T) {
	chain := NewChain(zaptest.NewLogger(t))
	blobs := &fakeBlobs{}
	ctx := context.Background()

	first := chain.Resolve(ctx, Sources{Blobs: blobs}, "placeholder_7")
	second := chain.Resolve(ctx, Sources{Blobs: blobs}, "placeholder_7")

	assert.Equal(t, SourcePlaceholder, first.Source)
	assert.Equal(t, "image/svg+xml", first.ContentType)
	assert.Equal(t, first.Data, second.Data)
	assert.Contains(t, string(first.Data), "Product 7")
	assert.Contains(t, string(first.Data), palette[7%len(palette)].background)
	assert.Zero(t, blobs.calls, "placeholders never touch a store")

	other := chain.Resolve(ctx, Sources{}, "placeholder_2")
	assert.NotEqual(t, first.Data, other.Data)
}

func TestPlaceholderIndex(t *testing.T) {
	tests := []struct {
		id   string
		n    int
		want bool
	}{
		{"placeholder_0", 0, true},
		{"placeholder_12", 12, true},
		{"placeholder_", 0, false},
		{"placeholder_x", 0, false},
		{"placeholder_-1", 0, false},
		{"img_3", 0, false},
	}
	for _, tt := range tests {
		n, ok := placeholderIndex(tt.id)
		assert.Equal(t, tt.want, ok, tt.id)
		assert.Equal(t, tt.n, n, tt.id)
	}
}

func TestResolveFromBlobStore(t *testing.T) {
	chain := NewChain(zaptest.NewLogger(t))
	blobs := &fakeBlobs{blobs: map[string]*domain.Blob{
		nativeID: {ID: nativeID, ContentType: "image/webp", Data: []byte("RIFFxxxxWEBP")},
	}}

	res := chain.Resolve(context.Background(), Sources{Blobs: blobs}, nativeID)
	assert.Equal(t, SourceBlobStore, res.Source)
	assert.Equal(t, "image/webp", res.ContentType)
	assert.Equal(t, []byte("RIFFxxxxWEBP"), res.Data)
}

func TestResolveSkipsBlobStoreForStringIDs(t *testing.T) {
	chain := NewChain(zaptest.NewLogger(t))
	store := newMockStore(t)
	blobs := &fakeBlobs{}
	ctx := context.Background()

	id, err := store.StoreImage(ctx, []byte("GIF89a"), "dot.gif", "image/gif")
	require.NoError(t, err)

	res := chain.Resolve(ctx, Sources{Blobs: blobs, Images: store}, id)
	assert.Equal(t, SourceImageStore, res.Source)
	assert.Equal(t, "image/gif", res.ContentType)
	assert.Equal(t, []byte("GIF89a"), res.Data)
	assert.Zero(t, blobs.calls)
}

func TestResolveContinuesAfterBlobStoreError(t *testing.T) {
	chain := NewChain(zaptest.NewLogger(t))
	blobs := &fakeBlobs{err: errors.New("connection reset")}

	res := chain.Resolve(context.Background(), Sources{Blobs: blobs}, nativeID)
	assert.Equal(t, 1, blobs.calls)
	assert.Equal(t, SourceUnavailable, res.Source)
}

func TestResolveFromImagesCollection(t *testing.T) {
	chain := NewChain(zaptest.NewLogger(t))
	store := newMockStore(t)
	ctx := context.Background()

	id, err := store.StoreImage(ctx, []byte{0xff, 0xd8, 0xff, 0xe0}, "photo.jpg", "image/jpeg")
	require.NoError(t, err)

	// without the image store only the mirrored document is left
	res := chain.Resolve(ctx, Sources{Collection: store.Collection(repositories.CollectionImages)}, id)
	assert.Equal(t, SourceCollection, res.Source)
	assert.Equal(t, "image/jpeg", res.ContentType)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff, 0xe0}, res.Data)
}

func TestResolveUnavailable(t *testing.T) {
	chain := NewChain(zaptest.NewLogger(t))
	store := newMockStore(t)

	res := chain.Resolve(context.Background(), Sources{
		Images:     store,
		Collection: store.Collection(repositories.CollectionImages),
	}, "img_404")

	assert.Equal(t, SourceUnavailable, res.Source)
	assert.Equal(t, "image/svg+xml", res.ContentType)
	assert.Equal(t, unavailableSVG, res.Data)
}

func TestPayload(t *testing.T) {
	data, ok := payload("aGVsbG8=")
	assert.True(t, ok)
	assert.Equal(t, []byte("hello"), data)

	_, ok = payload("%%%")
	assert.False(t, ok)
	_, ok = payload(nil)
	assert.False(t, ok)

	data, ok = payload([]byte("raw"))
	assert.True(t, ok)
	assert.Equal(t, []byte("raw"), data)
}
