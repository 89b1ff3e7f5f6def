package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/your-org/storefront/internal/domain"
	"github.com/your-org/storefront/internal/imaging"
	"github.com/your-org/storefront/internal/repositories"
)

var (
	ErrEmptyUpload      = errors.New("empty upload")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrNoImageBackend   = errors.New("no image storage available")
)

// UploadResult identifies a stored image.
type UploadResult struct {
	ID   string      `json:"id"`
	Mode domain.Mode `json:"-"`
	URL  string      `json:"url"`
}

// ImageUsecase stores uploads and serves images by id.
type ImageUsecase struct {
	stores StoreProvider
	chain  *imaging.Chain
	logger *zap.Logger
}

func NewImageUsecase(stores StoreProvider, chain *imaging.Chain, logger *zap.Logger) *ImageUsecase {
	return &ImageUsecase{
		stores: stores,
		chain:  chain,
		logger: logger,
	}
}

// Upload stores an image in the mock image store or, against a real
// database, in its blob store.
func (u *ImageUsecase) Upload(ctx context.Context, data []byte, filename, contentType string) (*UploadResult, error) {
	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMedia, contentType)
	}

	h := u.stores.Get(ctx)

	var (
		id  string
		err error
	)
	switch {
	case h.SupportsImageStore():
		id, err = h.Images.StoreImage(ctx, data, filename, contentType)
	case h.Blobs != nil:
		id, err = h.Blobs.UploadBlob(ctx, data, filename, contentType)
	default:
		return nil, ErrNoImageBackend
	}
	if err != nil {
		u.logger.Error("failed to store image",
			zap.String("mode", h.Mode.String()),
			zap.String("filename", filename),
			zap.Error(err),
		)
		return nil, err
	}

	u.logger.Info("image stored",
		zap.String("id", id),
		zap.String("mode", h.Mode.String()),
		zap.Int("size", len(data)),
	)
	return &UploadResult{ID: id, Mode: h.Mode, URL: "/api/images/" + id}, nil
}

// Resolve always returns an image; see imaging.Chain.
func (u *ImageUsecase) Resolve(ctx context.Context, id string) *imaging.Result {
	h := u.stores.Get(ctx)
	return u.chain.Resolve(ctx, imaging.Sources{
		Blobs:      h.Blobs,
		Images:     h.Images,
		Collection: h.Store.Collection(repositories.CollectionImages),
	}, id)
}
