package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/cristalhq/base64"
	"go.uber.org/zap"

	"github.com/your-org/storefront/internal/domain"
)

const imageIDPrefix = "img"

// StoreImage keeps data in the buffer cache and mirrors it, base64 encoded,
// into the images collection. The mirror is what survives a restart.
func (s *MockStore) StoreImage(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", domain.ErrStoreClosed
	}

	id := s.nextID(imageIDPrefix)
	rec := &domain.ImageRecord{
		ID:          id,
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		UploadDate:  s.now().UTC(),
		Data:        append([]byte(nil), data...),
	}

	if err := s.images.Set(ctx, id, rec); err != nil {
		return "", fmt.Errorf("cache image %s: %w", id, err)
	}

	s.collections[CollectionImages] = append(s.docs(CollectionImages), domain.Document{
		domain.IDField: id,
		"filename":     filename,
		"contentType":  contentType,
		"size":         float64(rec.Size),
		"uploadDate":   rec.UploadDate.Format(time.RFC3339Nano),
		"data":         base64.StdEncoding.EncodeToString(data),
	})
	s.persist()

	s.logger.Debug("image stored",
		zap.String("id", id),
		zap.String("content_type", contentType),
		zap.Int64("size", rec.Size),
	)
	return id, nil
}

// GetImage returns the cached image, or rebuilds it from the images
// collection and caches it. A miss in both places is domain.ErrNotFound.
func (s *MockStore) GetImage(ctx context.Context, id string) (*domain.ImageRecord, error) {
	if v, ok := s.images.Get(ctx, id); ok {
		if rec, ok := v.(*domain.ImageRecord); ok {
			return copyImage(rec), nil
		}
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, domain.ErrStoreClosed
	}
	var mirrored domain.Document
	for _, doc := range s.collections[CollectionImages] {
		if domain.IDEqual(doc.ID(), id) {
			mirrored = cloneDocument(doc)
			break
		}
	}
	s.mu.RUnlock()

	if mirrored == nil {
		return nil, domain.ErrNotFound
	}

	rec, err := imageFromDocument(id, mirrored)
	if err != nil {
		return nil, err
	}
	if err := s.images.Set(ctx, id, rec); err != nil {
		s.logger.Warn("failed to cache rehydrated image", zap.String("id", id), zap.Error(err))
	}
	imageRehydrations.Inc()
	s.logger.Debug("image rehydrated from images collection", zap.String("id", id))

	return copyImage(rec), nil
}

// ForgetCachedImages drops the buffer cache, leaving only the mirror. This is
// the state a freshly started process is in.
func (s *MockStore) ForgetCachedImages() {
	s.images.Clear()
}

// imageFromDocument decodes a mirrored image document.
func imageFromDocument(id string, doc domain.Document) (*domain.ImageRecord, error) {
	encoded, _ := doc["data"].(string)
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", id, err)
	}

	rec := &domain.ImageRecord{
		ID:   id,
		Size: int64(len(data)),
		Data: data,
	}
	rec.Filename, _ = doc["filename"].(string)
	rec.ContentType, _ = doc["contentType"].(string)
	if raw, ok := doc["uploadDate"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			rec.UploadDate = t
		}
	}
	return rec, nil
}

func copyImage(rec *domain.ImageRecord) *domain.ImageRecord {
	out := *rec
	out.Data = append([]byte(nil), rec.Data...)
	return &out
}

var _ domain.ImageStore = (*MockStore)(nil)
