package repositories

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/your-org/storefront/internal/domain"
)

const defaultBlobContentType = "application/octet-stream"

// OpenBlob reads a GridFS file by object id (implements domain.BlobStore).
// Ids that are not object ids fail with domain.ErrInvalidID, which is also a
// domain.ErrNotFound.
func (s *MongoStore) OpenBlob(ctx context.Context, id string) (*domain.Blob, error) {
	oid, ok := domain.ParseNativeID(id)
	if !ok {
		return nil, fmt.Errorf("open blob %q: %w", id, domain.ErrInvalidID)
	}

	stream, err := s.bucket.OpenDownloadStream(ctx, oid)
	if err != nil {
		if errors.Is(err, mongo.ErrFileNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("open blob %s: %w", id, err)
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", id, err)
	}

	blob := &domain.Blob{
		ID:          id,
		ContentType: defaultBlobContentType,
		Data:        data,
	}
	if file := stream.GetFile(); file != nil {
		blob.Filename = file.Name
		if file.Metadata != nil {
			if ct, ok := file.Metadata.Lookup("contentType").StringValueOK(); ok && ct != "" {
				blob.ContentType = ct
			}
		}
	}
	return blob, nil
}

// UploadBlob implements domain.BlobStore
func (s *MongoStore) UploadBlob(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "contentType", Value: contentType}})
	oid, err := s.bucket.UploadFromStream(ctx, filename, bytes.NewReader(data), opts)
	if err != nil {
		return "", fmt.Errorf("upload blob %q: %w", filename, err)
	}
	s.logger.Debug("blob uploaded",
		zap.String("id", oid.Hex()),
		zap.String("content_type", contentType),
		zap.Int("size", len(data)),
	)
	return oid.Hex(), nil
}
