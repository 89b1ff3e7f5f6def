// Package imaging turns an image id from a request into bytes. Resolution
// never fails: when nothing matches, a generic "unavailable" image is served.
package imaging

import (
	"context"
	"errors"
	"net/http"

	"github.com/cristalhq/base64"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/your-org/storefront/internal/domain"
)

// CacheControl is sent with every image, whatever its source.
const CacheControl = "public, max-age=31536000, immutable"

// Source names the step that produced an image.
type Source string

const (
	SourcePlaceholder Source = "placeholder"
	SourceBlobStore   Source = "blob_store"
	SourceImageStore  Source = "image_store"
	SourceCollection  Source = "collection"
	SourceUnavailable Source = "unavailable"
)

var resolutions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_image_resolutions_total",
		Help: "Images served, by the step that resolved them",
	},
	[]string{"source"},
)

// Result is a resolved image.
type Result struct {
	Data        []byte
	ContentType string
	Source      Source
}

// Sources are the stores the chain may consult. Nil members are skipped.
type Sources struct {
	Blobs      domain.BlobStore
	Images     domain.ImageStore
	Collection domain.Collection
}

// Chain resolves image ids. It only reads from the stores.
type Chain struct {
	logger *zap.Logger
}

func NewChain(logger *zap.Logger) *Chain {
	return &Chain{logger: logger}
}

// Resolve tries, in order: the placeholder pattern, the native blob store,
// the image store, the images collection, and finally the unavailable image.
func (c *Chain) Resolve(ctx context.Context, src Sources, id string) *Result {
	res := c.resolve(ctx, src, id)
	resolutions.WithLabelValues(string(res.Source)).Inc()
	return res
}

func (c *Chain) resolve(ctx context.Context, src Sources, id string) *Result {
	if n, ok := placeholderIndex(id); ok {
		return &Result{Data: placeholderSVG(n), ContentType: svgContentType, Source: SourcePlaceholder}
	}

	if _, native := domain.ParseNativeID(id); native && src.Blobs != nil {
		blob, err := src.Blobs.OpenBlob(ctx, id)
		switch {
		case err == nil:
			return &Result{Data: blob.Data, ContentType: contentTypeOr(blob.ContentType, blob.Data), Source: SourceBlobStore}
		case !errors.Is(err, domain.ErrNotFound):
			c.logger.Warn("blob lookup failed", zap.String("id", id), zap.Error(err))
		}
	}

	if src.Images != nil {
		img, err := src.Images.GetImage(ctx, id)
		switch {
		case err == nil:
			return &Result{Data: img.Data, ContentType: contentTypeOr(img.ContentType, img.Data), Source: SourceImageStore}
		case !errors.Is(err, domain.ErrNotFound):
			c.logger.Warn("image store lookup failed", zap.String("id", id), zap.Error(err))
		}
	}

	if src.Collection != nil {
		if res, ok := c.fromCollection(ctx, src.Collection, id); ok {
			return res
		}
	}

	return &Result{Data: unavailableSVG, ContentType: svgContentType, Source: SourceUnavailable}
}

func (c *Chain) fromCollection(ctx context.Context, coll domain.Collection, id string) (*Result, bool) {
	for _, candidate := range domain.IDCandidates(id) {
		doc, err := coll.FindOne(ctx, domain.Document{domain.IDField: candidate})
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				c.logger.Warn("images collection lookup failed", zap.String("id", id), zap.Error(err))
			}
			continue
		}

		data, ok := payload(doc["data"])
		if !ok {
			continue
		}
		ct, _ := doc["contentType"].(string)
		return &Result{Data: data, ContentType: contentTypeOr(ct, data), Source: SourceCollection}, true
	}
	return nil, false
}

// payload accepts base64 text as written by the mock store and binary
// values as decoded from MongoDB.
func payload(v any) ([]byte, bool) {
	switch d := v.(type) {
	case string:
		data, err := base64.StdEncoding.DecodeString(d)
		if err != nil || len(data) == 0 {
			return nil, false
		}
		return data, true
	case []byte:
		return d, len(d) > 0
	case bson.Binary:
		return d.Data, len(d.Data) > 0
	default:
		return nil, false
	}
}

func contentTypeOr(ct string, data []byte) string {
	if ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
