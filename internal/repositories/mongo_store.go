package repositories

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain"
)

// MongoStore adapts a MongoDB database to domain.DocumentStore and exposes its
// GridFS bucket as a domain.BlobStore.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	bucket *mongo.GridFSBucket
	logger *zap.Logger
}

// NewMongoStore connects and pings the server. Any failure is returned so the
// caller can fall back to the mock store.
func NewMongoStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*MongoStore, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}
	if cfg.ServerSelectionTimeout > 0 {
		opts.SetServerSelectionTimeout(cfg.ServerSelectionTimeout)
	}
	if cfg.OperationTimeout > 0 {
		opts.SetTimeout(cfg.OperationTimeout)
	}
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.MinPoolSize > 0 {
		opts.SetMinPoolSize(cfg.MinPoolSize)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(cfg.Name)
	bucketName := cfg.ImageBucket
	if bucketName == "" {
		bucketName = CollectionImages
	}

	logger.Info("connected to MongoDB",
		zap.String("database", cfg.Name),
		zap.String("bucket", bucketName),
	)

	return &MongoStore{
		client: client,
		db:     db,
		bucket: db.GridFSBucket(options.GridFSBucket().SetName(bucketName)),
		logger: logger,
	}, nil
}

// Collection implements domain.DocumentStore
func (s *MongoStore) Collection(name string) domain.Collection {
	return &mongoCollection{coll: s.db.Collection(name)}
}

// Mode implements domain.DocumentStore
func (s *MongoStore) Mode() domain.Mode {
	return domain.ModeReal
}

// Close implements domain.DocumentStore
func (s *MongoStore) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect MongoDB: %w", err)
	}
	s.logger.Info("MongoDB connection closed")
	return nil
}

// Ping checks that the server is still reachable.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// toFilter translates a storefront filter into a MongoDB one. A string _id
// that parses as an object id matches either form.
func toFilter(filter domain.Document) bson.M {
	out := bson.M{}
	for k, v := range filter {
		if k == domain.IDField {
			if s, ok := v.(string); ok {
				candidates := domain.IDCandidates(s)
				if len(candidates) > 1 {
					out[k] = bson.M{"$in": candidates}
					continue
				}
			}
		}
		out[k] = v
	}
	return out
}

// fromBSON converts decoded driver values into plain maps and slices.
func fromBSON(v any) any {
	switch x := v.(type) {
	case bson.M:
		return documentFromBSON(x)
	case bson.D:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = fromBSON(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = fromBSON(e)
		}
		return out
	case map[string]any:
		return documentFromBSON(bson.M(x))
	default:
		return v
	}
}

func documentFromBSON(m bson.M) domain.Document {
	doc := make(domain.Document, len(m))
	for k, v := range m {
		if k == domain.IDField {
			doc[k] = v
			continue
		}
		doc[k] = fromBSON(v)
	}
	return doc
}

var (
	_ domain.DocumentStore = (*MongoStore)(nil)
	_ domain.BlobStore     = (*MongoStore)(nil)
)
