package repositories

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/your-org/storefront/internal/domain"
)

type mongoCollection struct {
	coll *mongo.Collection
}

// Find implements domain.Collection
func (c *mongoCollection) Find(ctx context.Context, filter domain.Document) domain.Cursor {
	return &mongoCursor{coll: c.coll, filter: toFilter(filter)}
}

// FindOne implements domain.Collection
func (c *mongoCollection) FindOne(ctx context.Context, filter domain.Document) (domain.Document, error) {
	var raw bson.M
	err := c.coll.FindOne(ctx, toFilter(filter)).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find one in %s: %w", c.coll.Name(), err)
	}
	return documentFromBSON(raw), nil
}

// InsertOne implements domain.Collection. The server assigns the _id.
func (c *mongoCollection) InsertOne(ctx context.Context, doc domain.Document) (*domain.InsertOneResult, error) {
	res, err := c.coll.InsertOne(ctx, withoutID(doc))
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", c.coll.Name(), err)
	}
	return &domain.InsertOneResult{InsertedID: res.InsertedID}, nil
}

// InsertMany implements domain.Collection
func (c *mongoCollection) InsertMany(ctx context.Context, docs []domain.Document) (*domain.InsertManyResult, error) {
	if len(docs) == 0 {
		return &domain.InsertManyResult{InsertedIDs: []any{}}, nil
	}
	batch := make([]any, len(docs))
	for i, d := range docs {
		batch[i] = withoutID(d)
	}
	res, err := c.coll.InsertMany(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("insert many into %s: %w", c.coll.Name(), err)
	}
	return &domain.InsertManyResult{InsertedIDs: res.InsertedIDs}, nil
}

// UpdateOne implements domain.Collection
func (c *mongoCollection) UpdateOne(ctx context.Context, filter domain.Document, update domain.Update) (*domain.UpdateResult, error) {
	set := withoutID(update.Set)
	if len(set) == 0 {
		// An empty $set is rejected by the server; report the match only.
		n, err := c.coll.CountDocuments(ctx, toFilter(filter), options.Count().SetLimit(1))
		if err != nil {
			return nil, fmt.Errorf("count in %s: %w", c.coll.Name(), err)
		}
		return &domain.UpdateResult{MatchedCount: n}, nil
	}

	res, err := c.coll.UpdateOne(ctx, toFilter(filter), bson.M{"$set": bson.M(set)})
	if err != nil {
		return nil, fmt.Errorf("update in %s: %w", c.coll.Name(), err)
	}
	return &domain.UpdateResult{
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
	}, nil
}

// DeleteOne implements domain.Collection
func (c *mongoCollection) DeleteOne(ctx context.Context, filter domain.Document) (*domain.DeleteResult, error) {
	res, err := c.coll.DeleteOne(ctx, toFilter(filter))
	if err != nil {
		return nil, fmt.Errorf("delete from %s: %w", c.coll.Name(), err)
	}
	return &domain.DeleteResult{DeletedCount: res.DeletedCount}, nil
}

// DeleteMany implements domain.Collection
func (c *mongoCollection) DeleteMany(ctx context.Context, filter domain.Document) (*domain.DeleteResult, error) {
	res, err := c.coll.DeleteMany(ctx, toFilter(filter))
	if err != nil {
		return nil, fmt.Errorf("delete many from %s: %w", c.coll.Name(), err)
	}
	return &domain.DeleteResult{DeletedCount: res.DeletedCount}, nil
}

type mongoCursor struct {
	coll   *mongo.Collection
	filter bson.M
	sort   bson.D
	limit  int64
}

// Sort implements domain.Cursor
func (q *mongoCursor) Sort(fields ...domain.SortField) domain.Cursor {
	for _, f := range fields {
		q.sort = append(q.sort, bson.E{Key: f.Field, Value: int(f.Direction)})
	}
	return q
}

// Limit implements domain.Cursor
func (q *mongoCursor) Limit(n int64) domain.Cursor {
	q.limit = n
	return q
}

// All implements domain.Cursor
func (q *mongoCursor) All(ctx context.Context) ([]domain.Document, error) {
	opts := options.Find()
	if len(q.sort) > 0 {
		opts.SetSort(q.sort)
	}
	if q.limit > 0 {
		opts.SetLimit(q.limit)
	}

	cursor, err := q.coll.Find(ctx, q.filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", q.coll.Name(), err)
	}
	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", q.coll.Name(), err)
	}

	out := make([]domain.Document, len(raw))
	for i, m := range raw {
		out[i] = documentFromBSON(m)
	}
	return out, nil
}

// withoutID returns a shallow copy of doc with _id removed.
func withoutID(doc domain.Document) domain.Document {
	out := make(domain.Document, len(doc))
	for k, v := range doc {
		if k == domain.IDField {
			continue
		}
		out[k] = v
	}
	return out
}

var (
	_ domain.Collection = (*mongoCollection)(nil)
	_ domain.Cursor     = (*mongoCursor)(nil)
)
