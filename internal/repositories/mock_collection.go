package repositories

import (
	"context"

	"github.com/your-org/storefront/internal/domain"
)

// mockCollection is a named view over a MockStore.
type mockCollection struct {
	store *MockStore
	name  string
}

// Find implements domain.Collection. Matching happens when All is called.
func (c *mockCollection) Find(ctx context.Context, filter domain.Document) domain.Cursor {
	return &mockCursor{coll: c, filter: cloneDocument(filter)}
}

// FindOne implements domain.Collection
func (c *mockCollection) FindOne(ctx context.Context, filter domain.Document) (domain.Document, error) {
	s := c.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, domain.ErrStoreClosed
	}
	for _, doc := range s.collections[c.name] {
		if matchesQuery(doc, filter) {
			return cloneDocument(doc), nil
		}
	}
	return nil, domain.ErrNotFound
}

// InsertOne implements domain.Collection. Any _id supplied by the caller is
// replaced, since uniqueness is the store's responsibility.
func (c *mockCollection) InsertOne(ctx context.Context, doc domain.Document) (*domain.InsertOneResult, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, domain.ErrStoreClosed
	}

	stored := cloneDocument(doc)
	if stored == nil {
		stored = domain.Document{}
	}
	id := s.nextID(idPrefix(c.name))
	stored[domain.IDField] = id
	s.collections[c.name] = append(s.docs(c.name), stored)
	s.persist()

	return &domain.InsertOneResult{InsertedID: id}, nil
}

// InsertMany implements domain.Collection. The snapshot is written once.
func (c *mockCollection) InsertMany(ctx context.Context, docs []domain.Document) (*domain.InsertManyResult, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, domain.ErrStoreClosed
	}

	ids := make([]any, 0, len(docs))
	coll := s.docs(c.name)
	prefix := idPrefix(c.name)
	for _, doc := range docs {
		stored := cloneDocument(doc)
		if stored == nil {
			stored = domain.Document{}
		}
		id := s.nextID(prefix)
		stored[domain.IDField] = id
		coll = append(coll, stored)
		ids = append(ids, id)
	}
	s.collections[c.name] = coll
	if len(ids) > 0 {
		s.persist()
	}

	return &domain.InsertManyResult{InsertedIDs: ids}, nil
}

// UpdateOne implements domain.Collection. Fields of update.Set replace those
// of the first match; _id cannot be changed.
func (c *mockCollection) UpdateOne(ctx context.Context, filter domain.Document, update domain.Update) (*domain.UpdateResult, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, domain.ErrStoreClosed
	}

	for _, doc := range s.docs(c.name) {
		if !matchesQuery(doc, filter) {
			continue
		}
		for k, v := range update.Set {
			if k == domain.IDField {
				continue
			}
			doc[k] = cloneValue(v)
		}
		s.persist()
		return &domain.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
	}
	return &domain.UpdateResult{}, nil
}

// DeleteOne implements domain.Collection
func (c *mockCollection) DeleteOne(ctx context.Context, filter domain.Document) (*domain.DeleteResult, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, domain.ErrStoreClosed
	}

	docs := s.docs(c.name)
	for i, doc := range docs {
		if !matchesQuery(doc, filter) {
			continue
		}
		s.collections[c.name] = append(docs[:i:i], docs[i+1:]...)
		s.persist()
		return &domain.DeleteResult{DeletedCount: 1}, nil
	}
	return &domain.DeleteResult{}, nil
}

// DeleteMany implements domain.Collection. An empty filter clears the
// collection; survivors keep their relative order.
func (c *mockCollection) DeleteMany(ctx context.Context, filter domain.Document) (*domain.DeleteResult, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, domain.ErrStoreClosed
	}

	docs := s.docs(c.name)
	var removed int64
	if len(filter) == 0 {
		removed = int64(len(docs))
		s.collections[c.name] = []domain.Document{}
	} else {
		kept := make([]domain.Document, 0, len(docs))
		for _, doc := range docs {
			if matchesQuery(doc, filter) {
				removed++
				continue
			}
			kept = append(kept, doc)
		}
		s.collections[c.name] = kept
	}

	if removed > 0 {
		s.persist()
	}
	return &domain.DeleteResult{DeletedCount: removed}, nil
}

// mockCursor collects options until All runs the query.
type mockCursor struct {
	coll   *mockCollection
	filter domain.Document
	sort   []domain.SortField
	limit  int64
}

// Sort implements domain.Cursor
func (q *mockCursor) Sort(fields ...domain.SortField) domain.Cursor {
	q.sort = append(q.sort, fields...)
	return q
}

// Limit implements domain.Cursor
func (q *mockCursor) Limit(n int64) domain.Cursor {
	q.limit = n
	return q
}

// All implements domain.Cursor
func (q *mockCursor) All(ctx context.Context) ([]domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := q.coll.store
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, domain.ErrStoreClosed
	}
	out := make([]domain.Document, 0)
	for _, doc := range s.collections[q.coll.name] {
		if matchesQuery(doc, q.filter) {
			out = append(out, cloneDocument(doc))
		}
	}
	s.mu.RUnlock()

	sortDocuments(out, q.sort)
	if q.limit > 0 && int64(len(out)) > q.limit {
		out = out[:q.limit]
	}
	return out, nil
}

var (
	_ domain.Collection = (*mockCollection)(nil)
	_ domain.Cursor     = (*mockCursor)(nil)
)
