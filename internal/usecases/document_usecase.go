package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/storefront/internal/connection"
	"github.com/your-org/storefront/internal/domain"
)

var (
	// ErrInvalidCollection rejects collection names the store must not expose.
	ErrInvalidCollection = errors.New("invalid collection name")

	// ErrRateLimited is returned when no operation slot frees up in time.
	ErrRateLimited = errors.New("too many concurrent operations")
)

// StoreProvider hands out the resolved store. *connection.Resolver satisfies it.
type StoreProvider interface {
	Get(ctx context.Context) *connection.Handle
}

// ListQuery narrows a collection listing.
type ListQuery struct {
	Filter domain.Document
	Sort   []domain.SortField
	Limit  int64
}

// DocumentUsecase runs generic collection operations against whichever
// store the provider resolved. Id lookups accept both native and string ids.
type DocumentUsecase struct {
	stores      StoreProvider
	logger      *zap.Logger
	rateLimiter *RateLimiter
	now         func() time.Time
}

func NewDocumentUsecase(stores StoreProvider, logger *zap.Logger, maxConcurrentOps int) *DocumentUsecase {
	return &DocumentUsecase{
		stores:      stores,
		logger:      logger,
		rateLimiter: NewRateLimiter(maxConcurrentOps),
		now:         time.Now,
	}
}

// Mode reports which store is serving requests.
func (u *DocumentUsecase) Mode(ctx context.Context) domain.Mode {
	return u.stores.Get(ctx).Mode
}

// List returns matching documents, sorted and limited.
func (u *DocumentUsecase) List(ctx context.Context, collection string, q ListQuery) ([]domain.Document, error) {
	coll, release, err := u.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	defer release()

	cursor := coll.Find(ctx, q.Filter)
	if len(q.Sort) > 0 {
		cursor = cursor.Sort(q.Sort...)
	}
	if q.Limit > 0 {
		cursor = cursor.Limit(q.Limit)
	}

	docs, err := cursor.All(ctx)
	if err != nil {
		u.logger.Error("failed to list documents",
			zap.String("collection", collection),
			zap.Error(err),
		)
		return nil, err
	}
	return docs, nil
}

// Get finds a document by id, trying the native form first.
func (u *DocumentUsecase) Get(ctx context.Context, collection, id string) (domain.Document, error) {
	coll, release, err := u.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	defer release()

	for _, candidate := range domain.IDCandidates(id) {
		doc, err := coll.FindOne(ctx, domain.Document{domain.IDField: candidate})
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			u.logger.Error("failed to get document",
				zap.String("collection", collection),
				zap.String("id", id),
				zap.Error(err),
			)
			return nil, err
		}
	}
	return nil, domain.ErrNotFound
}

// Create inserts doc and returns the id the store assigned.
func (u *DocumentUsecase) Create(ctx context.Context, collection string, doc domain.Document) (any, error) {
	coll, release, err := u.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := coll.InsertOne(ctx, u.stamp(doc, "createdAt"))
	if err != nil {
		u.logger.Error("failed to create document",
			zap.String("collection", collection),
			zap.Error(err),
		)
		return nil, err
	}

	u.logger.Info("document created",
		zap.String("collection", collection),
		zap.String("id", domain.IDString(res.InsertedID)),
	)
	return res.InsertedID, nil
}

// CreateMany inserts docs in order.
func (u *DocumentUsecase) CreateMany(ctx context.Context, collection string, docs []domain.Document) ([]any, error) {
	coll, release, err := u.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	defer release()

	stamped := make([]domain.Document, len(docs))
	for i, d := range docs {
		stamped[i] = u.stamp(d, "createdAt")
	}

	res, err := coll.InsertMany(ctx, stamped)
	if err != nil {
		u.logger.Error("failed to create documents",
			zap.String("collection", collection),
			zap.Int("count", len(docs)),
			zap.Error(err),
		)
		return nil, err
	}

	u.logger.Info("documents created",
		zap.String("collection", collection),
		zap.Int("count", len(res.InsertedIDs)),
	)
	return res.InsertedIDs, nil
}

// Update merges set into the document with the given id. A missing document
// is domain.ErrNotFound.
func (u *DocumentUsecase) Update(ctx context.Context, collection, id string, set domain.Document) (*domain.UpdateResult, error) {
	coll, release, err := u.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	defer release()

	// Ids arrive as text. In real mode a 24-hex id is usually an ObjectID, but
	// a document may also carry that hex as a plain string _id, so both forms
	// are tried, native first. The first candidate that matches wins; a second
	// document under the other form is left alone.
	update := domain.Update{Set: u.stamp(set, "updatedAt")}
	for _, candidate := range domain.IDCandidates(id) {
		res, err := coll.UpdateOne(ctx, domain.Document{domain.IDField: candidate}, update)
		if err != nil {
			u.logger.Error("failed to update document",
				zap.String("collection", collection),
				zap.String("id", id),
				zap.Error(err),
			)
			return nil, err
		}
		if res.MatchedCount > 0 {
			u.logger.Info("document updated",
				zap.String("collection", collection),
				zap.String("id", id),
			)
			return res, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Delete removes the document with the given id.
func (u *DocumentUsecase) Delete(ctx context.Context, collection, id string) error {
	coll, release, err := u.collection(ctx, collection)
	if err != nil {
		return err
	}
	defer release()

	// Same candidate order as Update.
	for _, candidate := range domain.IDCandidates(id) {
		res, err := coll.DeleteOne(ctx, domain.Document{domain.IDField: candidate})
		if err != nil {
			u.logger.Error("failed to delete document",
				zap.String("collection", collection),
				zap.String("id", id),
				zap.Error(err),
			)
			return err
		}
		if res.DeletedCount > 0 {
			u.logger.Info("document deleted",
				zap.String("collection", collection),
				zap.String("id", id),
			)
			return nil
		}
	}
	return domain.ErrNotFound
}

// DeleteMatching removes every document equal to filter on all its fields.
// An empty filter empties the collection; the HTTP layer only lets that
// through with an explicit all=true.
func (u *DocumentUsecase) DeleteMatching(ctx context.Context, collection string, filter domain.Document) (int64, error) {
	coll, release, err := u.collection(ctx, collection)
	if err != nil {
		return 0, err
	}
	defer release()

	res, err := coll.DeleteMany(ctx, filter)
	if err != nil {
		u.logger.Error("failed to delete documents",
			zap.String("collection", collection),
			zap.Error(err),
		)
		return 0, err
	}

	u.logger.Info("documents deleted",
		zap.String("collection", collection),
		zap.Int64("count", res.DeletedCount),
	)
	return res.DeletedCount, nil
}

// collection validates the name, takes a rate limiter slot and resolves the
// store. The returned func releases the slot.
func (u *DocumentUsecase) collection(ctx context.Context, name string) (domain.Collection, func(), error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, nil, err
	}
	// The slot is held until release runs: at most maxConcurrentOps store
	// calls are in flight at once.
	if err := u.rateLimiter.Acquire(ctx); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return u.stores.Get(ctx).Store.Collection(name), u.rateLimiter.Release, nil
}

// stamp copies doc and sets field to the current time unless already present.
func (u *DocumentUsecase) stamp(doc domain.Document, field string) domain.Document {
	out := make(domain.Document, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	if _, ok := out[field]; !ok {
		out[field] = u.now().UTC().Format(time.RFC3339)
	}
	return out
}

// ValidateCollectionName rejects empty names, names containing '$' or NUL,
// and the database's system namespace.
func ValidateCollectionName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidCollection)
	case strings.ContainsAny(name, "$\x00"):
		return fmt.Errorf("%w: %q", ErrInvalidCollection, name)
	case strings.HasPrefix(name, "system."):
		return fmt.Errorf("%w: %q is reserved", ErrInvalidCollection, name)
	}
	return nil
}
