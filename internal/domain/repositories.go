package domain

import "context"

// DocumentStore is the contract both the real database adapter and the
// in-process mock implement. Call-sites never need to know which one is active.
type DocumentStore interface {
	// Collection returns a handle to the named collection. Unknown names are
	// created on first use.
	Collection(name string) Collection

	// Mode reports which implementation this is
	Mode() Mode

	// Close releases connections and file handles
	Close(ctx context.Context) error
}

// Collection is the subset of a document-database collection API used by the storefront.
type Collection interface {
	// Find returns a lazy cursor over documents matching filter
	Find(ctx context.Context, filter Document) Cursor

	// FindOne returns the first match in insertion order, or ErrNotFound
	FindOne(ctx context.Context, filter Document) (Document, error)

	// InsertOne stores doc and returns the identifier assigned to it
	InsertOne(ctx context.Context, doc Document) (*InsertOneResult, error)

	// InsertMany stores docs in order and persists once
	InsertMany(ctx context.Context, docs []Document) (*InsertManyResult, error)

	// UpdateOne shallow-merges update.Set over the first match
	UpdateOne(ctx context.Context, filter Document, update Update) (*UpdateResult, error)

	// DeleteOne removes the first match
	DeleteOne(ctx context.Context, filter Document) (*DeleteResult, error)

	// DeleteMany removes every match. An empty filter clears the collection.
	DeleteMany(ctx context.Context, filter Document) (*DeleteResult, error)
}

// Cursor is evaluated only when All is called.
type Cursor interface {
	// Sort orders results; ties keep insertion order
	Sort(fields ...SortField) Cursor

	// Limit keeps the first n results after ordering. n <= 0 means no limit.
	Limit(n int64) Cursor

	// All executes the query
	All(ctx context.Context) ([]Document, error)
}

// ImageStore keeps image bytes outside the generic collections while
// mirroring them into the "images" collection for durability.
type ImageStore interface {
	// StoreImage saves data and returns the generated id
	StoreImage(ctx context.Context, data []byte, filename, contentType string) (string, error)

	// GetImage returns the image or ErrNotFound
	GetImage(ctx context.Context, id string) (*ImageRecord, error)
}

// BlobStore is the native binary-object store of the real database.
type BlobStore interface {
	// OpenBlob reads a blob by its native id, or returns ErrNotFound
	OpenBlob(ctx context.Context, id string) (*Blob, error)

	// UploadBlob stores data and returns the native id in hex form
	UploadBlob(ctx context.Context, data []byte, filename, contentType string) (string, error)
}
