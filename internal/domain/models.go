package domain

import "time"

// IDField is the only reserved document key.
const IDField = "_id"

// Document is a schema-less record. The same engine serves products,
// orders, users, admins and images, so no static shape is imposed.
type Document map[string]any

// ID returns the raw identifier of the document, or nil.
func (d Document) ID() any {
	return d[IDField]
}

// Direction is a sort direction, 1 for ascending and -1 for descending.
type Direction int

const (
	Ascending  Direction = 1
	Descending Direction = -1
)

// SortField orders a cursor by a single field.
type SortField struct {
	Field     string
	Direction Direction
}

// SortBy is shorthand for a one-field ordering.
func SortBy(field string, dir Direction) []SortField {
	return []SortField{{Field: field, Direction: dir}}
}

// Update describes a partial document merged over the first match.
type Update struct {
	Set Document
}

// InsertOneResult reports the identifier assigned to an inserted document
type InsertOneResult struct {
	InsertedID any
}

// InsertManyResult reports identifiers in insertion order
type InsertManyResult struct {
	InsertedIDs []any
}

// UpdateResult lets callers tell "not found" apart from "found but unchanged".
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
}

// DeleteResult reports how many documents were removed
type DeleteResult struct {
	DeletedCount int64
}

// ImageRecord is an uploaded image together with its metadata.
type ImageRecord struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadDate  time.Time `json:"uploadDate"`
	Data        []byte    `json:"-"`
}

// Blob is a payload read from the native binary-object store.
type Blob struct {
	ID          string
	Filename    string
	ContentType string
	Data        []byte
}

// Mode tells which store implementation backs a handle.
type Mode int

const (
	ModeMock Mode = iota
	ModeReal
)

func (m Mode) String() string {
	switch m {
	case ModeReal:
		return "real"
	case ModeMock:
		return "mock"
	default:
		return "unknown"
	}
}
