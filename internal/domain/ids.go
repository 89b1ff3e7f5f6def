package domain

import (
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// hexer is satisfied by native object ids.
type hexer interface {
	Hex() string
}

// IDString renders an identifier as text. Native object ids become their
// 24-hex form; every other value goes through fmt.Sprint.
func IDString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case hexer:
		return id.Hex()
	default:
		return fmt.Sprint(v)
	}
}

// IDEqual reports whether two identifiers name the same record. Ids that are
// string-equal but typed differently are the same record.
func IDEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.DeepEqual(a, b) {
		return true
	}
	return IDString(a) == IDString(b)
}

// ParseNativeID parses a 24-hex object id.
func ParseNativeID(s string) (bson.ObjectID, bool) {
	oid, err := bson.ObjectIDFromHex(s)
	if err != nil {
		return bson.ObjectID{}, false
	}
	return oid, true
}

// IDCandidates lists the forms to try when looking a record up by id:
// the native object id first when s parses as one, then the raw string.
func IDCandidates(s string) []any {
	if oid, ok := ParseNativeID(s); ok {
		return []any{oid, s}
	}
	return []any{s}
}
