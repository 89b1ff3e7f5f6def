package repositories

import (
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/your-org/storefront/internal/domain"
)

// matchesQuery reports whether doc satisfies filter. An empty filter matches
// everything. _id matches by identity or by string form; every other key
// needs exact equality. Operators such as $gt or $in are not understood and
// are compared literally.
func matchesQuery(doc, filter domain.Document) bool {
	for key, want := range filter {
		got, present := doc[key]
		if key == domain.IDField {
			if !present || !domain.IDEqual(got, want) {
				return false
			}
			continue
		}
		if !present && want != nil {
			return false
		}
		if !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares with numbers widened at every depth, so a nested
// {"zone": 3} still matches after a reload has turned it into float64.
func valuesEqual(a, b any) bool {
	if an, ok := toFloat(a); ok {
		bn, ok := toFloat(b)
		return ok && an == bn
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	if am, ok := asMap(a); ok {
		bm, ok := asMap(b)
		if !ok || len(am) != len(bm) {
			return false
		}
		for k, av := range am {
			bv, present := bm[k]
			if !present || !valuesEqual(av, bv) {
				return false
			}
		}
		return true
	}
	if as, ok := asSlice(a); ok {
		bs, ok := asSlice(b)
		if !ok || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !valuesEqual(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case domain.Document:
		return m, true
	case map[string]any:
		return m, true
	default:
		return nil, false
	}
}

// asSlice views any slice except []byte as []any.
func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []byte, nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// toFloat widens every Go numeric kind so documents loaded from the snapshot
// (float64) compare equal to freshly inserted ones (int, int64, ...).
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// compareValues returns -1, 0 or 1. Values of different or unordered kinds,
// including missing fields, compare as equal.
func compareValues(a, b any) int {
	if an, ok := toFloat(a); ok {
		if bn, ok := toFloat(b); ok {
			return compareOrdered(an, bn)
		}
		return 0
	}

	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok && av != bv {
			if bv {
				return -1
			}
			return 1
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	}
	return 0
}

func compareOrdered(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// sortDocuments orders docs in place by fields, in priority order. The sort is
// stable so ties keep insertion order.
func sortDocuments(docs []domain.Document, fields []domain.SortField) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, f := range fields {
			c := compareValues(docs[i][f.Field], docs[j][f.Field])
			if c == 0 {
				continue
			}
			if f.Direction == domain.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// cloneDocument deep-copies nested maps and slices so callers can never
// mutate stored state through a returned document.
func cloneDocument(doc domain.Document) domain.Document {
	if doc == nil {
		return nil
	}
	out := make(domain.Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case domain.Document:
		return cloneDocument(x)
	case map[string]any:
		return map[string]any(cloneDocument(domain.Document(x)))
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	case []domain.Document:
		out := make([]domain.Document, len(x))
		for i, e := range x {
			out[i] = cloneDocument(e)
		}
		return out
	case []byte:
		return append([]byte(nil), x...)
	default:
		return v
	}
}
