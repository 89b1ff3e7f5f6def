package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/your-org/storefront/internal/domain"
	"github.com/your-org/storefront/internal/usecases"
)

const (
	maxBodyBytes = 1 << 20
	maxLimit     = 1000
)

// Query parameters with a meaning of their own; every other parameter is an
// equality filter.
var reservedParams = map[string]bool{
	"sort":  true,
	"order": true,
	"limit": true,
	"all":   true,
}

// CollectionHandler exposes generic document operations over HTTP.
type CollectionHandler struct {
	usecase *usecases.DocumentUsecase
	logger  *zap.Logger
}

// NewCollectionHandler creates a new collection handler
func NewCollectionHandler(usecase *usecases.DocumentUsecase, logger *zap.Logger) *CollectionHandler {
	return &CollectionHandler{
		usecase: usecase,
		logger:  logger,
	}
}

// Routes mounts the handler under /{collection}.
func (h *CollectionHandler) Routes(r chi.Router) {
	r.Route("/{collection}", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Delete("/", h.DeleteMatching)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

// List handles GET /{collection}
func (h *CollectionHandler) List(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	query, err := parseListQuery(r.URL.Query())
	if err != nil {
		respondError(w, r, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	docs, err := h.usecase.List(r.Context(), collection, query)
	if err != nil {
		respondFailure(w, r, h.logger, err)
		return
	}

	respondJSON(w, r, h.logger, http.StatusOK, map[string]interface{}{
		"data":  docs,
		"count": len(docs),
	})
}

// Get handles GET /{collection}/{id}
func (h *CollectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.usecase.Get(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"))
	if err != nil {
		respondFailure(w, r, h.logger, err)
		return
	}
	respondJSON(w, r, h.logger, http.StatusOK, doc)
}

// Create handles POST /{collection}. The body is one document or an array of them.
func (h *CollectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	var body interface{}
	if err := decodeBody(w, r, &body); err != nil {
		respondError(w, r, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	switch v := body.(type) {
	case map[string]interface{}:
		id, err := h.usecase.Create(r.Context(), collection, domain.Document(v))
		if err != nil {
			respondFailure(w, r, h.logger, err)
			return
		}
		respondJSON(w, r, h.logger, http.StatusCreated, map[string]interface{}{
			"insertedId": domain.IDString(id),
		})

	case []interface{}:
		docs := make([]domain.Document, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]interface{})
			if !ok {
				respondError(w, r, h.logger, http.StatusBadRequest, fmt.Sprintf("item %d is not an object", i))
				return
			}
			docs = append(docs, domain.Document(m))
		}
		ids, err := h.usecase.CreateMany(r.Context(), collection, docs)
		if err != nil {
			respondFailure(w, r, h.logger, err)
			return
		}
		out := make([]string, len(ids))
		for i, id := range ids {
			out[i] = domain.IDString(id)
		}
		respondJSON(w, r, h.logger, http.StatusCreated, map[string]interface{}{
			"insertedIds": out,
		})

	default:
		respondError(w, r, h.logger, http.StatusBadRequest, "body must be an object or an array of objects")
	}
}

// Update handles PATCH /{collection}/{id}. Fields in the body replace the stored ones.
func (h *CollectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var set domain.Document
	if err := decodeBody(w, r, &set); err != nil {
		respondError(w, r, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.usecase.Update(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"), set)
	if err != nil {
		respondFailure(w, r, h.logger, err)
		return
	}
	respondJSON(w, r, h.logger, http.StatusOK, map[string]interface{}{
		"matchedCount":  res.MatchedCount,
		"modifiedCount": res.ModifiedCount,
	})
}

// Delete handles DELETE /{collection}/{id}
func (h *CollectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.usecase.Delete(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id")); err != nil {
		respondFailure(w, r, h.logger, err)
		return
	}
	respondJSON(w, r, h.logger, http.StatusOK, map[string]interface{}{"deletedCount": 1})
}

// DeleteMatching handles DELETE /{collection}; query parameters select the documents.
// Clearing a whole collection needs ?all=true.
func (h *CollectionHandler) DeleteMatching(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	query, err := parseListQuery(values)
	if err != nil {
		respondError(w, r, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	if len(query.Sort) > 0 || query.Limit > 0 || values.Has("order") {
		respondError(w, r, h.logger, http.StatusBadRequest, "sort, order and limit are not supported on delete")
		return
	}
	if len(query.Filter) == 0 && values.Get("all") != "true" {
		respondError(w, r, h.logger, http.StatusBadRequest, "refusing to delete every document without all=true")
		return
	}
	if len(query.Filter) > 0 && values.Has("all") {
		respondError(w, r, h.logger, http.StatusBadRequest, "all=true cannot be combined with filters")
		return
	}

	n, err := h.usecase.DeleteMatching(r.Context(), chi.URLParam(r, "collection"), query.Filter)
	if err != nil {
		respondFailure(w, r, h.logger, err)
		return
	}
	respondJSON(w, r, h.logger, http.StatusOK, map[string]interface{}{"deletedCount": n})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

// parseListQuery reads sort, order and limit; every other parameter becomes
// an exact-match filter.
func parseListQuery(values url.Values) (usecases.ListQuery, error) {
	var q usecases.ListQuery

	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 {
			return q, fmt.Errorf("invalid limit parameter: must be a positive integer")
		}
		if n > maxLimit {
			n = maxLimit
		}
		q.Limit = n
	}

	dir := domain.Ascending
	switch strings.ToLower(values.Get("order")) {
	case "", "asc", "1":
	case "desc", "-1":
		dir = domain.Descending
	default:
		return q, fmt.Errorf("invalid order parameter: use asc or desc")
	}

	if raw := values.Get("sort"); raw != "" {
		for _, field := range strings.Split(raw, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			d := dir
			if rest, ok := strings.CutPrefix(field, "-"); ok {
				field, d = rest, domain.Descending
			}
			q.Sort = append(q.Sort, domain.SortField{Field: field, Direction: d})
		}
	}

	for key, vals := range values {
		if reservedParams[key] || len(vals) == 0 {
			continue
		}
		if q.Filter == nil {
			q.Filter = domain.Document{}
		}
		q.Filter[key] = filterValue(key, vals[0])
	}
	return q, nil
}

// filterValue reads true, false, null and numbers as typed values so they
// can match stored documents. _id stays a string, and so does any number
// whose text would not survive formatting ("00123", "1.50", "1e3").
func filterValue(key, raw string) interface{} {
	if key == domain.IDField {
		return raw
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil && strconv.FormatFloat(n, 'f', -1, 64) == raw {
		return n
	}
	return raw
}
