package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/me/folio/internal/auth"
	"github.com/me/folio/internal/store"
	"github.com/me/folio/pkg/model"
)

// Authorizer reports whether a request may use a resource.
type Authorizer func(r *http.Request) bool

// RequireIdentity admits requests that carry a signed-in identity.
func RequireIdentity(r *http.Request) bool {
	return auth.IdentityFromContext(r.Context()) != nil
}

// guard rejects requests the authorizer refuses with 401.
func guard(authorize Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authorize != nil && !authorize(r) {
				respondError(w, RequestIDFromContext(r.Context()), model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Resource serves JSON CRUD for one collection. Every route passes the
// authorizer first.
type Resource struct {
	collection model.Collection
	store      store.Store
	authorize  Authorizer
	logger     *slog.Logger
}

// NewResource creates a CRUD handler for collection c.
func NewResource(c model.Collection, st store.Store, authorize Authorizer, logger *slog.Logger) *Resource {
	return &Resource{
		collection: c,
		store:      st,
		authorize:  authorize,
		logger:     logger.With("collection", c.Name),
	}
}

// Routes returns a router to mount at the collection's base path.
func (res *Resource) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(guard(res.authorize))
	r.Get("/", res.handleList)
	r.Post("/", res.handleCreate)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", res.handleGet)
		r.Put("/", res.handleUpdate)
		r.Patch("/", res.handleUpdate)
		r.Delete("/", res.handleDelete)
	})
	return r
}

func (res *Resource) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	q, apiErr := parseListQuery(r, res.collection)
	if apiErr != nil {
		respondError(w, reqID, apiErr)
		return
	}
	records, total, err := res.store.Select(r.Context(), res.collection, q)
	if err != nil {
		respondStoreError(w, reqID, res.logger, err)
		return
	}
	respondList(w, reqID, nonNil(records), model.NewPagination(total, q.Limit, q.Offset))
}

func (res *Resource) handleCreate(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	body, apiErr := decodeRecord(w, r)
	if apiErr != nil {
		respondError(w, reqID, apiErr)
		return
	}
	rec, err := res.store.Insert(r.Context(), res.collection, body)
	if err != nil {
		respondStoreError(w, reqID, res.logger, err)
		return
	}
	res.logger.Info("record created", "id", rec.ID(), "request_id", reqID)
	respondCreated(w, reqID, rec)
}

func (res *Resource) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	rec, err := res.store.Get(r.Context(), res.collection, id)
	if err != nil {
		respondStoreError(w, reqID, res.logger, err)
		return
	}
	if rec == nil {
		respondError(w, reqID, model.NewNotFoundError(res.collection.Name, id))
		return
	}
	respondOK(w, reqID, rec)
}

func (res *Resource) handleUpdate(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	patch, apiErr := decodeRecord(w, r)
	if apiErr != nil {
		respondError(w, reqID, apiErr)
		return
	}
	rec, err := res.store.Update(r.Context(), res.collection, id, patch)
	if err != nil {
		respondStoreError(w, reqID, res.logger, err)
		return
	}
	if rec == nil {
		respondError(w, reqID, model.NewNotFoundError(res.collection.Name, id))
		return
	}
	res.logger.Info("record updated", "id", id, "request_id", reqID)
	respondOK(w, reqID, rec)
}

func (res *Resource) handleDelete(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	deleted, err := res.store.Delete(r.Context(), res.collection, id)
	if err != nil {
		respondStoreError(w, reqID, res.logger, err)
		return
	}
	if !deleted {
		respondError(w, reqID, model.NewNotFoundError(res.collection.Name, id))
		return
	}
	res.logger.Info("record deleted", "id", id, "request_id", reqID)
	respondOK(w, reqID, map[string]any{"deleted": true})
}

// parsePaging reads limit and offset, clamped to the API bounds.
func parsePaging(values url.Values) (model.ListOptions, *model.APIError) {
	opts, err := model.ParseListOptions(values, model.DefaultPageSize)
	if err != nil {
		return opts, model.NewValidationError(err.Error())
	}
	return opts, nil
}

// parseListQuery reads paging and order from the query string. Every other
// parameter is an equality filter on a field of c.
func parseListQuery(r *http.Request, c model.Collection) (store.Query, *model.APIError) {
	values := r.URL.Query()
	opts, apiErr := parsePaging(values)
	if apiErr != nil {
		return store.Query{}, apiErr
	}

	q := store.Query{Order: values.Get("order"), Limit: opts.Limit, Offset: opts.Offset}
	for key, vals := range values {
		switch key {
		case "limit", "offset", "order":
			continue
		}
		if !c.HasColumn(key) {
			return store.Query{}, model.NewValidationError("Unknown filter", model.FieldError{Field: key, Message: "not a field of " + c.Name})
		}
		q = q.Where(key, vals[0])
	}
	return q, nil
}

// Request body limits for JSON endpoints.
const (
	maxContactBody = 64 << 10
	maxRecordBody  = 1 << 20
)

// decodeJSON reads at most limit bytes of JSON from r into dst. An
// oversized body is TOO_LARGE; anything else malformed is a validation
// error.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) *model.APIError {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &model.APIError{Code: model.ErrTooLarge, Message: fmt.Sprintf("request body exceeds %d bytes", limit)}
		}
		return model.NewValidationError("Invalid JSON body: " + err.Error())
	}
	return nil
}

func decodeRecord(w http.ResponseWriter, r *http.Request) (model.Record, *model.APIError) {
	var body model.Record
	if apiErr := decodeJSON(w, r, maxRecordBody, &body); apiErr != nil {
		return nil, apiErr
	}
	if body == nil {
		return nil, model.NewValidationError("Request body must be a JSON object")
	}
	return body, nil
}

func nonNil(records []model.Record) []model.Record {
	if records == nil {
		return []model.Record{}
	}
	return records
}
