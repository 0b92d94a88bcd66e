package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/me/folio/internal/store"
	"github.com/me/folio/pkg/model"
)

// publishedOnly restricts public post queries.
var publishedOnly = store.Filter{Field: "published", Value: true}

// handlePublicList serves a read-only listing of c. Only limit and offset
// are honoured; ordering is the collection default.
func (s *Server) handlePublicList(c model.Collection, filters ...store.Filter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := RequestIDFromContext(r.Context())

		opts, apiErr := parsePaging(r.URL.Query())
		if apiErr != nil {
			respondError(w, reqID, apiErr)
			return
		}
		q := store.Query{Filters: filters, Limit: opts.Limit, Offset: opts.Offset}

		records, total, err := s.store.Select(r.Context(), c, q)
		if err != nil {
			respondStoreError(w, reqID, s.logger, err)
			return
		}
		respondList(w, reqID, nonNil(records), model.NewPagination(total, q.Limit, q.Offset))
	}
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	slug := chi.URLParam(r, "slug")

	post, err := s.store.GetBy(r.Context(), model.Posts, "slug", slug)
	if err != nil {
		respondStoreError(w, reqID, s.logger, err)
		return
	}
	if post == nil || !post.Bool("published") {
		respondError(w, reqID, model.NewNotFoundError("post", slug))
		return
	}
	respondOK(w, reqID, post)
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var form model.ContactForm
	if apiErr := decodeJSON(w, r, maxContactBody, &form); apiErr != nil {
		respondError(w, reqID, apiErr)
		return
	}

	if errs := form.Validate(); len(errs) > 0 {
		respondError(w, reqID, model.NewValidationError("Invalid message", errs...))
		return
	}
	rec, err := s.store.Insert(r.Context(), model.Messages, form.Record())
	if err != nil {
		respondStoreError(w, reqID, s.logger, err)
		return
	}
	s.logger.Info("contact message received", "id", rec.ID(), "request_id", reqID)
	respondCreated(w, reqID, map[string]any{"id": rec.ID()})
}
