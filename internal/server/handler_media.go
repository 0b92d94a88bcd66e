package server

import (
	"errors"
	"net/http"

	"github.com/me/folio/internal/media"
	"github.com/me/folio/pkg/model"
)

func (s *Server) handleMediaUpload(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	if s.media == nil {
		respondError(w, reqID, model.NewUnavailableError("media storage is not configured"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, media.DefaultMaxSize+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, reqID, model.NewValidationError("multipart field 'file' is required",
			model.FieldError{Field: "file", Message: err.Error()}))
		return
	}
	defer file.Close()

	url, err := s.media.Put(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	switch {
	case errors.Is(err, media.ErrTooLarge):
		respondError(w, reqID, &model.APIError{Code: model.ErrTooLarge, Message: err.Error()})
		return
	case errors.Is(err, media.ErrUnsupportedType):
		respondError(w, reqID, model.NewValidationError(err.Error()))
		return
	case err != nil:
		s.logger.Error("media upload failed", "error", err, "request_id", reqID)
		respondError(w, reqID, &model.APIError{Code: model.ErrUpstream, Message: "media storage rejected the upload"})
		return
	}
	respondCreated(w, reqID, map[string]any{"url": url})
}
