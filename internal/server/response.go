package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/me/folio/internal/store"
	"github.com/me/folio/pkg/model"
)

// requestID generates a unique request identifier.
func requestID() string {
	return "req_" + uuid.New().String()[:8]
}

// respondOK writes a success response with the standard envelope.
func respondOK(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusOK, reqID, data, nil)
}

// respondCreated writes a 201 response with the standard envelope.
func respondCreated(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusCreated, reqID, data, nil)
}

// respondList writes a success response with pagination.
func respondList(w http.ResponseWriter, reqID string, data any, pg *model.Pagination) {
	respondJSON(w, http.StatusOK, reqID, data, pg)
}

// respondError writes apiErr with the status its code maps to.
func respondError(w http.ResponseWriter, reqID string, apiErr *model.APIError) {
	writeEnvelope(w, apiErr.HTTPStatus(), model.NewErrorResponse(reqID, nil, apiErr))
}

// respondStoreError maps store errors onto API errors. Anything it does not
// recognise is logged and reported as an internal error.
func respondStoreError(w http.ResponseWriter, reqID string, logger *slog.Logger, err error) {
	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, reqID, model.NewValidationError("Invalid record", verr.Details...))
	case errors.Is(err, store.ErrUnknownField):
		respondError(w, reqID, model.NewValidationError(err.Error()))
	case errors.Is(err, store.ErrConflict):
		respondError(w, reqID, model.NewConflictError("A record with the same unique value already exists"))
	default:
		logger.Error("store operation failed", "error", err, "request_id", reqID)
		respondError(w, reqID, model.NewInternalError())
	}
}

func respondJSON(w http.ResponseWriter, status int, reqID string, data any, pg *model.Pagination) {
	writeEnvelope(w, status, model.NewResponse(reqID, data, pg))
}

func writeEnvelope(w http.ResponseWriter, status int, resp model.Response) {
	w.Header().Set("Content-Type", "application/json")
	if w.Header().Get("Cache-Control") == "" {
		w.Header().Set("Cache-Control", "no-store")
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
