package web

// errors.go provides unified JSON error responses. Technical detail is
// logged server-side with the request id; clients get a stable code and a
// short message they can quote back.

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lardosa/contacerta/internal/importer"
	"github.com/lardosa/contacerta/internal/logging"
)

// ErrorResponse is the JSON envelope for API errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// errorCode maps pipeline errors to stable client-facing codes.
func errorCode(err error) (code string, status int) {
	switch {
	case errors.Is(err, importer.ErrUnknownSession):
		return "IMP001", http.StatusNotFound
	case errors.Is(err, importer.ErrEmptyMatrix), errors.Is(err, importer.ErrNoDataRows):
		return "IMP002", http.StatusUnprocessableEntity
	case errors.Is(err, importer.ErrIncompleteMapping):
		return "IMP003", http.StatusUnprocessableEntity
	case errors.Is(err, importer.ErrWrongState):
		return "IMP004", http.StatusConflict
	case errors.Is(err, importer.ErrTooManyUploads):
		return "IMP005", http.StatusTooManyRequests
	default:
		return "IMP000", http.StatusInternalServerError
	}
}

// respondError logs the technical error and writes the JSON envelope.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	code, status := errorCode(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", code,
		"error", err.Error(),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error(), Code: code})
}

// respondJSON writes a success payload.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
