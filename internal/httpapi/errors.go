package httpapi

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/researchgraph/hybridsearch/internal/errors"
)

// errorResponse is the fixed-string error body returned to clients; internal
// details never leave the process.
type errorResponse struct {
	Error string `json:"error"`
}

// statusForError maps a typed error to the HTTP status spec.md §7 assigns
// its category.
func statusForError(err error) (int, string) {
	switch apperrors.GetCategory(err) {
	case apperrors.CategoryValidation:
		return http.StatusBadRequest, "invalid request"
	case apperrors.CategoryEmbedding:
		return http.StatusServiceUnavailable, "embedding service unavailable"
	case apperrors.CategoryEngine:
		return http.StatusBadGateway, "bad gateway"
	case apperrors.CategoryNotFound:
		return http.StatusNotFound, "not found"
	case apperrors.CategoryStore, apperrors.CategoryCache, apperrors.CategoryCancelled:
		return http.StatusInternalServerError, "internal error"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, message := statusForError(err)
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
