package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"localllm/internal/generation"
	"localllm/internal/runtime"
	"localllm/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusForError maps generation errors onto HTTP status codes.
func statusForError(err error) int {
	var he HTTPError
	switch {
	case generation.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case generation.IsModelLoad(err) && errors.Is(err, runtime.ErrModelNotFound):
		return http.StatusNotFound
	case generation.IsModelLoad(err):
		return http.StatusServiceUnavailable
	case generation.IsGeneration(err):
		return http.StatusInternalServerError
	case errors.As(err, &he):
		return he.StatusCode()
	default:
		return http.StatusInternalServerError
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
