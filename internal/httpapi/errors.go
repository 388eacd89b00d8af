package httpapi

import (
	"encoding/json"
	"net/http"

	"inferd/internal/client"
	"inferd/internal/tokens"
	"inferd/pkg/types"
)

// statusForError maps typed client failures to HTTP status codes. The
// orchestrator behind this API keys retry policy off the retryable flag in
// the payload, not the status code alone.
func statusForError(err error) int {
	switch {
	case tokens.IsContextOverflow(err):
		return http.StatusRequestEntityTooLarge
	case client.IsModelNotLoaded(err):
		return http.StatusServiceUnavailable
	case client.IsGPUMemory(err):
		return http.StatusServiceUnavailable
	case client.IsConnection(err):
		return http.StatusBadGateway
	case client.IsGeneration(err):
		if client.IsRetryable(err) {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{
		Error: msg,
		Code:  status,
	})
}

// writeTypedError maps err to a status and writes the payload, including the
// retryable hint.
func writeTypedError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{
		Error:     err.Error(),
		Code:      status,
		Retryable: client.IsRetryable(err),
	})
}
