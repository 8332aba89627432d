package httputil

import (
	"encoding/json"
	"net/http"
)

// APIError is the JSON error envelope returned by every failing endpoint.
type APIError struct {
	Error     string   `json:"error"`
	Details   []string `json:"details,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

func WriteError(w http.ResponseWriter, requestID string, statusCode int, message string, details []string) {
	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIError{
		Error:     message,
		Details:   details,
		RequestID: requestID,
	})
}

// WriteValidationError reports malformed or out-of-range input. No side
// effects have occurred when this is written.
func WriteValidationError(w http.ResponseWriter, requestID, message string, details []string) {
	WriteError(w, requestID, http.StatusBadRequest, message, details)
}

func WriteRateLimitError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusTooManyRequests, message, nil)
}

func WriteNotFoundError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusNotFound, message, nil)
}

func WritePayloadTooLargeError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusRequestEntityTooLarge, message, nil)
}

func WriteUnauthorizedError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusUnauthorized, message, nil)
}

// WriteInternalError returns a generic 500. The detailed cause is logged
// server-side, never sent to the client.
func WriteInternalError(w http.ResponseWriter, requestID string) {
	WriteError(w, requestID, http.StatusInternalServerError, "Internal server error", nil)
}

// WriteJSON writes a success payload with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}
