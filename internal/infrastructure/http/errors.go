package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is the JSON envelope of every API error.
type ErrorResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

// WriteError writes an ErrorResponse with the given status code. A nil errors
// slice is encoded as an empty array.
func WriteError(w http.ResponseWriter, statusCode int, message string, errors []string, log *slog.Logger) {
	if errors == nil {
		errors = []string{}
	}
	WriteJSON(w, statusCode, ErrorResponse{Message: message, Errors: errors}, log)
}

// WriteJSON encodes data as the response body.
func WriteJSON(w http.ResponseWriter, statusCode int, data any, log *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Status is already written; nothing else to send.
		if log != nil {
			log.Error("failed to encode response", "error", err)
		}
	}
}
