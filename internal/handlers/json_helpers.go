package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// JSONResponse writes data as a JSON response with the given status code.
func JSONResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// ErrorResponse is the error payload shape shared by all handlers
type ErrorResponse struct {
	Error string `json:"error"`
}

// JSONError writes an error payload with the given status code.
func JSONError(w http.ResponseWriter, status int, message string) {
	JSONResponse(w, status, ErrorResponse{Error: message})
}
