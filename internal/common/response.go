package common

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the error payload every endpoint returns. Code is a stable
// machine-readable identifier; Message is safe to show to an end user.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError writes the canonical error envelope. Provider error bodies and
// internal detail never pass through here; callers supply sanitised messages.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, map[string]ErrorBody{
		"error": {Code: code, Message: message, Details: details},
	})
}
